package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

var (
	ErrClientNotFound = errors.New("client_not_found")
	ErrClientExists   = errors.New("client_exists")
)

// ClientService registers OAuth2 clients. The consent flow only reads them.
type ClientService struct {
	Store store.Store
	Clock Clock
}

func (s *ClientService) Register(ctx context.Context, c domain.Client) (domain.Client, error) {
	now := s.Clock.now()
	c.CreatedAt, c.UpdatedAt = now, now

	if err := s.Store.Clients().CreateClient(ctx, c); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Client{}, ErrClientExists
		}
		return domain.Client{}, err
	}

	slogx.FromContext(ctx).Info("client registered", slog.String("client_id", c.ID))
	return c, nil
}

func (s *ClientService) Find(ctx context.Context, id string) (domain.Client, error) {
	c, err := s.Store.Clients().GetClientByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Client{}, ErrClientNotFound
	}
	return c, err
}
