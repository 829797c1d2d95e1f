package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/service"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/spf13/viper"
)

// Fixtures are the users and OAuth2 clients loaded by cmd/seed.
type Fixtures struct {
	Users   []UserFixture   `mapstructure:"users"`
	Clients []ClientFixture `mapstructure:"clients"`
}

type UserFixture struct {
	Username string   `mapstructure:"username"`
	Email    string   `mapstructure:"email"`
	Password string   `mapstructure:"password"`
	Roles    []string `mapstructure:"roles"`
}

type ClientFixture struct {
	ID           string   `mapstructure:"id"`
	Name         string   `mapstructure:"name"`
	RedirectURIs []string `mapstructure:"redirect_uris"`
	Scopes       []string `mapstructure:"scopes"`
}

// DefaultFixtures is a local development data set: an admin, a regular user
// and one test client.
func DefaultFixtures() Fixtures {
	return Fixtures{
		Users: []UserFixture{
			{Username: "admin", Email: "admin@example.com", Password: "adminpassword", Roles: []string{string(domain.RoleAdmin)}},
			{Username: "user", Email: "user@example.com", Password: "userpassword"},
		},
		Clients: []ClientFixture{
			{
				ID:           "test_client",
				Name:         "Test Client",
				RedirectURIs: []string{"http://localhost:3000/callback"},
				Scopes:       []string{"openid", "profile"},
			},
		},
	}
}

// LoadFixtures reads a YAML or JSON fixture file. The format follows the
// file extension.
func LoadFixtures(path string) (Fixtures, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}

	var fx Fixtures
	if err := v.Unmarshal(&fx); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return fx, nil
}

// SeedResult counts what Seed created and what already existed.
type SeedResult struct {
	UsersCreated   int
	UsersSkipped   int
	ClientsCreated int
	ClientsSkipped int
}

// Seed stores fx. Users whose username is taken and clients whose id exists
// are left untouched, so running it twice is harmless.
func Seed(ctx context.Context, st store.Store, fx Fixtures, logger *slog.Logger) (SeedResult, error) {
	var res SeedResult

	admin := &service.AdminService{Store: st, Sessions: &service.SessionService{Store: st}}
	for _, u := range fx.Users {
		_, err := admin.CreateUser(ctx, service.UserInput{
			Username: u.Username,
			Email:    u.Email,
			Password: u.Password,
			Roles:    u.Roles,
		})
		switch {
		case err == nil:
			res.UsersCreated++
			logger.Info("user seeded", "username", u.Username)
		case errors.Is(err, service.ErrUsernameTaken):
			res.UsersSkipped++
			logger.Info("user exists, skipping", "username", u.Username)
		default:
			return res, fmt.Errorf("seed user %q: %w", u.Username, err)
		}
	}

	clients := &service.ClientService{Store: st}
	for _, c := range fx.Clients {
		existing, err := clients.Find(ctx, c.ID)
		if err == nil {
			res.ClientsSkipped++
			logger.Info("client exists, skipping", "client_id", existing.ID, "active", existing.Active)
			continue
		}
		if !errors.Is(err, service.ErrClientNotFound) {
			return res, fmt.Errorf("look up client %q: %w", c.ID, err)
		}

		_, err = clients.Register(ctx, domain.Client{
			ID:           c.ID,
			Name:         c.Name,
			RedirectURIs: c.RedirectURIs,
			Scopes:       c.Scopes,
			Active:       true,
		})
		switch {
		case err == nil:
			res.ClientsCreated++
			logger.Info("client seeded", "client_id", c.ID)
		case errors.Is(err, service.ErrClientExists):
			res.ClientsSkipped++
			logger.Info("client exists, skipping", "client_id", c.ID)
		default:
			return res, fmt.Errorf("seed client %q: %w", c.ID, err)
		}
	}

	return res, nil
}
