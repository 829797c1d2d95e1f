package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	minUsernameLen = 3
	maxUsernameLen = 255
	minPasswordLen = 6
)

var (
	ErrUsernameTaken = errors.New("username_taken")
	ErrEmailTaken    = errors.New("email_taken")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// UserInput is the body of an admin create or update. Password may be left
// empty on update to keep the current one.
type UserInput struct {
	Username  string
	Email     string
	Password  string
	Roles     []string
	IsBlocked bool
}

// AdminService is the user administration surface.
type AdminService struct {
	Store    store.Store
	Sessions *SessionService
	Clock    Clock
}

func normalisePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func (s *AdminService) ListUsers(ctx context.Context, page, limit int) (domain.Page[domain.User], error) {
	page, limit = normalisePage(page, limit)

	total, err := s.Store.Users().CountUsers(ctx)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	users, err := s.Store.Users().ListUsers(ctx, (page-1)*limit, limit)
	if err != nil {
		return domain.Page[domain.User]{}, err
	}
	return domain.NewPage(users, page, limit, total), nil
}

func (s *AdminService) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

func (s *AdminService) CreateUser(ctx context.Context, in UserInput) (domain.User, error) {
	roles, err := validateUser(in, true)
	if err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.Clock.now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     strings.TrimSpace(in.Username),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Roles:        roles,
		IsBlocked:    in.IsBlocked,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := checkUnique(ctx, tx, u); err != nil {
			return err
		}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return conflictError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user created", slog.String("user_id", u.ID), slog.String("username", u.Username))
	return u, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, id string, in UserInput) (domain.User, error) {
	roles, err := validateUser(in, false)
	if err != nil {
		return domain.User{}, err
	}

	var hash string
	if in.Password != "" {
		if hash, err = cryptox.HashPassword(in.Password); err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
	}

	var u domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.Users().GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		u.Username = strings.TrimSpace(in.Username)
		u.Email = strings.TrimSpace(in.Email)
		u.Roles = roles
		u.IsBlocked = in.IsBlocked
		u.UpdatedAt = s.Clock.now()
		if hash != "" {
			u.PasswordHash = hash
		}

		if err := checkUnique(ctx, tx, u); err != nil {
			return err
		}
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return conflictError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user updated", slog.String("user_id", u.ID))
	return u, nil
}

// DeleteUser removes the user with its token records. Sessions, refresh
// tokens and codes go with the user row.
func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.Users().GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := tx.LockUser(ctx, u.ID); err != nil {
			return err
		}
		if err := tx.OAuth2Tokens().DeleteUserTokens(ctx, u.ID); err != nil {
			return fmt.Errorf("delete token records: %w", err)
		}
		return tx.Users().DeleteUser(ctx, u.ID)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user deleted", slog.String("user_id", id))
	return nil
}

// ListUserSessions pages through a user's sessions, newest first.
func (s *AdminService) ListUserSessions(ctx context.Context, userID string, page, limit int) (domain.Page[domain.Session], error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return domain.Page[domain.Session]{}, err
	}
	return s.Sessions.ListSessions(ctx, userID, page, limit)
}

func (s *AdminService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return s.Sessions.GetSession(ctx, id)
}

// checkUnique rejects u when another user already has its username or email.
func checkUnique(ctx context.Context, tx store.Tx, u domain.User) error {
	other, err := tx.Users().GetUserByUsername(ctx, u.Username)
	switch {
	case err == nil && other.ID != u.ID:
		return ErrUsernameTaken
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	other, err = tx.Users().GetUserByEmail(ctx, u.Email)
	switch {
	case err == nil && other.ID != u.ID:
		return ErrEmailTaken
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}
	return nil
}

// conflictError maps a unique violation the store raised past checkUnique,
// when a concurrent write won the race, to the field that collided.
func conflictError(err error) error {
	var cerr *store.ConflictError
	if errors.As(err, &cerr) && cerr.Column == "email" {
		return ErrEmailTaken
	}
	return ErrUsernameTaken
}

// validateUser checks in and returns its roles, defaulting to ROLE_USER.
func validateUser(in UserInput, requirePassword bool) (domain.Roles, error) {
	verr := &ValidationError{}

	username := strings.TrimSpace(in.Username)
	switch n := utf8.RuneCountInString(username); {
	case n == 0:
		verr.add("username", "This value should not be blank.")
	case n < minUsernameLen || n > maxUsernameLen:
		verr.add("username", fmt.Sprintf("Username must be between %d and %d characters.", minUsernameLen, maxUsernameLen))
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		verr.add("email", "This value should not be blank.")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.add("email", "This value is not a valid email address.")
	}

	switch {
	case in.Password == "" && requirePassword:
		verr.add("password", "This value should not be blank.")
	case in.Password != "" && utf8.RuneCountInString(in.Password) < minPasswordLen:
		verr.add("password", fmt.Sprintf("Password must be at least %d characters.", minPasswordLen))
	}

	roles := make(domain.Roles, 0, len(in.Roles))
	for _, r := range in.Roles {
		role := domain.Role(strings.TrimSpace(r))
		if !role.Valid() {
			verr.add("roles", fmt.Sprintf("Unknown role %q.", r))
			continue
		}
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = domain.Roles{domain.RoleUser}
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return roles, nil
}
