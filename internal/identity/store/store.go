package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// ConflictError is a unique violation. Column names the conflicting column
// when the driver reports it. It matches ErrAlreadyExists.
type ConflictError struct {
	Column string
}

func (e *ConflictError) Error() string {
	if e.Column == "" {
		return ErrAlreadyExists.Error()
	}
	return ErrAlreadyExists.Error() + ": " + e.Column
}

func (e *ConflictError) Is(target error) bool { return target == ErrAlreadyExists }

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories are methods so a Tx can hand out the same
// repositories bound to the transaction, and nothing can start a transaction
// from inside another.
type Store interface {
	Users() Users
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	Clients() Clients
	OAuth2Tokens() OAuth2Tokens
	AuthorizationCodes() AuthorizationCodes
	Reports() Reports

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction. It commits when fn returns nil and
	// rolls back otherwise, including when ctx is cancelled.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions return sql.ErrTxDone.
type Tx interface {
	Store
	Commit() error
	Rollback() error

	// LockUser serializes transactions touching userID's sessions and tokens
	// until this transaction ends.
	LockUser(ctx context.Context, userID string) error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a user. ErrAlreadyExists on a username/email clash.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateUser overwrites every mutable column of u.ID.
	UpdateUser(ctx context.Context, u domain.User) error

	// DeleteUser cascades to sessions, refresh tokens and codes (per schema).
	DeleteUser(ctx context.Context, id string) error

	// ListUsers returns users ordered by creation, oldest first.
	ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSessionByID(ctx context.Context, id string) (domain.Session, error)

	// GetOpenSession returns the latest session of userID with no finished_at.
	GetOpenSession(ctx context.Context, userID string) (domain.Session, error)

	// FinishSession sets finished_at on an open session.
	FinishSession(ctx context.Context, id string, at time.Time) error

	// FinishOpenSessions closes every open session of userID.
	FinishOpenSessions(ctx context.Context, userID string, at time.Time) (int64, error)

	// ListUserSessions orders by started_at descending.
	ListUserSessions(ctx context.Context, userID string, offset, limit int) ([]domain.Session, error)
	CountUserSessions(ctx context.Context, userID string) (int64, error)

	// CountSessionsInRange counts sessions of userID started within r.
	CountSessionsInRange(ctx context.Context, userID string, r domain.DateRange) (int64, error)

	// LastActivity is the latest started_at of userID, nil if none.
	LastActivity(ctx context.Context, userID string) (*time.Time, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new record. ErrAlreadyExists when the
	// token fingerprint is already taken.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked on one token. Missing or already
	// revoked tokens are not an error.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeUserRefreshTokens revokes every non-revoked token of userID.
	RevokeUserRefreshTokens(ctx context.Context, userID string) (int64, error)

	ListUserRefreshTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Clients interface {
	GetClientByID(ctx context.Context, id string) (domain.Client, error)
	CreateClient(ctx context.Context, c domain.Client) error
	ListClients(ctx context.Context) ([]domain.Client, error)
}

// OAuth2Tokens holds the access-token and OAuth2 refresh-token side tables
// keyed by user identifier (username).
type OAuth2Tokens interface {
	CreateAccessToken(ctx context.Context, t domain.AccessTokenRecord) error
	GetAccessToken(ctx context.Context, identifier string) (domain.AccessTokenRecord, error)
	RevokeUserAccessTokens(ctx context.Context, userIdentifier string) (int64, error)

	CreateRefreshToken(ctx context.Context, t domain.OAuth2RefreshTokenRecord) error
	GetRefreshToken(ctx context.Context, identifier string) (domain.OAuth2RefreshTokenRecord, error)

	// RevokeUserRefreshTokens revokes refresh tokens whose access token
	// belongs to userIdentifier.
	RevokeUserRefreshTokens(ctx context.Context, userIdentifier string) (int64, error)

	// DeleteUserTokens removes every record for userIdentifier.
	DeleteUserTokens(ctx context.Context, userIdentifier string) error

	// DeleteExpiredAccessTokens skips records still referenced by an
	// unexpired refresh token.
	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error)
}

type AuthorizationCodes interface {
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)
	MarkAuthorizationCodeUsed(ctx context.Context, id string, at time.Time) error
	DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error)
}

type Reports interface {
	// UserActivity lists every user with their session count and last
	// activity inside r, ordered by username.
	UserActivity(ctx context.Context, r domain.DateRange) ([]domain.UserActivity, error)

	// RegistrationTimes returns users' created_at inside r, newest first.
	RegistrationTimes(ctx context.Context, r domain.DateRange) ([]time.Time, error)
}
