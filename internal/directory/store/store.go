package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrMissingCredential is returned when a user is inserted with neither a
	// password hash nor a federated id.
	ErrMissingCredential = errors.New("store: user has no credential")
)

// Store is the root data access interface. Drivers implement it and expose
// sub-repositories so a Tx-scoped Store can hand out the same repos.
type Store interface {
	Users() Users
	Sessions() Sessions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	GetUserByFederatedID(ctx context.Context, provider, federatedID string) (domain.User, error)

	// CreateUser inserts a local user. Returns ErrAlreadyExists when the
	// username is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// InsertFederatedUser inserts u unless a user with the same
	// (provider, federated id) already exists. created is false on conflict.
	InsertFederatedUser(ctx context.Context, u domain.User) (created bool, err error)

	// UpdateProfile overwrites the profile columns only.
	UpdateProfile(ctx context.Context, id string, p domain.Profile) error

	UpdateAvatar(ctx context.Context, id string, a domain.Avatar) error
	GetAvatar(ctx context.Context, id string) (domain.Avatar, error)

	// SearchByName does a case-insensitive substring match on name, newest first.
	SearchByName(ctx context.Context, term string, limit int) ([]domain.User, error)

	CountUsers(ctx context.Context) (int, error)

	// DeleteUser exists for operators and tests; no request path deletes users.
	DeleteUser(ctx context.Context, id string) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)

	// DeleteSessionByTokenHash is a no-op when the session does not exist.
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error

	DeleteSessionsForUser(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
