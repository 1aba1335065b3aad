package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/directory/internal/directory/store"
)

var (
	ErrDuplicateUsername   = errors.New("username already taken")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrNoSession           = errors.New("no active session")
	ErrNotFound            = errors.New("identity not found")
	ErrProviderRejected    = errors.New("identity provider rejected the sign-in")
	ErrProviderUnreachable = errors.New("identity provider unreachable")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInvalidRequest      = errors.New("invalid_request")

	ErrUnsupportedAvatar = fmt.Errorf("%w: unsupported avatar type", ErrInvalidRequest)
)

// storeErr maps store.ErrNotFound to ErrNotFound, a credential-less insert to
// ErrInvalidRequest and wraps anything else as ErrStoreUnavailable, keeping
// the cause for logging.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrMissingCredential):
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidRequest, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
