package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/directory/internal/directory/domain"
	"github.com/aussiebroadwan/directory/internal/directory/metrics"
	"github.com/aussiebroadwan/directory/internal/directory/store"
	"github.com/aussiebroadwan/directory/pkg/cryptox"
	"github.com/aussiebroadwan/directory/pkg/idx"
)

const (
	maxUsernameLen     = 64
	maxPasswordLen     = 1024
	maxProfileFieldLen = 256

	// DefaultSearchLimit caps autocomplete results.
	DefaultSearchLimit = 20

	// federatedWriteTimeout bounds the find-or-create once it is detached
	// from the request.
	federatedWriteTimeout = 10 * time.Second
)

var avatarTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// IdentityService owns user records: creation, lookup and profile edits.
// Every method returns the credential-free domain.Identity.
type IdentityService struct {
	Store   store.Store
	Metrics *metrics.Metrics
}

// CreateLocal hashes password and stores a new local identity.
func (s *IdentityService) CreateLocal(
	ctx context.Context,
	username, password string,
	p domain.Profile,
) (domain.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen {
		return domain.Identity{}, ErrInvalidRequest
	}
	if password == "" || len(password) > maxPasswordLen {
		return domain.Identity{}, ErrInvalidRequest
	}

	p, err := normaliseProfile(p)
	if err != nil {
		return domain.Identity{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Profile:      p,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Identity{}, ErrDuplicateUsername
		}
		return domain.Identity{}, storeErr("create user", err)
	}

	return u.Identity(), nil
}

func (s *IdentityService) FindByID(ctx context.Context, id string) (domain.Identity, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		return domain.Identity{}, storeErr("get user", err)
	}
	return u.Identity(), nil
}

func (s *IdentityService) FindByUsername(ctx context.Context, username string) (domain.Identity, error) {
	u, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return domain.Identity{}, storeErr("get user", err)
	}
	return u.Identity(), nil
}

// FindOrCreateFederated returns the identity linked to (provider,
// federatedID), creating it with p when none exists. created reports
// whether this call inserted the record. Concurrent callers with the same
// key all get the same identity. The write is detached from ctx
// cancellation so a dropped client cannot leave it half done.
func (s *IdentityService) FindOrCreateFederated(
	ctx context.Context,
	provider, federatedID string,
	p domain.Profile,
) (identity domain.Identity, created bool, err error) {
	if provider == "" || federatedID == "" {
		return domain.Identity{}, false, ErrInvalidRequest
	}

	p, err = normaliseProfile(p)
	if err != nil {
		// Provider supplied junk; keep what fits rather than refusing sign-in.
		p = truncateProfile(p)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), federatedWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	candidate := domain.User{
		ID:                idx.New().String(),
		FederatedProvider: provider,
		FederatedID:       federatedID,
		Profile:           p,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err = s.Store.Users().InsertFederatedUser(ctx, candidate)
	if err != nil {
		return domain.Identity{}, false, storeErr("insert federated user", err)
	}

	u, err := s.Store.Users().GetUserByFederatedID(ctx, provider, federatedID)
	if err != nil {
		return domain.Identity{}, false, storeErr("get federated user", err)
	}

	if created {
		s.Metrics.FederatedIdentityCreated()
	}
	return u.Identity(), created, nil
}

// UpdateProfile overwrites the editable profile fields of id. Credentials
// are never touched.
func (s *IdentityService) UpdateProfile(ctx context.Context, id string, p domain.Profile) (domain.Identity, error) {
	return s.UpdateDetails(ctx, id, p, nil)
}

// UpdateDetails overwrites the profile fields of id and, when avatar is
// non-nil, its profile image. Both are validated before anything is written
// and both writes commit together.
func (s *IdentityService) UpdateDetails(
	ctx context.Context,
	id string,
	p domain.Profile,
	avatar []byte,
) (domain.Identity, error) {
	p, err := normaliseProfile(p)
	if err != nil {
		return domain.Identity{}, err
	}

	var a *domain.Avatar
	if avatar != nil {
		sniffed, err := sniffAvatar(avatar)
		if err != nil {
			return domain.Identity{}, err
		}
		a = &sniffed
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateProfile(ctx, id, p); err != nil {
			return err
		}
		if a == nil {
			return nil
		}
		return tx.Users().UpdateAvatar(ctx, id, *a)
	})
	if err != nil {
		return domain.Identity{}, storeErr("update details", err)
	}
	return s.FindByID(ctx, id)
}

// UpdateAvatar stores a new profile image. The content type is sniffed from
// the bytes; the client-declared type is ignored.
func (s *IdentityService) UpdateAvatar(ctx context.Context, id string, data []byte) error {
	a, err := sniffAvatar(data)
	if err != nil {
		return err
	}

	if err := s.Store.Users().UpdateAvatar(ctx, id, a); err != nil {
		return storeErr("update avatar", err)
	}
	return nil
}

func sniffAvatar(data []byte) (domain.Avatar, error) {
	if len(data) == 0 {
		return domain.Avatar{}, ErrUnsupportedAvatar
	}

	contentType := http.DetectContentType(data)
	if !avatarTypes[contentType] {
		return domain.Avatar{}, ErrUnsupportedAvatar
	}
	return domain.Avatar{Data: data, ContentType: contentType}, nil
}

func (s *IdentityService) Avatar(ctx context.Context, id string) (domain.Avatar, error) {
	a, err := s.Store.Users().GetAvatar(ctx, id)
	if err != nil {
		return domain.Avatar{}, storeErr("get avatar", err)
	}
	return a, nil
}

// Search finds identities whose name contains term, newest first.
func (s *IdentityService) Search(ctx context.Context, term string, limit int) ([]domain.Identity, error) {
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}

	users, err := s.Store.Users().SearchByName(ctx, strings.TrimSpace(term), limit)
	if err != nil {
		return nil, storeErr("search users", err)
	}

	out := make([]domain.Identity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Identity())
	}
	return out, nil
}

func normaliseProfile(p domain.Profile) (domain.Profile, error) {
	fields := []*string{&p.Name, &p.Company, &p.Link, &p.PhoneNumber, &p.Address, &p.DateOfBirth}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
		if utf8.RuneCountInString(*f) > maxProfileFieldLen {
			return p, ErrInvalidRequest
		}
	}

	if p.Link != "" {
		u, err := url.Parse(p.Link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return p, ErrInvalidRequest
		}
	}

	if p.DateOfBirth != "" {
		if _, err := time.Parse(time.DateOnly, p.DateOfBirth); err != nil {
			return p, ErrInvalidRequest
		}
	}

	return p, nil
}

func truncateProfile(p domain.Profile) domain.Profile {
	clip := func(s string) string {
		r := []rune(strings.TrimSpace(s))
		if len(r) > maxProfileFieldLen {
			r = r[:maxProfileFieldLen]
		}
		return string(r)
	}
	return domain.Profile{Name: clip(p.Name)}
}
