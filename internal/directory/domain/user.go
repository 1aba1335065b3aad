package domain

import "time"

// User is the stored identity record, credential fields included. It never
// leaves the service layer; callers get an Identity instead.
type User struct {
	ID                string
	Username          string // empty for federated-only users
	PasswordHash      string // argon2 encoded, empty for federated-only users
	FederatedProvider string
	FederatedID       string
	Profile           Profile
	HasAvatar         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasCredential reports whether u carries at least one way to authenticate.
func (u User) HasCredential() bool {
	return u.PasswordHash != "" || u.FederatedID != ""
}

// Identity is the credential-free view of a User.
type Identity struct {
	ID                string
	Username          string
	FederatedProvider string
	FederatedID       string
	Profile           Profile
	HasAvatar         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Identity strips credential material from u.
func (u User) Identity() Identity {
	return Identity{
		ID:                u.ID,
		Username:          u.Username,
		FederatedProvider: u.FederatedProvider,
		FederatedID:       u.FederatedID,
		Profile:           u.Profile,
		HasAvatar:         u.HasAvatar,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

// DisplayName is the name shown in page headers.
func (i Identity) DisplayName() string {
	if i.Profile.Name != "" {
		return i.Profile.Name
	}
	return i.Username
}

// Profile holds the fields an owner may edit.
type Profile struct {
	Name        string
	Company     string
	Link        string
	PhoneNumber string
	Address     string
	DateOfBirth string
}

// Avatar is an uploaded profile image.
type Avatar struct {
	Data        []byte
	ContentType string
}

// ExternalProfile is what an OAuth2 provider tells us about a user.
type ExternalProfile struct {
	Provider    string
	ExternalID  string
	DisplayName string
}
