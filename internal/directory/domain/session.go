package domain

import "time"

// Session binds a browser-held token to a user. Only the token hash and the
// user id are stored.
type Session struct {
	ID        string
	TokenHash string
	UserID    string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether s is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
