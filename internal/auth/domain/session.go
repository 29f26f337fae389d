package domain

import "time"

// Session binds an opaque refresh token to a principal. Only the token's
// fingerprint is stored.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	AccessTokenID    string // jti of the latest access token minted under this session
	IP               string
	UserAgent        string
	Active           bool
	ExpiresAt        time.Time
	LastAccessedAt   time.Time
	CreatedAt        time.Time
}

// Usable reports whether the session may still authenticate a refresh.
func (s Session) Usable(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}

// SessionTokens is what a new login returns.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
	ExpiresIn    time.Duration
}

// RefreshResult is what a successful refresh returns. The refresh token is
// unchanged and therefore absent.
type RefreshResult struct {
	AccessToken string
	SessionID   string
	ExpiresIn   time.Duration
	User        User
}
