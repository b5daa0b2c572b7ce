package credentials

import "time"

// PendingRegistration is a staged signup waiting for email confirmation.
type PendingRegistration struct {
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"password_hash"`
	VerificationToken string    `json:"verification_token"`
	CreatedAt         time.Time `json:"created_at"`
	TokenExpiration   time.Time `json:"token_expiration"`
	Verified          bool      `json:"verified"`
}

// CanBeVerified reports whether the record is unverified and its token has
// not passed its expiration at now. The store TTL enforces the same bound.
func (p *PendingRegistration) CanBeVerified(now time.Time) bool {
	return !p.Verified && now.Before(p.TokenExpiration)
}
