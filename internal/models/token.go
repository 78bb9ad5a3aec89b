package models

import "time"

// Token is a server-side allowlist record backing a signed JWT. A bearer
// token is only valid if its jti is present here and unexpired, so a
// token that was never issued through the allowlist, or was already
// revoked, is rejected even if its signature still verifies.
type Token struct {
	ID        string    `json:"id" db:"id"` // jti, also the RegisteredClaims.ID
	Username  string    `json:"username" db:"username"`
	Subject   string    `json:"subject" db:"subject"`
	IssuedAt  time.Time `json:"issued_at" db:"issued_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}
