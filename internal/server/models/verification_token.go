package models

import "time"

// VerificationToken is a single-use email verification token. AccountID is
// the owner reference; Email is kept for building the notification.
type VerificationToken struct {
	Token     string
	AccountID string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *VerificationToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
