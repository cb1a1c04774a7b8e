// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is a registered user. PasswordHash never leaves the process:
// it is excluded from JSON and blanked by Sanitize.
type Account struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"account_created"`
	UpdatedAt    time.Time `json:"account_updated"`
}

// Sanitize returns a copy of the account without the password hash.
func (a *Account) Sanitize() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.PasswordHash = ""
	return &c
}
