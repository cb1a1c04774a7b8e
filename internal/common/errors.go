// Package common defines shared constants and sentinel errors used across
// the account service. Callers should use errors.Is / errors.As to match
// these values; error text is never inspected.
package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Store failures. Matched through *StoreError.
	ErrStore = errors.New("store error")

	// Account input errors.
	ErrInvalidEmail  = errors.New("invalid email")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidFields = errors.New("invalid fields")

	// ErrNoChange is returned by updates that would not modify anything.
	ErrNoChange = errors.New("no changes detected")

	// Authentication errors.
	ErrAuthRequired       = errors.New("authentication required")
	ErrAccountNotFound    = errors.New("account not found")
	ErrUnverified         = errors.New("email address is not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Verification token lifecycle errors.
	ErrInvalidToken = errors.New("invalid verification token")
	ErrExpiredToken = errors.New("verification token has expired")

	// Attachment errors.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// InvalidFieldsError names every rejected key of an update, in the order
// the keys were first seen.
type InvalidFieldsError struct {
	Fields []string
}

func (e *InvalidFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidFields.Error(), strings.Join(e.Fields, ", "))
}

func (e *InvalidFieldsError) Is(target error) bool {
	return target == ErrInvalidFields
}

// StoreError wraps a failure of the relational or object store.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err as a StoreError for operation op.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStore.Error(), e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
