// Package auth authenticates API requests with HTTP Basic credentials
// (email and password) against stored accounts.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

type ctxKey string

const accountKey ctxKey = "account"

// AccountLookup is the part of the account service the gate needs.
type AccountLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	VerifyPassword(account *models.Account, password string) (bool, error)
}

// Gate checks Basic credentials on every request. Accounts are fetched
// fresh each time; nothing is cached.
type Gate struct {
	accounts AccountLookup
}

func NewGate(accounts AccountLookup) *Gate {
	return &Gate{accounts: accounts}
}

// Authenticate resolves the Authorization header value to a sanitized
// account. Errors, in the order they are checked:
//
//	common.ErrAuthRequired       header missing or malformed
//	common.ErrAccountNotFound    no account with that email
//	common.ErrUnverified         email not verified yet
//	common.ErrInvalidCredentials password mismatch
func (g *Gate) Authenticate(ctx context.Context, header string) (*models.Account, error) {
	email, password, err := ParseBasic(header)
	if err != nil {
		return nil, err
	}

	account, err := g.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, err
	}

	// unverified accounts are rejected before the password is checked
	if !account.IsVerified {
		return nil, common.ErrUnverified
	}

	ok, err := g.accounts.VerifyPassword(account, password)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	return account.Sanitize(), nil
}

// Middleware authenticates the request and stores the account on its
// context. Failures are passed to onError and the chain stops.
func (g *Gate) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

// ParseBasic decodes a "Basic base64(email:password)" header value.
func ParseBasic(header string) (email, password string, err error) {
	scheme, encoded, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", "", common.ErrAuthRequired
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", "", common.ErrAuthRequired
	}

	email, password, ok = strings.Cut(string(decoded), ":")
	if !ok || email == "" {
		return "", "", common.ErrAuthRequired
	}
	return email, password, nil
}

func WithAccount(ctx context.Context, a *models.Account) context.Context {
	return context.WithValue(ctx, accountKey, a)
}

// AccountFromContext returns the account stored by Middleware.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	a, ok := ctx.Value(accountKey).(*models.Account)
	return a, ok && a != nil
}
