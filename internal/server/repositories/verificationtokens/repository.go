// Package verificationtokens provides storage for single-use email
// verification tokens.
package verificationtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, token *models.VerificationToken) error
	// Consume deletes the token and returns the removed row, so a token can
	// be redeemed at most once. Missing tokens yield common.ErrNotFound.
	Consume(ctx context.Context, token string) (*models.VerificationToken, error)
	DeleteByAccount(ctx context.Context, accountID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
