// Package accounts declares the repository contract for account rows and
// its PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

// UpdateParams lists the mutable account columns. Only non-nil fields are
// written.
type UpdateParams struct {
	FirstName    *string
	LastName     *string
	PasswordHash *string
}

// Empty reports whether no column would be written.
func (p UpdateParams) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.PasswordHash == nil
}

type Repository interface {
	// Create inserts the account and fills in ID and timestamps. A duplicate
	// email yields common.ErrAlreadyExists.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// GetByID and GetByEmail return common.ErrNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// Update writes the non-nil params and returns the updated row.
	Update(ctx context.Context, id string, params UpdateParams) (*models.Account, error)

	// MarkVerified flips is_verified to true.
	MarkVerified(ctx context.Context, id string) error
}
