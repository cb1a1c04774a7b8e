// Package attachments stores profile image metadata, one row per account.
package attachments

import (
	"context"

	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

type Repository interface {
	// GetByAccountID returns common.ErrNotFound when the account has no attachment.
	GetByAccountID(ctx context.Context, accountID string) (*models.MediaAttachment, error)
	// Upsert inserts the row or overwrites the existing one for the same
	// account, filling in ID and UploadedAt.
	Upsert(ctx context.Context, attachment *models.MediaAttachment) (*models.MediaAttachment, error)
	DeleteByAccountID(ctx context.Context, accountID string) error
}
