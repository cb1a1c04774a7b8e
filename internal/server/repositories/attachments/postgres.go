package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
)

// PostgresRepository implements attachment storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID string) (*models.MediaAttachment, error) {
	query := ` SELECT id, account_id, object_key, file_name, content_type, url, uploaded_at FROM media_attachments
		WHERE account_id=$1
		`
	a := &models.MediaAttachment{}
	err := r.db.QueryRowContext(ctx, query, accountID).
		Scan(&a.ID, &a.AccountID, &a.ObjectKey, &a.FileName, &a.ContentType, &a.URL, &a.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Upsert writes the attachment keyed by account_id. On conflict the
// previous metadata is overwritten, so the last committed upload wins.
func (r *PostgresRepository) Upsert(ctx context.Context, a *models.MediaAttachment) (*models.MediaAttachment, error) {
	query := `
		INSERT INTO media_attachments (account_id, object_key, file_name, content_type, url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id)
		DO UPDATE SET
			object_key = EXCLUDED.object_key,
			file_name = EXCLUDED.file_name,
			content_type = EXCLUDED.content_type,
			url = EXCLUDED.url,
			uploaded_at = now()
		RETURNING id, uploaded_at
	`
	err := r.db.QueryRowContext(ctx, query, a.AccountID, a.ObjectKey, a.FileName, a.ContentType, a.URL).
		Scan(&a.ID, &a.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// DeleteByAccountID removes the attachment row. Exactly one row must be
// affected, otherwise common.ErrNotFound is returned.
func (r *PostgresRepository) DeleteByAccountID(ctx context.Context, accountID string) error {
	query := `DELETE FROM media_attachments WHERE account_id=$1`
	res, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
