package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/objectstore"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// UploadInput is a profile picture upload.
type UploadInput struct {
	AccountID   string
	Body        []byte
	ContentType string
	FileName    string
}

// MediaService keeps at most one profile picture per account: metadata in
// PostgreSQL, bytes in the object store.
//
// Replacing or deleting a picture spans both stores and is not atomic. A
// failure after the new object is written but before its row is saved
// leaves an orphaned object. A failure to delete the row after its object
// was deleted leaves metadata pointing at a missing object until the next
// upload or delete. Both cases are logged.
type MediaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       objectstore.Store
	log         logging.Logger
	baseURL     string
	replace     bool
}

// NewMediaService constructs a MediaService from server config.
func NewMediaService(db *sql.DB, m repomanager.RepositoryManager, store objectstore.Store,
	cfg *config.Config, log logging.Logger) *MediaService {
	return &MediaService{
		db:          db,
		repomanager: m,
		store:       store,
		log:         log.With("module", "media"),
		baseURL:     strings.TrimRight(cfg.PublicBaseURL(), "/"),
		replace:     cfg.AttachmentReplace,
	}
}

// Upload stores a new profile picture, replacing the previous one. The
// content type is checked before any store is touched. When replacing is
// disabled an existing picture fails with common.ErrAlreadyExists.
func (s *MediaService) Upload(ctx context.Context, in UploadInput) (*models.MediaAttachment, error) {
	if _, ok := common.AllowedImageTypes[in.ContentType]; !ok {
		return nil, common.ErrUnsupportedType
	}

	repo := s.repomanager.Attachments(s.db)

	existing, err := repo.GetByAccountID(ctx, in.AccountID)
	switch {
	case err == nil:
		if !s.replace {
			return nil, common.ErrAlreadyExists
		}
		if err := s.remove(ctx, existing); err != nil {
			return nil, err
		}
	case errors.Is(err, common.ErrNotFound):
	default:
		return nil, common.NewStoreError("get attachment", err)
	}

	name := fmt.Sprintf("%s-%s", uuid.New(), sanitizeFileName(in.FileName))
	key := common.ProfilePicturePrefix + name

	if err := s.store.Put(ctx, key, in.Body, in.ContentType); err != nil {
		return nil, common.NewStoreError("put object", err)
	}

	saved, err := repo.Upsert(ctx, &models.MediaAttachment{
		AccountID:   in.AccountID,
		ObjectKey:   key,
		FileName:    name,
		ContentType: in.ContentType,
		URL:         s.baseURL + "/" + key,
	})
	if err != nil {
		s.log.Error(ctx, "attachment row not saved, object orphaned", "account_id", in.AccountID, "key", key, "error", err)
		return nil, common.NewStoreError("save attachment", err)
	}

	s.log.Info(ctx, "profile picture uploaded", "account_id", in.AccountID, "key", key)
	return saved, nil
}

// Get returns the attachment metadata or common.ErrNotFound.
func (s *MediaService) Get(ctx context.Context, accountID string) (*models.MediaAttachment, error) {
	a, err := s.repomanager.Attachments(s.db).GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.NewStoreError("get attachment", err)
	}
	return a, nil
}

// Download returns the attachment metadata together with the stored bytes.
func (s *MediaService) Download(ctx context.Context, accountID string) (*models.MediaAttachment, []byte, error) {
	a, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.store.Get(ctx, a.ObjectKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, common.NewStoreError("get object", err)
	}
	return a, body, nil
}

// Delete removes the picture: object first, then metadata. If the object
// cannot be deleted the metadata is kept.
func (s *MediaService) Delete(ctx context.Context, accountID string) error {
	a, err := s.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, a); err != nil {
		return err
	}
	s.log.Info(ctx, "profile picture deleted", "account_id", accountID, "key", a.ObjectKey)
	return nil
}

func (s *MediaService) remove(ctx context.Context, a *models.MediaAttachment) error {
	if err := s.store.Delete(ctx, a.ObjectKey); err != nil {
		return common.NewStoreError("delete object", err)
	}
	if err := s.repomanager.Attachments(s.db).DeleteByAccountID(ctx, a.AccountID); err != nil {
		// lost a race with another delete; the row is gone either way
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		s.log.Error(ctx, "attachment row points at deleted object",
			"account_id", a.AccountID, "key", a.ObjectKey, "error", err)
		return common.NewStoreError("delete attachment", err)
	}
	return nil
}

// sanitizeFileName keeps the base name and replaces characters that are
// awkward in object keys and URLs.
func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)

	if name == "" {
		return "upload"
	}
	return name
}
