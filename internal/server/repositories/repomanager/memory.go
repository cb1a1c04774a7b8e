package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/verificationtokens"
	"github.com/google/uuid"
)

// InMemoryRepositoryManager keeps all rows in process memory. The DBTX
// handles passed to its factories are ignored, so transactions only group
// calls and never roll back. Selected with STORAGE_BACKEND=memory for local
// runs; state is lost on restart.
type InMemoryRepositoryManager struct {
	accounts    *memAccounts
	tokens      *memTokens
	attachments *memAttachments
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		accounts:    &memAccounts{byID: map[string]*models.Account{}, byEmail: map[string]string{}},
		tokens:      &memTokens{rows: map[string]models.VerificationToken{}},
		attachments: &memAttachments{rows: map[string]models.MediaAttachment{}},
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *InMemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository { return m.accounts }

func (m *InMemoryRepositoryManager) VerificationTokens(dbx.DBTX) verificationtokens.Repository {
	return m.tokens
}

func (m *InMemoryRepositoryManager) Attachments(dbx.DBTX) attachments.Repository {
	return m.attachments
}

type memAccounts struct {
	mu      sync.Mutex
	byID    map[string]*models.Account
	byEmail map[string]string
}

func (r *memAccounts) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[a.Email]; ok {
		return nil, common.ErrAlreadyExists
	}
	now := time.Now().UTC()
	a.ID = uuid.NewString()
	a.CreatedAt, a.UpdatedAt = now, now
	c := *a
	r.byID[c.ID] = &c
	r.byEmail[c.Email] = c.ID
	return a, nil
}

func (r *memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (r *memAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	id, ok := r.byEmail[email]
	r.mu.Unlock()
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memAccounts) Update(_ context.Context, id string, p accounts.UpdateParams) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	a.UpdatedAt = time.Now().UTC()
	c := *a
	return &c, nil
}

func (r *memAccounts) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	a.IsVerified = true
	a.UpdatedAt = time.Now().UTC()
	return nil
}

type memTokens struct {
	mu   sync.Mutex
	rows map[string]models.VerificationToken
}

func (r *memTokens) Create(_ context.Context, t *models.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[t.Token]; ok {
		return fmt.Errorf("db error: duplicate token")
	}
	r.rows[t.Token] = *t
	return nil
}

func (r *memTokens) Consume(_ context.Context, token string) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	delete(r.rows, token)
	return &t, nil
}

func (r *memTokens) DeleteByAccount(_ context.Context, accountID string) (int64, error) {
	return r.deleteWhere(func(t models.VerificationToken) bool { return t.AccountID == accountID }), nil
}

func (r *memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(t models.VerificationToken) bool { return t.Expired(now) }), nil
}

func (r *memTokens) deleteWhere(match func(models.VerificationToken) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.rows {
		if match(t) {
			delete(r.rows, k)
			n++
		}
	}
	return n
}

type memAttachments struct {
	mu   sync.Mutex
	rows map[string]models.MediaAttachment
}

func (r *memAttachments) GetByAccountID(_ context.Context, accountID string) (*models.MediaAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[accountID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (r *memAttachments) Upsert(_ context.Context, a *models.MediaAttachment) (*models.MediaAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.rows[a.AccountID]; ok {
		a.ID = prev.ID
	} else {
		a.ID = uuid.NewString()
	}
	a.UploadedAt = time.Now().UTC()
	r.rows[a.AccountID] = *a
	return a, nil
}

func (r *memAttachments) DeleteByAccountID(_ context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[accountID]; !ok {
		return common.ErrNotFound
	}
	delete(r.rows, accountID)
	return nil
}
