package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/verificationtokens"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// newTxDB returns a database that only serves dbx.WithTx begin/commit; the
// in-memory repositories below ignore the handle they are bound to.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// --- accounts ---

type memAccounts struct {
	mu      sync.Mutex
	seq     int
	byID    map[string]*models.Account
	byEmail map[string]string

	err error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]*models.Account{}, byEmail: map[string]string{}}
}

func (r *memAccounts) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if _, ok := r.byEmail[a.Email]; ok {
		return nil, common.ErrAlreadyExists
	}
	r.seq++
	now := time.Now()
	c := *a
	c.ID = fmt.Sprintf("acc-%d", r.seq)
	c.CreatedAt, c.UpdatedAt = now, now
	r.byID[c.ID] = &c
	r.byEmail[c.Email] = c.ID
	out := c
	return &out, nil
}

func (r *memAccounts) GetByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *memAccounts) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	r.mu.Lock()
	id, ok := r.byEmail[email]
	r.mu.Unlock()
	if !ok {
		if r.err != nil {
			return nil, r.err
		}
		return nil, common.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *memAccounts) Update(ctx context.Context, id string, p accounts.UpdateParams) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
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
	a.UpdatedAt = time.Now()
	out := *a
	return &out, nil
}

func (r *memAccounts) MarkVerified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	a.IsVerified = true
	return nil
}

// --- verification tokens ---

type memTokens struct {
	mu     sync.Mutex
	rows   map[string]models.VerificationToken
	err    error
	purged int64
}

func newMemTokens() *memTokens {
	return &memTokens{rows: map[string]models.VerificationToken{}}
}

func (r *memTokens) Create(ctx context.Context, t *models.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows[t.Token] = *t
	return nil
}

func (r *memTokens) Consume(ctx context.Context, token string) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	t, ok := r.rows[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	delete(r.rows, token)
	return &t, nil
}

func (r *memTokens) DeleteByAccount(ctx context.Context, accountID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.rows {
		if t.AccountID == accountID {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for k, t := range r.rows {
		if t.Expired(now) {
			delete(r.rows, k)
			n++
		}
	}
	r.purged += n
	return n, nil
}

func (r *memTokens) forAccount(accountID string) []models.VerificationToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.VerificationToken
	for _, t := range r.rows {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	return out
}

// --- attachments ---

type memAttachments struct {
	mu   sync.Mutex
	seq  int
	rows map[string]models.MediaAttachment

	getErr    error
	upsertErr error
	deleteErr error
	calls     int
}

func newMemAttachments() *memAttachments {
	return &memAttachments{rows: map[string]models.MediaAttachment{}}
}

func (r *memAttachments) GetByAccountID(ctx context.Context, accountID string) (*models.MediaAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.getErr != nil {
		return nil, r.getErr
	}
	a, ok := r.rows[accountID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &a, nil
}

func (r *memAttachments) Upsert(ctx context.Context, a *models.MediaAttachment) (*models.MediaAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	r.seq++
	a.ID = fmt.Sprintf("att-%d", r.seq)
	a.UploadedAt = time.Now()
	r.rows[a.AccountID] = *a
	out := *a
	return &out, nil
}

func (r *memAttachments) DeleteByAccountID(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.rows[accountID]; !ok {
		return common.ErrNotFound
	}
	delete(r.rows, accountID)
	return nil
}

func (r *memAttachments) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// --- repository manager ---

type fakeRepoManager struct {
	accounts    *memAccounts
	tokens      *memTokens
	attachments *memAttachments
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		accounts:    newMemAccounts(),
		tokens:      newMemTokens(),
		attachments: newMemAttachments(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accounts.Repository     { return m.accounts }
func (m *fakeRepoManager) VerificationTokens(db dbx.DBTX) verificationtokens.Repository {
	return m.tokens
}
func (m *fakeRepoManager) Attachments(db dbx.DBTX) attachments.Repository { return m.attachments }

// --- object store ---

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	putErr    error
	getErr    error
	deleteErr error
	calls     int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), body...)
	return nil
}

func (s *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.getErr != nil {
		return nil, s.getErr
	}
	b, ok := s.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return b, nil
}

func (s *memStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// --- publisher ---

type recPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recPublisher) published() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.payloads...)
}
