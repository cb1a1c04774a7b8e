package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

const (
	testEmail    = "ana@example.com"
	testPassword = "s3cret"
)

func basicAuth(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

// fakeAccounts serves both the handlers and the auth gate.
type fakeAccounts struct {
	mu      sync.Mutex
	account *models.Account

	createErr error
	updateErr error
	patches   []services.Patch
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{account: &models.Account{
		ID: "acc-1", FirstName: "Ana", LastName: "Lee", Email: testEmail,
		PasswordHash: "hash", IsVerified: true,
	}}
}

func (f *fakeAccounts) Create(_ context.Context, in services.CreateAccountInput) (*models.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Account{ID: "acc-2", FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, PasswordHash: "hash"}, nil
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.account.ID {
		return nil, common.ErrNotFound
	}
	c := *f.account
	return &c, nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if email != f.account.Email {
		return nil, common.ErrNotFound
	}
	c := *f.account
	return &c, nil
}

func (f *fakeAccounts) VerifyPassword(_ *models.Account, password string) (bool, error) {
	return password == testPassword, nil
}

func (f *fakeAccounts) Update(_ context.Context, _ string, patch services.Patch) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches = append(f.patches, patch)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	c := *f.account
	return &c, nil
}

type fakeVerifier struct {
	mu       sync.Mutex
	issued   []string
	resent   []string
	issueErr error
	validErr error
	tokens   []string
}

func (f *fakeVerifier) Issue(_ context.Context, accountID, _ string) (*services.IssuedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued = append(f.issued, accountID)
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return &services.IssuedToken{Token: "tok"}, nil
}

func (f *fakeVerifier) Validate(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.validErr
}

func (f *fakeVerifier) Resend(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resent = append(f.resent, email)
	return errors.New("redis down")
}

type fakeMedia struct {
	uploads   []services.UploadInput
	uploadErr error
	current   *models.MediaAttachment
	body      []byte
	deleteErr error
}

func (f *fakeMedia) Upload(_ context.Context, in services.UploadInput) (*models.MediaAttachment, error) {
	f.uploads = append(f.uploads, in)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.current = &models.MediaAttachment{ID: "att-1", AccountID: in.AccountID, FileName: in.FileName, ContentType: in.ContentType}
	f.body = in.Body
	return f.current, nil
}

func (f *fakeMedia) Get(context.Context, string) (*models.MediaAttachment, error) {
	if f.current == nil {
		return nil, common.ErrNotFound
	}
	return f.current, nil
}

func (f *fakeMedia) Download(context.Context, string) (*models.MediaAttachment, []byte, error) {
	if f.current == nil {
		return nil, nil, common.ErrNotFound
	}
	return f.current, f.body, nil
}

func (f *fakeMedia) Delete(context.Context, string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if f.current == nil {
		return common.ErrNotFound
	}
	f.current = nil
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type fixture struct {
	accounts *fakeAccounts
	verifier *fakeVerifier
	media    *fakeMedia
	deps     Deps
}

func newFixture() *fixture {
	f := &fixture{
		accounts: newFakeAccounts(),
		verifier: &fakeVerifier{},
		media:    &fakeMedia{},
	}
	f.deps = Deps{
		Accounts:       f.accounts,
		Verifier:       f.verifier,
		Media:          f.media,
		DB:             fakePinger{},
		Gate:           auth.NewGate(f.accounts),
		Log:            nopLogger{},
		MaxUploadBytes: 1 << 20,
	}
	return f
}
