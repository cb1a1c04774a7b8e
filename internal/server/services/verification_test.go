package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerificationService(t *testing.T, rm *fakeRepoManager, pub notify.Publisher) *VerificationService {
	t.Helper()
	cfg := &config.Config{
		VerificationTokenTTL: 2 * time.Minute,
		VerificationBaseURL:  "https://api.example.com/v1/verify",
		VerificationTopic:    "verify-email",
		PublishTimeout:       time.Second,
	}
	return NewVerificationService(newTxDB(t), rm, pub, cfg, nopLogger{})
}

func seedAccount(t *testing.T, rm *fakeRepoManager, email string) *models.Account {
	t.Helper()
	a, err := rm.accounts.Create(context.Background(), &models.Account{
		FirstName: "Jane", LastName: "Doe", Email: email, PasswordHash: "$2a$x",
	})
	require.NoError(t, err)
	return a
}

func TestIssue_StoresTokenAndPublishes(t *testing.T) {
	rm := newFakeRepoManager()
	pub := &recPublisher{}
	s := newVerificationService(t, rm, pub)
	acc := seedAccount(t, rm, "jane@example.com")

	issued, err := s.Issue(context.Background(), acc.ID, acc.Email)
	require.NoError(t, err)
	s.Wait()

	assert.Len(t, issued.Token, 2*tokenBytes)
	assert.Equal(t, 2*time.Minute, issued.ExpiresAt.Sub(issued.IssuedAt))

	u, err := url.Parse(issued.URL)
	require.NoError(t, err)
	assert.Equal(t, "/v1/verify", u.Path)
	assert.Equal(t, issued.Token, u.Query().Get("token"))

	rows := rm.tokens.forAccount(acc.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "jane@example.com", rows[0].Email)

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"verify-email"}, pub.topics)

	var msg notify.VerificationMessage
	require.NoError(t, json.Unmarshal(msgs[0], &msg))
	assert.Equal(t, "jane@example.com", msg.Email)
	assert.Equal(t, issued.URL, msg.URL)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestIssue_PublishFailureIsNotReturned(t *testing.T) {
	rm := newFakeRepoManager()
	pub := &recPublisher{err: errors.New("redis down")}
	s := newVerificationService(t, rm, pub)
	acc := seedAccount(t, rm, "jane@example.com")

	issued, err := s.Issue(context.Background(), acc.ID, acc.Email)
	require.NoError(t, err)
	s.Wait()
	assert.NotEmpty(t, issued.Token)
}

func TestIssue_PublishSurvivesCanceledRequest(t *testing.T) {
	rm := newFakeRepoManager()
	pub := &recPublisher{}
	s := newVerificationService(t, rm, pub)
	acc := seedAccount(t, rm, "jane@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Issue(ctx, acc.ID, acc.Email)
	require.NoError(t, err)
	cancel()
	s.Wait()

	assert.Len(t, pub.published(), 1)
}

func TestIssue_StoreFailure(t *testing.T) {
	rm := newFakeRepoManager()
	pub := &recPublisher{}
	s := newVerificationService(t, rm, pub)
	rm.tokens.err = errors.New("db down")

	_, err := s.Issue(context.Background(), "acc-1", "jane@example.com")
	assert.ErrorIs(t, err, common.ErrStore)
	s.Wait()
	assert.Empty(t, pub.published(), "nothing is published for an unsaved token")
}

func TestValidate_SingleUse(t *testing.T) {
	rm := newFakeRepoManager()
	s := newVerificationService(t, rm, &recPublisher{})
	acc := seedAccount(t, rm, "jane@example.com")
	ctx := context.Background()

	issued, err := s.Issue(ctx, acc.ID, acc.Email)
	require.NoError(t, err)

	require.NoError(t, s.Validate(ctx, issued.Token))

	got, err := rm.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)

	assert.ErrorIs(t, s.Validate(ctx, issued.Token), common.ErrInvalidToken)
}

func TestValidate_ExpiredThenInvalid(t *testing.T) {
	rm := newFakeRepoManager()
	s := newVerificationService(t, rm, &recPublisher{})
	acc := seedAccount(t, rm, "jane@example.com")
	ctx := context.Background()

	issued, err := s.Issue(ctx, acc.ID, acc.Email)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.ExpiresAt.Add(time.Second) }

	assert.ErrorIs(t, s.Validate(ctx, issued.Token), common.ErrExpiredToken)
	assert.Empty(t, rm.tokens.forAccount(acc.ID), "expired token row must be gone")
	assert.ErrorIs(t, s.Validate(ctx, issued.Token), common.ErrInvalidToken)

	got, err := rm.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVerified)
}

func TestValidate_UnknownAndEmpty(t *testing.T) {
	s := newVerificationService(t, newFakeRepoManager(), &recPublisher{})

	assert.ErrorIs(t, s.Validate(context.Background(), "nope"), common.ErrInvalidToken)
	assert.ErrorIs(t, s.Validate(context.Background(), ""), common.ErrInvalidToken)
}

func TestValidate_StoreFailure(t *testing.T) {
	rm := newFakeRepoManager()
	s := newVerificationService(t, rm, &recPublisher{})
	rm.tokens.err = errors.New("db down")

	assert.ErrorIs(t, s.Validate(context.Background(), "abc"), common.ErrStore)
}

func TestResend(t *testing.T) {
	rm := newFakeRepoManager()
	pub := &recPublisher{}
	s := newVerificationService(t, rm, pub)
	acc := seedAccount(t, rm, "jane@example.com")
	ctx := context.Background()

	first, err := s.Issue(ctx, acc.ID, acc.Email)
	require.NoError(t, err)

	require.NoError(t, s.Resend(ctx, "jane@example.com"))
	s.Wait()

	rows := rm.tokens.forAccount(acc.ID)
	require.Len(t, rows, 1, "previous tokens are replaced")
	assert.NotEqual(t, first.Token, rows[0].Token)
	assert.Len(t, pub.published(), 2)

	assert.ErrorIs(t, s.Validate(ctx, first.Token), common.ErrInvalidToken)
}

func TestResend_IgnoresUnknownAndVerified(t *testing.T) {
	rm := newFakeRepoManager()
	pub := &recPublisher{}
	s := newVerificationService(t, rm, pub)
	acc := seedAccount(t, rm, "done@example.com")
	require.NoError(t, rm.accounts.MarkVerified(context.Background(), acc.ID))

	require.NoError(t, s.Resend(context.Background(), "nobody@example.com"))
	require.NoError(t, s.Resend(context.Background(), "done@example.com"))
	s.Wait()

	assert.Empty(t, pub.published())
	assert.Empty(t, rm.tokens.forAccount(acc.ID))
}

func TestPurgeExpired(t *testing.T) {
	rm := newFakeRepoManager()
	s := newVerificationService(t, rm, nil)
	acc := seedAccount(t, rm, "jane@example.com")
	ctx := context.Background()

	old, err := s.Issue(ctx, acc.ID, acc.Email)
	require.NoError(t, err)

	s.now = func() time.Time { return old.ExpiresAt.Add(time.Minute) }
	fresh, err := s.Issue(ctx, acc.ID, acc.Email)
	require.NoError(t, err)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rows := rm.tokens.forAccount(acc.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, fresh.Token, rows[0].Token)
}

func TestRunPurge_StopsOnCancel(t *testing.T) {
	rm := newFakeRepoManager()
	s := newVerificationService(t, rm, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunPurge(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPurge did not stop")
	}
}
