package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/dbx"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/notify"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
)

// tokenBytes is the entropy of a verification token before hex encoding.
const tokenBytes = 32

// IssuedToken is the result of VerificationService.Issue.
type IssuedToken struct {
	Token     string
	URL       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerificationService issues and redeems single-use email verification
// tokens.
type VerificationService struct {
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	publisher      notify.Publisher
	log            logging.Logger
	ttl            time.Duration
	publishTimeout time.Duration
	baseURL        string
	topic          string
	now            func() time.Time

	inflight sync.WaitGroup
}

// NewVerificationService constructs a VerificationService from server config.
func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, pub notify.Publisher,
	cfg *config.Config, log logging.Logger) *VerificationService {
	return &VerificationService{
		db:             db,
		repomanager:    m,
		publisher:      pub,
		log:            log.With("module", "verification"),
		ttl:            cfg.VerificationTokenTTL,
		publishTimeout: cfg.PublishTimeout,
		baseURL:        cfg.VerificationBaseURL,
		topic:          cfg.VerificationTopic,
		now:            time.Now,
	}
}

// Issue stores a fresh token for the account and publishes the
// verification message in the background. Publishing failures are logged
// and never reported to the caller.
func (s *VerificationService) Issue(ctx context.Context, accountID, email string) (*IssuedToken, error) {
	issued, err := s.store(ctx, s.db, accountID, email)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, email, issued)
	return issued, nil
}

// Validate redeems token. The token row is removed in the same statement
// that reads it, so concurrent validations cannot both succeed.
//
// Unknown or already used tokens fail with common.ErrInvalidToken; expired
// tokens are removed and fail with common.ErrExpiredToken.
func (s *VerificationService) Validate(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrInvalidToken
	}

	expired := false
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		t, err := s.repomanager.VerificationTokens(tx).Consume(ctx, token)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return common.NewStoreError("consume token", err)
		}

		if t.Expired(s.now()) {
			// commit the delete, report after
			expired = true
			return nil
		}

		if err := s.repomanager.Accounts(tx).MarkVerified(ctx, t.AccountID); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return common.NewStoreError("mark verified", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		return common.ErrExpiredToken
	}
	return nil
}

// Resend replaces the outstanding tokens of an unverified account with a
// new one. Unknown and already verified emails are ignored so the caller
// cannot probe which addresses are registered.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	account, err := s.repomanager.Accounts(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return common.NewStoreError("get account", err)
	}
	if account.IsVerified {
		return nil
	}

	var issued *IssuedToken
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.VerificationTokens(tx).DeleteByAccount(ctx, account.ID); err != nil {
			return common.NewStoreError("delete tokens", err)
		}
		var err error
		issued, err = s.store(ctx, tx, account.ID, account.Email)
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, account.Email, issued)
	return nil
}

// PurgeExpired removes tokens past their expiry and returns how many.
func (s *VerificationService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.VerificationTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, common.NewStoreError("purge tokens", err)
	}
	return n, nil
}

// RunPurge calls PurgeExpired every interval until ctx is done.
func (s *VerificationService) RunPurge(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.Error(ctx, "token purge failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info(ctx, "expired tokens purged", "count", n)
			}
		}
	}
}

// Wait blocks until background publishes have finished.
func (s *VerificationService) Wait() {
	s.inflight.Wait()
}

// --- helpers below ---

// store persists a new token row and builds its link.
func (s *VerificationService) store(ctx context.Context, db dbx.DBTX, accountID, email string) (*IssuedToken, error) {
	token, err := common.MakeRandHexString(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	now := s.now()
	row := &models.VerificationToken{
		Token:     token,
		AccountID: accountID,
		Email:     email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repomanager.VerificationTokens(db).Create(ctx, row); err != nil {
		return nil, common.NewStoreError("create token", err)
	}

	link, err := s.link(token)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{Token: token, URL: link, IssuedAt: now, ExpiresAt: row.ExpiresAt}, nil
}

func (s *VerificationService) link(token string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("error parsing verification base url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *VerificationService) publish(ctx context.Context, email string, issued *IssuedToken) {
	if s.publisher == nil {
		return
	}

	msg := notify.VerificationMessage{Email: email, URL: issued.URL, Timestamp: issued.IssuedAt}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error(ctx, "encode verification message", "error", err)
		return
	}

	// detached from the request so returning the response does not cancel delivery
	pubCtx := context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		if s.publishTimeout > 0 {
			var cancel context.CancelFunc
			pubCtx, cancel = context.WithTimeout(pubCtx, s.publishTimeout)
			defer cancel()
		}

		if err := s.publisher.Publish(pubCtx, s.topic, payload); err != nil {
			s.log.Warn(pubCtx, "verification message not published", "email", msg.Email, "error", err)
			return
		}
		s.log.Debug(pubCtx, "verification message published", "email", msg.Email)
	}()
}
