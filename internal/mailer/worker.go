package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/notify"
)

// Queue is the consuming side of the verification topic.
type Queue interface {
	Pop(ctx context.Context, topic string, timeout time.Duration) ([]byte, error)
}

// Worker pops verification messages and mails them until stopped.
type Worker struct {
	queue      Queue
	mailer     *Mailer
	topic      string
	popTimeout time.Duration
	retryDelay time.Duration
	log        logging.Logger
}

func NewWorker(q Queue, m *Mailer, cfg *Config, log logging.Logger) *Worker {
	return &Worker{
		queue:      q,
		mailer:     m,
		topic:      cfg.Topic,
		popTimeout: cfg.PopTimeout,
		retryDelay: cfg.RetryDelay,
		log:        log.With("module", "mailer"),
	}
}

// Run consumes the topic until ctx is done. Malformed messages and SMTP
// failures are logged and dropped; the user can request a new link.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info(ctx, "mailer started", "topic", w.topic)

	for {
		if ctx.Err() != nil {
			w.log.Info(ctx, "mailer stopped")
			return nil
		}

		payload, err := w.queue.Pop(ctx, w.topic, w.popTimeout)
		switch {
		case err == nil:
			w.handle(ctx, payload)
		case errors.Is(err, notify.ErrNoMessage):
		case ctx.Err() != nil:
		default:
			w.log.Error(ctx, "queue pop failed", "error", err)
			w.sleep(ctx)
		}
	}
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var msg notify.VerificationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		w.log.Error(ctx, "malformed verification message", "error", err)
		return
	}

	if err := w.mailer.SendVerification(msg); err != nil {
		w.log.Error(ctx, "sending verification email failed", "email", msg.Email, "error", err)
		return
	}
	w.log.Info(ctx, "verification email sent", "email", msg.Email)
}

func (w *Worker) sleep(ctx context.Context) {
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
