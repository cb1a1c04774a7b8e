// Package httpapi exposes the account service over HTTP using chi.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
	"github.com/go-playground/validator/v10"
)

// Accounts is the account operations used by the HTTP layer.
type Accounts interface {
	Create(ctx context.Context, in services.CreateAccountInput) (*models.Account, error)
	Get(ctx context.Context, accountID string) (*models.Account, error)
	Update(ctx context.Context, accountID string, patch services.Patch) (*models.Account, error)
}

// Verifier issues and validates email verification tokens.
type Verifier interface {
	Issue(ctx context.Context, accountID, email string) (*services.IssuedToken, error)
	Validate(ctx context.Context, token string) error
	Resend(ctx context.Context, email string) error
}

// Media manages profile pictures.
type Media interface {
	Upload(ctx context.Context, in services.UploadInput) (*models.MediaAttachment, error)
	Get(ctx context.Context, accountID string) (*models.MediaAttachment, error)
	Download(ctx context.Context, accountID string) (*models.MediaAttachment, []byte, error)
	Delete(ctx context.Context, accountID string) error
}

// Pinger reports database reachability. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type handlers struct {
	accounts       Accounts
	verifier       Verifier
	media          Media
	db             Pinger
	log            logging.Logger
	validate       *validator.Validate
	maxUploadBytes int64
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *handlers) createAccount(w http.ResponseWriter, r *http.Request) {
	var in services.CreateAccountInput
	if err := decodeJSON(r.Body, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	account, err := h.accounts.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// The account exists either way; the user can ask for a new link.
	if _, err := h.verifier.Issue(r.Context(), account.ID, account.Email); err != nil {
		h.log.Error(r.Context(), "issuing verification token failed", "account_id", account.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, account.Sanitize())
}

func (h *handlers) getSelf(w http.ResponseWriter, r *http.Request) {
	current := mustAccount(r)

	account, err := h.accounts.Get(r.Context(), current.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Sanitize())
}

func (h *handlers) updateSelf(w http.ResponseWriter, r *http.Request) {
	current := mustAccount(r)

	patch, err := decodePatch(r.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.accounts.Update(r.Context(), current.ID, patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.writeError(w, r, fmt.Errorf("%w: token is missing", common.ErrInvalidToken))
		return
	}

	if err := h.verifier.Validate(r.Context(), token); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "email verified"})
}

// resendVerification always answers 202 for a well-formed request, so the
// response does not reveal whether the email is registered.
func (h *handlers) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", common.ErrInvalidEmail, err))
		return
	}

	if err := h.verifier.Resend(r.Context(), req.Email); err != nil {
		h.log.Error(r.Context(), "resending verification failed", "error", err)
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "if the account exists and is unverified, a new link has been sent"})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if r.URL.RawQuery != "" {
		h.writeError(w, r, errQueryNotAllowed)
		return
	}
	if hasBody(r) {
		h.writeError(w, r, errBodyNotAllowed)
		return
	}

	if err := h.db.PingContext(r.Context()); err != nil {
		h.log.Warn(r.Context(), "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// noBody rejects GET and DELETE requests that carry a payload.
func (h *handlers) noBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r) {
			h.writeError(w, r, errBodyNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasBody(r *http.Request) bool {
	if r.ContentLength > 0 {
		return true
	}
	// unknown length, e.g. chunked
	if r.ContentLength < 0 && r.Body != nil && r.Body != http.NoBody {
		var b [1]byte
		n, _ := r.Body.Read(b[:])
		return n > 0
	}
	return false
}

func decodeJSON(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return nil
}

// mustAccount returns the account placed on the context by the auth gate.
// Only called on routes mounted behind it.
func mustAccount(r *http.Request) *models.Account {
	a, _ := auth.AccountFromContext(r.Context())
	return a
}
