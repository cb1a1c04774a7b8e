package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Accounts       Accounts
	Verifier       Verifier
	Media          Media
	DB             Pinger
	Gate           *auth.Gate
	Metrics        *metrics.Metrics
	Log            logging.Logger
	MaxUploadBytes int64
}

// NewRouter builds the chi router with every route of the API.
func NewRouter(d Deps) http.Handler {
	h := &handlers{
		accounts:       d.Accounts,
		verifier:       d.Verifier,
		media:          d.Media,
		db:             d.DB,
		log:            d.Log.With("module", "httpapi"),
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: d.MaxUploadBytes,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLog(h.log))
	if d.Metrics != nil {
		r.Use(instrument(d.Metrics))
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	r.Group(func(r chi.Router) {
		r.Use(noCache)

		r.Get("/healthz", h.health)

		r.Route("/v1", func(r chi.Router) {
			r.With(h.noQuery, h.requireJSON).Post("/user", h.createAccount)

			r.With(h.noBody).Get("/verify", h.verifyEmail)
			r.With(h.noQuery, h.requireJSON).Post("/verify/resend", h.resendVerification)

			r.Group(func(r chi.Router) {
				r.Use(d.Gate.Middleware(h.writeError))

				r.With(h.noBody).Get("/user/self", h.getSelf)
				r.With(h.requireJSON).Put("/user/self", h.updateSelf)

				r.With(h.noQuery).Post("/user/self/pic", h.uploadPic)
				r.With(h.noBody).Get("/user/self/pic", h.getPic)
				r.With(h.noBody).Get("/user/self/pic/content", h.downloadPic)
				r.With(h.noBody).Delete("/user/self/pic", h.deletePic)
			})
		})
	})

	return r
}
