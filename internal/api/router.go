package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/jobhunter/internal/api/middleware"
	"github.com/kiranshivaraju/jobhunter/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler            http.HandlerFunc
	SearchHandler            http.HandlerFunc
	GetJobHandler            http.HandlerFunc
	MatchHandler             http.HandlerFunc
	RecordInteractionHandler http.HandlerFunc
	ListUserJobsHandler      http.HandlerFunc
	PipelineHandler          http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Routes that need a caller identity
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireUser)
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Get("/api/v1/jobs/search", orNotImplemented(deps.SearchHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))

		r.Post("/api/v1/match", orNotImplemented(deps.MatchHandler))
		r.Post("/api/v1/interactions", orNotImplemented(deps.RecordInteractionHandler))

		r.Get("/api/v1/me/jobs", orNotImplemented(deps.ListUserJobsHandler))
		r.Get("/api/v1/me/pipeline", orNotImplemented(deps.PipelineHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
