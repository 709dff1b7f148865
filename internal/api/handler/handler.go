// Package handler adapts the jobsearch operations to HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/api/middleware"
	"github.com/kiranshivaraju/jobhunter/internal/api/response"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/internal/ledger"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

const maxBodyBytes = 1 << 20

// JobService defines the operations the handlers depend on.
type JobService interface {
	Search(ctx context.Context, p jobsearch.SearchParams) (*jobsearch.SearchResult, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Match(ctx context.Context, p jobsearch.MatchParams) (*jobsearch.MatchResponse, error)
	RecordInteraction(ctx context.Context, userID string, jobID uuid.UUID, kind string, payload map[string]any) (*jobsearch.InteractionResult, error)
	ListUserJobs(ctx context.Context, userID, state string, limit int) ([]*models.UserJob, error)
	Pipeline(ctx context.Context, userID string) (ledger.Pipeline, error)
}

func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetUserID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "MISSING_USER", "Missing X-User-ID header", nil)
	}
	return id, ok
}

// decodeBody reads a JSON body into v. Unknown fields are rejected.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a job id", apperr.ErrUnknownJob, raw)
	}
	return id, nil
}
