package handler

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobhunter/internal/api/response"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

const maxTop = 100

type matchRequest struct {
	Profile         *models.Profile `json:"profile"`
	CandidateJobIDs []string        `json:"candidate_job_ids"`
	Top             int             `json:"top"`
}

// NewMatchHandler returns an http.HandlerFunc for POST /api/v1/match.
func NewMatchHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req matchRequest
		if err := decodeBody(r, &req); err != nil {
			response.FromError(w, fmt.Errorf("%w: %v", apperr.ErrProfileInvalid, err))
			return
		}
		if req.Top < 0 || req.Top > maxTop {
			response.FromError(w, fmt.Errorf("%w: top must be between 0 and %d", apperr.ErrInvalidFilter, maxTop))
			return
		}

		ids := make([]uuid.UUID, 0, len(req.CandidateJobIDs))
		for _, raw := range req.CandidateJobIDs {
			id, err := parseJobID(raw)
			if err != nil {
				response.FromError(w, err)
				return
			}
			ids = append(ids, id)
		}

		result, err := svc.Match(r.Context(), jobsearch.MatchParams{
			UserID:          uid,
			Profile:         req.Profile,
			CandidateJobIDs: ids,
			Top:             req.Top,
		})
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, result)
	}
}
