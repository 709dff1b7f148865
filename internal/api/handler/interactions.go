package handler

import (
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/jobhunter/internal/api/response"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

type interactionRequest struct {
	JobID   string         `json:"job_id"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// NewRecordInteractionHandler returns an http.HandlerFunc for
// POST /api/v1/interactions.
func NewRecordInteractionHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		var req interactionRequest
		if err := decodeBody(r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		if req.JobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id is required", nil)
			return
		}
		if req.Kind == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "kind is required", nil)
			return
		}
		jobID, err := parseJobID(req.JobID)
		if err != nil {
			response.FromError(w, err)
			return
		}

		result, err := svc.RecordInteraction(r.Context(), uid, jobID, req.Kind, req.Payload)
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.Created(w, result)
	}
}

// NewListUserJobsHandler returns an http.HandlerFunc for GET /api/v1/me/jobs.
func NewListUserJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		limit, err := intParam(q, "limit")
		if err != nil {
			response.FromError(w, err)
			return
		}

		jobs, err := svc.ListUserJobs(r.Context(), uid, q.Get("state"), limit)
		if err != nil {
			response.FromError(w, err)
			return
		}
		if jobs == nil {
			jobs = []*models.UserJob{}
		}
		response.JSON(w, jobs)
	}
}

// NewPipelineHandler returns an http.HandlerFunc for GET /api/v1/me/pipeline.
func NewPipelineHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		p, err := svc.Pipeline(r.Context(), uid)
		if err != nil {
			response.FromError(w, fmt.Errorf("pipeline: %w", err))
			return
		}
		response.JSON(w, p)
	}
}
