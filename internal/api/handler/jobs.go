package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/jobhunter/internal/api/response"
	"github.com/kiranshivaraju/jobhunter/internal/apperr"
	"github.com/kiranshivaraju/jobhunter/internal/jobsearch"
	"github.com/kiranshivaraju/jobhunter/pkg/models"
)

type searchResponse struct {
	SearchID string        `json:"search_id"`
	Jobs     []*models.Job `json:"jobs"`
}

// NewSearchHandler returns an http.HandlerFunc for GET /api/v1/jobs/search.
func NewSearchHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		filter, err := parseFilter(q)
		if err != nil {
			response.FromError(w, err)
			return
		}
		limit, err := intParam(q, "limit")
		if err != nil {
			response.FromError(w, err)
			return
		}

		result, err := svc.Search(r.Context(), jobsearch.SearchParams{
			UserID:   uid,
			Keywords: q.Get("keywords"),
			Filter:   filter,
			Limit:    limit,
			Cursor:   q.Get("cursor"),
		})
		if err != nil {
			response.FromError(w, err)
			return
		}

		jobs := result.Jobs
		if jobs == nil {
			jobs = []*models.Job{}
		}
		response.Collection(w, searchResponse{SearchID: result.SearchID.String(), Jobs: jobs},
			response.PaginationMeta{
				Limit:      len(jobs),
				Total:      result.Total,
				NextCursor: result.NextCursor,
			})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseJobID(chi.URLParam(r, "jobID"))
		if err != nil {
			response.FromError(w, err)
			return
		}
		job, err := svc.GetJob(r.Context(), id)
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

func parseFilter(q url.Values) (models.JobFilter, error) {
	f := models.JobFilter{
		City:             q.Get("city"),
		ExperienceLevel:  q.Get("experience_level"),
		EmploymentType:   q.Get("employment_type"),
		WorkLocationType: q.Get("work_location_type"),
	}
	if raw := q.Get("salary_min"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return f, fmt.Errorf("%w: salary_min must be a number", apperr.ErrInvalidFilter)
		}
		f.SalaryMin = &v
	}
	if raw := q.Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: active must be true or false", apperr.ErrInvalidFilter)
		}
		f.ActiveOnly = v
	}
	if raw := q.Get("posted_after"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			return f, fmt.Errorf("%w: posted_after must be RFC3339 or YYYY-MM-DD", apperr.ErrInvalidFilter)
		}
		f.PostedAfter = &t
	}
	return f, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", apperr.ErrInvalidFilter, name)
	}
	return v, nil
}
