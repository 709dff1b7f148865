package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/jobhunter/internal/apperr"
)

type envelope struct {
	Data any `json:"data"`
}

type collectionEnvelope struct {
	Data any            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// PaginationMeta describes one page of a cursor-paginated collection.
type PaginationMeta struct {
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasNext    bool   `json:"has_next"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func Collection(w http.ResponseWriter, data any, meta PaginationMeta) {
	meta.HasNext = meta.NextCursor != ""
	writeJSON(w, http.StatusOK, collectionEnvelope{Data: data, Meta: meta})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// Infrastructure failures carry driver and dial text; clients get these
// fixed messages and the full error goes to the log.
var opaqueMessages = map[string]string{
	"INTERNAL_ERROR":       "An unexpected error occurred",
	"STORE_UNAVAILABLE":    "The job store is temporarily unavailable",
	"UPSTREAM_UNAVAILABLE": "A job provider is temporarily unavailable",
	"AUTH_ERROR":           "A job provider rejected its credentials",
	"TRANSIENT_AUTH_ERROR": "A job provider could not be authenticated",
	"CONFIG_ERROR":         "The service is misconfigured",
}

// FromError writes err using its apperr code and status. Unclassified and
// infrastructure errors are logged and reported without their text.
func FromError(w http.ResponseWriter, err error) {
	code := apperr.Code(err)
	status := apperr.HTTPStatus(err)
	if msg, ok := opaqueMessages[code]; ok {
		slog.Error("request failed", "code", code, "error", err)
		Error(w, status, code, msg, nil)
		return
	}

	var details any
	if d, ok := apperr.RetryAfter(err); ok {
		secs := int64(math.Ceil(d.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		details = map[string]any{"retry_after_seconds": secs}
	}
	var cfgErr *apperr.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Field != "" {
		details = map[string]any{"field": cfgErr.Field}
	}
	Error(w, status, code, err.Error(), details)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
