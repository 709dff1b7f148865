package middleware

import (
	"net/http"
	"strings"

	"github.com/kiranshivaraju/jobhunter/internal/api/response"
)

// UserHeader carries the caller identity set by the upstream identity
// service. The value is trusted as-is.
const UserHeader = "X-User-ID"

const maxUserIDLen = 128

// RequireUser rejects requests without a usable X-User-ID header and stores
// the user id in the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			response.Error(w, http.StatusUnauthorized,
				"MISSING_USER", "Missing X-User-ID header", nil)
			return
		}
		if len(userID) > maxUserIDLen {
			response.Error(w, http.StatusUnauthorized,
				"MISSING_USER", "X-User-ID header is too long", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
	})
}
