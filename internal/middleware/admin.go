package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// AdminMiddleware gates a route to the configured admin allowlist. It must
// run after AuthMiddleware so the user ID is already in the context.
func AdminMiddleware(adminIDs string, logger zerolog.Logger) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, id := range strings.Split(adminIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := r.Context().Value(UserContextKey).(string)
			if !ok || !allowed[userID] {
				logger.Warn().Str("user_id", userID).Str("path", r.URL.Path).Msg("Admin access denied")
				http.Error(w, "admin access required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
