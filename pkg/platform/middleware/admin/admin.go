package admin

import (
	"log/slog"
	"net/http"

	request "clearance/pkg/platform/middleware/request"
	"clearance/pkg/requestcontext"
)

// RequireOverrideManager admits only actors allowed to manage compliance
// overrides (admins and directors). Must run after auth.RequireAuth.
func RequireOverrideManager(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := requestcontext.Actor(ctx)
			if !actor.CanManageOverrides() {
				logger.WarnContext(ctx, "override management denied",
					"request_id", request.GetRequestID(ctx),
					"user_id", actor.UserID.String(),
					"role", actor.Role,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"not allowed"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
