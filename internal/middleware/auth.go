package middleware

import (
	"net/http"

	"github.com/clinicrecords/securelink-server/internal/audit"
	"github.com/clinicrecords/securelink-server/internal/model"
)

// RoleCheck is one of the StaffSession capability methods, e.g.
// (*model.StaffSession).CanManageLinks.
type RoleCheck func(*model.StaffSession) bool

// RequireRole must run after StaffSessionMiddleware.Require.
func RequireRole(check RoleCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := GetStaffSession(r.Context())
			if session == nil {
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if !check(session) {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventForbidden,
					StaffID: session.StaffID,
					Details: map[string]interface{}{
						"role": string(session.Role),
						"path": r.URL.Path,
					},
				})
				writeMessage(w, http.StatusForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
