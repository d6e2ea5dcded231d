package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/clinicrecords/securelink-server/internal/config"
	"github.com/clinicrecords/securelink-server/internal/model"
)

const StaffSessionCookie = "staff_session"

const StaffSessionContextKey contextKey = "staffSession"

// GetStaffSession returns the staff capability attached to the request, or
// nil for anonymous (patient) requests.
func GetStaffSession(ctx context.Context) *model.StaffSession {
	if session, ok := ctx.Value(StaffSessionContextKey).(*model.StaffSession); ok {
		return session
	}
	return nil
}

// WithStaffSession attaches a staff session to ctx.
func WithStaffSession(ctx context.Context, session *model.StaffSession) context.Context {
	return context.WithValue(ctx, StaffSessionContextKey, session)
}

// SessionValidator resolves a cookie value into a live staff session.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.StaffSession, error)
}

type StaffSessionMiddleware struct {
	validator SessionValidator
}

func NewStaffSessionMiddleware(validator SessionValidator) *StaffSessionMiddleware {
	return &StaffSessionMiddleware{validator: validator}
}

// Load attaches the session when the cookie resolves to one and never
// rejects. Used on routes that serve both patients and staff.
func (m *StaffSessionMiddleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(StaffSessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.validator.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("staff session lookup failed, continuing anonymous")
		}
		if session == nil {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithStaffSession(r.Context(), session)))
	})
}

// Require rejects requests without a valid staff session.
func (m *StaffSessionMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(StaffSessionCookie)
		if err != nil || cookie.Value == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		session, err := m.validator.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("staff session middleware: database error")
			writeMessage(w, http.StatusServiceUnavailable, "Session validation failed")
			return
		}

		if session == nil {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithStaffSession(r.Context(), session)))
	})
}

func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StaffSessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(config.StaffSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StaffSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
