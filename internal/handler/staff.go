package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/clinicrecords/securelink-server/internal/audit"
	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/httputil"
	"github.com/clinicrecords/securelink-server/internal/middleware"
	"github.com/clinicrecords/securelink-server/internal/model"
)

// StaffAuthenticator is the part of service.StaffService the login endpoints use.
type StaffAuthenticator interface {
	Login(ctx context.Context, username, password string) (string, *model.StaffUser, error)
	Logout(ctx context.Context, token string) error
	ValidateSession(ctx context.Context, token string) (*model.StaffSession, error)
	CheckLoginLimit(ctx context.Context, ip string) (bool, time.Time, error)
}

type StaffHandler struct {
	auth         StaffAuthenticator
	isProduction bool
	debug        bool
}

func NewStaffHandler(auth StaffAuthenticator, isProduction, debug bool) *StaffHandler {
	return &StaffHandler{
		auth:         auth,
		isProduction: isProduction,
		debug:        debug,
	}
}

func (h *StaffHandler) Register(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

func (h *StaffHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := audit.ClientIP(r)

	allowed, resetAt, err := h.auth.CheckLoginLimit(r.Context(), ip)
	if err != nil {
		httputil.WriteErrorWithDebug(w, err, h.debug)
		return
	}
	if !allowed {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventRateLimitExceed,
			Details: map[string]interface{}{"scope": "staff_login"},
		})
		w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
		httputil.WriteError(w, apperrors.RateLimitExceeded())
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteErrorWithDebug(w, err, h.debug)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeUnauthorized {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventStaffLoginFailure,
				Details: map[string]interface{}{"username": req.Username},
			})
		}
		httputil.WriteErrorWithDebug(w, err, h.debug)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventStaffLoginSuccess,
		StaffID: user.ID,
		Details: map[string]interface{}{"role": string(user.Role)},
	})

	middleware.SetSessionCookie(w, token, h.isProduction)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"staff": map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func (h *StaffHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.StaffSessionCookie)
	if err == nil && cookie.Value != "" {
		// Resolve the owner before the row goes away; the route runs
		// without the session middleware.
		var staffID int64
		session, err := h.auth.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("logout: session lookup failed")
		} else if session != nil {
			staffID = session.StaffID
		}

		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			httputil.WriteErrorWithDebug(w, err, h.debug)
			return
		}
		if staffID != 0 {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventStaffLogout, StaffID: staffID})
		}
	}

	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
