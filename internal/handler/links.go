package handler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicrecords/securelink-server/internal/audit"
	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/httputil"
	"github.com/clinicrecords/securelink-server/internal/middleware"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/service"
	"github.com/clinicrecords/securelink-server/internal/util"
)

// LinkManager is the staff-facing surface of service.SecureLinkService.
type LinkManager interface {
	Issue(ctx context.Context, params service.IssueParams) (*service.IssuedLink, error)
	ListForPatient(ctx context.Context, patientID int64) ([]service.LinkSummary, error)
	Revoke(ctx context.Context, tokenValue string) error
	RevokeByID(ctx context.Context, id int64) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// AccessLogManager is the staff-facing surface of service.AccessAuditor.
type AccessLogManager interface {
	ListForPatient(ctx context.Context, patientID int64, limit, offset int) ([]model.AccessLogEntry, int, error)
	CleanupOldAccessLogs(ctx context.Context, retention time.Duration) (int64, error)
}

// DocumentFinder checks that an issuance's report context belongs to the patient.
type DocumentFinder interface {
	FindForPatient(ctx context.Context, kind model.DocumentKind, id, patientID int64) (*model.Document, error)
}

type LinkHandlerConfig struct {
	DefaultTTL   time.Duration
	MaxTTL       time.Duration
	LogRetention time.Duration
	Debug        bool
}

// LinkHandler serves the staff link API. It expects a staff session on the
// request context.
type LinkHandler struct {
	links LinkManager
	logs  AccessLogManager
	docs  DocumentFinder
	cfg   LinkHandlerConfig
}

func NewLinkHandler(links LinkManager, logs AccessLogManager, docs DocumentFinder, cfg LinkHandlerConfig) *LinkHandler {
	return &LinkHandler{
		links: links,
		logs:  logs,
		docs:  docs,
		cfg:   cfg,
	}
}

func (h *LinkHandler) Register(r chi.Router) {
	r.Post("/links", h.Issue)
	r.Post("/links/actions", h.Actions)
	r.Get("/patients/{patientID}/links", h.ListLinks)
	r.Get("/patients/{patientID}/access-logs", h.ListAccessLogs)
}

type issueRequest struct {
	PatientID      int64   `json:"patientId" validate:"required,gt=0"`
	ReportID       *int64  `json:"reportId" validate:"omitempty,gt=0"`
	TTLHours       *int    `json:"ttlHours" validate:"omitempty,gt=0"`
	TargetPathHint *string `json:"targetPathHint" validate:"omitempty,startswith=/,max=255"`
}

func (h *LinkHandler) Issue(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetStaffSession(r.Context())

	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
		return
	}

	ttl := h.cfg.DefaultTTL
	if req.TTLHours != nil {
		// Bound the hour count before converting so it cannot overflow.
		if maxHours := int(h.cfg.MaxTTL / time.Hour); h.cfg.MaxTTL > 0 && *req.TTLHours > maxHours {
			httputil.WriteError(w, apperrors.ValidationError(
				fmt.Sprintf("ttlHours must not exceed %d", maxHours)))
			return
		}
		ttl = time.Duration(*req.TTLHours) * time.Hour
	}

	if req.ReportID != nil {
		doc, err := h.docs.FindForPatient(r.Context(), model.DocumentKindReport, *req.ReportID, req.PatientID)
		if err != nil {
			httputil.WriteErrorWithDebug(w, apperrors.Persistence(err), h.cfg.Debug)
			return
		}
		if doc == nil {
			httputil.WriteError(w, apperrors.ValidationError("reportId does not belong to patient"))
			return
		}
	}

	params := service.IssueParams{
		PatientID:      req.PatientID,
		TTL:            ttl,
		TargetPathHint: req.TargetPathHint,
	}
	if session != nil {
		params.StaffID = &session.StaffID
	}

	link, err := h.links.Issue(r.Context(), params)
	if err != nil {
		httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
		return
	}

	event := audit.Event{
		Type:      audit.EventLinkIssued,
		PatientID: req.PatientID,
		Details: map[string]interface{}{
			"token":     util.MaskToken(link.TokenValue),
			"expiresAt": link.ExpiresAt,
		},
	}
	if session != nil {
		event.StaffID = session.StaffID
	}
	audit.LogFromRequest(r, event)

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"token":     link.TokenValue,
		"url":       link.URL,
		"expiresAt": link.ExpiresAt,
	})
}

func (h *LinkHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parsePatientID(w, r)
	if !ok {
		return
	}

	links, err := h.links.ListForPatient(r.Context(), patientID)
	if err != nil {
		httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"links":   links,
	})
}

func (h *LinkHandler) ListAccessLogs(w http.ResponseWriter, r *http.Request) {
	patientID, ok := parsePatientID(w, r)
	if !ok {
		return
	}
	pagination := ParsePagination(r)

	entries, total, err := h.logs.ListForPatient(r.Context(), patientID, pagination.Limit, pagination.Offset)
	if err != nil {
		httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"logs":    entries,
		"total":   total,
		"limit":   pagination.Limit,
		"offset":  pagination.Offset,
	})
}

const (
	actionRevoke      = "revoke"
	actionCleanup     = "cleanup"
	actionCleanupLogs = "cleanup_logs"
)

// actionRequest identifies the token to revoke either by value or by the
// id shown in the staff listing.
type actionRequest struct {
	Action        string `json:"action" validate:"required,oneof=revoke cleanup cleanup_logs"`
	Token         string `json:"token"`
	ID            int64  `json:"id" validate:"gte=0"`
	RetentionDays int    `json:"retentionDays" validate:"gte=0"`
}

// Actions accepts either a JSON body or a classic form post.
func (h *LinkHandler) Actions(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetStaffSession(r.Context())

	req, err := parseActionRequest(r)
	if err != nil {
		httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
		return
	}

	if req.Action != actionRevoke && (session == nil || !session.CanRunCleanup()) {
		var staffID int64
		if session != nil {
			staffID = session.StaffID
		}
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventForbidden,
			StaffID: staffID,
			Details: map[string]interface{}{"action": req.Action},
		})
		httputil.WriteError(w, apperrors.Forbidden("Cleanup requires the admin role"))
		return
	}

	switch req.Action {
	case actionRevoke:
		details := map[string]interface{}{}
		switch {
		case req.Token != "":
			err = h.links.Revoke(r.Context(), req.Token)
			details["token"] = util.MaskToken(req.Token)
		case req.ID > 0:
			err = h.links.RevokeByID(r.Context(), req.ID)
			details["tokenId"] = req.ID
		default:
			err = apperrors.MissingRequired("token or id")
		}
		if err != nil {
			httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
			return
		}
		event := audit.Event{
			Type:    audit.EventLinkRevoked,
			Details: details,
		}
		if session != nil {
			event.StaffID = session.StaffID
		}
		audit.LogFromRequest(r, event)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": req.Action})

	case actionCleanup:
		n, err := h.links.CleanupExpired(r.Context())
		if err != nil {
			httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
			return
		}
		h.logCleanup(r, session, req.Action, n)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": req.Action, "removed": n})

	case actionCleanupLogs:
		retention := h.cfg.LogRetention
		if req.RetentionDays > 0 {
			retention = time.Duration(req.RetentionDays) * 24 * time.Hour
		}
		n, err := h.logs.CleanupOldAccessLogs(r.Context(), retention)
		if err != nil {
			httputil.WriteErrorWithDebug(w, err, h.cfg.Debug)
			return
		}
		h.logCleanup(r, session, req.Action, n)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": req.Action, "removed": n})
	}
}

func (h *LinkHandler) logCleanup(r *http.Request, session *model.StaffSession, action string, removed int64) {
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventCleanupRun,
		StaffID: session.StaffID,
		Details: map[string]interface{}{"action": action, "removed": removed},
	})
}

func parseActionRequest(r *http.Request) (*actionRequest, error) {
	var req actionRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, apperrors.ValidationError("Invalid form body")
	}
	req.Action = strings.TrimSpace(r.PostForm.Get("action"))
	req.Token = strings.TrimSpace(r.PostForm.Get("token"))
	if id := r.PostForm.Get("id"); id != "" {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, apperrors.ValidationError("id must be a number")
		}
		req.ID = n
	}
	if days := r.PostForm.Get("retentionDays"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			return nil, apperrors.ValidationError("retentionDays must be a number")
		}
		req.RetentionDays = n
	}

	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func parsePatientID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil || patientID <= 0 {
		httputil.WriteError(w, apperrors.ValidationError("patientID must be a positive integer"))
		return 0, false
	}
	return patientID, true
}
