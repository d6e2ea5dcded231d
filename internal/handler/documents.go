package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinicrecords/securelink-server/internal/audit"
	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/httputil"
	"github.com/clinicrecords/securelink-server/internal/middleware"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/service"
)

// DocumentViewer is implemented by service.DocumentAccessService.
type DocumentViewer interface {
	ViewDocument(ctx context.Context, kind model.DocumentKind, tokenValue, reference string, from service.Requester) (*service.DocumentView, error)
	StaffView(ctx context.Context, staff *model.StaffSession, kind model.DocumentKind, documentID int64) (*service.DocumentView, error)
	Dashboard(ctx context.Context, tokenValue string) (*service.Dashboard, error)
}

// DocumentHandler serves the patient dashboard and document views. Staff
// sessions, when present, arrive through middleware.StaffSessionMiddleware.Load.
type DocumentHandler struct {
	docs  DocumentViewer
	debug bool
}

func NewDocumentHandler(docs DocumentViewer, debug bool) *DocumentHandler {
	return &DocumentHandler{docs: docs, debug: debug}
}

func (h *DocumentHandler) Register(r chi.Router) {
	r.Get(service.DashboardPath, h.Dashboard)
	r.Get(service.DocumentsPath+"/{kind}", h.View)
}

func (h *DocumentHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.docs.Dashboard(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeAccessFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"dashboard": dash,
	})
}

// View serves /documents/{kind}. A staff session with ?id= takes the staff
// path; everything else must present ?token= and ?doc=.
func (h *DocumentHandler) View(w http.ResponseWriter, r *http.Request) {
	kind := model.DocumentKind(chi.URLParam(r, "kind"))
	if !kind.IsValid() {
		httputil.WriteError(w, apperrors.NotFound("document kind"))
		return
	}

	query := r.URL.Query()
	if staff := middleware.GetStaffSession(r.Context()); staff != nil && query.Get("id") != "" {
		h.staffView(w, r, staff, kind, query.Get("id"))
		return
	}

	view, err := h.docs.ViewDocument(r.Context(), kind, query.Get("token"), query.Get("doc"), service.Requester{
		SourceAddress: audit.ClientIP(r),
		ClientAgent:   r.UserAgent(),
	})
	if err != nil {
		writeAccessFailure(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventDocumentViewed,
		PatientID: view.Document.PatientID,
		Details: map[string]interface{}{
			"kind":       string(kind),
			"documentId": view.Document.ID,
			"tokenId":    view.TokenID,
		},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"document": view.Document,
	})
}

func (h *DocumentHandler) staffView(w http.ResponseWriter, r *http.Request, staff *model.StaffSession, kind model.DocumentKind, rawID string) {
	documentID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || documentID <= 0 {
		httputil.WriteError(w, apperrors.ValidationError("id must be a positive integer"))
		return
	}

	view, err := h.docs.StaffView(r.Context(), staff, kind, documentID)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeForbidden {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventForbidden,
				StaffID: staff.StaffID,
				Details: map[string]interface{}{"kind": string(kind), "documentId": documentID},
			})
		}
		httputil.WriteErrorWithDebug(w, err, h.debug)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventDocumentViewed,
		StaffID:   staff.StaffID,
		PatientID: view.Document.PatientID,
		Details: map[string]interface{}{
			"kind":       string(kind),
			"documentId": view.Document.ID,
			"via":        "staff",
		},
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"document": view.Document,
	})
}
