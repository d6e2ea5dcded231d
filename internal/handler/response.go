package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/clinicrecords/securelink-server/internal/audit"
	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/httputil"
	"github.com/clinicrecords/securelink-server/internal/metrics"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeAccessFailure renders a failed patient-facing check. Rejections all
// look the same to the caller; the reason goes to the audit log and metrics.
func writeAccessFailure(w http.ResponseWriter, r *http.Request, err error) {
	if !apperrors.IsAccessRejection(err) {
		if apperrors.GetCode(err) == apperrors.ErrCodePersistence {
			log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("access check failed")
		}
		httputil.WriteError(w, err)
		return
	}

	reason := string(apperrors.GetCode(err))
	metrics.AccessDenials.WithLabelValues(reason).Inc()
	audit.LogFromRequest(r, audit.Event{
		Type: audit.EventLinkDenied,
		Details: map[string]interface{}{
			"reason": reason,
			"path":   r.URL.Path,
		},
	})
	httputil.WriteDenied(w)
}
