package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLinkIssued        EventType = "link_issued"
	EventLinkRevoked       EventType = "link_revoked"
	EventLinkDenied        EventType = "link_denied"
	EventDocumentViewed    EventType = "document_viewed"
	EventStaffLoginSuccess EventType = "staff_login_success"
	EventStaffLoginFailure EventType = "staff_login_failure"
	EventStaffLogout       EventType = "staff_logout"
	EventRateLimitExceed   EventType = "rate_limit_exceeded"
	EventCSRFFailure       EventType = "csrf_failure"
	EventForbidden         EventType = "forbidden"
	EventCleanupRun        EventType = "cleanup_run"
)

type Event struct {
	Type      EventType
	StaffID   int64
	PatientID int64
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

// Log writes one security audit entry and returns its event id.
func Log(ctx context.Context, event Event) string {
	eventID := uuid.NewString()

	logger := log.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &log.Logger
	}

	ctxLogger := logger.With().
		Str("audit", "security").
		Str("event_id", eventID).
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.StaffID != 0 {
		ctxLogger = ctxLogger.With().Int64("staff_id", event.StaffID).Logger()
	}
	if event.PatientID != 0 {
		ctxLogger = ctxLogger.With().Int64("patient_id", event.PatientID).Logger()
	}
	if event.IP != "" {
		ctxLogger = ctxLogger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		ctxLogger = ctxLogger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := ctxLogger.Info()
	if event.Type == EventLinkDenied || event.Type == EventStaffLoginFailure {
		logEvent = ctxLogger.Warn()
	}
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")

	return eventID
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Time:
		return e.Time(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) string {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	return Log(r.Context(), event)
}

// ClientIP returns the host part of RemoteAddr. Forwarding headers are
// only honoured through chi's RealIP middleware, which rewrites RemoteAddr;
// deployments must sit behind a proxy that overwrites those headers.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
