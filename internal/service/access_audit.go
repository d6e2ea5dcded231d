package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/clinicrecords/securelink-server/internal/errors"
	"github.com/clinicrecords/securelink-server/internal/metrics"
	"github.com/clinicrecords/securelink-server/internal/model"
	"github.com/clinicrecords/securelink-server/internal/repository"
)

const maxClientAgentLength = 512

// AccessRecord describes one authorized document view.
type AccessRecord struct {
	TokenID       int64
	PatientID     int64
	DocumentKind  model.DocumentKind
	DocumentID    int64
	SourceAddress string
	ClientAgent   string
}

// AccessAuditor persists the access trail of token-based document views.
type AccessAuditor struct {
	repo repository.AccessLogRepository
	now  func() time.Time
}

func NewAccessAuditor(repo repository.AccessLogRepository, now func() time.Time) *AccessAuditor {
	if now == nil {
		now = time.Now
	}
	return &AccessAuditor{repo: repo, now: now}
}

// Record appends one access log row. The returned error is informational:
// callers log it and carry on serving the document.
func (a *AccessAuditor) Record(ctx context.Context, rec AccessRecord) error {
	agent := rec.ClientAgent
	if len(agent) > maxClientAgentLength {
		agent = agent[:maxClientAgentLength]
	}

	_, err := a.repo.Create(ctx, model.CreateAccessLogEntryParams{
		TokenID:       rec.TokenID,
		PatientID:     rec.PatientID,
		DocumentKind:  rec.DocumentKind,
		DocumentID:    rec.DocumentID,
		SourceAddress: rec.SourceAddress,
		ClientAgent:   agent,
		AccessedAt:    a.now(),
	})
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		log.Error().
			Err(err).
			Int64("tokenId", rec.TokenID).
			Int64("patientId", rec.PatientID).
			Str("kind", string(rec.DocumentKind)).
			Int64("documentId", rec.DocumentID).
			Msg("access log write failed")
		return apperrors.Persistence(err)
	}
	return nil
}

// CleanupOldAccessLogs removes entries older than retention.
func (a *AccessAuditor) CleanupOldAccessLogs(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, apperrors.ValidationError("retention must be a positive duration")
	}

	cutoff := a.now().Add(-retention)
	n, err := a.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("delete old access logs")
		return 0, apperrors.Persistence(err)
	}
	metrics.CleanupRemoved.WithLabelValues("secure_link_access_logs").Add(float64(n))
	return n, nil
}

func (a *AccessAuditor) ListForPatient(ctx context.Context, patientID int64, limit, offset int) ([]model.AccessLogEntry, int, error) {
	entries, total, err := a.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		log.Error().Err(err).Int64("patientId", patientID).Msg("list access logs")
		return nil, 0, apperrors.Persistence(err)
	}
	return entries, total, nil
}
