package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinicrecords/securelink-server/internal/model"
)

// AccessLogRepository is append-only apart from retention cleanup.
type AccessLogRepository interface {
	Create(ctx context.Context, params model.CreateAccessLogEntryParams) (*model.AccessLogEntry, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]model.AccessLogEntry, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type accessLogRepo struct {
	db *sqlx.DB
}

func NewAccessLogRepository(db *sqlx.DB) AccessLogRepository {
	return &accessLogRepo{db: db}
}

func (r *accessLogRepo) Create(ctx context.Context, params model.CreateAccessLogEntryParams) (*model.AccessLogEntry, error) {
	var entry model.AccessLogEntry
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO secure_link_access_logs (token_id, patient_id, document_kind, document_id, source_address, client_agent, accessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, params.TokenID, params.PatientID, params.DocumentKind, params.DocumentID,
		params.SourceAddress, params.ClientAgent, params.AccessedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByPatient returns one page of entries, newest first, and the total count
func (r *accessLogRepo) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]model.AccessLogEntry, int, error) {
	entries := []model.AccessLogEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM secure_link_access_logs
		WHERE patient_id = $1
		ORDER BY accessed_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM secure_link_access_logs WHERE patient_id = $1
	`, patientID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *accessLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM secure_link_access_logs
		WHERE accessed_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
