package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinicrecords/securelink-server/internal/model"
)

// SecureLinkTokenRepository handles secure link token data operations.
// Expiry is never filtered here: callers compare ExpiresAt against their own clock.
type SecureLinkTokenRepository interface {
	Create(ctx context.Context, params model.CreateSecureLinkTokenParams) (*model.SecureLinkToken, error)
	FindByValue(ctx context.Context, tokenValue string) (*model.SecureLinkToken, error)
	ListByPatient(ctx context.Context, patientID int64) ([]model.SecureLinkToken, error)
	MarkUsed(ctx context.Context, id int64) error
	DeleteByValue(ctx context.Context, tokenValue string) (int64, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type secureLinkTokenRepo struct {
	db *sqlx.DB
}

// NewSecureLinkTokenRepository creates a new secure link token repository
func NewSecureLinkTokenRepository(db *sqlx.DB) SecureLinkTokenRepository {
	return &secureLinkTokenRepo{db: db}
}

// Create inserts a token row. A duplicate token_value surfaces as a
// unique violation (see IsUniqueViolation).
func (r *secureLinkTokenRepo) Create(ctx context.Context, params model.CreateSecureLinkTokenParams) (*model.SecureLinkToken, error) {
	var token model.SecureLinkToken
	err := r.db.GetContext(ctx, &token, `
		INSERT INTO secure_link_tokens (patient_id, token_value, target_path_hint, created_at, expires_at, created_by_staff_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.PatientID, params.TokenValue, params.TargetPathHint, params.CreatedAt, params.ExpiresAt, params.CreatedByStaffID)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *secureLinkTokenRepo) FindByValue(ctx context.Context, tokenValue string) (*model.SecureLinkToken, error) {
	var token model.SecureLinkToken
	err := r.db.GetContext(ctx, &token, `
		SELECT * FROM secure_link_tokens
		WHERE token_value = $1
	`, tokenValue)
	return HandleNotFound(&token, err)
}

func (r *secureLinkTokenRepo) ListByPatient(ctx context.Context, patientID int64) ([]model.SecureLinkToken, error) {
	tokens := []model.SecureLinkToken{}
	err := r.db.SelectContext(ctx, &tokens, `
		SELECT * FROM secure_link_tokens
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// MarkUsed flips the informational used flag
func (r *secureLinkTokenRepo) MarkUsed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE secure_link_tokens
		SET used = TRUE
		WHERE id = $1 AND used = FALSE
	`, id)
	return err
}

// DeleteByValue removes a token and returns the number of rows deleted (0 or 1)
func (r *secureLinkTokenRepo) DeleteByValue(ctx context.Context, tokenValue string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM secure_link_tokens
		WHERE token_value = $1
	`, tokenValue)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteByID removes a token by primary key and returns the number of rows deleted
func (r *secureLinkTokenRepo) DeleteByID(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM secure_link_tokens
		WHERE id = $1
	`, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteExpired deletes every token with expires_at <= now
func (r *secureLinkTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM secure_link_tokens
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
