package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/clinicrecords/securelink-server/internal/model"
)

type StaffUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*model.StaffUser, error)
}

type staffUserRepo struct {
	db *sqlx.DB
}

func NewStaffUserRepository(db *sqlx.DB) StaffUserRepository {
	return &staffUserRepo{db: db}
}

func (r *staffUserRepo) FindByUsername(ctx context.Context, username string) (*model.StaffUser, error) {
	var user model.StaffUser
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM staff_users WHERE username = $1
	`, username)
	return HandleNotFound(&user, err)
}

type StaffSessionRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.StaffSession, error)
	Create(ctx context.Context, params model.CreateStaffSessionParams) error
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type staffSessionRepo struct {
	db *sqlx.DB
}

func NewStaffSessionRepository(db *sqlx.DB) StaffSessionRepository {
	return &staffSessionRepo{db: db}
}

// FindByTokenHash loads a live session together with the staff member's
// current username and role.
func (r *staffSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*model.StaffSession, error) {
	var session model.StaffSession
	err := r.db.GetContext(ctx, &session, `
		SELECT s.id, s.token_hash, s.staff_id, u.username, u.role, s.expires_at, s.created_at
		FROM staff_sessions s
		JOIN staff_users u ON u.id = s.staff_id
		WHERE s.token_hash = $1 AND s.expires_at > $2
	`, tokenHash, now)
	return HandleNotFound(&session, err)
}

func (r *staffSessionRepo) Create(ctx context.Context, params model.CreateStaffSessionParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staff_sessions (token_hash, staff_id, expires_at)
		VALUES ($1, $2, $3)
	`, params.TokenHash, params.StaffID, params.ExpiresAt)
	return err
}

func (r *staffSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM staff_sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (r *staffSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM staff_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
