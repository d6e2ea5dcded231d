package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/clinicrecords/securelink-server/internal/model"
)

// PatientRepository is a read-only view of the clinic's patient table
type PatientRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Patient, error)
}

type patientRepo struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) PatientRepository {
	return &patientRepo{db: db}
}

func (r *patientRepo) FindByID(ctx context.Context, id int64) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `
		SELECT id, full_name, created_at FROM patients WHERE id = $1
	`, id)
	return HandleNotFound(&patient, err)
}
