package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clinicrecords/securelink-server/internal/model"
)

// documentTables maps each kind to the clinic table holding its rows.
var documentTables = map[model.DocumentKind]string{
	model.DocumentKindReport:       "reports",
	model.DocumentKindPrescription: "prescriptions",
	model.DocumentKindTreatment:    "nurse_treatments",
}

// DocumentRepository is a read-only view over reports, prescriptions and
// nurse treatments.
type DocumentRepository interface {
	// FindForPatient returns nil when the row is missing or owned by another patient.
	FindForPatient(ctx context.Context, kind model.DocumentKind, id, patientID int64) (*model.Document, error)
	FindByID(ctx context.Context, kind model.DocumentKind, id int64) (*model.Document, error)
	ListByPatient(ctx context.Context, kind model.DocumentKind, patientID int64) ([]model.Document, error)
}

type documentRepo struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func tableFor(kind model.DocumentKind) (string, error) {
	table, ok := documentTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown document kind %q", kind)
	}
	return table, nil
}

func (r *documentRepo) FindForPatient(ctx context.Context, kind model.DocumentKind, id, patientID int64) (*model.Document, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var doc model.Document
	err = r.db.GetContext(ctx, &doc, fmt.Sprintf(`
		SELECT id, patient_id, $3::text AS kind, title, body, created_at
		FROM %s
		WHERE id = $1 AND patient_id = $2
	`, table), id, patientID, string(kind))
	return HandleNotFound(&doc, err)
}

func (r *documentRepo) FindByID(ctx context.Context, kind model.DocumentKind, id int64) (*model.Document, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var doc model.Document
	err = r.db.GetContext(ctx, &doc, fmt.Sprintf(`
		SELECT id, patient_id, $2::text AS kind, title, body, created_at
		FROM %s
		WHERE id = $1
	`, table), id, string(kind))
	return HandleNotFound(&doc, err)
}

func (r *documentRepo) ListByPatient(ctx context.Context, kind model.DocumentKind, patientID int64) ([]model.Document, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	docs := []model.Document{}
	err = r.db.SelectContext(ctx, &docs, fmt.Sprintf(`
		SELECT id, patient_id, $2::text AS kind, title, body, created_at
		FROM %s
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, table), patientID, string(kind))
	if err != nil {
		return nil, err
	}
	return docs, nil
}
