package model

import (
	"time"
)

// Document is the minimal projection of a report, prescription or nurse
// treatment row needed to authorize and hand off a render.
type Document struct {
	ID        int64        `db:"id" json:"id"`
	PatientID int64        `db:"patient_id" json:"patientId"`
	Kind      DocumentKind `db:"kind" json:"kind"`
	Title     string       `db:"title" json:"title"`
	Body      string       `db:"body" json:"body"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}

// DocumentReference is decoded from the `doc` URL parameter and lives for a
// single request.
type DocumentReference struct {
	DocumentID       int64
	ClaimedPatientID int64
}
