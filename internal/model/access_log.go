package model

import (
	"time"
)

// AccessLogEntry is an append-only record of one authorized document view.
type AccessLogEntry struct {
	ID            int64        `db:"id" json:"id"`
	TokenID       int64        `db:"token_id" json:"tokenId"`
	PatientID     int64        `db:"patient_id" json:"patientId"`
	DocumentKind  DocumentKind `db:"document_kind" json:"documentKind"`
	DocumentID    int64        `db:"document_id" json:"documentId"`
	SourceAddress string       `db:"source_address" json:"sourceAddress"`
	ClientAgent   string       `db:"client_agent" json:"clientAgent"`
	AccessedAt    time.Time    `db:"accessed_at" json:"accessedAt"`
}

type CreateAccessLogEntryParams struct {
	TokenID       int64
	PatientID     int64
	DocumentKind  DocumentKind
	DocumentID    int64
	SourceAddress string
	ClientAgent   string
	AccessedAt    time.Time
}
