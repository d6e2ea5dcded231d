package model

import (
	"time"
)

// SecureLinkToken is one issued grant of unauthenticated, patient-scoped
// document access.
type SecureLinkToken struct {
	ID               int64     `db:"id" json:"id"`
	PatientID        int64     `db:"patient_id" json:"patientId"`
	TokenValue       string    `db:"token_value" json:"-"`
	TargetPathHint   *string   `db:"target_path_hint" json:"targetPathHint,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt        time.Time `db:"expires_at" json:"expiresAt"`
	Used             bool      `db:"used" json:"used"`
	CreatedByStaffID *int64    `db:"created_by_staff_id" json:"createdByStaffId,omitempty"`
}

// CreateSecureLinkTokenParams contains parameters for inserting a token row
type CreateSecureLinkTokenParams struct {
	PatientID        int64
	TokenValue       string
	TargetPathHint   *string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	CreatedByStaffID *int64
}

// IsExpiredAt reports whether the token is dead at the given instant.
// Expiry is inclusive: a token is only valid while now < ExpiresAt.
func (t *SecureLinkToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// StatusAt returns the staff-visible status of the token.
func (t *SecureLinkToken) StatusAt(now time.Time) LinkStatus {
	if t.IsExpiredAt(now) {
		return LinkStatusExpired
	}
	return LinkStatusActive
}
