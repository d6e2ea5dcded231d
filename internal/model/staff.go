package model

import (
	"time"
)

type StaffUser struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         StaffRole `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// StaffSession is an authenticated staff login. The role is joined in from
// staff_users when the session is loaded.
type StaffSession struct {
	ID        int64     `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	StaffID   int64     `db:"staff_id" json:"staffId"`
	Username  string    `db:"username" json:"username"`
	Role      StaffRole `db:"role" json:"role"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type CreateStaffSessionParams struct {
	TokenHash string
	StaffID   int64
	ExpiresAt time.Time
}

// CanManageLinks reports whether the role may issue, list and revoke links.
func (s *StaffSession) CanManageLinks() bool {
	switch s.Role {
	case StaffRoleAdmin, StaffRoleDoctor, StaffRoleNurse:
		return true
	}
	return false
}

// CanRunCleanup reports whether the role may trigger cleanup sweeps.
func (s *StaffSession) CanRunCleanup() bool {
	return s.Role == StaffRoleAdmin
}

// CanViewDocuments reports whether the role may fetch documents by raw id.
func (s *StaffSession) CanViewDocuments() bool {
	return s.CanManageLinks()
}
