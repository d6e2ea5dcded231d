package model

import (
	"time"
)

type Patient struct {
	ID        int64     `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
