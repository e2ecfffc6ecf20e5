package model

import "time"

// DisplayGroup is a named set of displays. Membership is many-to-many and
// is always resolved against the store at the moment it is needed.
type DisplayGroup struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
