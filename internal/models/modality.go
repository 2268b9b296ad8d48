package models

import "time"

// Modality is a competition discipline competitors train for.
type Modality struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ModalityFilter scopes modality listings.
type ModalityFilter struct {
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
