package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusInactive  EnrollmentStatus = "INACTIVE"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusActive, EnrollmentStatusInactive, EnrollmentStatusSuspended, EnrollmentStatusCompleted:
		return true
	}
	return false
}

// Enrollment authorizes a competitor to train in a modality, optionally under an assigned evaluator.
type Enrollment struct {
	ID             string           `db:"id" json:"id"`
	CompetitorID   string           `db:"competitor_id" json:"competitor_id"`
	ModalityID     string           `db:"modality_id" json:"modality_id"`
	EvaluatorID    *string          `db:"evaluator_id" json:"evaluator_id,omitempty"`
	EnrollmentDate time.Time        `db:"enrollment_date" json:"enrollment_date"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the enrollment currently authorizes training.
func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive
}

// HasEvaluator reports whether evaluatorID is the assigned evaluator.
func (e *Enrollment) HasEvaluator(evaluatorID string) bool {
	return e.EvaluatorID != nil && evaluatorID != "" && *e.EvaluatorID == evaluatorID
}

// AssignEvaluator replaces the assigned evaluator.
func (e *Enrollment) AssignEvaluator(evaluatorID string, at time.Time) {
	e.EvaluatorID = &evaluatorID
	e.UpdatedAt = stamp(at)
}

// RemoveEvaluator clears the assigned evaluator.
func (e *Enrollment) RemoveEvaluator(at time.Time) {
	e.EvaluatorID = nil
	e.UpdatedAt = stamp(at)
}

// SetStatus moves the enrollment to status. Any transition is allowed.
func (e *Enrollment) SetStatus(status EnrollmentStatus, at time.Time) {
	e.Status = status
	e.UpdatedAt = stamp(at)
}

// EnrollmentDetail enriches Enrollment with display names.
type EnrollmentDetail struct {
	Enrollment
	CompetitorName string  `db:"competitor_name" json:"competitor_name"`
	ModalityCode   string  `db:"modality_code" json:"modality_code"`
	ModalityName   string  `db:"modality_name" json:"modality_name"`
	EvaluatorName  *string `db:"evaluator_name" json:"evaluator_name,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CompetitorID string
	ModalityID   string
	EvaluatorID  string
	Status       EnrollmentStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// stamp normalises timestamps to the precision postgres stores so optimistic checks compare equal.
func stamp(at time.Time) time.Time {
	return at.UTC().Truncate(time.Microsecond)
}
