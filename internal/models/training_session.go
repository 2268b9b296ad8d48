package models

import (
	"strings"
	"time"
)

// TrainingDateLayout is the wire format for training dates.
const TrainingDateLayout = "2006-01-02"

// TrainingType tags where a training took place.
type TrainingType string

// Supported training types.
const (
	TrainingTypeSENAI        TrainingType = "SENAI"
	TrainingTypeExternal     TrainingType = "EXTERNAL"
	TrainingTypeCompany      TrainingType = "COMPANY"
	TrainingTypeSelfDirected TrainingType = "SELF_DIRECTED"
)

// Valid reports whether t is a known training type.
func (t TrainingType) Valid() bool {
	switch t {
	case TrainingTypeSENAI, TrainingTypeExternal, TrainingTypeCompany, TrainingTypeSelfDirected:
		return true
	}
	return false
}

// TrainingStatus is the validation state of a session.
type TrainingStatus string

// Validation states.
const (
	TrainingStatusPending  TrainingStatus = "PENDING"
	TrainingStatusApproved TrainingStatus = "APPROVED"
	TrainingStatusRejected TrainingStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s TrainingStatus) Valid() bool {
	switch s {
	case TrainingStatusPending, TrainingStatusApproved, TrainingStatusRejected:
		return true
	}
	return false
}

// TrainingSession records one block of training by a competitor.
type TrainingSession struct {
	ID              string         `db:"id" json:"id"`
	CompetitorID    string         `db:"competitor_id" json:"competitor_id"`
	ModalityID      string         `db:"modality_id" json:"modality_id"`
	EnrollmentID    string         `db:"enrollment_id" json:"enrollment_id"`
	TrainingDate    time.Time      `db:"training_date" json:"training_date"`
	Hours           TrainingHours  `db:"hours" json:"hours"`
	TrainingType    TrainingType   `db:"training_type" json:"training_type"`
	Location        *string        `db:"location" json:"location,omitempty"`
	Description     *string        `db:"description" json:"description,omitempty"`
	Status          TrainingStatus `db:"status" json:"status"`
	ValidatedBy     *string        `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt     *time.Time     `db:"validated_at" json:"validated_at,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Evidence        []Evidence     `db:"-" json:"evidence,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// NewTrainingSessionParams carries the facts of a registration that already passed validation.
type NewTrainingSessionParams struct {
	CompetitorID string
	ModalityID   string
	EnrollmentID string
	TrainingDate time.Time
	Hours        TrainingHours
	TrainingType TrainingType
	Location     string
	Description  string
}

// NewTrainingSession builds a PENDING session.
func NewTrainingSession(p NewTrainingSessionParams, at time.Time) *TrainingSession {
	now := stamp(at)
	return &TrainingSession{
		CompetitorID: p.CompetitorID,
		ModalityID:   p.ModalityID,
		EnrollmentID: p.EnrollmentID,
		TrainingDate: TruncateToDate(p.TrainingDate),
		Hours:        p.Hours,
		TrainingType: p.TrainingType,
		Location:     optionalText(p.Location),
		Description:  optionalText(p.Description),
		Status:       TrainingStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Approve marks the session approved by evaluatorID. Callers decide who may approve.
func (s *TrainingSession) Approve(evaluatorID string, at time.Time) {
	now := stamp(at)
	s.Status = TrainingStatusApproved
	s.ValidatedBy = &evaluatorID
	s.ValidatedAt = &now
	s.RejectionReason = nil
	s.UpdatedAt = now
}

// Reject marks the session rejected. A non-empty reason is checked by the caller.
func (s *TrainingSession) Reject(evaluatorID, reason string, at time.Time) {
	now := stamp(at)
	s.Status = TrainingStatusRejected
	s.ValidatedBy = &evaluatorID
	s.ValidatedAt = &now
	s.RejectionReason = &reason
	s.UpdatedAt = now
}

// TrainingSessionChanges lists the editable facts. Nil fields are left untouched; an empty
// location or description clears it.
type TrainingSessionChanges struct {
	TrainingDate *time.Time
	Hours        *TrainingHours
	TrainingType *TrainingType
	Location     *string
	Description  *string
}

// Update applies changes and always sends the session back to review.
func (s *TrainingSession) Update(changes TrainingSessionChanges, at time.Time) {
	if changes.TrainingDate != nil {
		s.TrainingDate = TruncateToDate(*changes.TrainingDate)
	}
	if changes.Hours != nil {
		s.Hours = *changes.Hours
	}
	if changes.TrainingType != nil {
		s.TrainingType = *changes.TrainingType
	}
	if changes.Location != nil {
		s.Location = optionalText(*changes.Location)
	}
	if changes.Description != nil {
		s.Description = optionalText(*changes.Description)
	}
	s.ResetValidation()
	s.UpdatedAt = stamp(at)
}

// ResetValidation returns the session to PENDING and clears validation metadata.
func (s *TrainingSession) ResetValidation() {
	s.Status = TrainingStatusPending
	s.ValidatedBy = nil
	s.ValidatedAt = nil
	s.RejectionReason = nil
}

// IsPending reports whether the session awaits validation.
func (s *TrainingSession) IsPending() bool {
	return s.Status == TrainingStatusPending
}

// CountsTowardDailyLimit reports whether the session's hours count against the daily ceiling.
func (s *TrainingSession) CountsTowardDailyLimit() bool {
	return s.Status != TrainingStatusRejected
}

// TrainingSessionFilter scopes session listings. EvaluatorID restricts results to enrollments
// assigned to that evaluator.
type TrainingSessionFilter struct {
	CompetitorID string
	ModalityID   string
	EvaluatorID  string
	Status       TrainingStatus
	TrainingType TrainingType
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// TruncateToDate drops the clock part, keeping the calendar date as UTC midnight.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseTrainingDate parses a YYYY-MM-DD date.
func ParseTrainingDate(raw string) (time.Time, error) {
	return time.ParseInLocation(TrainingDateLayout, strings.TrimSpace(raw), time.UTC)
}

func optionalText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
