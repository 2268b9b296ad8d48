package dto

import "github.com/noah-isme/skill-training-api/internal/models"

// EnrollRequest enrolls a competitor in a modality.
type EnrollRequest struct {
	CompetitorID   string  `json:"competitor_id" validate:"required,uuid"`
	ModalityID     string  `json:"modality_id" validate:"required,uuid"`
	EvaluatorID    *string `json:"evaluator_id,omitempty" validate:"omitempty,uuid"`
	EnrollmentDate string  `json:"enrollment_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Notes          string  `json:"notes,omitempty" validate:"max=2000"`
}

// AssignEvaluatorRequest sets the evaluator of an enrollment.
type AssignEvaluatorRequest struct {
	EvaluatorID string `json:"evaluator_id" validate:"required,uuid"`
}

// UpdateEnrollmentStatusRequest moves an enrollment to a new status.
type UpdateEnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE SUSPENDED COMPLETED"`
	Notes  *string                 `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
