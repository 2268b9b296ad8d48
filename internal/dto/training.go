package dto

import "github.com/noah-isme/skill-training-api/internal/models"

// RegisterTrainingRequest logs a training session. CompetitorID is honoured for privileged callers
// only; competitors always register for themselves.
type RegisterTrainingRequest struct {
	CompetitorID string              `json:"competitor_id,omitempty" validate:"omitempty,uuid"`
	ModalityID   string              `json:"modality_id" validate:"required,uuid"`
	TrainingDate string              `json:"training_date" validate:"required,datetime=2006-01-02"`
	Hours        float64             `json:"hours" validate:"required"`
	TrainingType models.TrainingType `json:"training_type" validate:"required,oneof=SENAI EXTERNAL COMPANY SELF_DIRECTED"`
	Location     string              `json:"location,omitempty" validate:"max=255"`
	Description  string              `json:"description,omitempty" validate:"max=2000"`
}

// UpdateTrainingRequest edits a session. Omitted fields are kept.
type UpdateTrainingRequest struct {
	TrainingDate *string              `json:"training_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Hours        *float64             `json:"hours,omitempty"`
	TrainingType *models.TrainingType `json:"training_type,omitempty" validate:"omitempty,oneof=SENAI EXTERNAL COMPANY SELF_DIRECTED"`
	Location     *string              `json:"location,omitempty" validate:"omitempty,max=255"`
	Description  *string              `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// RejectTrainingRequest carries the mandatory rejection reason.
type RejectTrainingRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}
