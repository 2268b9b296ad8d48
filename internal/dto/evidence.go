package dto

import (
	"time"

	"github.com/noah-isme/skill-training-api/internal/models"
)

// UploadEvidenceRequest describes the multipart fields sent alongside an evidence file.
type UploadEvidenceRequest struct {
	Kind        models.EvidenceKind `form:"kind" validate:"omitempty,oneof=PHOTO DOCUMENT VIDEO CERTIFICATE OTHER"`
	Description string              `form:"description" validate:"max=2000"`
}

// EvidenceDownloadURL is a short-lived signed link to an evidence file.
type EvidenceDownloadURL struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
