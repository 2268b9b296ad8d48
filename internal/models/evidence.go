package models

import (
	"fmt"
	"mime"
	"strings"
	"time"

	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

// EvidenceKind classifies an evidence attachment.
type EvidenceKind string

// Supported evidence kinds.
const (
	EvidenceKindPhoto       EvidenceKind = "PHOTO"
	EvidenceKindDocument    EvidenceKind = "DOCUMENT"
	EvidenceKindVideo       EvidenceKind = "VIDEO"
	EvidenceKindCertificate EvidenceKind = "CERTIFICATE"
	EvidenceKindOther       EvidenceKind = "OTHER"
)

// MaxEvidenceSizeBytes caps a single evidence file.
const MaxEvidenceSizeBytes int64 = 10 * 1024 * 1024

var allowedEvidenceMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/gif":       {},
	"application/pdf": {},
	"video/mp4":       {},
	"video/webm":      {},
}

// Valid reports whether k is a known kind.
func (k EvidenceKind) Valid() bool {
	switch k {
	case EvidenceKindPhoto, EvidenceKindDocument, EvidenceKindVideo, EvidenceKindCertificate, EvidenceKindOther:
		return true
	}
	return false
}

// Evidence is a file attached to a training session.
type Evidence struct {
	ID               string       `db:"id" json:"id"`
	TrainingID       string       `db:"training_id" json:"training_id"`
	OriginalFilename string       `db:"original_filename" json:"original_filename"`
	FilePath         string       `db:"file_path" json:"-"`
	SizeBytes        int64        `db:"size_bytes" json:"size_bytes"`
	MimeType         string       `db:"mime_type" json:"mime_type"`
	Kind             EvidenceKind `db:"kind" json:"kind"`
	Description      *string      `db:"description" json:"description,omitempty"`
	UploadedBy       string       `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt       time.Time    `db:"uploaded_at" json:"uploaded_at"`
}

// EvidenceMetadata is the client supplied description of an upload.
type EvidenceMetadata struct {
	TrainingID       string
	OriginalFilename string
	Kind             EvidenceKind
	Description      string
	UploadedBy       string
}

// NewEvidence validates upload metadata. The storage path is attached once the bytes are stored.
func NewEvidence(meta EvidenceMetadata, sizeBytes int64, mimeType string) (*Evidence, error) {
	if strings.TrimSpace(meta.TrainingID) == "" || strings.TrimSpace(meta.UploadedBy) == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidEvidence, "evidence must reference a training session and uploader")
	}
	name := strings.TrimSpace(meta.OriginalFilename)
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidEvidence, "evidence file name is required")
	}
	normalized := NormalizeMIMEType(mimeType)
	if !IsAllowedEvidenceMIMEType(normalized) {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidEvidence, fmt.Sprintf("file type %q is not allowed", normalized)),
			map[string]interface{}{"mime_type": normalized},
		)
	}
	if sizeBytes <= 0 || sizeBytes > MaxEvidenceSizeBytes {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidEvidence, "evidence file size must be greater than zero and at most 10MB"),
			map[string]interface{}{"size_bytes": sizeBytes, "max_size_bytes": MaxEvidenceSizeBytes},
		)
	}
	kind := meta.Kind
	if kind == "" {
		kind = EvidenceKindOther
	}
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidEvidence, fmt.Sprintf("unknown evidence kind %q", kind))
	}

	evidence := &Evidence{
		TrainingID:       meta.TrainingID,
		OriginalFilename: name,
		SizeBytes:        sizeBytes,
		MimeType:         normalized,
		Kind:             kind,
		UploadedBy:       meta.UploadedBy,
	}
	if desc := strings.TrimSpace(meta.Description); desc != "" {
		evidence.Description = &desc
	}
	return evidence, nil
}

// AttachStoragePath records where the object store placed the bytes.
func (e *Evidence) AttachStoragePath(path string) {
	e.FilePath = path
}

// NormalizeMIMEType lowercases a media type and drops its parameters.
func NormalizeMIMEType(raw string) string {
	if mediaType, _, err := mime.ParseMediaType(raw); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsAllowedEvidenceMIMEType reports whether mimeType may be uploaded as evidence.
func IsAllowedEvidenceMIMEType(mimeType string) bool {
	_, ok := allowedEvidenceMIMETypes[NormalizeMIMEType(mimeType)]
	return ok
}
