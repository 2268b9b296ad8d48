package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionEnrollmentCreate = "ENROLLMENT_CREATE"
	AuditActionEnrollmentStatus = "ENROLLMENT_STATUS"
	AuditActionEnrollmentDelete = "ENROLLMENT_DELETE"
	AuditActionEvaluatorAssign  = "EVALUATOR_ASSIGN"
	AuditActionEvaluatorRemove  = "EVALUATOR_REMOVE"
	AuditActionModalityCreate   = "MODALITY_CREATE"
	AuditActionTrainingRegister = "TRAINING_REGISTER"
	AuditActionTrainingUpdate   = "TRAINING_UPDATE"
	AuditActionTrainingApprove  = "TRAINING_APPROVE"
	AuditActionTrainingReject   = "TRAINING_REJECT"
	AuditActionTrainingDelete   = "TRAINING_DELETE"
	AuditActionEvidenceUpload   = "EVIDENCE_UPLOAD"
	AuditActionEvidenceDelete   = "EVIDENCE_DELETE"
)

// Audited resource names.
const (
	AuditResourceEnrollment = "enrollment"
	AuditResourceModality   = "modality"
	AuditResourceTraining   = "training_session"
	AuditResourceEvidence   = "training_evidence"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
