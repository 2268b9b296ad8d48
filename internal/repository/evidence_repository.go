package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/database"
)

const evidenceColumns = `id, training_id, original_filename, file_path, size_bytes, mime_type, kind, description, uploaded_by, uploaded_at`

// EvidenceRepository persists evidence metadata. File bytes live in the object store.
type EvidenceRepository struct {
	db *sqlx.DB
}

// NewEvidenceRepository constructs the repository.
func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create inserts an evidence row.
func (r *EvidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	if evidence.ID == "" {
		evidence.ID = uuid.NewString()
	}
	if evidence.UploadedAt.IsZero() {
		evidence.UploadedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	query := `INSERT INTO training_evidence (` + evidenceColumns + `)
        VALUES (:id, :training_id, :original_filename, :file_path, :size_bytes, :mime_type, :kind, :description, :uploaded_by, :uploaded_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, evidence); err != nil {
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

// GetByID loads one evidence row.
func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*models.Evidence, error) {
	var evidence models.Evidence
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &evidence, `SELECT `+evidenceColumns+` FROM training_evidence WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &evidence, nil
}

// ListByTraining returns the evidence of a session in upload order.
func (r *EvidenceRepository) ListByTraining(ctx context.Context, trainingID string) ([]models.Evidence, error) {
	var items []models.Evidence
	query := `SELECT ` + evidenceColumns + ` FROM training_evidence WHERE training_id = $1 ORDER BY uploaded_at, id`
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &items, query, trainingID); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return items, nil
}

// Delete removes one evidence row.
func (r *EvidenceRepository) Delete(ctx context.Context, id string) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM training_evidence WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check evidence delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
