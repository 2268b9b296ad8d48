package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/database"
)

const enrollmentColumns = `e.id, e.competitor_id, e.modality_id, e.evaluator_id, e.enrollment_date, e.status, e.notes, e.created_at, e.updated_at`

const enrollmentDetailFrom = `FROM enrollments e
JOIN users cu ON cu.id = e.competitor_id
JOIN modalities m ON m.id = e.modality_id
LEFT JOIN users ev ON ev.id = e.evaluator_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CompetitorID != "" {
		args = append(args, filter.CompetitorID)
		conditions = append(conditions, fmt.Sprintf("e.competitor_id = $%d", len(args)))
	}
	if filter.ModalityID != "" {
		args = append(args, filter.ModalityID)
		conditions = append(conditions, fmt.Sprintf("e.modality_id = $%d", len(args)))
	}
	if filter.EvaluatorID != "" {
		args = append(args, filter.EvaluatorID)
		conditions = append(conditions, fmt.Sprintf("e.evaluator_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrollment_date": "e.enrollment_date",
		"competitor_name": "cu.full_name",
		"modality_name":   "m.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrollment_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	offset := (p.Page - 1) * p.PageSize

	query := fmt.Sprintf(`SELECT %s, cu.full_name AS competitor_name, m.code AS modality_code, m.name AS modality_name, ev.full_name AS evaluator_name
        %s%s ORDER BY %s %s, e.id LIMIT %d OFFSET %d`, enrollmentColumns, enrollmentDetailFrom, clause, orderBy, order, p.PageSize, offset)

	conn := database.Conn(ctx, r.db)
	var enrollments []models.EnrollmentDetail
	if err := sqlx.SelectContext(ctx, conn, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, conn, &total, "SELECT COUNT(*) "+enrollmentDetailFrom+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with display names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := `SELECT ` + enrollmentColumns + `, cu.full_name AS competitor_name, m.code AS modality_code, m.name AS modality_name, ev.full_name AS evaluator_name
        ` + enrollmentDetailFrom + ` WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetActiveEnrollment returns the active enrollment for the pair or nil when none exists.
func (r *EnrollmentRepository) GetActiveEnrollment(ctx context.Context, competitorID, modalityID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments e WHERE e.competitor_id = $1 AND e.modality_id = $2 AND e.status = $3 LIMIT 1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &enrollment, query, competitorID, modalityID, models.EnrollmentStatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active enrollment: %w", err)
	}
	return &enrollment, nil
}

// IsEvaluatorAssigned reports whether the evaluator is assigned to any active enrollment in the modality.
func (r *EnrollmentRepository) IsEvaluatorAssigned(ctx context.Context, evaluatorID, modalityID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE evaluator_id = $1 AND modality_id = $2 AND status = $3)`
	var assigned bool
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &assigned, query, evaluatorID, modalityID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check evaluator assignment: %w", err)
	}
	return assigned, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	if enrollment.UpdatedAt.IsZero() {
		enrollment.UpdatedAt = enrollment.CreatedAt
	}
	if enrollment.EnrollmentDate.IsZero() {
		enrollment.EnrollmentDate = models.TruncateToDate(now)
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, competitor_id, modality_id, evaluator_id, enrollment_date, status, notes, created_at, updated_at)
        VALUES (:id, :competitor_id, :modality_id, :evaluator_id, :enrollment_date, :status, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update writes evaluator, status and notes.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET evaluator_id = $2, status = $3, notes = $4, updated_at = $5 WHERE id = $1`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, enrollment.ID, enrollment.EvaluatorID, enrollment.Status, enrollment.Notes, enrollment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check enrollment update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountTrainings returns how many training sessions reference the enrollment.
func (r *EnrollmentRepository) CountTrainings(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM training_sessions WHERE enrollment_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &count, query, id); err != nil {
		return 0, fmt.Errorf("count enrollment trainings: %w", err)
	}
	return count, nil
}

// Delete removes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check enrollment delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
