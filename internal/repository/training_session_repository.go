package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/database"
)

const trainingColumns = `t.id, t.competitor_id, t.modality_id, t.enrollment_id, t.training_date, t.hours, t.training_type,
        t.location, t.description, t.status, t.validated_by, t.validated_at, t.rejection_reason, t.created_at, t.updated_at`

// TrainingSessionRepository persists training sessions and answers the hour aggregations the
// registration rules depend on.
type TrainingSessionRepository struct {
	db *sqlx.DB
}

// NewTrainingSessionRepository constructs the repository.
func NewTrainingSessionRepository(db *sqlx.DB) *TrainingSessionRepository {
	return &TrainingSessionRepository{db: db}
}

// GetByID loads a session without its evidence.
func (r *TrainingSessionRepository) GetByID(ctx context.Context, id string) (*models.TrainingSession, error) {
	query := `SELECT ` + trainingColumns + ` FROM training_sessions t WHERE t.id = $1`
	var session models.TrainingSession
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions matching filter with the total count.
func (r *TrainingSessionRepository) List(ctx context.Context, filter models.TrainingSessionFilter) ([]models.TrainingSession, int, error) {
	from := "FROM training_sessions t"
	var conditions []string
	var args []interface{}

	if filter.EvaluatorID != "" {
		from += " JOIN enrollments e ON e.id = t.enrollment_id"
		args = append(args, filter.EvaluatorID)
		conditions = append(conditions, fmt.Sprintf("e.evaluator_id = $%d", len(args)))
	}
	if filter.CompetitorID != "" {
		args = append(args, filter.CompetitorID)
		conditions = append(conditions, fmt.Sprintf("t.competitor_id = $%d", len(args)))
	}
	if filter.ModalityID != "" {
		args = append(args, filter.ModalityID)
		conditions = append(conditions, fmt.Sprintf("t.modality_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)))
	}
	if filter.TrainingType != "" {
		args = append(args, filter.TrainingType)
		conditions = append(conditions, fmt.Sprintf("t.training_type = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("t.training_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("t.training_date <= $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"training_date": "t.training_date",
		"hours":         "t.hours",
		"status":        "t.status",
		"created_at":    "t.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "t.training_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	p := models.NewPagination(filter.Page, filter.PageSize, 0)
	offset := (p.Page - 1) * p.PageSize

	query := fmt.Sprintf("SELECT %s %s%s ORDER BY %s %s, t.created_at DESC LIMIT %d OFFSET %d", trainingColumns, from, clause, orderBy, order, p.PageSize, offset)

	conn := database.Conn(ctx, r.db)
	var sessions []models.TrainingSession
	if err := sqlx.SelectContext(ctx, conn, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list training sessions: %w", err)
	}
	var total int
	if err := sqlx.GetContext(ctx, conn, &total, "SELECT COUNT(*) "+from+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count training sessions: %w", err)
	}
	return sessions, total, nil
}

// Create inserts a session.
func (r *TrainingSessionRepository) Create(ctx context.Context, session *models.TrainingSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	const query = `INSERT INTO training_sessions (id, competitor_id, modality_id, enrollment_id, training_date, hours, training_type,
        location, description, status, validated_by, validated_at, rejection_reason, created_at, updated_at)
        VALUES (:id, :competitor_id, :modality_id, :enrollment_id, :training_date, :hours, :training_type,
        :location, :description, :status, :validated_by, :validated_at, :rejection_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, session); err != nil {
		return fmt.Errorf("create training session: %w", err)
	}
	return nil
}

// Update writes every mutable column when the row still carries expectedUpdatedAt. A stale or
// missing row yields sql.ErrNoRows.
func (r *TrainingSessionRepository) Update(ctx context.Context, session *models.TrainingSession, expectedUpdatedAt time.Time) error {
	const query = `UPDATE training_sessions SET training_date = $3, hours = $4, training_type = $5, location = $6, description = $7,
        status = $8, validated_by = $9, validated_at = $10, rejection_reason = $11, updated_at = $12
        WHERE id = $1 AND updated_at = $2`
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query,
		session.ID, expectedUpdatedAt,
		session.TrainingDate, session.Hours, session.TrainingType, session.Location, session.Description,
		session.Status, session.ValidatedBy, session.ValidatedAt, session.RejectionReason, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update training session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check training session update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a session; its evidence rows cascade.
func (r *TrainingSessionRepository) Delete(ctx context.Context, id string) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM training_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete training session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check training session delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LockCompetitorDay serialises registrations for one competitor and calendar date until the
// surrounding transaction ends.
func (r *TrainingSessionRepository) LockCompetitorDay(ctx context.Context, competitorID string, date time.Time) error {
	return database.AdvisoryXactLock(ctx, "training-day:"+competitorID+":"+date.Format(models.TrainingDateLayout))
}

// GetDailyHours sums the non-rejected hours of a competitor on date, optionally excluding one session.
func (r *TrainingSessionRepository) GetDailyHours(ctx context.Context, competitorID string, date time.Time, excludeSessionID string) (float64, error) {
	query := `SELECT COALESCE(SUM(hours), 0) FROM training_sessions WHERE competitor_id = $1 AND training_date = $2 AND status <> $3`
	args := []interface{}{competitorID, models.TruncateToDate(date), models.TrainingStatusRejected}
	if excludeSessionID != "" {
		args = append(args, excludeSessionID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	var total float64
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum daily training hours: %w", err)
	}
	return total, nil
}

// GetTotalHours sums hours of a competitor under filter. Rejected sessions never count.
func (r *TrainingSessionRepository) GetTotalHours(ctx context.Context, filter models.HoursFilter) (float64, error) {
	clause, args := hoursFilterClause(filter)
	var total float64
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &total, "SELECT COALESCE(SUM(t.hours), 0) FROM training_sessions t WHERE "+clause, args...); err != nil {
		return 0, fmt.Errorf("sum training hours: %w", err)
	}
	return total, nil
}

// HoursByType groups a competitor's hours by training type.
func (r *TrainingSessionRepository) HoursByType(ctx context.Context, filter models.HoursFilter) ([]models.HoursByTypeSummary, error) {
	clause, args := hoursFilterClause(filter)
	query := `SELECT t.training_type, COALESCE(SUM(t.hours), 0) AS total_hours, COUNT(*) AS sessions
        FROM training_sessions t WHERE ` + clause + ` GROUP BY t.training_type ORDER BY t.training_type`
	var summaries []models.HoursByTypeSummary
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("hours by type: %w", err)
	}
	return summaries, nil
}

// HoursByDate groups a competitor's hours per calendar date.
func (r *TrainingSessionRepository) HoursByDate(ctx context.Context, filter models.HoursFilter) ([]models.HoursByDateSummary, error) {
	clause, args := hoursFilterClause(filter)
	query := `SELECT t.training_date, COALESCE(SUM(t.hours), 0) AS total_hours, COUNT(*) AS sessions
        FROM training_sessions t WHERE ` + clause + ` GROUP BY t.training_date ORDER BY t.training_date`
	var summaries []models.HoursByDateSummary
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("hours by date: %w", err)
	}
	return summaries, nil
}

// HoursByModality groups a competitor's hours per modality.
func (r *TrainingSessionRepository) HoursByModality(ctx context.Context, filter models.HoursFilter) ([]models.HoursByModalitySummary, error) {
	clause, args := hoursFilterClause(filter)
	query := `SELECT t.modality_id, m.code AS modality_code, m.name AS modality_name, COALESCE(SUM(t.hours), 0) AS total_hours, COUNT(*) AS sessions
        FROM training_sessions t JOIN modalities m ON m.id = t.modality_id
        WHERE ` + clause + ` GROUP BY t.modality_id, m.code, m.name ORDER BY m.name`
	var summaries []models.HoursByModalitySummary
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("hours by modality: %w", err)
	}
	return summaries, nil
}

func hoursFilterClause(filter models.HoursFilter) (string, []interface{}) {
	args := []interface{}{filter.CompetitorID}
	conditions := []string{"t.competitor_id = $1"}
	if filter.ApprovedOnly {
		args = append(args, models.TrainingStatusApproved)
		conditions = append(conditions, fmt.Sprintf("t.status = $%d", len(args)))
	} else {
		args = append(args, models.TrainingStatusRejected)
		conditions = append(conditions, fmt.Sprintf("t.status <> $%d", len(args)))
	}
	if filter.ModalityID != "" {
		args = append(args, filter.ModalityID)
		conditions = append(conditions, fmt.Sprintf("t.modality_id = $%d", len(args)))
	}
	if filter.TrainingType != "" {
		args = append(args, filter.TrainingType)
		conditions = append(conditions, fmt.Sprintf("t.training_type = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("t.training_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("t.training_date <= $%d", len(args)))
	}
	return strings.Join(conditions, " AND "), args
}
