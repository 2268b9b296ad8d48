package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/database"
)

var trainingRowColumns = []string{"id", "competitor_id", "modality_id", "enrollment_id", "training_date", "hours", "training_type",
	"location", "description", "status", "validated_by", "validated_at", "rejection_reason", "created_at", "updated_at"}

func TestTrainingSessionRepositoryGetByIDScansNumericHours(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingSessionRepository(db)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM training_sessions t WHERE t.id = $1")).
		WithArgs("t-1").
		WillReturnRows(sqlmock.NewRows(trainingRowColumns).
			AddRow("t-1", "c-1", "m-1", "e-1", date, []byte("5.00"), "SENAI", nil, nil, "PENDING", nil, nil, nil, now, now))

	session, err := repo.GetByID(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, session.Hours.Hours())
	assert.Equal(t, models.TrainingTypeSENAI, session.TrainingType)
	assert.True(t, session.IsPending())
}

func TestTrainingSessionRepositoryGetDailyHours(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingSessionRepository(db)
	date := time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(hours), 0) FROM training_sessions WHERE competitor_id = $1 AND training_date = $2 AND status <> $3")).
		WithArgs("c-1", models.TruncateToDate(date), models.TrainingStatusRejected).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow([]byte("5.00")))

	total, err := repo.GetDailyHours(context.Background(), "c-1", date, "")
	require.NoError(t, err)
	assert.Equal(t, 5.0, total)

	mock.ExpectQuery(regexp.QuoteMeta("AND status <> $3 AND id <> $4")).
		WithArgs("c-1", models.TruncateToDate(date), models.TrainingStatusRejected, "t-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow([]byte("0")))

	total, err = repo.GetDailyHours(context.Background(), "c-1", date, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionRepositoryGetTotalHoursApprovedOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.competitor_id = $1 AND t.status = $2 AND t.modality_id = $3 AND t.training_type = $4")).
		WithArgs("c-1", models.TrainingStatusApproved, "m-1", models.TrainingTypeExternal).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow([]byte("42.50")))

	total, err := repo.GetTotalHours(context.Background(), models.HoursFilter{
		CompetitorID: "c-1", ModalityID: "m-1", TrainingType: models.TrainingTypeExternal, ApprovedOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 42.5, total)
}

func TestTrainingSessionRepositoryUpdateDetectsStaleRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingSessionRepository(db)

	hours, _ := models.NewTrainingHours(4)
	session := &models.TrainingSession{ID: "t-1", Hours: hours, TrainingType: models.TrainingTypeSENAI, Status: models.TrainingStatusPending, UpdatedAt: time.Now()}
	expected := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND updated_at = $2")).
		WithArgs("t-1", expected, sqlmock.AnyArg(), 4.0, models.TrainingTypeSENAI, nil, nil, models.TrainingStatusPending, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), session, expected)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionRepositoryCreateAndLockInsideTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingSessionRepository(db)
	tx := database.NewLockingTransactor(db)
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(database.LockID("training-day:c-1:2024-01-15")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO training_sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	hours, _ := models.NewTrainingHours(5)
	session := models.NewTrainingSession(models.NewTrainingSessionParams{
		CompetitorID: "c-1", ModalityID: "m-1", EnrollmentID: "e-1", TrainingDate: date, Hours: hours, TrainingType: models.TrainingTypeSENAI,
	}, time.Now())

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := repo.LockCompetitorDay(ctx, "c-1", date); err != nil {
			return err
		}
		return repo.Create(ctx, session)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionRepositoryListForEvaluator(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingSessionRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM training_sessions t JOIN enrollments e ON e.id = t.enrollment_id WHERE e.evaluator_id = \$1 AND t.status = \$2`).
		WithArgs("ev-1", models.TrainingStatusPending).
		WillReturnRows(sqlmock.NewRows(trainingRowColumns).
			AddRow("t-1", "c-1", "m-1", "e-1", now, 2.5, "COMPANY", "Plant", nil, "PENDING", nil, nil, nil, now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM training_sessions t JOIN enrollments e`).
		WithArgs("ev-1", models.TrainingStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sessions, total, err := repo.List(context.Background(), models.TrainingSessionFilter{EvaluatorID: "ev-1", Status: models.TrainingStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2.5, sessions[0].Hours.Hours())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainingSessionRepositoryHoursByType(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTrainingSessionRepository(db)

	mock.ExpectQuery(`GROUP BY t.training_type`).
		WithArgs("c-1", models.TrainingStatusRejected).
		WillReturnRows(sqlmock.NewRows([]string{"training_type", "total_hours", "sessions"}).
			AddRow("SENAI", []byte("20.00"), 4).
			AddRow("EXTERNAL", []byte("3.50"), 1))

	summaries, err := repo.HoursByType(context.Background(), models.HoursFilter{CompetitorID: "c-1"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 20.0, summaries[0].TotalHours.Hours())
}
