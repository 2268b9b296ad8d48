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
)

var enrollmentRowColumns = []string{"id", "competitor_id", "modality_id", "evaluator_id", "enrollment_date", "status", "notes", "created_at", "updated_at"}

func TestEnrollmentRepositoryGetActiveEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow("e-1", "c-1", "m-1", "ev-1", now, models.EnrollmentStatusActive, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e WHERE e.competitor_id = $1 AND e.modality_id = $2 AND e.status = $3 LIMIT 1")).
		WithArgs("c-1", "m-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollment, err := repo.GetActiveEnrollment(context.Background(), "c-1", "m-1")
	require.NoError(t, err)
	require.NotNil(t, enrollment)
	assert.True(t, enrollment.HasEvaluator("ev-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryGetActiveEnrollmentAbsent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("FROM enrollments e WHERE e.competitor_id").WillReturnError(sql.ErrNoRows)

	enrollment, err := repo.GetActiveEnrollment(context.Background(), "c-1", "m-1")
	require.NoError(t, err)
	assert.Nil(t, enrollment)
}

func TestEnrollmentRepositoryIsEvaluatorAssigned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM enrollments WHERE evaluator_id = $1 AND modality_id = $2 AND status = $3)")).
		WithArgs("ev-1", "m-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.IsEvaluatorAssigned(context.Background(), "ev-1", "m-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{CompetitorID: "c-1", ModalityID: "m-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.False(t, enrollment.EnrollmentDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET evaluator_id = $2")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Enrollment{ID: "e-x", Status: models.EnrollmentStatusActive})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryCountTrainingsAndDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM training_sessions WHERE enrollment_id = $1")).
		WithArgs("e-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE id = $1")).
		WithArgs("e-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	count, err := repo.CountTrainings(context.Background(), "e-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, repo.Delete(context.Background(), "e-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListFiltersByEvaluator(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	cols := append(append([]string{}, enrollmentRowColumns...), "competitor_name", "modality_code", "modality_name", "evaluator_name")
	mock.ExpectQuery(`WHERE e.evaluator_id = \$1 AND e.status = \$2 ORDER BY e.enrollment_date DESC, e.id LIMIT 20 OFFSET 0`).
		WithArgs("ev-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("e-1", "c-1", "m-1", "ev-1", now, "ACTIVE", nil, now, now, "Carla", "WELD", "Welding", "Eva"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments e`).
		WithArgs("ev-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.EnrollmentFilter{EvaluatorID: "ev-1", Status: models.EnrollmentStatusActive})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Welding", items[0].ModalityName)
	require.NoError(t, mock.ExpectationsWereMet())
}
