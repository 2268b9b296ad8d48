//go:build integration

package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/internal/repository"
	"github.com/noah-isme/skill-training-api/internal/service"
	"github.com/noah-isme/skill-training-api/pkg/database"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

type seeded struct {
	competitorID string
	evaluatorID  string
	modalityID   string
	enrollmentID string
}

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("skill_training_test"),
		postgres.WithUsername("skill_training"),
		postgres.WithPassword("skill_training"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sqlx.Connect("postgres", connStr)
	require.NoError(t, err)
	db.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(ctx, db, nil))
	return db
}

func seed(t *testing.T, db *sqlx.DB) seeded {
	t.Helper()
	s := seeded{
		competitorID: uuid.NewString(),
		evaluatorID:  uuid.NewString(),
		modalityID:   uuid.NewString(),
		enrollmentID: uuid.NewString(),
	}
	ctx := context.Background()
	db.MustExecContext(ctx, `INSERT INTO users (id, email, full_name, role) VALUES ($1, 'c@example.org', 'Competitor', 'COMPETITOR'), ($2, 'e@example.org', 'Evaluator', 'EVALUATOR')`, s.competitorID, s.evaluatorID)
	db.MustExecContext(ctx, `INSERT INTO modalities (id, code, name) VALUES ($1, 'WELD', 'Welding')`, s.modalityID)
	db.MustExecContext(ctx, `INSERT INTO enrollments (id, competitor_id, modality_id, evaluator_id, enrollment_date, status) VALUES ($1, $2, $3, $4, '2024-01-01', 'ACTIVE')`,
		s.enrollmentID, s.competitorID, s.modalityID, s.evaluatorID)
	return s
}

func newTrainingService(db *sqlx.DB) *service.TrainingService {
	enrollments := repository.NewEnrollmentRepository(db)
	sessions := repository.NewTrainingSessionRepository(db)
	return service.NewTrainingService(service.TrainingServiceDeps{
		Sessions:    sessions,
		Enrollments: enrollments,
		Evidence:    repository.NewEvidenceRepository(db),
		Tx:          database.NewLockingTransactor(db),
		Rules:       service.NewTrainingValidationService(enrollments, sessions, time.UTC, nil),
		Audit:       repository.NewUserRepository(db),
		Metrics:     service.NewMetricsService(),
	})
}

func TestConcurrentRegistrationsNeverExceedDailyCeiling(t *testing.T) {
	db := startPostgres(t)
	s := seed(t, db)
	svc := newTrainingService(db)
	competitor := models.Actor{UserID: s.competitorID, Role: models.RoleCompetitor}
	req := dto.RegisterTrainingRequest{
		ModalityID:   s.modalityID,
		TrainingDate: "2024-03-10",
		Hours:        2,
		TrainingType: models.TrainingTypeSENAI,
	}

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), competitor, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case appErrors.IsCode(err, appErrors.ErrMaxDailyHoursExceeded.Code):
				refused++
			case appErrors.IsCode(err, appErrors.ErrRegistrationConflict.Code):
				conflicts++
			default:
				t.Errorf("unexpected registration error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, conflicts, "registrations for one day queue behind the day lock instead of failing")
	assert.Equal(t, 6, succeeded)
	assert.Equal(t, attempts-6, refused)

	var total float64
	require.NoError(t, db.Get(&total, `SELECT COALESCE(SUM(hours), 0) FROM training_sessions WHERE competitor_id = $1 AND training_date = '2024-03-10'`, s.competitorID))
	assert.Equal(t, 12.0, total)
}

func TestDailyHoursTriggerRejectsDirectOverflow(t *testing.T) {
	db := startPostgres(t)
	s := seed(t, db)
	ctx := context.Background()

	insert := `INSERT INTO training_sessions (id, competitor_id, modality_id, enrollment_id, training_date, hours, training_type)
        VALUES ($1, $2, $3, $4, '2024-03-11', $5, 'SENAI')`
	_, err := db.ExecContext(ctx, insert, uuid.NewString(), s.competitorID, s.modalityID, s.enrollmentID, 11.5)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, uuid.NewString(), s.competitorID, s.modalityID, s.enrollmentID, 1)
	require.Error(t, err, "the trigger is the last line of defence when the service is bypassed")
	assert.True(t, database.IsDailyHoursExceeded(err))

	_, err = db.ExecContext(ctx, insert, uuid.NewString(), s.competitorID, s.modalityID, s.enrollmentID, 0.25)
	require.Error(t, err)
	assert.True(t, database.IsCheckViolation(err), "the hours CHECK keeps its own SQLSTATE")
	_, err = db.ExecContext(ctx, insert, uuid.NewString(), s.competitorID, s.modalityID, s.enrollmentID, 0.5)
	assert.NoError(t, err)
}
