package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/internal/models"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

type activeEnrollmentReader interface {
	GetActiveEnrollment(ctx context.Context, competitorID, modalityID string) (*models.Enrollment, error)
}

type dailyHoursReader interface {
	GetDailyHours(ctx context.Context, competitorID string, date time.Time, excludeSessionID string) (float64, error)
}

// TrainingValidationService enforces the rules that span enrollments and sessions: membership,
// the daily hours ceiling and evaluator authorization. Callers must run registration checks and
// the following write inside one locked transaction.
type TrainingValidationService struct {
	enrollments activeEnrollmentReader
	sessions    dailyHoursReader
	location    *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewTrainingValidationService constructs the service. location decides what "today" means.
func NewTrainingValidationService(enrollments activeEnrollmentReader, sessions dailyHoursReader, location *time.Location, logger *zap.Logger) *TrainingValidationService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingValidationService{enrollments: enrollments, sessions: sessions, location: location, logger: logger, now: time.Now}
}

// ValidateCanRegisterTraining checks that the competitor may log hours on date and returns the
// enrollment that authorizes the session. excludeSessionID lets an edit re-validate in place.
func (s *TrainingValidationService) ValidateCanRegisterTraining(ctx context.Context, competitorID, modalityID string, date time.Time, hours models.TrainingHours, excludeSessionID string) (string, error) {
	enrollment, err := s.enrollments.GetActiveEnrollment(ctx, competitorID, modalityID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment == nil {
		s.logger.Info("registration refused: not enrolled", zap.String("competitor_id", competitorID), zap.String("modality_id", modalityID))
		return "", notEnrolledError(competitorID, modalityID)
	}

	day := models.TruncateToDate(date)
	if err := s.ValidateTrainingDate(day); err != nil {
		s.logger.Info("registration refused: future date", zap.String("competitor_id", competitorID), zap.String("date", day.Format(models.TrainingDateLayout)))
		return "", err
	}

	if err := s.ValidateDailyCapacity(ctx, competitorID, day, hours, excludeSessionID); err != nil {
		return "", err
	}
	return enrollment.ID, nil
}

// ValidateTrainingDate fails with InvalidTrainingDate when date is after today in the configured
// location.
func (s *TrainingValidationService) ValidateTrainingDate(date time.Time) error {
	day := models.TruncateToDate(date)
	if day.After(s.today()) {
		return appErrors.WithDetails(appErrors.ErrInvalidTrainingDate, map[string]interface{}{
			"date": day.Format(models.TrainingDateLayout),
		})
	}
	return nil
}

// ValidateDailyCapacity fails with MaxDailyHoursExceeded when adding hours to the competitor's
// non-rejected total for date would pass the ceiling. Reaching it exactly is allowed.
func (s *TrainingValidationService) ValidateDailyCapacity(ctx context.Context, competitorID string, date time.Time, hours models.TrainingHours, excludeSessionID string) error {
	day := models.TruncateToDate(date)
	current, err := s.sessions.GetDailyHours(ctx, competitorID, day, excludeSessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum daily training hours")
	}
	if toCents(current)+toCents(hours.Hours()) > toCents(models.MaxDailyHours) {
		s.logger.Info("registration refused: daily ceiling",
			zap.String("competitor_id", competitorID),
			zap.String("date", day.Format(models.TrainingDateLayout)),
			zap.Float64("current_hours", current),
			zap.Float64("requested_hours", hours.Hours()),
		)
		return appErrors.WithDetails(appErrors.ErrMaxDailyHoursExceeded, map[string]interface{}{
			"date":            day.Format(models.TrainingDateLayout),
			"current_hours":   current,
			"max_hours":       models.MaxDailyHours,
			"requested_hours": hours.Hours(),
		})
	}
	return nil
}

// ValidateEvaluatorCanValidate checks that evaluatorID is the assigned evaluator of the
// competitor's active enrollment in the modality. Super admins never reach this check.
func (s *TrainingValidationService) ValidateEvaluatorCanValidate(ctx context.Context, evaluatorID, competitorID, modalityID string) error {
	enrollment, err := s.enrollments.GetActiveEnrollment(ctx, competitorID, modalityID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment == nil {
		return notEnrolledError(competitorID, modalityID)
	}
	if !enrollment.HasEvaluator(evaluatorID) {
		s.logger.Warn("validation refused: evaluator not assigned",
			zap.String("evaluator_id", evaluatorID),
			zap.String("competitor_id", competitorID),
			zap.String("modality_id", modalityID),
		)
		return appErrors.Clone(appErrors.ErrEvaluatorNotAssigned, "")
	}
	return nil
}

func (s *TrainingValidationService) today() time.Time {
	return models.TruncateToDate(s.now().In(s.location))
}

func notEnrolledError(competitorID, modalityID string) error {
	return appErrors.WithDetails(appErrors.ErrCompetitorNotEnrolled, map[string]interface{}{
		"competitor_id": competitorID,
		"modality_id":   modalityID,
	})
}

func toCents(hours float64) int64 {
	return int64(math.Round(hours * 100))
}
