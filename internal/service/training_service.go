package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/models"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

type trainingSessionRepository interface {
	GetByID(ctx context.Context, id string) (*models.TrainingSession, error)
	List(ctx context.Context, filter models.TrainingSessionFilter) ([]models.TrainingSession, int, error)
	Create(ctx context.Context, session *models.TrainingSession) error
	Update(ctx context.Context, session *models.TrainingSession, expectedUpdatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	LockCompetitorDay(ctx context.Context, competitorID string, date time.Time) error
}

type evidenceLister interface {
	ListByTraining(ctx context.Context, trainingID string) ([]models.Evidence, error)
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type trainingRules interface {
	ValidateCanRegisterTraining(ctx context.Context, competitorID, modalityID string, date time.Time, hours models.TrainingHours, excludeSessionID string) (string, error)
	ValidateTrainingDate(date time.Time) error
	ValidateDailyCapacity(ctx context.Context, competitorID string, date time.Time, hours models.TrainingHours, excludeSessionID string) error
	ValidateEvaluatorCanValidate(ctx context.Context, evaluatorID, competitorID, modalityID string) error
}

type analyticsInvalidator interface {
	InvalidateCompetitor(ctx context.Context, competitorID string)
}

type fileCleanupScheduler interface {
	Schedule(paths ...string)
}

// TrainingServiceDeps groups the collaborators of TrainingService.
type TrainingServiceDeps struct {
	Sessions    trainingSessionRepository
	Enrollments enrollmentFinder
	Evidence    evidenceLister
	Tx          transactor
	Rules       trainingRules
	Analytics   analyticsInvalidator
	Cleaner     fileCleanupScheduler
	Audit       auditRecorder
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// TrainingService implements the training session use cases.
type TrainingService struct {
	sessions    trainingSessionRepository
	enrollments enrollmentFinder
	evidence    evidenceLister
	tx          transactor
	rules       trainingRules
	analytics   analyticsInvalidator
	cleaner     fileCleanupScheduler
	audit       auditRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewTrainingService constructs TrainingService.
func NewTrainingService(deps TrainingServiceDeps) *TrainingService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TrainingService{
		sessions:    deps.Sessions,
		enrollments: deps.Enrollments,
		evidence:    deps.Evidence,
		tx:          deps.Tx,
		rules:       deps.Rules,
		analytics:   deps.Analytics,
		cleaner:     deps.Cleaner,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		validator:   deps.Validator,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// Register logs a new PENDING session. The membership, date and ceiling checks and the insert run
// in one transaction holding the competitor-day lock, so concurrent registrations for the same day
// queue behind each other.
func (s *TrainingService) Register(ctx context.Context, actor models.Actor, req dto.RegisterTrainingRequest) (*models.TrainingSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}
	competitorID, err := registrant(actor, req.CompetitorID)
	if err != nil {
		return nil, err
	}
	date, err := models.ParseTrainingDate(req.TrainingDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training date")
	}
	hours, err := models.NewTrainingHours(req.Hours)
	if err != nil {
		return nil, err
	}

	var session *models.TrainingSession
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.LockCompetitorDay(ctx, competitorID, date); err != nil {
			return err
		}
		enrollmentID, err := s.rules.ValidateCanRegisterTraining(ctx, competitorID, req.ModalityID, date, hours, "")
		if err != nil {
			return err
		}
		session = models.NewTrainingSession(models.NewTrainingSessionParams{
			CompetitorID: competitorID,
			ModalityID:   req.ModalityID,
			EnrollmentID: enrollmentID,
			TrainingDate: date,
			Hours:        hours,
			TrainingType: req.TrainingType,
			Location:     req.Location,
			Description:  req.Description,
		}, s.now())
		return s.sessions.Create(ctx, session)
	})
	if err != nil {
		err = translateWriteError(err, "failed to register training")
		s.recordRuleViolation(err)
		return nil, err
	}

	s.metrics.RecordTrainingRegistration()
	s.logger.Info("training registered",
		zap.String("training_id", session.ID),
		zap.String("competitor_id", competitorID),
		zap.String("date", session.TrainingDate.Format(models.TrainingDateLayout)),
		zap.Float64("hours", session.Hours.Hours()),
	)
	s.afterMutation(ctx, competitorID)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionTrainingRegister, models.AuditResourceTraining, session.ID, nil, session)
	return session, nil
}

// Get returns a session with its evidence when actor may see it.
func (s *TrainingService) Get(ctx context.Context, actor models.Actor, id string) (*models.TrainingSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	visible, err := canViewSession(ctx, s.enrollments, actor, session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check training visibility")
	}
	if !visible {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "training session not accessible")
	}
	evidence, err := s.evidence.ListByTraining(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	session.Evidence = evidence
	return session, nil
}

// List returns the sessions actor may see.
func (s *TrainingService) List(ctx context.Context, actor models.Actor, filter models.TrainingSessionFilter) ([]models.TrainingSession, *models.Pagination, error) {
	switch {
	case actor.IsPrivileged():
	case actor.Role == models.RoleCompetitor:
		filter.CompetitorID = actor.UserID
	case actor.Role == models.RoleEvaluator:
		filter.EvaluatorID = actor.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot list training sessions")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid training status filter")
	}
	if filter.TrainingType != "" && !filter.TrainingType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid training type filter")
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_from must not be after date_to")
	}
	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list training sessions")
	}
	return sessions, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Update edits a session and sends it back to review. Owners edit while PENDING, privileged roles
// at any status. A changed date or hours, or a previously rejected session, re-checks the ceiling.
func (s *TrainingService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateTrainingRequest) (*models.TrainingSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training payload")
	}
	changes, err := toSessionChanges(req)
	if err != nil {
		return nil, err
	}

	var before, session *models.TrainingSession
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeOwnerChange(actor, current); err != nil {
			return err
		}
		snapshot := *current
		before = &snapshot
		expected := current.UpdatedAt

		current.Update(changes, s.now())
		dateChanged := !current.TrainingDate.Equal(before.TrainingDate)
		if dateChanged || !current.Hours.Equal(before.Hours) || before.Status == models.TrainingStatusRejected {
			if dateChanged {
				if err := s.rules.ValidateTrainingDate(current.TrainingDate); err != nil {
					return err
				}
			}
			if err := s.sessions.LockCompetitorDay(ctx, current.CompetitorID, current.TrainingDate); err != nil {
				return err
			}
			if err := s.rules.ValidateDailyCapacity(ctx, current.CompetitorID, current.TrainingDate, current.Hours, current.ID); err != nil {
				return err
			}
		}
		if err := s.sessions.Update(ctx, current, expected); err != nil {
			return concurrentWriteError(err)
		}
		session = current
		return nil
	})
	if err != nil {
		err = translateWriteError(err, "failed to update training")
		s.recordRuleViolation(err)
		return nil, err
	}

	s.afterMutation(ctx, session.CompetitorID)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionTrainingUpdate, models.AuditResourceTraining, id, before, session)
	return session, nil
}

// Approve marks a session APPROVED. Super admins bypass the evaluator assignment check.
func (s *TrainingService) Approve(ctx context.Context, actor models.Actor, id string) (*models.TrainingSession, error) {
	return s.decide(ctx, actor, id, models.TrainingStatusApproved, "")
}

// Reject marks a session REJECTED with a mandatory reason.
func (s *TrainingService) Reject(ctx context.Context, actor models.Actor, id string, req dto.RejectTrainingRequest) (*models.TrainingSession, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
	}
	return s.decide(ctx, actor, id, models.TrainingStatusRejected, req.Reason)
}

// Delete removes a session. Owners delete only PENDING sessions; privileged roles delete any.
// Evidence rows cascade with the session and their files are removed after commit.
func (s *TrainingService) Delete(ctx context.Context, actor models.Actor, id string) error {
	var session *models.TrainingSession
	var files []string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeOwnerChange(actor, current); err != nil {
			return err
		}
		evidence, err := s.evidence.ListByTraining(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range evidence {
			files = append(files, item.FilePath)
		}
		if err := s.sessions.Delete(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "training session not found")
			}
			return err
		}
		session = current
		return nil
	})
	if err != nil {
		return translateWriteError(err, "failed to delete training")
	}

	if s.cleaner != nil && len(files) > 0 {
		s.cleaner.Schedule(files...)
	}
	s.afterMutation(ctx, session.CompetitorID)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionTrainingDelete, models.AuditResourceTraining, id, session, nil)
	return nil
}

func (s *TrainingService) decide(ctx context.Context, actor models.Actor, id string, status models.TrainingStatus, reason string) (*models.TrainingSession, error) {
	if !actor.IsSuperAdmin() && !actor.Role.CanEvaluate() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot validate training sessions")
	}

	var previous models.TrainingStatus
	var session *models.TrainingSession
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if !actor.IsSuperAdmin() {
			if err := s.rules.ValidateEvaluatorCanValidate(ctx, actor.UserID, current.CompetitorID, current.ModalityID); err != nil {
				return err
			}
		}
		previous = current.Status
		expected := current.UpdatedAt

		if status == models.TrainingStatusApproved {
			// Rejected hours were released from the day; taking them back must fit.
			if previous == models.TrainingStatusRejected {
				if err := s.sessions.LockCompetitorDay(ctx, current.CompetitorID, current.TrainingDate); err != nil {
					return err
				}
				if err := s.rules.ValidateDailyCapacity(ctx, current.CompetitorID, current.TrainingDate, current.Hours, current.ID); err != nil {
					return err
				}
			}
			current.Approve(actor.UserID, s.now())
		} else {
			current.Reject(actor.UserID, reason, s.now())
		}

		if err := s.sessions.Update(ctx, current, expected); err != nil {
			return concurrentWriteError(err)
		}
		session = current
		return nil
	})
	if err != nil {
		return nil, translateWriteError(err, "failed to validate training")
	}

	s.metrics.RecordTrainingValidation(status)
	s.logger.Info("training validated",
		zap.String("training_id", id),
		zap.String("status", string(status)),
		zap.String("validated_by", actor.UserID),
	)
	s.afterMutation(ctx, session.CompetitorID)
	action := models.AuditActionTrainingApprove
	if status == models.TrainingStatusRejected {
		action = models.AuditActionTrainingReject
	}
	recordAudit(ctx, s.audit, s.logger, actor, action, models.AuditResourceTraining, id,
		map[string]interface{}{"status": previous},
		map[string]interface{}{"status": status, "rejection_reason": session.RejectionReason})
	return session, nil
}

func (s *TrainingService) load(ctx context.Context, id string) (*models.TrainingSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training session")
	}
	return session, nil
}

func (s *TrainingService) afterMutation(ctx context.Context, competitorID string) {
	if s.analytics != nil {
		s.analytics.InvalidateCompetitor(ctx, competitorID)
	}
}

func (s *TrainingService) recordRuleViolation(err error) {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return
	}
	switch appErr.Code {
	case appErrors.ErrCompetitorNotEnrolled.Code, appErrors.ErrInvalidTrainingDate.Code,
		appErrors.ErrMaxDailyHoursExceeded.Code, appErrors.ErrRegistrationConflict.Code:
		s.metrics.RecordTrainingRuleViolation(appErr.Code)
	}
}

// registrant resolves whose session is being registered.
func registrant(actor models.Actor, requested string) (string, error) {
	switch {
	case actor.IsPrivileged():
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "competitor_id is required")
		}
		return requested, nil
	case actor.Role == models.RoleCompetitor:
		if requested != "" && requested != actor.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "competitors register training for themselves only")
		}
		return actor.UserID, nil
	}
	return "", appErrors.Clone(appErrors.ErrForbidden, "role cannot register training")
}

// authorizeOwnerChange applies the edit and deletion policy.
func authorizeOwnerChange(actor models.Actor, session *models.TrainingSession) error {
	if actor.IsPrivileged() {
		return nil
	}
	if actor.Role != models.RoleCompetitor || session.CompetitorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "training session not accessible")
	}
	if !session.IsPending() {
		return appErrors.WithDetails(appErrors.ErrTrainingAlreadyValidated, map[string]interface{}{"status": session.Status})
	}
	return nil
}

func toSessionChanges(req dto.UpdateTrainingRequest) (models.TrainingSessionChanges, error) {
	var changes models.TrainingSessionChanges
	if req.TrainingDate != nil {
		date, err := models.ParseTrainingDate(*req.TrainingDate)
		if err != nil {
			return changes, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid training date")
		}
		changes.TrainingDate = &date
	}
	if req.Hours != nil {
		hours, err := models.NewTrainingHours(*req.Hours)
		if err != nil {
			return changes, err
		}
		changes.Hours = &hours
	}
	changes.TrainingType = req.TrainingType
	changes.Location = req.Location
	changes.Description = req.Description
	return changes, nil
}

func concurrentWriteError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConcurrentModification, "")
	}
	return err
}
