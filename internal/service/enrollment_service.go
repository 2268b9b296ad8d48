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
	"github.com/noah-isme/skill-training-api/pkg/database"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	GetActiveEnrollment(ctx context.Context, competitorID, modalityID string) (*models.Enrollment, error)
	IsEvaluatorAssigned(ctx context.Context, evaluatorID, modalityID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	CountTrainings(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type modalityReader interface {
	FindByID(ctx context.Context, id string) (*models.Modality, error)
}

// EnrollmentService manages the competitor to modality authorization edge.
type EnrollmentService struct {
	repo       enrollmentRepository
	users      userReader
	modalities modalityReader
	audit      auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, users userReader, modalities modalityReader, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, users: users, modalities: modalities, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// List returns enrollments visible to actor with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleCompetitor:
		filter.CompetitorID = actor.UserID
	case models.RoleEvaluator:
		filter.EvaluatorID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status filter")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment when actor may see it.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsPrivileged():
	case actor.Role == models.RoleCompetitor && detail.CompetitorID == actor.UserID:
	case actor.Role == models.RoleEvaluator && detail.HasEvaluator(actor.UserID):
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment not accessible")
	}
	return detail, nil
}

// Enroll creates an ACTIVE enrollment, optionally pre-assigning an evaluator.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.Actor, req dto.EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	competitor, err := s.loadUser(ctx, req.CompetitorID, "competitor")
	if err != nil {
		return nil, err
	}
	if competitor.Role != models.RoleCompetitor {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "user is not a competitor")
	}
	if !competitor.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "competitor inactive")
	}
	modality, err := s.modalities.FindByID(ctx, req.ModalityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "modality not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load modality")
	}
	if !modality.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "modality inactive")
	}
	if req.EvaluatorID != nil {
		if err := s.ensureEvaluator(ctx, *req.EvaluatorID); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.GetActiveEnrollment(ctx, req.CompetitorID, req.ModalityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if existing != nil {
		return nil, appErrors.WithDetails(appErrors.ErrAlreadyEnrolled, map[string]interface{}{"enrollment_id": existing.ID})
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	enrollment := &models.Enrollment{
		CompetitorID:   req.CompetitorID,
		ModalityID:     req.ModalityID,
		EvaluatorID:    req.EvaluatorID,
		EnrollmentDate: models.TruncateToDate(now),
		Status:         models.EnrollmentStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.EnrollmentDate != "" {
		date, err := models.ParseTrainingDate(req.EnrollmentDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment date")
		}
		enrollment.EnrollmentDate = date
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		enrollment.Notes = &notes
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("competitor enrolled", zap.String("enrollment_id", enrollment.ID), zap.String("competitor_id", enrollment.CompetitorID), zap.String("modality_id", enrollment.ModalityID))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEnrollmentCreate, models.AuditResourceEnrollment, enrollment.ID, nil, enrollment)
	return s.loadDetail(ctx, enrollment.ID)
}

// ValidateCompetitorCanTrain fails with CompetitorNotEnrolled unless an active enrollment exists.
func (s *EnrollmentService) ValidateCompetitorCanTrain(ctx context.Context, competitorID, modalityID string) error {
	enrollment, err := s.repo.GetActiveEnrollment(ctx, competitorID, modalityID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment == nil {
		return notEnrolledError(competitorID, modalityID)
	}
	return nil
}

// ValidateEvaluatorCanEvaluate succeeds when the evaluator is assigned to at least one active
// enrollment in the modality.
func (s *EnrollmentService) ValidateEvaluatorCanEvaluate(ctx context.Context, evaluatorID, modalityID string) error {
	assigned, err := s.repo.IsEvaluatorAssigned(ctx, evaluatorID, modalityID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check evaluator assignment")
	}
	if !assigned {
		return appErrors.Clone(appErrors.ErrEvaluatorNotAssigned, "evaluator is not assigned to this modality")
	}
	return nil
}

// AssignEvaluator sets or replaces the evaluator of an enrollment.
func (s *EnrollmentService) AssignEvaluator(ctx context.Context, actor models.Actor, id string, req dto.AssignEvaluatorRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluator payload")
	}
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEvaluator(ctx, req.EvaluatorID); err != nil {
		return nil, err
	}
	previous := enrollment.EvaluatorID
	enrollment.AssignEvaluator(req.EvaluatorID, s.now())
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, s.updateError(err)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEvaluatorAssign, models.AuditResourceEnrollment, id,
		map[string]interface{}{"evaluator_id": previous}, map[string]interface{}{"evaluator_id": req.EvaluatorID})
	return s.loadDetail(ctx, id)
}

// RemoveEvaluator clears the evaluator of an enrollment.
func (s *EnrollmentService) RemoveEvaluator(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := enrollment.EvaluatorID
	enrollment.RemoveEvaluator(s.now())
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, s.updateError(err)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEvaluatorRemove, models.AuditResourceEnrollment, id,
		map[string]interface{}{"evaluator_id": previous}, nil)
	return s.loadDetail(ctx, id)
}

// UpdateStatus sets the enrollment status. Re-activation keeps the single active enrollment rule.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req dto.UpdateEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := enrollment.Status
	if req.Status == models.EnrollmentStatusActive && !enrollment.IsActive() {
		existing, err := s.repo.GetActiveEnrollment(ctx, enrollment.CompetitorID, enrollment.ModalityID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if existing != nil && existing.ID != enrollment.ID {
			return nil, appErrors.WithDetails(appErrors.ErrAlreadyEnrolled, map[string]interface{}{"enrollment_id": existing.ID})
		}
	}
	enrollment.SetStatus(req.Status, s.now())
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		enrollment.Notes = nil
		if notes != "" {
			enrollment.Notes = &notes
		}
	}
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, s.updateError(err)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEnrollmentStatus, models.AuditResourceEnrollment, id,
		map[string]interface{}{"status": previous}, map[string]interface{}{"status": req.Status})
	return s.loadDetail(ctx, id)
}

// Delete removes an enrollment that no training session references. Sessions are history and are
// never removed through their enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, actor models.Actor, id string) error {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.repo.CountTrainings(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count trainings")
	}
	if count > 0 {
		return appErrors.WithDetails(appErrors.ErrEnrollmentHasTrainings, map[string]interface{}{"training_sessions": count})
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case database.IsForeignKeyViolation(err):
			return appErrors.Clone(appErrors.ErrEnrollmentHasTrainings, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEnrollmentDelete, models.AuditResourceEnrollment, id, enrollment, nil)
	return nil
}

func (s *EnrollmentService) ensureEvaluator(ctx context.Context, evaluatorID string) error {
	evaluator, err := s.loadUser(ctx, evaluatorID, "evaluator")
	if err != nil {
		return err
	}
	if !evaluator.Role.CanEvaluate() || !evaluator.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "user cannot act as evaluator")
	}
	return nil
}

func (s *EnrollmentService) loadUser(ctx context.Context, id, label string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, label+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+label)
	}
	return user, nil
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) loadDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func (s *EnrollmentService) updateError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	case database.IsUniqueViolation(err):
		return appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
}
