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

type modalityRepository interface {
	List(ctx context.Context, filter models.ModalityFilter) ([]models.Modality, int, error)
	FindByID(ctx context.Context, id string) (*models.Modality, error)
	Create(ctx context.Context, modality *models.Modality) error
}

// ModalityService manages the modality catalogue.
type ModalityService struct {
	repo      modalityRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewModalityService constructs ModalityService.
func NewModalityService(repo modalityRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ModalityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModalityService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns modalities with pagination metadata.
func (s *ModalityService) List(ctx context.Context, filter models.ModalityFilter) ([]models.Modality, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modalities")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a modality by id.
func (s *ModalityService) Get(ctx context.Context, id string) (*models.Modality, error) {
	modality, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "modality not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load modality")
	}
	return modality, nil
}

// Create registers an active modality. Codes are unique and stored upper case.
func (s *ModalityService) Create(ctx context.Context, actor models.Actor, req dto.CreateModalityRequest) (*models.Modality, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid modality payload")
	}
	modality := &models.Modality{
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:      strings.TrimSpace(req.Name),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		modality.Description = &desc
	}
	if modality.Code == "" || modality.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code and name are required")
	}
	if err := s.repo.Create(ctx, modality); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "modality code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create modality")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionModalityCreate, models.AuditResourceModality, modality.ID, nil, modality)
	return modality, nil
}
