package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/models"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
	"github.com/noah-isme/skill-training-api/pkg/storage"
)

// sniffLen matches the detection window mimetype reads by default.
const sniffLen = 3072

type evidenceRepository interface {
	Create(ctx context.Context, evidence *models.Evidence) error
	GetByID(ctx context.Context, id string) (*models.Evidence, error)
	ListByTraining(ctx context.Context, trainingID string) ([]models.Evidence, error)
	Delete(ctx context.Context, id string) error
}

type sessionReader interface {
	GetByID(ctx context.Context, id string) (*models.TrainingSession, error)
}

type urlSigner interface {
	Generate(evidenceID, key string) (string, time.Time, error)
	Parse(token string) (evidenceID, key string, expiresAt time.Time, err error)
}

// EvidenceFile is an uploaded file stream with the metadata the client declared.
type EvidenceFile struct {
	Filename    string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// EvidenceContent is an evidence file opened for download.
type EvidenceContent struct {
	Evidence *models.Evidence
	Body     io.ReadCloser
}

// EvidenceServiceConfig tunes EvidenceService.
type EvidenceServiceConfig struct {
	MaxFileSizeBytes int64
	DownloadBaseURL  string
}

// EvidenceService attaches files to training sessions.
type EvidenceService struct {
	repo        evidenceRepository
	sessions    sessionReader
	enrollments enrollmentFinder
	store       storage.ObjectStore
	signer      urlSigner
	cleaner     fileCleanupScheduler
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	metrics     *MetricsService
	cfg         EvidenceServiceConfig
}

// NewEvidenceService constructs EvidenceService.
func NewEvidenceService(repo evidenceRepository, sessions sessionReader, enrollments enrollmentFinder, store storage.ObjectStore, signer urlSigner, cleaner fileCleanupScheduler, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, cfg EvidenceServiceConfig) *EvidenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 || cfg.MaxFileSizeBytes > models.MaxEvidenceSizeBytes {
		cfg.MaxFileSizeBytes = models.MaxEvidenceSizeBytes
	}
	cfg.DownloadBaseURL = strings.TrimRight(cfg.DownloadBaseURL, "/")
	return &EvidenceService{
		repo:        repo,
		sessions:    sessions,
		enrollments: enrollments,
		store:       store,
		signer:      signer,
		cleaner:     cleaner,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// WithMetrics enables upload instrumentation.
func (s *EvidenceService) WithMetrics(metrics *MetricsService) *EvidenceService {
	s.metrics = metrics
	return s
}

// Upload stores a file and attaches it to a session. The session owner or a privileged role may
// upload. The content type is sniffed from the bytes, not trusted from the client.
func (s *EvidenceService) Upload(ctx context.Context, actor models.Actor, trainingID string, req dto.UploadEvidenceRequest, file EvidenceFile) (*models.Evidence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evidence metadata")
	}
	session, err := s.loadSession(ctx, trainingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsPrivileged() && session.CompetitorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the session owner can attach evidence")
	}
	if file.Size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidEvidence, "evidence file too large"),
			map[string]interface{}{"size_bytes": file.Size, "max_size_bytes": s.cfg.MaxFileSizeBytes},
		)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Reader, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read evidence file")
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	contentType := detected.String()
	if detected.Is("application/octet-stream") && file.ContentType != "" {
		contentType = file.ContentType
	}

	evidence, err := models.NewEvidence(models.EvidenceMetadata{
		TrainingID:       trainingID,
		OriginalFilename: path.Base(strings.ReplaceAll(file.Filename, "\\", "/")),
		Kind:             req.Kind,
		Description:      req.Description,
		UploadedBy:       actor.UserID,
	}, file.Size, contentType)
	if err != nil {
		return nil, err
	}
	evidence.ID = uuid.NewString()

	key := fmt.Sprintf("trainings/%s/%s%s", trainingID, evidence.ID, detected.Extension())
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), file.Reader), file.Size)
	stored, err := s.store.Put(ctx, key, body, file.Size, evidence.MimeType)
	if err != nil {
		s.logger.Error("evidence store failed", zap.String("training_id", trainingID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrEvidenceStorageUnavailable.Code, appErrors.ErrEvidenceStorageUnavailable.Status, appErrors.ErrEvidenceStorageUnavailable.Message)
	}
	evidence.AttachStoragePath(stored)

	if err := s.repo.Create(ctx, evidence); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), stored); delErr != nil && !errors.Is(delErr, storage.ErrObjectNotFound) {
			s.logger.Warn("orphaned evidence object", zap.String("key", stored), zap.Error(delErr))
			s.schedule(stored)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save evidence")
	}

	s.logger.Info("evidence uploaded",
		zap.String("evidence_id", evidence.ID),
		zap.String("training_id", trainingID),
		zap.String("mime_type", evidence.MimeType),
		zap.Int64("size_bytes", evidence.SizeBytes),
	)
	s.metrics.RecordEvidenceUpload(evidence.MimeType, evidence.SizeBytes)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEvidenceUpload, models.AuditResourceEvidence, evidence.ID, nil, evidence)
	return evidence, nil
}

// List returns the evidence of a session visible to actor.
func (s *EvidenceService) List(ctx context.Context, actor models.Actor, trainingID string) ([]models.Evidence, error) {
	if _, err := s.visibleSession(ctx, actor, trainingID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByTraining(ctx, trainingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evidence")
	}
	return items, nil
}

// DownloadURL issues a signed link for an evidence file.
func (s *EvidenceService) DownloadURL(ctx context.Context, actor models.Actor, id string) (*dto.EvidenceDownloadURL, error) {
	evidence, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleSession(ctx, actor, evidence.TrainingID); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(evidence.ID, evidence.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign evidence url")
	}
	return &dto.EvidenceDownloadURL{
		URL:       fmt.Sprintf("%s/evidence/%s/download?token=%s", s.cfg.DownloadBaseURL, url.PathEscape(evidence.ID), url.QueryEscape(token)),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Download opens the file referenced by a signed token. The token is the credential.
func (s *EvidenceService) Download(ctx context.Context, id, token string) (*EvidenceContent, error) {
	evidenceID, key, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")
	}
	if id != "" && evidenceID != id {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match evidence")
	}
	evidence, err := s.load(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if evidence.FilePath != key {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token does not match evidence")
	}
	body, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrEvidenceStorageUnavailable.Code, appErrors.ErrEvidenceStorageUnavailable.Status, appErrors.ErrEvidenceStorageUnavailable.Message)
	}
	return &EvidenceContent{Evidence: evidence, Body: body}, nil
}

// Delete removes an evidence row. Owners delete while the session is PENDING, privileged roles
// always. The file is removed in the background.
func (s *EvidenceService) Delete(ctx context.Context, actor models.Actor, id string) error {
	evidence, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	session, err := s.loadSession(ctx, evidence.TrainingID)
	if err != nil {
		return err
	}
	if err := authorizeOwnerChange(actor, session); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "evidence not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evidence")
	}
	s.schedule(evidence.FilePath)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionEvidenceDelete, models.AuditResourceEvidence, id, evidence, nil)
	return nil
}

func (s *EvidenceService) schedule(key string) {
	if s.cleaner != nil && key != "" {
		s.cleaner.Schedule(key)
	}
}

func (s *EvidenceService) visibleSession(ctx context.Context, actor models.Actor, trainingID string) (*models.TrainingSession, error) {
	session, err := s.loadSession(ctx, trainingID)
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
	return session, nil
}

func (s *EvidenceService) loadSession(ctx context.Context, id string) (*models.TrainingSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training session")
	}
	return session, nil
}

func (s *EvidenceService) load(ctx context.Context, id string) (*models.Evidence, error) {
	evidence, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	return evidence, nil
}
