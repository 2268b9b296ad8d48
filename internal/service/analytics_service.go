package service

import (
	"context"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/cache"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	GetTotalHours(ctx context.Context, filter models.HoursFilter) (float64, error)
	HoursByType(ctx context.Context, filter models.HoursFilter) ([]models.HoursByTypeSummary, error)
	HoursByDate(ctx context.Context, filter models.HoursFilter) ([]models.HoursByDateSummary, error)
	HoursByModality(ctx context.Context, filter models.HoursFilter) ([]models.HoursByModalitySummary, error)
	GetDailyHours(ctx context.Context, competitorID string, date time.Time, excludeSessionID string) (float64, error)
}

// AnalyticsService provides read-optimised training hour reports with cache integration.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// TotalHours returns the competitor's total hours. Rejected sessions never count; ApprovedOnly
// restricts the total to approved sessions. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) TotalHours(ctx context.Context, actor models.Actor, filter models.HoursFilter) (*models.TotalHoursSummary, bool, error) {
	if err := authorizeHoursRead(actor, filter.CompetitorID); err != nil {
		return nil, false, err
	}
	key := hoursCacheKey("total", filter)
	var cached models.TotalHoursSummary
	if s.cache.Lookup(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	total, err := s.repo.GetTotalHours(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum training hours")
	}
	s.metrics.ObserveDBQuery("analytics_total_hours", time.Since(start))
	hours, err := models.TotalTrainingHours(total)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid stored training hours")
	}
	summary := &models.TotalHoursSummary{
		CompetitorID: filter.CompetitorID,
		ModalityID:   filter.ModalityID,
		TrainingType: filter.TrainingType,
		ApprovedOnly: filter.ApprovedOnly,
		TotalHours:   hours,
	}
	s.cache.Store(ctx, key, summary)
	return summary, false, nil
}

// HoursByType returns the competitor's hours grouped by training type.
func (s *AnalyticsService) HoursByType(ctx context.Context, actor models.Actor, filter models.HoursFilter) ([]models.HoursByTypeSummary, bool, error) {
	if err := authorizeHoursRead(actor, filter.CompetitorID); err != nil {
		return nil, false, err
	}
	key := hoursCacheKey("by-type", filter)
	var cached []models.HoursByTypeSummary
	if s.cache.Lookup(ctx, key, &cached) {
		return cached, true, nil
	}
	start := time.Now()
	summaries, err := s.repo.HoursByType(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group hours by type")
	}
	s.metrics.ObserveDBQuery("analytics_hours_by_type", time.Since(start))
	s.cache.Store(ctx, key, summaries)
	return summaries, false, nil
}

// HoursByDate returns the competitor's hours per calendar date in the filter range.
func (s *AnalyticsService) HoursByDate(ctx context.Context, actor models.Actor, filter models.HoursFilter) ([]models.HoursByDateSummary, bool, error) {
	if err := authorizeHoursRead(actor, filter.CompetitorID); err != nil {
		return nil, false, err
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "date_from must not be after date_to")
	}
	key := hoursCacheKey("by-date", filter)
	var cached []models.HoursByDateSummary
	if s.cache.Lookup(ctx, key, &cached) {
		return cached, true, nil
	}
	start := time.Now()
	summaries, err := s.repo.HoursByDate(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group hours by date")
	}
	s.metrics.ObserveDBQuery("analytics_hours_by_date", time.Since(start))
	s.cache.Store(ctx, key, summaries)
	return summaries, false, nil
}

// HoursByModality returns the competitor's hours per modality.
func (s *AnalyticsService) HoursByModality(ctx context.Context, actor models.Actor, filter models.HoursFilter) ([]models.HoursByModalitySummary, bool, error) {
	if err := authorizeHoursRead(actor, filter.CompetitorID); err != nil {
		return nil, false, err
	}
	key := hoursCacheKey("by-modality", filter)
	var cached []models.HoursByModalitySummary
	if s.cache.Lookup(ctx, key, &cached) {
		return cached, true, nil
	}
	start := time.Now()
	summaries, err := s.repo.HoursByModality(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group hours by modality")
	}
	s.metrics.ObserveDBQuery("analytics_hours_by_modality", time.Since(start))
	s.cache.Store(ctx, key, summaries)
	return summaries, false, nil
}

// DailyHours reports how much of the daily ceiling the competitor has used on date. It is never
// cached since clients use it right before registering.
func (s *AnalyticsService) DailyHours(ctx context.Context, actor models.Actor, competitorID string, date time.Time) (*models.DailyHoursSummary, error) {
	if err := authorizeHoursRead(actor, competitorID); err != nil {
		return nil, err
	}
	day := models.TruncateToDate(date)
	current, err := s.repo.GetDailyHours(ctx, competitorID, day, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum daily training hours")
	}
	used, err := models.TotalTrainingHours(current)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid stored training hours")
	}
	remaining, _ := models.TotalTrainingHours(math.Max(0, models.MaxDailyHours-used.Hours()))
	return &models.DailyHoursSummary{
		CompetitorID:   competitorID,
		Date:           day.Format(models.TrainingDateLayout),
		CurrentHours:   used,
		MaxHours:       models.MaxDailyHours,
		RemainingHours: remaining,
	}, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}

// InvalidateCompetitor drops every cached report of a competitor. Failures only cost freshness
// until the TTL expires, so they are logged.
func (s *AnalyticsService) InvalidateCompetitor(ctx context.Context, competitorID string) {
	if competitorID == "" {
		return
	}
	if err := s.cache.InvalidatePrefix(context.WithoutCancel(ctx), cache.Key("analytics", competitorID)); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.String("competitor_id", competitorID), zap.Error(err))
	}
}

// authorizeHoursRead lets competitors read only their own hours.
func authorizeHoursRead(actor models.Actor, competitorID string) error {
	if competitorID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "competitor id is required")
	}
	if actor.Role == models.RoleCompetitor && actor.UserID != competitorID {
		return appErrors.Clone(appErrors.ErrForbidden, "competitors can only view their own hours")
	}
	return nil
}

func hoursCacheKey(report string, filter models.HoursFilter) string {
	return cache.Key("analytics", filter.CompetitorID, report,
		filter.ModalityID,
		string(filter.TrainingType),
		strconv.FormatBool(filter.ApprovedOnly),
		formatDate(filter.DateFrom),
		formatDate(filter.DateTo),
	)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(models.TrainingDateLayout)
}
