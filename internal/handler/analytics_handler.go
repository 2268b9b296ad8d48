package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skill-training-api/internal/middleware"
	"github.com/noah-isme/skill-training-api/internal/models"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
	"github.com/noah-isme/skill-training-api/pkg/response"
)

type analyticsService interface {
	TotalHours(ctx context.Context, actor models.Actor, filter models.HoursFilter) (*models.TotalHoursSummary, bool, error)
	HoursByType(ctx context.Context, actor models.Actor, filter models.HoursFilter) ([]models.HoursByTypeSummary, bool, error)
	HoursByDate(ctx context.Context, actor models.Actor, filter models.HoursFilter) ([]models.HoursByDateSummary, bool, error)
	HoursByModality(ctx context.Context, actor models.Actor, filter models.HoursFilter) ([]models.HoursByModalitySummary, bool, error)
	DailyHours(ctx context.Context, actor models.Actor, competitorID string, date time.Time) (*models.DailyHoursSummary, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes dashboard-ready training hour aggregates.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// TotalHours godoc
// @Summary Total training hours of a competitor
// @Tags Analytics
// @Produce json
// @Param id path string true "Competitor ID"
// @Param modality_id query string false "Filter by modality"
// @Param training_type query string false "Filter by training type"
// @Param approved_only query bool false "Count approved sessions only"
// @Param date_from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive end date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/competitors/{id}/total-hours [get]
func (h *AnalyticsHandler) TotalHours(c *gin.Context) {
	h.serveHours(c, func(ctx context.Context, actor models.Actor, filter models.HoursFilter) (interface{}, bool, error) {
		return h.analytics.TotalHours(ctx, actor, filter)
	})
}

// HoursByType godoc
// @Summary Hours grouped by training type
// @Tags Analytics
// @Produce json
// @Param id path string true "Competitor ID"
// @Param modality_id query string false "Filter by modality"
// @Param approved_only query bool false "Count approved sessions only"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/competitors/{id}/hours-by-type [get]
func (h *AnalyticsHandler) HoursByType(c *gin.Context) {
	h.serveHours(c, func(ctx context.Context, actor models.Actor, filter models.HoursFilter) (interface{}, bool, error) {
		return h.analytics.HoursByType(ctx, actor, filter)
	})
}

// HoursByDate godoc
// @Summary Hours per training date
// @Tags Analytics
// @Produce json
// @Param id path string true "Competitor ID"
// @Param date_from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive end date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/competitors/{id}/hours-by-date [get]
func (h *AnalyticsHandler) HoursByDate(c *gin.Context) {
	h.serveHours(c, func(ctx context.Context, actor models.Actor, filter models.HoursFilter) (interface{}, bool, error) {
		return h.analytics.HoursByDate(ctx, actor, filter)
	})
}

// HoursByModality godoc
// @Summary Hours grouped by modality
// @Tags Analytics
// @Produce json
// @Param id path string true "Competitor ID"
// @Param approved_only query bool false "Count approved sessions only"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/competitors/{id}/hours-by-modality [get]
func (h *AnalyticsHandler) HoursByModality(c *gin.Context) {
	h.serveHours(c, func(ctx context.Context, actor models.Actor, filter models.HoursFilter) (interface{}, bool, error) {
		return h.analytics.HoursByModality(ctx, actor, filter)
	})
}

// DailyHours godoc
// @Summary Hours logged on one date and the remaining allowance
// @Tags Analytics
// @Produce json
// @Param id path string true "Competitor ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/competitors/{id}/daily-hours [get]
func (h *AnalyticsHandler) DailyHours(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	date, err := dateQuery(c, "date")
	if err != nil {
		response.Error(c, err)
		return
	}
	if date == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date parameter is required"))
		return
	}
	summary, err := h.analytics.DailyHours(c.Request.Context(), actor, c.Param("id"), *date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	start := time.Now()
	metrics := h.analytics.SystemMetrics()
	middleware.SetCacheHit(c, false)
	response.JSON(c, http.StatusOK, metrics, nil, processingMeta(c, start))
}

type hoursQuery func(ctx context.Context, actor models.Actor, filter models.HoursFilter) (interface{}, bool, error)

func (h *AnalyticsHandler) serveHours(c *gin.Context, query hoursQuery) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter, err := parseHoursFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	result, cacheHit, err := query(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, nil, processingMeta(c, start))
}

func processingMeta(c *gin.Context, start time.Time) map[string]interface{} {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	return meta
}

func parseHoursFilter(c *gin.Context) (models.HoursFilter, error) {
	filter := models.HoursFilter{
		CompetitorID: c.Param("id"),
		ModalityID:   c.Query("modality_id"),
		TrainingType: models.TrainingType(strings.ToUpper(c.Query("training_type"))),
	}
	var err error
	if filter.ApprovedOnly, err = boolQuery(c, "approved_only", false); err != nil {
		return filter, err
	}
	if filter.DateFrom, err = dateQuery(c, "date_from"); err != nil {
		return filter, err
	}
	if filter.DateTo, err = dateQuery(c, "date_to"); err != nil {
		return filter, err
	}
	return filter, nil
}
