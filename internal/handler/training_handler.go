package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/response"
)

type trainingService interface {
	Register(ctx context.Context, actor models.Actor, req dto.RegisterTrainingRequest) (*models.TrainingSession, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.TrainingSession, error)
	List(ctx context.Context, actor models.Actor, filter models.TrainingSessionFilter) ([]models.TrainingSession, *models.Pagination, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateTrainingRequest) (*models.TrainingSession, error)
	Approve(ctx context.Context, actor models.Actor, id string) (*models.TrainingSession, error)
	Reject(ctx context.Context, actor models.Actor, id string, req dto.RejectTrainingRequest) (*models.TrainingSession, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// TrainingHandler exposes training session endpoints.
type TrainingHandler struct {
	trainings trainingService
}

// NewTrainingHandler constructs TrainingHandler.
func NewTrainingHandler(trainings trainingService) *TrainingHandler {
	return &TrainingHandler{trainings: trainings}
}

// List godoc
// @Summary List training sessions
// @Description Competitors only see their own sessions and evaluators the sessions of their assigned enrollments.
// @Tags Trainings
// @Produce json
// @Param competitor_id query string false "Filter by competitor"
// @Param modality_id query string false "Filter by modality"
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param training_type query string false "SENAI, EXTERNAL, COMPANY or SELF_DIRECTED"
// @Param date_from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive end date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings [get]
func (h *TrainingHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.TrainingSessionFilter{
		CompetitorID: c.Query("competitor_id"),
		ModalityID:   c.Query("modality_id"),
		Status:       models.TrainingStatus(strings.ToUpper(c.Query("status"))),
		TrainingType: models.TrainingType(strings.ToUpper(c.Query("training_type"))),
		SortBy:       c.Query("sort"),
		SortOrder:    c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	var err error
	if filter.DateFrom, err = dateQuery(c, "date_from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DateTo, err = dateQuery(c, "date_to"); err != nil {
		response.Error(c, err)
		return
	}

	sessions, pagination, err := h.trainings.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get training session
// @Tags Trainings
// @Produce json
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings/{id} [get]
func (h *TrainingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	session, err := h.trainings.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Register godoc
// @Summary Register training session
// @Description Sessions start PENDING. A competitor's non-rejected hours on one date may not exceed 12.
// @Tags Trainings
// @Accept json
// @Produce json
// @Param payload body dto.RegisterTrainingRequest true "Training payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Concurrent registration, safe to retry"
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings [post]
func (h *TrainingHandler) Register(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RegisterTrainingRequest
	if !bindJSON(c, &req) {
		return
	}
	req.TrainingType = models.TrainingType(strings.ToUpper(string(req.TrainingType)))
	session, err := h.trainings.Register(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update training session
// @Description Owners may edit PENDING sessions. Admins may edit any session.
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param payload body dto.UpdateTrainingRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings/{id} [put]
func (h *TrainingHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateTrainingRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.trainings.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Approve godoc
// @Summary Approve training session
// @Tags Trainings
// @Produce json
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings/{id}/approve [post]
func (h *TrainingHandler) Approve(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	session, err := h.trainings.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Reject godoc
// @Summary Reject training session
// @Tags Trainings
// @Accept json
// @Produce json
// @Param id path string true "Training ID"
// @Param payload body dto.RejectTrainingRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings/{id}/reject [post]
func (h *TrainingHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RejectTrainingRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.trainings.Reject(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete training session
// @Tags Trainings
// @Param id path string true "Training ID"
// @Success 204
// @Security BearerAuth
// @Router /trainings/{id} [delete]
func (h *TrainingHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.trainings.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
