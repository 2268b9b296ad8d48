package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/response"
)

type modalityService interface {
	List(ctx context.Context, filter models.ModalityFilter) ([]models.Modality, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Modality, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateModalityRequest) (*models.Modality, error)
}

// ModalityHandler exposes modality catalogue endpoints.
type ModalityHandler struct {
	modalities modalityService
}

// NewModalityHandler constructs ModalityHandler.
func NewModalityHandler(modalities modalityService) *ModalityHandler {
	return &ModalityHandler{modalities: modalities}
}

// List godoc
// @Summary List modalities
// @Tags Modalities
// @Produce json
// @Param active query bool false "Filter by active flag"
// @Param search query string false "Search by code or name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /modalities [get]
func (h *ModalityHandler) List(c *gin.Context) {
	filter := models.ModalityFilter{Search: c.Query("search")}
	filter.Page, filter.PageSize = pageParams(c)
	if c.Query("active") != "" {
		active, err := boolQuery(c, "active", true)
		if err != nil {
			response.Error(c, err)
			return
		}
		filter.Active = &active
	}

	items, pagination, err := h.modalities.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get modality
// @Tags Modalities
// @Produce json
// @Param id path string true "Modality ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /modalities/{id} [get]
func (h *ModalityHandler) Get(c *gin.Context) {
	modality, err := h.modalities.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modality, nil)
}

// Create godoc
// @Summary Create modality
// @Tags Modalities
// @Accept json
// @Produce json
// @Param payload body dto.CreateModalityRequest true "Modality payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /modalities [post]
func (h *ModalityHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateModalityRequest
	if !bindJSON(c, &req) {
		return
	}
	modality, err := h.modalities.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, modality)
}
