package handler

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/internal/service"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
	"github.com/noah-isme/skill-training-api/pkg/response"
)

type evidenceService interface {
	Upload(ctx context.Context, actor models.Actor, trainingID string, req dto.UploadEvidenceRequest, file service.EvidenceFile) (*models.Evidence, error)
	List(ctx context.Context, actor models.Actor, trainingID string) ([]models.Evidence, error)
	DownloadURL(ctx context.Context, actor models.Actor, id string) (*dto.EvidenceDownloadURL, error)
	Download(ctx context.Context, id, token string) (*service.EvidenceContent, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// EvidenceHandler exposes evidence upload and retrieval endpoints.
type EvidenceHandler struct {
	evidence evidenceService
}

// NewEvidenceHandler constructs EvidenceHandler.
func NewEvidenceHandler(evidence evidenceService) *EvidenceHandler {
	return &EvidenceHandler{evidence: evidence}
}

// List godoc
// @Summary List evidence of a training session
// @Tags Evidence
// @Produce json
// @Param id path string true "Training ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings/{id}/evidence [get]
func (h *EvidenceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.evidence.List(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Upload godoc
// @Summary Upload evidence
// @Description Accepts PDF, JPEG, PNG, WEBP, MP4 and MOV files up to 10 MiB. The type is detected from content.
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Training ID"
// @Param file formData file true "Evidence file"
// @Param kind formData string false "PHOTO, DOCUMENT, VIDEO, CERTIFICATE or OTHER"
// @Param description formData string false "Description"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Security BearerAuth
// @Router /trainings/{id}/evidence [post]
func (h *EvidenceHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UploadEvidenceRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.Kind = models.EvidenceKind(strings.ToUpper(string(req.Kind)))

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
		return
	}
	defer file.Close()

	evidence, err := h.evidence.Upload(c.Request.Context(), actor, c.Param("id"), req, service.EvidenceFile{
		Filename:    header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, evidence)
}

// DownloadURL godoc
// @Summary Issue a signed download link
// @Tags Evidence
// @Produce json
// @Param id path string true "Evidence ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /evidence/{id}/url [get]
func (h *EvidenceHandler) DownloadURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.evidence.DownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download evidence with a signed token
// @Tags Evidence
// @Produce octet-stream
// @Param id path string true "Evidence ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /evidence/{id}/download [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "download token is required"))
		return
	}
	content, err := h.evidence.Download(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer content.Body.Close()

	headers := map[string]string{
		"Content-Disposition":    mime.FormatMediaType("attachment", map[string]string{"filename": content.Evidence.OriginalFilename}),
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-store",
	}
	c.DataFromReader(http.StatusOK, content.Evidence.SizeBytes, content.Evidence.MimeType, content.Body, headers)
}

// Delete godoc
// @Summary Delete evidence
// @Tags Evidence
// @Param id path string true "Evidence ID"
// @Success 204
// @Security BearerAuth
// @Router /evidence/{id} [delete]
func (h *EvidenceHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.evidence.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
