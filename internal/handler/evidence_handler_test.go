package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/internal/service"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

type evidenceServiceMock struct {
	gotRequest  dto.UploadEvidenceRequest
	gotFile     service.EvidenceFile
	gotContent  []byte
	gotToken    string
	content     *service.EvidenceContent
	downloadErr error
}

func (m *evidenceServiceMock) Upload(_ context.Context, actor models.Actor, trainingID string, req dto.UploadEvidenceRequest, file service.EvidenceFile) (*models.Evidence, error) {
	m.gotRequest, m.gotFile = req, file
	m.gotContent, _ = io.ReadAll(file.Reader)
	return &models.Evidence{ID: "ev-1", TrainingID: trainingID, OriginalFilename: file.Filename, UploadedBy: actor.UserID}, nil
}

func (m *evidenceServiceMock) List(context.Context, models.Actor, string) ([]models.Evidence, error) {
	return []models.Evidence{}, nil
}

func (m *evidenceServiceMock) DownloadURL(_ context.Context, _ models.Actor, id string) (*dto.EvidenceDownloadURL, error) {
	return &dto.EvidenceDownloadURL{URL: "https://api.example.org/evidence/" + id + "/download?token=abc", Token: "abc"}, nil
}

func (m *evidenceServiceMock) Download(_ context.Context, _ string, token string) (*service.EvidenceContent, error) {
	m.gotToken = token
	return m.content, m.downloadErr
}

func (m *evidenceServiceMock) Delete(context.Context, models.Actor, string) error {
	return nil
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, "/trainings/t-1/evidence", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestEvidenceHandlerUpload(t *testing.T) {
	mockSvc := &evidenceServiceMock{}
	handler := NewEvidenceHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/", nil)
	c.Request = multipartRequest(t, map[string]string{"kind": "certificate", "description": "course"}, "cert.pdf", []byte("%PDF-1.4"))
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	withActor(c, "c-1", models.RoleCompetitor)

	handler.Upload(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.EvidenceKindCertificate, mockSvc.gotRequest.Kind)
	assert.Equal(t, "course", mockSvc.gotRequest.Description)
	assert.Equal(t, "cert.pdf", mockSvc.gotFile.Filename)
	assert.Equal(t, int64(8), mockSvc.gotFile.Size)
	assert.Equal(t, "%PDF-1.4", string(mockSvc.gotContent))
}

func TestEvidenceHandlerUploadRequiresFile(t *testing.T) {
	handler := NewEvidenceHandler(&evidenceServiceMock{})

	c, w := newGinContext(http.MethodPost, "/", nil)
	c.Request = multipartRequest(t, map[string]string{"kind": "PHOTO"}, "", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	withActor(c, "c-1", models.RoleCompetitor)

	handler.Upload(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvidenceHandlerDownload(t *testing.T) {
	mockSvc := &evidenceServiceMock{content: &service.EvidenceContent{
		Evidence: &models.Evidence{ID: "ev-1", OriginalFilename: "cert final.pdf", MimeType: "application/pdf", SizeBytes: 8},
		Body:     io.NopCloser(strings.NewReader("%PDF-1.4")),
	}}
	handler := NewEvidenceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/evidence/ev-1/download?token=signed", nil)
	c.Params = gin.Params{{Key: "id", Value: "ev-1"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "signed", mockSvc.gotToken)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cert final.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())
}

func TestEvidenceHandlerDownloadRejectsBadToken(t *testing.T) {
	mockSvc := &evidenceServiceMock{downloadErr: appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")}
	handler := NewEvidenceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/evidence/ev-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "ev-1"}}
	handler.Download(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, mockSvc.gotToken, "service is not reached without a token")

	c, w = newGinContext(http.MethodGet, "/evidence/ev-1/download?token=forged", nil)
	c.Params = gin.Params{{Key: "id", Value: "ev-1"}}
	handler.Download(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
