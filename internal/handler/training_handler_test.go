package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skill-training-api/internal/dto"
	"github.com/noah-isme/skill-training-api/internal/middleware"
	"github.com/noah-isme/skill-training-api/internal/models"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

type trainingServiceMock struct {
	session    *models.TrainingSession
	err        error
	gotActor   models.Actor
	gotID      string
	gotRequest dto.RegisterTrainingRequest
	gotFilter  models.TrainingSessionFilter
	gotReject  dto.RejectTrainingRequest
}

func (m *trainingServiceMock) Register(_ context.Context, actor models.Actor, req dto.RegisterTrainingRequest) (*models.TrainingSession, error) {
	m.gotActor, m.gotRequest = actor, req
	return m.session, m.err
}

func (m *trainingServiceMock) Get(_ context.Context, actor models.Actor, id string) (*models.TrainingSession, error) {
	m.gotActor, m.gotID = actor, id
	return m.session, m.err
}

func (m *trainingServiceMock) List(_ context.Context, actor models.Actor, filter models.TrainingSessionFilter) ([]models.TrainingSession, *models.Pagination, error) {
	m.gotActor, m.gotFilter = actor, filter
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.TrainingSession{*m.session}, models.NewPagination(filter.Page, filter.PageSize, 1), nil
}

func (m *trainingServiceMock) Update(_ context.Context, actor models.Actor, id string, _ dto.UpdateTrainingRequest) (*models.TrainingSession, error) {
	m.gotActor, m.gotID = actor, id
	return m.session, m.err
}

func (m *trainingServiceMock) Approve(_ context.Context, actor models.Actor, id string) (*models.TrainingSession, error) {
	m.gotActor, m.gotID = actor, id
	return m.session, m.err
}

func (m *trainingServiceMock) Reject(_ context.Context, actor models.Actor, id string, req dto.RejectTrainingRequest) (*models.TrainingSession, error) {
	m.gotActor, m.gotID, m.gotReject = actor, id, req
	return m.session, m.err
}

func (m *trainingServiceMock) Delete(_ context.Context, actor models.Actor, id string) error {
	m.gotActor, m.gotID = actor, id
	return m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withActor(c *gin.Context, userID string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func pendingSession() *models.TrainingSession {
	return &models.TrainingSession{
		ID:           "t-1",
		CompetitorID: "c-1",
		ModalityID:   "m-1",
		TrainingDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TrainingType: models.TrainingTypeSENAI,
		Status:       models.TrainingStatusPending,
	}
}

func TestTrainingHandlerRegister(t *testing.T) {
	mockSvc := &trainingServiceMock{session: pendingSession()}
	handler := NewTrainingHandler(mockSvc)

	payload, _ := json.Marshal(map[string]interface{}{
		"modality_id":   "m-1",
		"training_date": "2024-01-15",
		"hours":         4,
		"training_type": "senai",
	})
	c, w := newGinContext(http.MethodPost, "/trainings", payload)
	withActor(c, "c-1", models.RoleCompetitor)

	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.Actor{UserID: "c-1", Role: models.RoleCompetitor}, mockSvc.gotActor)
	assert.Equal(t, models.TrainingTypeSENAI, mockSvc.gotRequest.TrainingType)
	assert.Equal(t, 4.0, mockSvc.gotRequest.Hours)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestTrainingHandlerRegisterErrors(t *testing.T) {
	retryable := appErrors.WithDetails(appErrors.ErrRegistrationConflict, map[string]interface{}{"retryable": true})
	exceeded := appErrors.WithDetails(appErrors.ErrMaxDailyHoursExceeded, map[string]interface{}{"current_hours": 10.0, "max_hours": 12.0})

	tests := []struct {
		name       string
		body       string
		err        error
		noActor    bool
		status     int
		code       string
		retryAfter string
	}{
		{name: "no claims", body: `{}`, noActor: true, status: http.StatusUnauthorized, code: appErrors.ErrUnauthorized.Code},
		{name: "malformed json", body: `{"hours":`, status: http.StatusBadRequest, code: appErrors.ErrValidation.Code},
		{name: "daily ceiling", body: `{}`, err: exceeded, status: http.StatusUnprocessableEntity, code: appErrors.ErrMaxDailyHoursExceeded.Code},
		{name: "concurrent registration", body: `{}`, err: retryable, status: http.StatusConflict, code: appErrors.ErrRegistrationConflict.Code, retryAfter: "1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewTrainingHandler(&trainingServiceMock{err: tc.err})
			c, w := newGinContext(http.MethodPost, "/trainings", []byte(tc.body))
			if !tc.noActor {
				withActor(c, "c-1", models.RoleCompetitor)
			}

			handler.Register(c)
			require.Equal(t, tc.status, w.Code)
			body := decodeEnvelope(t, w)
			errBody, ok := body["error"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, tc.code, errBody["code"])
			assert.Equal(t, tc.retryAfter, w.Header().Get("Retry-After"))
		})
	}
}

func TestTrainingHandlerListParsesFilters(t *testing.T) {
	mockSvc := &trainingServiceMock{session: pendingSession()}
	handler := NewTrainingHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/trainings?status=pending&training_type=external&date_from=2024-01-01&date_to=2024-01-31&page=2&limit=5", nil)
	withActor(c, "e-1", models.RoleEvaluator)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TrainingStatusPending, mockSvc.gotFilter.Status)
	assert.Equal(t, models.TrainingTypeExternal, mockSvc.gotFilter.TrainingType)
	require.NotNil(t, mockSvc.gotFilter.DateFrom)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *mockSvc.gotFilter.DateFrom)
	assert.Equal(t, 2, mockSvc.gotFilter.Page)
	assert.Equal(t, 5, mockSvc.gotFilter.PageSize)
	assert.Contains(t, decodeEnvelope(t, w), "pagination")

	c, w = newGinContext(http.MethodGet, "/trainings?date_from=15-01-2024", nil)
	withActor(c, "e-1", models.RoleEvaluator)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrainingHandlerDecisions(t *testing.T) {
	approved := pendingSession()
	approved.Status = models.TrainingStatusApproved
	mockSvc := &trainingServiceMock{session: approved}
	handler := NewTrainingHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/trainings/t-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	withActor(c, "e-1", models.RoleEvaluator)
	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t-1", mockSvc.gotID)

	c, w = newGinContext(http.MethodPost, "/trainings/t-1/reject", []byte(`{"reason":"no evidence"}`))
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	withActor(c, "e-1", models.RoleEvaluator)
	handler.Reject(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no evidence", mockSvc.gotReject.Reason)

	mockSvc.err = appErrors.ErrEvaluatorNotAssigned
	c, w = newGinContext(http.MethodPost, "/trainings/t-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	withActor(c, "e-2", models.RoleEvaluator)
	handler.Approve(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTrainingHandlerDelete(t *testing.T) {
	mockSvc := &trainingServiceMock{}
	handler := NewTrainingHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/trainings/t-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "t-1"}}
	withActor(c, "c-1", models.RoleCompetitor)

	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "t-1", mockSvc.gotID)
}
