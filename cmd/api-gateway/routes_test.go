package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/internal/handler"
	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/internal/service"
	"github.com/noah-isme/skill-training-api/pkg/config"
	"github.com/noah-isme/skill-training-api/pkg/storage"
)

const testSecret = "route-secret"

func newTestRouter(t *testing.T, env string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:       env,
		APIPrefix: "/api/v1",
		Analytics: config.AnalyticsConfig{Enabled: true},
	}
	metrics := service.NewMetricsService()
	evidenceSvc := service.NewEvidenceService(nil, nil, nil, nil,
		storage.NewSignedURLSigner("evidence-secret", time.Minute), nil, nil, nil, nil, service.EvidenceServiceConfig{})

	return newRouter(cfg, zap.NewNop(), routeDeps{
		tokens:      service.NewTokenService(testSecret, ""),
		metrics:     metrics,
		health:      handler.NewMetricsHandler(metrics, nil, nil),
		modalities:  handler.NewModalityHandler(service.NewModalityService(nil, nil, nil, nil)),
		enrollments: handler.NewEnrollmentHandler(service.NewEnrollmentService(nil, nil, nil, nil, nil, nil)),
		trainings:   handler.NewTrainingHandler(service.NewTrainingService(service.TrainingServiceDeps{})),
		evidence:    handler.NewEvidenceHandler(evidenceSvc),
		analytics:   handler.NewAnalyticsHandler(service.NewAnalyticsService(nil, nil, metrics, nil)),
	})
}

func bearer(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterGuards(t *testing.T) {
	r := newTestRouter(t, config.EnvDevelopment)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{name: "liveness is public", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "api requires a token", method: http.MethodGet, path: "/api/v1/trainings", status: http.StatusUnauthorized},
		{name: "competitor cannot create modalities", method: http.MethodPost, path: "/api/v1/modalities", auth: bearer(t, "c-1", models.RoleCompetitor), status: http.StatusForbidden},
		{name: "evaluator cannot register trainings", method: http.MethodPost, path: "/api/v1/trainings", auth: bearer(t, "e-1", models.RoleEvaluator), status: http.StatusForbidden},
		{name: "competitor cannot approve", method: http.MethodPost, path: "/api/v1/trainings/t-1/approve", auth: bearer(t, "c-1", models.RoleCompetitor), status: http.StatusForbidden},
		{name: "competitor cannot read another competitor's hours", method: http.MethodGet, path: "/api/v1/analytics/competitors/c-2/total-hours", auth: bearer(t, "c-1", models.RoleCompetitor), status: http.StatusForbidden},
		{name: "admin reads system metrics", method: http.MethodGet, path: "/api/v1/analytics/system", auth: bearer(t, "a-1", models.RoleAdmin), status: http.StatusOK},
		{name: "download needs no bearer but a valid signature", method: http.MethodGet, path: "/api/v1/evidence/ev-1/download?token=forged", status: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, config.EnvProduction).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
