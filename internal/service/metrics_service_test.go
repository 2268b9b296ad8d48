package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skill-training-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/trainings", http.StatusCreated, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/trainings", http.StatusCreated, 40*time.Millisecond)
	m.RecordTrainingRuleViolation("MAX_DAILY_HOURS_EXCEEDED")
	m.RecordTrainingValidation(models.TrainingStatusRejected)
	m.RecordEvidenceUpload("application/pdf", 2048)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodPost, "/api/v1/trainings", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ruleViolations.WithLabelValues("MAX_DAILY_HOURS_EXCEEDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("REJECTED")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.evidenceBytes))

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snapshot.TrainingRejections)
	assert.Equal(t, uint64(1), snapshot.EvidenceUploads)
}

func TestMetricsServiceCacheHitRatio(t *testing.T) {
	m := NewMetricsService()

	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	assert.Equal(t, 0.75, testutil.ToFloat64(m.cacheHitRatio))
	assert.Equal(t, 0.75, m.Snapshot().CacheHitRatio)
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.RecordTrainingRegistration()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "skilltraining_training_registrations_total 1"))

	var nilMetrics *MetricsService
	rec = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	nilMetrics.RecordEvidenceUpload("image/png", 1)
	assert.Equal(t, models.AnalyticsSystemMetrics{}, nilMetrics.Snapshot())
}
