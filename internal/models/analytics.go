package models

import "time"

// HoursFilter scopes training hour aggregations for one competitor.
type HoursFilter struct {
	CompetitorID string
	ModalityID   string
	TrainingType TrainingType
	ApprovedOnly bool
	DateFrom     *time.Time
	DateTo       *time.Time
}

// TotalHoursSummary is the total of a competitor's hours under a filter.
type TotalHoursSummary struct {
	CompetitorID string        `json:"competitor_id"`
	ModalityID   string        `json:"modality_id,omitempty"`
	TrainingType TrainingType  `json:"training_type,omitempty"`
	ApprovedOnly bool          `json:"approved_only"`
	TotalHours   TrainingHours `json:"total_hours"`
}

// HoursByTypeSummary aggregates hours per training type.
type HoursByTypeSummary struct {
	TrainingType TrainingType  `db:"training_type" json:"training_type"`
	TotalHours   TrainingHours `db:"total_hours" json:"total_hours"`
	Sessions     int           `db:"sessions" json:"sessions"`
}

// HoursByDateSummary aggregates hours per calendar date.
type HoursByDateSummary struct {
	TrainingDate time.Time     `db:"training_date" json:"training_date"`
	TotalHours   TrainingHours `db:"total_hours" json:"total_hours"`
	Sessions     int           `db:"sessions" json:"sessions"`
}

// HoursByModalitySummary aggregates hours per modality.
type HoursByModalitySummary struct {
	ModalityID   string        `db:"modality_id" json:"modality_id"`
	ModalityCode string        `db:"modality_code" json:"modality_code"`
	ModalityName string        `db:"modality_name" json:"modality_name"`
	TotalHours   TrainingHours `db:"total_hours" json:"total_hours"`
	Sessions     int           `db:"sessions" json:"sessions"`
}

// DailyHoursSummary reports how much of the daily ceiling a competitor has used.
type DailyHoursSummary struct {
	CompetitorID   string        `json:"competitor_id"`
	Date           string        `json:"date"`
	CurrentHours   TrainingHours `json:"current_hours"`
	MaxHours       float64       `json:"max_hours"`
	RemainingHours TrainingHours `json:"remaining_hours"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	TrainingRegistrations    uint64    `json:"training_registrations"`
	TrainingRejections       uint64    `json:"training_rejections_by_rule"`
	TrainingValidations      uint64    `json:"training_validations"`
	EvidenceUploads          uint64    `json:"evidence_uploads"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
