package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

// Bounds applied to the hours of a single training session and to a competitor's calendar day.
const (
	MinSessionHours = 0.5
	MaxSessionHours = 12.0
	MaxDailyHours   = 12.0
)

// TrainingHours is an immutable duration in hours rounded to two decimals.
type TrainingHours struct {
	value float64
}

// NewTrainingHours validates the duration of one session.
func NewTrainingHours(v float64) (TrainingHours, error) {
	if math.IsNaN(v) || v < MinSessionHours || v > MaxSessionHours {
		return TrainingHours{}, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidValue, fmt.Sprintf("training hours must be between %.1f and %.1f", MinSessionHours, MaxSessionHours)),
			map[string]interface{}{"hours": v, "min_hours": MinSessionHours, "max_hours": MaxSessionHours},
		)
	}
	return TrainingHours{value: roundHours(v)}, nil
}

// TotalTrainingHours builds an aggregate value. Totals may exceed the per-session ceiling.
func TotalTrainingHours(v float64) (TrainingHours, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return TrainingHours{}, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidValue, "total training hours cannot be negative"),
			map[string]interface{}{"hours": v},
		)
	}
	return TrainingHours{value: roundHours(v)}, nil
}

// Hours returns the rounded number of hours.
func (h TrainingHours) Hours() float64 {
	return h.value
}

// Add returns an unchecked total.
func (h TrainingHours) Add(other TrainingHours) TrainingHours {
	return TrainingHours{value: roundHours(h.value + other.value)}
}

// Equal compares rounded values.
func (h TrainingHours) Equal(other TrainingHours) bool {
	return h.value == other.value
}

// IsZero reports whether no hours were recorded.
func (h TrainingHours) IsZero() bool {
	return h.value == 0
}

func (h TrainingHours) String() string {
	return strconv.FormatFloat(h.value, 'f', 2, 64)
}

// MarshalJSON renders the hours as a plain number.
func (h TrainingHours) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.value)
}

// UnmarshalJSON accepts any non-negative number. Per-session bounds are enforced by NewTrainingHours.
func (h *TrainingHours) UnmarshalJSON(data []byte) error {
	var raw float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := TotalTrainingHours(raw)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Scan reads NUMERIC columns, which lib/pq delivers as text.
func (h *TrainingHours) Scan(src interface{}) error {
	var raw float64
	switch v := src.(type) {
	case nil:
		*h = TrainingHours{}
		return nil
	case float64:
		raw = v
	case int64:
		raw = float64(v)
	case []byte:
		parsed, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return fmt.Errorf("scan training hours %q: %w", v, err)
		}
		raw = parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("scan training hours %q: %w", v, err)
		}
		raw = parsed
	default:
		return fmt.Errorf("scan training hours: unsupported type %T", src)
	}
	parsed, err := TotalTrainingHours(raw)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Value implements driver.Valuer.
func (h TrainingHours) Value() (driver.Value, error) {
	return h.value, nil
}

func roundHours(v float64) float64 {
	return math.Round(v*100) / 100
}
