package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned instances still compare equal to their template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrInvalidValue    = New("INVALID_VALUE", http.StatusBadRequest, "invalid value")
	ErrInvalidEvidence = New("INVALID_EVIDENCE", http.StatusBadRequest, "invalid evidence")

	ErrCompetitorNotEnrolled = New("COMPETITOR_NOT_ENROLLED", http.StatusUnprocessableEntity, "competitor is not enrolled in this modality")
	ErrMaxDailyHoursExceeded = New("MAX_DAILY_HOURS_EXCEEDED", http.StatusUnprocessableEntity, "maximum daily training hours exceeded")
	ErrInvalidTrainingDate   = New("INVALID_TRAINING_DATE", http.StatusUnprocessableEntity, "training date cannot be in the future")

	ErrEvaluatorNotAssigned     = New("EVALUATOR_NOT_ASSIGNED", http.StatusForbidden, "evaluator is not assigned to this competitor in this modality")
	ErrTrainingAlreadyValidated = New("TRAINING_ALREADY_VALIDATED", http.StatusForbidden, "training has already been validated")

	ErrAlreadyEnrolled        = New("ALREADY_ENROLLED", http.StatusConflict, "competitor already has an active enrollment in this modality")
	ErrEnrollmentHasTrainings = New("ENROLLMENT_HAS_TRAININGS", http.StatusConflict, "enrollment has registered training sessions")
	ErrConcurrentModification = New("CONCURRENT_MODIFICATION", http.StatusConflict, "resource was modified concurrently")
	ErrRegistrationConflict   = New("TRAINING_REGISTRATION_CONFLICT", http.StatusConflict, "concurrent training registration detected, retry the request")

	ErrEvidenceStorageUnavailable = New("EVIDENCE_STORAGE_UNAVAILABLE", http.StatusServiceUnavailable, "evidence storage unavailable")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	clone.Details = copyDetails(err.Details)
	return &clone
}

// WithDetails returns a copy of err carrying structured, caller-renderable context.
func WithDetails(err *Error, details map[string]interface{}) *Error {
	clone := Clone(err, "")
	if clone == nil {
		return nil
	}
	if clone.Details == nil {
		clone.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		clone.Details[k] = v
	}
	return clone
}

// IsCode reports whether err is an *Error with the given code anywhere in its chain.
func IsCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

func copyDetails(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
