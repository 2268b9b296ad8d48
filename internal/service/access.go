package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/skill-training-api/internal/models"
	"github.com/noah-isme/skill-training-api/pkg/database"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

type enrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type clientInfoKey struct{}

// ClientInfo identifies the network origin of a request for the audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ContextWithClientInfo attaches request origin details consumed by audit logging.
func ContextWithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

func clientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info
}

// canViewSession applies the read visibility rules: competitors see their own sessions, evaluators
// the sessions of enrollments assigned to them, privileged roles everything.
func canViewSession(ctx context.Context, enrollments enrollmentFinder, actor models.Actor, session *models.TrainingSession) (bool, error) {
	switch {
	case actor.IsPrivileged():
		return true, nil
	case actor.Role == models.RoleCompetitor:
		return session.CompetitorID == actor.UserID, nil
	case actor.Role == models.RoleEvaluator:
		enrollment, err := enrollments.FindByID(ctx, session.EnrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, nil
			}
			return false, err
		}
		return enrollment.HasEvaluator(actor.UserID), nil
	}
	return false, nil
}

// recordAudit writes an audit entry. Failures are logged and never abort the caller.
func recordAudit(ctx context.Context, repo auditRecorder, logger *zap.Logger, actor models.Actor, action, resource, resourceID string, oldValues, newValues interface{}) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	info := clientInfoFrom(ctx)
	entry.IPAddress = info.IP
	entry.UserAgent = info.UserAgent

	if err := repo.CreateAuditLog(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("audit log write failed", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}

// translateWriteError maps storage failures raised inside a transaction. Serialization failures,
// deadlocks and the daily-hours trigger mean a concurrent writer won and the client may retry;
// other CHECK failures are bad input.
func translateWriteError(err error, message string) error {
	if err == nil {
		return nil
	}
	if database.IsRetryable(err) || database.IsDailyHoursExceeded(err) {
		return appErrors.WithDetails(appErrors.ErrRegistrationConflict, map[string]interface{}{"retryable": true})
	}
	if database.IsCheckViolation(err) {
		return appErrors.Wrap(err, appErrors.ErrInvalidValue.Code, appErrors.ErrInvalidValue.Status, "value rejected by storage constraint")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code != appErrors.ErrInternal.Code {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
