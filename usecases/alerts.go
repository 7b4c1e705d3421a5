package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"energy-server/entities"
	"energy-server/metrics"
	"energy-server/notifiers"
	"energy-server/repositories"

	"github.com/rs/zerolog"
)

type AlertUseCase struct {
	alerts   repositories.AlertRepository
	notifier notifiers.Notifier
	log      zerolog.Logger
}

func NewAlertUseCase(alerts repositories.AlertRepository, notifier notifiers.Notifier, log zerolog.Logger) *AlertUseCase {
	if notifier == nil {
		notifier = notifiers.Nop{}
	}
	return &AlertUseCase{alerts: alerts, notifier: notifier, log: log}
}

func (uc *AlertUseCase) CreateAlert(ctx context.Context, userID, budgetID, message string) (*entities.Alert, error) {
	v := &ValidationError{}
	if strings.TrimSpace(userID) == "" {
		v.add("userId", "userId is required")
	}
	if strings.TrimSpace(message) == "" {
		v.add("message", "message is required")
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	alert := &entities.Alert{
		UserID:   userID,
		BudgetID: budgetID,
		Message:  strings.TrimSpace(message),
	}
	if err := uc.alerts.Create(ctx, alert); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	metrics.RecordAlertCreated()

	if err := uc.notifier.Notify(ctx, alert); err != nil {
		uc.log.Warn().Err(err).Str("alert_id", alert.ID).Msg("alert notification failed")
	}
	return alert, nil
}

func (uc *AlertUseCase) ListAlerts(ctx context.Context, userID string) ([]entities.Alert, error) {
	alerts, err := uc.alerts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	if alerts == nil {
		alerts = []entities.Alert{}
	}
	return alerts, nil
}

// MarkAsRead flags one of the user's alerts as read. Alerts owned by other
// users are reported as missing.
func (uc *AlertUseCase) MarkAsRead(ctx context.Context, userID, alertID string) (*entities.Alert, error) {
	alert, err := uc.alerts.GetByID(ctx, userID, alertID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("alert %w", ErrNotFound)
		}
		return nil, err
	}
	if alert.IsRead {
		return alert, nil
	}
	alert.IsRead = true
	if err := uc.alerts.Update(ctx, alert); err != nil {
		return nil, fmt.Errorf("update alert: %w", err)
	}
	return alert, nil
}
