package notifiers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"energy-server/entities"
	"energy-server/ws"
)

type alertMessage struct {
	Type      string    `json:"type"`
	AlertID   string    `json:"alert_id"`
	BudgetID  string    `json:"budget_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// WSNotifier pushes alerts to the owner's live websocket, if any.
type WSNotifier struct {
	mgr *ws.Manager
}

func NewWSNotifier(mgr *ws.Manager) *WSNotifier {
	return &WSNotifier{mgr: mgr}
}

func (n *WSNotifier) Notify(_ context.Context, alert *entities.Alert) error {
	b, err := json.Marshal(alertMessage{
		Type:      "alert",
		AlertID:   alert.ID,
		BudgetID:  alert.BudgetID,
		Message:   alert.Message,
		CreatedAt: alert.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := n.mgr.SendToUser(alert.UserID, b); err != nil {
		if errors.Is(err, ws.ErrNotConnected) {
			return nil
		}
		return fmt.Errorf("push alert %s: %w", alert.ID, err)
	}
	return nil
}
