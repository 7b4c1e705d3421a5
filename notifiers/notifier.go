// Package notifiers fans alerts out to connected clients and external channels.
package notifiers

import (
	"context"
	"errors"

	"energy-server/entities"
)

type Notifier interface {
	Notify(ctx context.Context, alert *entities.Alert) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, *entities.Alert) error { return nil }

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, alert *entities.Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
