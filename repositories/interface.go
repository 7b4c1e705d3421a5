package repositories

import (
	"context"
	"errors"
	"time"

	"energy-server/entities"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	GetByID(ctx context.Context, userID, id string) (*entities.Device, error)
	// GetByUserID returns one page of the user's devices, newest first, and the total count.
	GetByUserID(ctx context.Context, userID string, offset, limit int) ([]entities.Device, int64, error)
	GetAllByUserID(ctx context.Context, userID string) ([]entities.Device, error)
	GetByUserIDCreatedBetween(ctx context.Context, userID string, from, to time.Time) ([]entities.Device, error)
	Update(ctx context.Context, device *entities.Device) error
	Delete(ctx context.Context, userID, id string) error
	SumEnergyUsage(ctx context.Context, userID string, status entities.DeviceStatus) (float64, error)
	// RecordUsage persists the device and appends the sample atomically.
	RecordUsage(ctx context.Context, device *entities.Device, sample *entities.EnergySample) error
	// GetHistory returns the newest limit samples in chronological order.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]entities.EnergySample, error)
}

type BudgetRepository interface {
	Create(ctx context.Context, budget *entities.Budget) error
	GetByID(ctx context.Context, userID, id string) (*entities.Budget, error)
	GetByUserID(ctx context.Context, userID string) ([]entities.Budget, error)
	GetByStatus(ctx context.Context, status entities.BudgetStatus) ([]entities.Budget, error)
	Update(ctx context.Context, budget *entities.Budget) error
	Delete(ctx context.Context, userID, id string) error
}

type AlertRepository interface {
	Create(ctx context.Context, alert *entities.Alert) error
	GetByID(ctx context.Context, userID, id string) (*entities.Alert, error)
	// GetByUserID returns the user's alerts, newest first.
	GetByUserID(ctx context.Context, userID string) ([]entities.Alert, error)
	Update(ctx context.Context, alert *entities.Alert) error
}

// translate maps gorm errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
