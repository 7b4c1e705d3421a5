package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnergySample is one entry of a device's append-only consumption history.
type EnergySample struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	DeviceID       string    `gorm:"type:varchar(36);index;not null" json:"deviceId"`
	Timestamp      time.Time `gorm:"index;not null" json:"timestamp"`
	EnergyConsumed float64   `gorm:"not null" json:"energyConsumed"` // kWh
	CreatedAt      time.Time `json:"-"`
}

func (s *EnergySample) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
