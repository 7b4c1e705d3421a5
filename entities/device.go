package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeviceStatus string

const (
	DeviceOn  DeviceStatus = "On"
	DeviceOff DeviceStatus = "Off"
)

// ParseDeviceStatus accepts On/Off as well as the older Online/Offline labels.
func ParseDeviceStatus(s string) (DeviceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "online":
		return DeviceOn, true
	case "off", "offline":
		return DeviceOff, true
	}
	return "", false
}

type Device struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string         `gorm:"type:varchar(36);index;not null" json:"userId"`
	Name        string         `gorm:"not null" json:"name"`
	Type        string         `json:"type,omitempty"`
	Status      DeviceStatus   `gorm:"type:varchar(16);index;not null" json:"status"`
	PowerRating float64        `gorm:"not null" json:"powerRating"` // watts
	EnergyUsage float64        `gorm:"not null" json:"energyUsage"` // kWh
	History     []EnergySample `gorm:"foreignKey:DeviceID" json:"energyConsumptionHistory,omitempty"`
	LastUpdated time.Time      `json:"lastUpdated"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Device) IsOn() bool { return d.Status == DeviceOn }

func (d *Device) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = DeviceOff
	}
	if d.LastUpdated.IsZero() {
		d.LastUpdated = time.Now().UTC()
	}
	return
}
