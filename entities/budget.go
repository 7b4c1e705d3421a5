package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BudgetPeriod string

const (
	PeriodDaily   BudgetPeriod = "Daily"
	PeriodWeekly  BudgetPeriod = "Weekly"
	PeriodMonthly BudgetPeriod = "Monthly"
	PeriodYearly  BudgetPeriod = "Yearly"
)

func ParseBudgetPeriod(s string) (BudgetPeriod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return PeriodDaily, true
	case "weekly":
		return PeriodWeekly, true
	case "monthly":
		return PeriodMonthly, true
	case "yearly":
		return PeriodYearly, true
	}
	return "", false
}

type BudgetStatus string

const (
	BudgetActive   BudgetStatus = "Active"
	BudgetArchived BudgetStatus = "Archived"
)

func ParseBudgetStatus(s string) (BudgetStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return BudgetActive, true
	case "archived":
		return BudgetArchived, true
	}
	return "", false
}

type Budget struct {
	ID          string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      string         `gorm:"type:varchar(36);index;not null" json:"userId"`
	EnergyLimit float64        `gorm:"not null" json:"energyLimit"` // kWh
	Period      BudgetPeriod   `gorm:"type:varchar(16);not null" json:"period"`
	Label       string         `json:"label,omitempty"` // e.g. "February 2025"
	EnergyUsage float64        `gorm:"not null" json:"energyUsage"`
	Alerts      bool           `gorm:"not null" json:"alerts"`
	Status      BudgetStatus   `gorm:"type:varchar(16);index;not null" json:"status"`
	StartDate   *time.Time     `json:"startDate,omitempty"`
	EndDate     *time.Time     `json:"endDate,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Exceeded reports whether the recorded usage is over the limit.
func (b *Budget) Exceeded() bool { return b.EnergyUsage > b.EnergyLimit }

func (b *Budget) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = BudgetActive
	}
	return
}
