package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"energy-server/entities"
	"energy-server/metrics"
	"energy-server/repositories"

	"github.com/rs/zerolog"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	historyLimit    = 500
)

// ConsumedEnergy returns the kWh drawn by a load of powerW watts over elapsed.
func ConsumedEnergy(powerW float64, elapsed time.Duration) float64 {
	if elapsed <= 0 || powerW <= 0 {
		return 0
	}
	return powerW * elapsed.Hours() / 1000
}

// ParseMonth accepts YYYY-MM or YYYY-MM-DD and returns the calendar month
// containing it as a half-open UTC range.
func ParseMonth(s string) (time.Time, time.Time, error) {
	s = strings.TrimSpace(s)
	var t time.Time
	var err error
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		t, err = time.Parse(layout, s)
		if err == nil {
			from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			return from, from.AddDate(0, 1, 0), nil
		}
	}
	return time.Time{}, time.Time{}, validationErr("month", "month must be formatted as YYYY-MM")
}

type DeviceInput struct {
	UserID      string
	Name        string
	Type        string
	Status      string
	PowerRating *float64
}

// DeviceUpdate carries the fields a partial update may change.
type DeviceUpdate struct {
	Name        *string
	Type        *string
	Status      *string
	PowerRating *float64
}

type DevicePage struct {
	TotalDevices int64             `json:"totalDevices"`
	TotalPages   int               `json:"totalPages"`
	CurrentPage  int               `json:"currentPage"`
	Devices      []entities.Device `json:"devices"`
}

type UsageUpdate struct {
	Device         *entities.Device `json:"device"`
	EnergyConsumed float64          `json:"energyConsumed"`
	Skipped        bool             `json:"skipped"`
}

type EnergySummary struct {
	TotalEnergyUsage  float64           `json:"totalEnergyUsage"`
	HighEnergyDevices []entities.Device `json:"highEnergyDevices"`
	Devices           []entities.Device `json:"devices"`
}

type MonthlyUsage struct {
	Month            string            `json:"month"`
	TotalEnergyUsage float64           `json:"totalEnergyUsage"`
	Devices          []entities.Device `json:"devices"`
}

type DeviceUseCase struct {
	devices   repositories.DeviceRepository
	users     repositories.UserRepository
	highUsage float64
	now       func() time.Time
	log       zerolog.Logger
}

func NewDeviceUseCase(devices repositories.DeviceRepository, users repositories.UserRepository, highUsageThreshold float64, log zerolog.Logger) *DeviceUseCase {
	return &DeviceUseCase{
		devices:   devices,
		users:     users,
		highUsage: highUsageThreshold,
		now:       time.Now,
		log:       log,
	}
}

func (uc *DeviceUseCase) WithClock(now func() time.Time) *DeviceUseCase {
	uc.now = now
	return uc
}

func (uc *DeviceUseCase) ensureUser(ctx context.Context, userID string) error {
	if _, err := uc.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("user %w", ErrNotFound)
		}
		return err
	}
	return nil
}

func deviceErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("device %w", ErrNotFound)
	}
	return err
}

// CreateDevice registers a device for an existing user. New devices start Off
// unless a status is given.
func (uc *DeviceUseCase) CreateDevice(ctx context.Context, in DeviceInput) (*entities.Device, error) {
	v := &ValidationError{}
	if strings.TrimSpace(in.UserID) == "" {
		v.add("userId", "userId is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		v.add("name", "device name is required")
	}
	if in.PowerRating == nil {
		v.add("powerRating", "powerRating is required")
	} else if *in.PowerRating < 0 || math.IsNaN(*in.PowerRating) {
		v.add("powerRating", "powerRating cannot be negative")
	}
	status := entities.DeviceOff
	if in.Status != "" {
		s, ok := entities.ParseDeviceStatus(in.Status)
		if !ok {
			v.add("status", "status must be On or Off")
		}
		status = s
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if err := uc.ensureUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	device := &entities.Device{
		UserID:      in.UserID,
		Name:        strings.TrimSpace(in.Name),
		Type:        strings.TrimSpace(in.Type),
		Status:      status,
		PowerRating: *in.PowerRating,
		LastUpdated: uc.now().UTC(),
	}
	if err := uc.devices.Create(ctx, device); err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}
	return device, nil
}

// GetDevice returns the device with its consumption history.
func (uc *DeviceUseCase) GetDevice(ctx context.Context, userID, id string) (*entities.Device, error) {
	device, err := uc.devices.GetByID(ctx, userID, id)
	if err != nil {
		return nil, deviceErr(err)
	}
	history, err := uc.devices.GetHistory(ctx, device.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	device.History = history
	return device, nil
}

func (uc *DeviceUseCase) ListDevices(ctx context.Context, userID string, page, limit int) (*DevicePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	devices, total, err := uc.devices.GetByUserID(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if devices == nil {
		devices = []entities.Device{}
	}

	return &DevicePage{
		TotalDevices: total,
		TotalPages:   int((total + int64(limit) - 1) / int64(limit)),
		CurrentPage:  page,
		Devices:      devices,
	}, nil
}

// ListDevicesByMonth returns the devices created during the given month.
func (uc *DeviceUseCase) ListDevicesByMonth(ctx context.Context, userID, month string) ([]entities.Device, error) {
	from, to, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}
	devices, err := uc.devices.GetByUserIDCreatedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if devices == nil {
		devices = []entities.Device{}
	}
	return devices, nil
}

func (uc *DeviceUseCase) UpdateDevice(ctx context.Context, userID, id string, upd DeviceUpdate) (*entities.Device, error) {
	device, err := uc.devices.GetByID(ctx, userID, id)
	if err != nil {
		return nil, deviceErr(err)
	}

	v := &ValidationError{}
	if upd.Name != nil {
		if name := strings.TrimSpace(*upd.Name); name == "" {
			v.add("name", "device name cannot be empty")
		} else {
			device.Name = name
		}
	}
	if upd.Type != nil {
		device.Type = strings.TrimSpace(*upd.Type)
	}
	if upd.PowerRating != nil {
		if *upd.PowerRating < 0 || math.IsNaN(*upd.PowerRating) {
			v.add("powerRating", "powerRating cannot be negative")
		} else {
			device.PowerRating = *upd.PowerRating
		}
	}
	if upd.Status != nil {
		status, ok := entities.ParseDeviceStatus(*upd.Status)
		if !ok {
			v.add("status", "status must be On or Off")
		} else {
			// switching on starts a fresh metering window
			if status == entities.DeviceOn && !device.IsOn() {
				device.LastUpdated = uc.now().UTC()
			}
			device.Status = status
		}
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if err := uc.devices.Update(ctx, device); err != nil {
		return nil, deviceErr(err)
	}
	return device, nil
}

// SetDeviceStatus switches a device on or off.
func (uc *DeviceUseCase) SetDeviceStatus(ctx context.Context, userID, id, status string) (*entities.Device, error) {
	return uc.UpdateDevice(ctx, userID, id, DeviceUpdate{Status: &status})
}

func (uc *DeviceUseCase) DeleteDevice(ctx context.Context, userID, id string) error {
	return deviceErr(uc.devices.Delete(ctx, userID, id))
}

// UpdateEnergyUsage bills the time since the device's last update at its
// power rating. Devices that are off are returned unchanged.
func (uc *DeviceUseCase) UpdateEnergyUsage(ctx context.Context, userID, id string) (*UsageUpdate, error) {
	device, err := uc.devices.GetByID(ctx, userID, id)
	if err != nil {
		return nil, deviceErr(err)
	}

	if !device.IsOn() {
		metrics.RecordUsageUpdate("skipped")
		return &UsageUpdate{Device: device, Skipped: true}, nil
	}

	now := uc.now().UTC()
	elapsed := now.Sub(device.LastUpdated)
	if elapsed < 0 {
		uc.log.Warn().Str("device_id", device.ID).Dur("elapsed", elapsed).Msg("last update is in the future, clamping")
		elapsed = 0
	}
	consumed := ConsumedEnergy(device.PowerRating, elapsed)

	device.EnergyUsage += consumed
	device.LastUpdated = now
	sample := &entities.EnergySample{Timestamp: now, EnergyConsumed: consumed}

	if err := uc.devices.RecordUsage(ctx, device, sample); err != nil {
		metrics.RecordUsageUpdate("failed")
		return nil, fmt.Errorf("record usage: %w", deviceErr(err))
	}
	metrics.RecordUsageUpdate("ok")

	return &UsageUpdate{Device: device, EnergyConsumed: consumed}, nil
}

// EnergySummary totals the user's device usage and flags heavy consumers.
func (uc *DeviceUseCase) EnergySummary(ctx context.Context, userID string) (*EnergySummary, error) {
	devices, err := uc.devices.GetAllByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	sum := &EnergySummary{
		HighEnergyDevices: []entities.Device{},
		Devices:           []entities.Device{},
	}
	for _, d := range devices {
		sum.TotalEnergyUsage += d.EnergyUsage
		if d.EnergyUsage > uc.highUsage {
			sum.HighEnergyDevices = append(sum.HighEnergyDevices, d)
		}
		sum.Devices = append(sum.Devices, d)
	}
	return sum, nil
}

func (uc *DeviceUseCase) MonthlyEnergyUsage(ctx context.Context, userID, month string) (*MonthlyUsage, error) {
	devices, err := uc.ListDevicesByMonth(ctx, userID, month)
	if err != nil {
		return nil, err
	}
	from, _, _ := ParseMonth(month)

	out := &MonthlyUsage{Month: from.Format("2006-01"), Devices: devices}
	for _, d := range devices {
		out.TotalEnergyUsage += d.EnergyUsage
	}
	return out, nil
}
