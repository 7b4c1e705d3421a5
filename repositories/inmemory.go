package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"energy-server/entities"
)

// In-memory stores used by tests and local runs without postgres. They mirror
// the ownership filters and ordering of the gorm repositories.

type InMemoryUsers struct {
	mu    sync.RWMutex
	users []entities.User
}

func NewInMemoryUsers() *InMemoryUsers { return &InMemoryUsers{} }

func (r *InMemoryUsers) Create(_ context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	_ = user.BeforeCreate(nil)
	stamp(&user.CreatedAt, &user.UpdatedAt)
	r.users = append(r.users, *user)
	return nil
}

func (r *InMemoryUsers) GetByID(_ context.Context, id string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryUsers) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

type InMemoryDevices struct {
	mu      sync.RWMutex
	devices []entities.Device
	samples []entities.EnergySample

	// FailRecord, when set, is returned by RecordUsage.
	FailRecord error
}

func NewInMemoryDevices() *InMemoryDevices { return &InMemoryDevices{} }

func (r *InMemoryDevices) Create(_ context.Context, device *entities.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = device.BeforeCreate(nil)
	stamp(&device.CreatedAt, &device.UpdatedAt)
	d := *device
	d.History = nil
	r.devices = append(r.devices, d)
	return nil
}

func (r *InMemoryDevices) find(userID, id string) int {
	for i, d := range r.devices {
		if d.ID == id && d.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *InMemoryDevices) GetByID(_ context.Context, userID, id string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.find(userID, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	out := r.devices[i]
	return &out, nil
}

func (r *InMemoryDevices) byUser(userID string, keep func(entities.Device) bool) []entities.Device {
	var out []entities.Device
	for i := len(r.devices) - 1; i >= 0; i-- {
		d := r.devices[i]
		if d.UserID == userID && (keep == nil || keep(d)) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *InMemoryDevices) GetByUserID(_ context.Context, userID string, offset, limit int) ([]entities.Device, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.byUser(userID, nil)
	total := int64(len(all))
	if offset >= len(all) {
		return []entities.Device{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r *InMemoryDevices) GetAllByUserID(_ context.Context, userID string) ([]entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser(userID, nil), nil
}

func (r *InMemoryDevices) GetByUserIDCreatedBetween(_ context.Context, userID string, from, to time.Time) ([]entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser(userID, func(d entities.Device) bool {
		return !d.CreatedAt.Before(from) && d.CreatedAt.Before(to)
	}), nil
}

func (r *InMemoryDevices) Update(_ context.Context, device *entities.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(device.UserID, device.ID)
	if i < 0 {
		return ErrNotFound
	}
	device.UpdatedAt = time.Now().UTC()
	d := *device
	d.History = nil
	r.devices[i] = d
	return nil
}

func (r *InMemoryDevices) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(userID, id)
	if i < 0 {
		return ErrNotFound
	}
	r.devices = append(r.devices[:i], r.devices[i+1:]...)
	return nil
}

func (r *InMemoryDevices) SumEnergyUsage(_ context.Context, userID string, status entities.DeviceStatus) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, d := range r.devices {
		if d.UserID == userID && d.Status == status {
			total += d.EnergyUsage
		}
	}
	return total, nil
}

func (r *InMemoryDevices) RecordUsage(_ context.Context, device *entities.Device, sample *entities.EnergySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailRecord != nil {
		return r.FailRecord
	}
	i := r.find(device.UserID, device.ID)
	if i < 0 {
		return ErrNotFound
	}
	device.UpdatedAt = time.Now().UTC()
	d := *device
	d.History = nil
	r.devices[i] = d

	sample.DeviceID = device.ID
	_ = sample.BeforeCreate(nil)
	r.samples = append(r.samples, *sample)
	return nil
}

func (r *InMemoryDevices) GetHistory(_ context.Context, deviceID string, limit int) ([]entities.EnergySample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entities.EnergySample
	for _, s := range r.samples {
		if s.DeviceID == deviceID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type InMemoryBudgets struct {
	mu      sync.RWMutex
	budgets []entities.Budget

	// FailUpdate lets tests make Update fail for a single budget id.
	FailUpdate map[string]error
}

func NewInMemoryBudgets() *InMemoryBudgets { return &InMemoryBudgets{} }

func (r *InMemoryBudgets) Create(_ context.Context, budget *entities.Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = budget.BeforeCreate(nil)
	stamp(&budget.CreatedAt, &budget.UpdatedAt)
	r.budgets = append(r.budgets, *budget)
	return nil
}

func (r *InMemoryBudgets) find(userID, id string) int {
	for i, b := range r.budgets {
		if b.ID == id && b.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *InMemoryBudgets) GetByID(_ context.Context, userID, id string) (*entities.Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.find(userID, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	out := r.budgets[i]
	return &out, nil
}

func (r *InMemoryBudgets) GetByUserID(_ context.Context, userID string) ([]entities.Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entities.Budget
	for i := len(r.budgets) - 1; i >= 0; i-- {
		if r.budgets[i].UserID == userID {
			out = append(out, r.budgets[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryBudgets) GetByStatus(_ context.Context, status entities.BudgetStatus) ([]entities.Budget, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entities.Budget
	for _, b := range r.budgets {
		if b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *InMemoryBudgets) Update(_ context.Context, budget *entities.Budget) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailUpdate[budget.ID]; err != nil {
		return err
	}
	i := r.find(budget.UserID, budget.ID)
	if i < 0 {
		return ErrNotFound
	}
	budget.UpdatedAt = time.Now().UTC()
	r.budgets[i] = *budget
	return nil
}

func (r *InMemoryBudgets) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.find(userID, id)
	if i < 0 {
		return ErrNotFound
	}
	r.budgets = append(r.budgets[:i], r.budgets[i+1:]...)
	return nil
}

type InMemoryAlerts struct {
	mu     sync.RWMutex
	alerts []entities.Alert
}

func NewInMemoryAlerts() *InMemoryAlerts { return &InMemoryAlerts{} }

func (r *InMemoryAlerts) Create(_ context.Context, alert *entities.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = alert.BeforeCreate(nil)
	stamp(&alert.CreatedAt, &alert.UpdatedAt)
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *InMemoryAlerts) GetByID(_ context.Context, userID, id string) (*entities.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.alerts {
		if a.ID == id && a.UserID == userID {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryAlerts) GetByUserID(_ context.Context, userID string) ([]entities.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entities.Alert
	for i := len(r.alerts) - 1; i >= 0; i-- {
		if r.alerts[i].UserID == userID {
			out = append(out, r.alerts[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryAlerts) Update(_ context.Context, alert *entities.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range r.alerts {
		if a.ID == alert.ID && a.UserID == alert.UserID {
			alert.UpdatedAt = time.Now().UTC()
			r.alerts[i] = *alert
			return nil
		}
	}
	return ErrNotFound
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}
