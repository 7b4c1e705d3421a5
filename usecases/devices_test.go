package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"energy-server/entities"
	"energy-server/repositories"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deviceFixture struct {
	users   *repositories.InMemoryUsers
	devices *repositories.InMemoryDevices
	uc      *DeviceUseCase
	now     time.Time
	userID  string
}

func newDeviceFixture(t *testing.T) *deviceFixture {
	t.Helper()
	f := &deviceFixture{
		users:   repositories.NewInMemoryUsers(),
		devices: repositories.NewInMemoryDevices(),
		now:     time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC),
	}
	u := &entities.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, f.users.Create(context.Background(), u))
	f.userID = u.ID
	f.uc = NewDeviceUseCase(f.devices, f.users, 10, zerolog.Nop()).
		WithClock(func() time.Time { return f.now })
	return f
}

func ptr[T any](v T) *T { return &v }

func (f *deviceFixture) create(t *testing.T, name string, power float64, status string) *entities.Device {
	t.Helper()
	d, err := f.uc.CreateDevice(context.Background(), DeviceInput{
		UserID: f.userID, Name: name, PowerRating: ptr(power), Status: status,
	})
	require.NoError(t, err)
	return d
}

func TestConsumedEnergy(t *testing.T) {
	assert.InDelta(t, 0.2, ConsumedEnergy(100, 2*time.Hour), 1e-9)
	assert.InDelta(t, 1.5, ConsumedEnergy(1500, time.Hour), 1e-9)
	assert.Zero(t, ConsumedEnergy(100, -time.Hour))
	assert.Zero(t, ConsumedEnergy(0, time.Hour))
}

func TestUpdateEnergyUsage_BillsElapsedTime(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	d := f.create(t, "lamp", 100, "On")

	f.now = f.now.Add(2 * time.Hour)
	res, err := f.uc.UpdateEnergyUsage(ctx, f.userID, d.ID)
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.InDelta(t, 0.2, res.EnergyConsumed, 1e-9)
	assert.InDelta(t, 0.2, res.Device.EnergyUsage, 1e-9)
	assert.Equal(t, f.now, res.Device.LastUpdated)

	hist, err := f.devices.GetHistory(ctx, d.ID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.InDelta(t, 0.2, hist[0].EnergyConsumed, 1e-9)
	assert.Equal(t, f.now, hist[0].Timestamp)

	f.now = f.now.Add(30 * time.Minute)
	res, err = f.uc.UpdateEnergyUsage(ctx, f.userID, d.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.Device.EnergyUsage, 1e-9)
}

func TestUpdateEnergyUsage_OffDeviceIsNoop(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	d := f.create(t, "fan", 100, "")

	f.now = f.now.Add(5 * time.Hour)
	res, err := f.uc.UpdateEnergyUsage(ctx, f.userID, d.ID)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Device.EnergyUsage)

	hist, _ := f.devices.GetHistory(ctx, d.ID, 0)
	assert.Empty(t, hist)
}

func TestUpdateEnergyUsage_ClockSkewClamped(t *testing.T) {
	f := newDeviceFixture(t)
	d := f.create(t, "lamp", 100, "On")

	f.now = f.now.Add(-time.Hour)
	res, err := f.uc.UpdateEnergyUsage(context.Background(), f.userID, d.ID)
	require.NoError(t, err)
	assert.Zero(t, res.EnergyConsumed)
	assert.Zero(t, res.Device.EnergyUsage)
}

func TestUpdateEnergyUsage_NotFound(t *testing.T) {
	f := newDeviceFixture(t)
	d := f.create(t, "lamp", 100, "On")

	_, err := f.uc.UpdateEnergyUsage(context.Background(), "someone-else", d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEnergyUsage_StoreFailureLeavesNoPartialState(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	d := f.create(t, "lamp", 100, "On")
	f.devices.FailRecord = errors.New("tx aborted")

	f.now = f.now.Add(time.Hour)
	_, err := f.uc.UpdateEnergyUsage(ctx, f.userID, d.ID)
	require.Error(t, err)

	stored, err := f.devices.GetByID(ctx, f.userID, d.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.EnergyUsage)
}

func TestUpdateDevice_SwitchingOnResetsMeter(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	d := f.create(t, "heater", 2000, "Off")

	f.now = f.now.Add(10 * time.Hour)
	updated, err := f.uc.SetDeviceStatus(ctx, f.userID, d.ID, "online")
	require.NoError(t, err)
	assert.Equal(t, entities.DeviceOn, updated.Status)
	assert.Equal(t, f.now, updated.LastUpdated)

	f.now = f.now.Add(time.Hour)
	res, err := f.uc.UpdateEnergyUsage(ctx, f.userID, d.ID)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.EnergyConsumed, 1e-9, "off time must not be billed")
}

func TestUpdateDevice_Validation(t *testing.T) {
	f := newDeviceFixture(t)
	d := f.create(t, "lamp", 60, "")

	_, err := f.uc.UpdateDevice(context.Background(), f.userID, d.ID, DeviceUpdate{
		Name: ptr(" "), PowerRating: ptr(-1.0), Status: ptr("broken"),
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.FieldErrors, 3)
}

func TestCreateDevice_Validation(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	_, err := f.uc.CreateDevice(ctx, DeviceInput{UserID: f.userID, PowerRating: ptr(-5.0)})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.uc.CreateDevice(ctx, DeviceInput{UserID: "ghost", Name: "x", PowerRating: ptr(5.0)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDevices_Pagination(t *testing.T) {
	f := newDeviceFixture(t)
	for i := 0; i < 25; i++ {
		f.create(t, "d", 10, "")
	}

	page, err := f.uc.ListDevices(context.Background(), f.userID, 3, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 25, page.TotalDevices)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.CurrentPage)
	assert.Len(t, page.Devices, 5)

	page, err = f.uc.ListDevices(context.Background(), f.userID, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Len(t, page.Devices, 25)
	assert.Equal(t, 1, page.TotalPages)
}

func TestDeleteDevice(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	d := f.create(t, "lamp", 60, "")

	require.NoError(t, f.uc.DeleteDevice(ctx, f.userID, d.ID))
	assert.ErrorIs(t, f.uc.DeleteDevice(ctx, f.userID, d.ID), ErrNotFound)
	_, err := f.uc.GetDevice(ctx, f.userID, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnergySummary(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	a := f.create(t, "a", 10, "")
	b := f.create(t, "b", 10, "")
	a.EnergyUsage = 12
	b.EnergyUsage = 3
	require.NoError(t, f.devices.Update(ctx, a))
	require.NoError(t, f.devices.Update(ctx, b))

	sum, err := f.uc.EnergySummary(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, sum.TotalEnergyUsage)
	require.Len(t, sum.HighEnergyDevices, 1)
	assert.Equal(t, a.ID, sum.HighEnergyDevices[0].ID)
	assert.Len(t, sum.Devices, 2)
}

func TestMonthlyEnergyUsage(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()

	jan := &entities.Device{UserID: f.userID, Name: "old", EnergyUsage: 4, CreatedAt: time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)}
	feb := &entities.Device{UserID: f.userID, Name: "new", EnergyUsage: 6, CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, f.devices.Create(ctx, jan))
	require.NoError(t, f.devices.Create(ctx, feb))

	out, err := f.uc.MonthlyEnergyUsage(ctx, f.userID, "2025-02-14")
	require.NoError(t, err)
	assert.Equal(t, "2025-02", out.Month)
	assert.Equal(t, 6.0, out.TotalEnergyUsage)
	require.Len(t, out.Devices, 1)
	assert.Equal(t, feb.ID, out.Devices[0].ID)

	_, err = f.uc.MonthlyEnergyUsage(ctx, f.userID, "February")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetDevice_HistoryShowsNewestSamples(t *testing.T) {
	f := newDeviceFixture(t)
	ctx := context.Background()
	d := f.create(t, "lamp", 100, "On")

	for i := 0; i < historyLimit+1; i++ {
		f.now = f.now.Add(time.Minute)
		_, err := f.uc.UpdateEnergyUsage(ctx, f.userID, d.ID)
		require.NoError(t, err)
	}

	got, err := f.uc.GetDevice(ctx, f.userID, d.ID)
	require.NoError(t, err)
	require.Len(t, got.History, historyLimit)
	assert.Equal(t, f.now, got.History[len(got.History)-1].Timestamp)
	assert.True(t, got.History[0].Timestamp.Before(got.History[1].Timestamp))
}
