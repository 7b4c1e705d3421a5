package repositories

import (
	"context"
	"testing"
	"time"

	"energy-server/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryUsers_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryUsers()

	require.NoError(t, repo.Create(ctx, &entities.User{Name: "a", Email: "a@example.com"}))
	err := repo.Create(ctx, &entities.User{Name: "b", Email: "A@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	u, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
}

func TestInMemoryDevices_OwnershipAndPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDevices()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, &entities.Device{UserID: "u1", Name: "d"}))
	}
	other := &entities.Device{UserID: "u2", Name: "other"}
	require.NoError(t, repo.Create(ctx, other))

	page, total, err := repo.GetByUserID(ctx, "u1", 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, page, 2)

	page, _, err = repo.GetByUserID(ctx, "u1", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = repo.GetByID(ctx, "u1", other.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "u1", other.ID), ErrNotFound)
}

func TestInMemoryDevices_RecordUsageAndSum(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDevices()

	on := &entities.Device{UserID: "u1", Name: "heater", Status: entities.DeviceOn, EnergyUsage: 20}
	off := &entities.Device{UserID: "u1", Name: "fan", Status: entities.DeviceOff, EnergyUsage: 5}
	require.NoError(t, repo.Create(ctx, on))
	require.NoError(t, repo.Create(ctx, off))

	on.EnergyUsage = 20.5
	ts := time.Now().UTC()
	require.NoError(t, repo.RecordUsage(ctx, on, &entities.EnergySample{Timestamp: ts, EnergyConsumed: 0.5}))

	sum, err := repo.SumEnergyUsage(ctx, "u1", entities.DeviceOn)
	require.NoError(t, err)
	assert.Equal(t, 20.5, sum)

	hist, err := repo.GetHistory(ctx, on.ID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 0.5, hist[0].EnergyConsumed)
	assert.Equal(t, on.ID, hist[0].DeviceID)
}

func TestInMemoryAlerts_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAlerts()

	base := time.Now()
	require.NoError(t, repo.Create(ctx, &entities.Alert{UserID: "u1", Message: "old", CreatedAt: base}))
	require.NoError(t, repo.Create(ctx, &entities.Alert{UserID: "u1", Message: "new", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &entities.Alert{UserID: "u2", Message: "other"}))

	alerts, err := repo.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "new", alerts[0].Message)
}

func TestInMemoryDevices_GetHistoryKeepsNewest(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryDevices()

	d := &entities.Device{UserID: "u1", Name: "heater", Status: entities.DeviceOn}
	require.NoError(t, repo.Create(ctx, d))

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.RecordUsage(ctx, d, &entities.EnergySample{Timestamp: base.Add(time.Duration(i) * time.Minute)}))
	}

	hist, err := repo.GetHistory(ctx, d.ID, 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, base.Add(2*time.Minute), hist[0].Timestamp)
	assert.Equal(t, base.Add(4*time.Minute), hist[2].Timestamp)
}
