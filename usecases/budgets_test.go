package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"energy-server/entities"
	"energy-server/repositories"
	"energy-server/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type budgetFixture struct {
	uc      *BudgetUseCase
	devices *repositories.InMemoryDevices
	alerts  *repositories.InMemoryAlerts
	userID  string
}

func newBudgetFixture(t *testing.T) *budgetFixture {
	t.Helper()
	users := repositories.NewInMemoryUsers()
	u := &entities.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, users.Create(context.Background(), u))

	budgets := repositories.NewInMemoryBudgets()
	f := &budgetFixture{
		devices: repositories.NewInMemoryDevices(),
		alerts:  repositories.NewInMemoryAlerts(),
		userID:  u.ID,
	}
	agg := services.NewBudgetAggregator(budgets, f.devices, f.alerts, nil, zerolog.Nop())
	f.uc = NewBudgetUseCase(budgets, users, agg, zerolog.Nop())
	return f
}

func newBudgetUseCase(t *testing.T) (*BudgetUseCase, string) {
	f := newBudgetFixture(t)
	return f.uc, f.userID
}

func TestCreateBudget_Defaults(t *testing.T) {
	uc, userID := newBudgetUseCase(t)

	b, err := uc.CreateBudget(context.Background(), BudgetInput{UserID: userID, EnergyLimit: ptr(50.0), Label: "February 2025"})
	require.NoError(t, err)
	assert.Equal(t, entities.PeriodMonthly, b.Period)
	assert.Equal(t, entities.BudgetActive, b.Status)
	assert.Equal(t, "February 2025", b.Label)
	assert.False(t, b.Alerts)
}

func TestCreateBudget_Validation(t *testing.T) {
	uc, userID := newBudgetUseCase(t)
	ctx := context.Background()

	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err := uc.CreateBudget(ctx, BudgetInput{
		UserID: userID, EnergyLimit: ptr(0.0), Period: "Fortnightly", StartDate: &start, EndDate: &end,
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.FieldErrors, "energyLimit")
	assert.Contains(t, ve.FieldErrors, "period")
	assert.Contains(t, ve.FieldErrors, "endDate")

	_, err = uc.CreateBudget(ctx, BudgetInput{UserID: "ghost", EnergyLimit: ptr(10.0)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetEnergyUsage(t *testing.T) {
	uc, userID := newBudgetUseCase(t)
	ctx := context.Background()
	b, err := uc.CreateBudget(ctx, BudgetInput{UserID: userID, EnergyLimit: ptr(50.0)})
	require.NoError(t, err)

	_, err = uc.SetEnergyUsage(ctx, userID, b.ID, -1)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Energy usage cannot be negative", err.Error())

	got, err := uc.SetEnergyUsage(ctx, userID, b.ID, 75)
	require.NoError(t, err)
	assert.True(t, got.Alerts)

	got, err = uc.GetEnergyUsage(ctx, userID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.EnergyUsage)

	_, err = uc.SetEnergyUsage(ctx, "someone-else", b.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBudget_RecomputesAlerts(t *testing.T) {
	uc, userID := newBudgetUseCase(t)
	ctx := context.Background()
	b, err := uc.CreateBudget(ctx, BudgetInput{UserID: userID, EnergyLimit: ptr(50.0)})
	require.NoError(t, err)
	_, err = uc.SetEnergyUsage(ctx, userID, b.ID, 40)
	require.NoError(t, err)

	got, err := uc.UpdateBudget(ctx, userID, b.ID, BudgetUpdate{EnergyLimit: ptr(30.0), Period: ptr("weekly"), Status: ptr("archived")})
	require.NoError(t, err)
	assert.True(t, got.Alerts)
	assert.Equal(t, entities.PeriodWeekly, got.Period)
	assert.Equal(t, entities.BudgetArchived, got.Status)
}

func TestDeleteBudget(t *testing.T) {
	uc, userID := newBudgetUseCase(t)
	ctx := context.Background()
	b, err := uc.CreateBudget(ctx, BudgetInput{UserID: userID, EnergyLimit: ptr(50.0)})
	require.NoError(t, err)

	require.NoError(t, uc.DeleteBudget(ctx, userID, b.ID))
	assert.ErrorIs(t, uc.DeleteBudget(ctx, userID, b.ID), ErrNotFound)

	list, err := uc.ListBudgets(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAggregateUsage_MapsNotFound(t *testing.T) {
	uc, userID := newBudgetUseCase(t)

	_, err := uc.AggregateUsage(context.Background(), userID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetEnergyUsage_OverrunRaisesAlert(t *testing.T) {
	f := newBudgetFixture(t)
	ctx := context.Background()
	b, err := f.uc.CreateBudget(ctx, BudgetInput{UserID: f.userID, EnergyLimit: ptr(50.0)})
	require.NoError(t, err)

	_, err = f.uc.SetEnergyUsage(ctx, f.userID, b.ID, 100)
	require.NoError(t, err)

	alerts, err := f.alerts.GetByUserID(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, b.ID, alerts[0].BudgetID)

	// still over the limit: no second alert
	_, err = f.uc.SetEnergyUsage(ctx, f.userID, b.ID, 120)
	require.NoError(t, err)
	alerts, _ = f.alerts.GetByUserID(ctx, f.userID)
	assert.Len(t, alerts, 1)
}

func TestUpdateBudget_LoweredLimitRaisesAlert(t *testing.T) {
	f := newBudgetFixture(t)
	ctx := context.Background()
	b, err := f.uc.CreateBudget(ctx, BudgetInput{UserID: f.userID, EnergyLimit: ptr(50.0)})
	require.NoError(t, err)
	_, err = f.uc.SetEnergyUsage(ctx, f.userID, b.ID, 40)
	require.NoError(t, err)

	alerts, _ := f.alerts.GetByUserID(ctx, f.userID)
	require.Empty(t, alerts)

	_, err = f.uc.UpdateBudget(ctx, f.userID, b.ID, BudgetUpdate{EnergyLimit: ptr(30.0)})
	require.NoError(t, err)
	alerts, _ = f.alerts.GetByUserID(ctx, f.userID)
	assert.Len(t, alerts, 1)
}

func TestUpdateBudget_InvalidChangeIsNotSaved(t *testing.T) {
	f := newBudgetFixture(t)
	ctx := context.Background()
	b, err := f.uc.CreateBudget(ctx, BudgetInput{UserID: f.userID, EnergyLimit: ptr(50.0)})
	require.NoError(t, err)

	_, err = f.uc.UpdateBudget(ctx, f.userID, b.ID, BudgetUpdate{EnergyLimit: ptr(-1.0)})
	require.ErrorIs(t, err, ErrValidation)

	got, err := f.uc.GetBudget(ctx, f.userID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.EnergyLimit)
}

func TestSetEnergyUsage_ThenRunKeepsSingleAlert(t *testing.T) {
	f := newBudgetFixture(t)
	ctx := context.Background()
	for _, usage := range []float64{20, 40} {
		require.NoError(t, f.devices.Create(ctx, &entities.Device{UserID: f.userID, Name: "d", Status: entities.DeviceOn, EnergyUsage: usage}))
	}
	b, err := f.uc.CreateBudget(ctx, BudgetInput{UserID: f.userID, EnergyLimit: ptr(50.0)})
	require.NoError(t, err)

	_, err = f.uc.SetEnergyUsage(ctx, f.userID, b.ID, 100)
	require.NoError(t, err)

	got, err := f.uc.AggregateUsage(ctx, f.userID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.EnergyUsage)
	assert.True(t, got.Alerts)

	alerts, _ := f.alerts.GetByUserID(ctx, f.userID)
	assert.Len(t, alerts, 1)
}
