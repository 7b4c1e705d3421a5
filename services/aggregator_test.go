package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"energy-server/entities"
	"energy-server/repositories"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	budgets  *repositories.InMemoryBudgets
	devices  *repositories.InMemoryDevices
	alerts   *repositories.InMemoryAlerts
	notifier *captureNotifier
	agg      *BudgetAggregator
}

type captureNotifier struct {
	mu  sync.Mutex
	got []entities.Alert
}

func (c *captureNotifier) Notify(_ context.Context, a *entities.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, *a)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func newFixture() *fixture {
	f := &fixture{
		budgets:  repositories.NewInMemoryBudgets(),
		devices:  repositories.NewInMemoryDevices(),
		alerts:   repositories.NewInMemoryAlerts(),
		notifier: &captureNotifier{},
	}
	f.agg = NewBudgetAggregator(f.budgets, f.devices, f.alerts, f.notifier, zerolog.Nop())
	return f
}

func (f *fixture) device(t *testing.T, userID string, status entities.DeviceStatus, usage float64) {
	t.Helper()
	require.NoError(t, f.devices.Create(context.Background(), &entities.Device{
		UserID: userID, Name: "d", Status: status, EnergyUsage: usage,
	}))
}

func (f *fixture) budget(t *testing.T, userID string, limit float64) *entities.Budget {
	t.Helper()
	b := &entities.Budget{UserID: userID, EnergyLimit: limit, Period: entities.PeriodMonthly}
	require.NoError(t, f.budgets.Create(context.Background(), b))
	return b
}

func TestRun_SumsOnlineDevicesAndFlagsOverrun(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.device(t, "u1", entities.DeviceOn, 20)
	f.device(t, "u1", entities.DeviceOn, 40)
	f.device(t, "u1", entities.DeviceOff, 100)
	f.device(t, "u2", entities.DeviceOn, 7)
	b := f.budget(t, "u1", 50)

	report, err := f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Overruns)
	assert.Equal(t, 1, report.NewAlerts)

	got, err := f.budgets.GetByID(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.EnergyUsage)
	assert.True(t, got.Alerts)

	alerts, err := f.alerts.GetByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, b.ID, alerts[0].BudgetID)
	assert.Contains(t, alerts[0].Message, "Budget exceeded")
	assert.Equal(t, 1, f.notifier.count())
}

func TestRun_UnderLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.device(t, "u1", entities.DeviceOn, 10)
	b := f.budget(t, "u1", 50)

	_, err := f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)

	got, _ := f.budgets.GetByID(ctx, "u1", b.ID)
	assert.Equal(t, 10.0, got.EnergyUsage)
	assert.False(t, got.Alerts)
	assert.Zero(t, f.notifier.count())
}

func TestRun_ExactlyAtLimitIsNotAnOverrun(t *testing.T) {
	f := newFixture()
	f.device(t, "u1", entities.DeviceOn, 50)
	b := f.budget(t, "u1", 50)

	_, err := f.agg.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	got, _ := f.budgets.GetByID(context.Background(), "u1", b.ID)
	assert.False(t, got.Alerts)
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.device(t, "u1", entities.DeviceOn, 20)
	f.device(t, "u1", entities.DeviceOn, 40)
	b := f.budget(t, "u1", 50)

	_, err := f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)
	first, _ := f.budgets.GetByID(ctx, "u1", b.ID)

	report, err := f.agg.Run(ctx, TriggerScheduled)
	require.NoError(t, err)
	second, _ := f.budgets.GetByID(ctx, "u1", b.ID)

	assert.Equal(t, first.EnergyUsage, second.EnergyUsage)
	assert.Equal(t, first.Alerts, second.Alerts)
	assert.Zero(t, report.NewAlerts, "a budget already over its limit must not alert again")

	alerts, _ := f.alerts.GetByUserID(ctx, "u1")
	assert.Len(t, alerts, 1)
}

func TestRun_SkipsArchivedBudgets(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.device(t, "u1", entities.DeviceOn, 20)
	archived := &entities.Budget{UserID: "u1", EnergyLimit: 5, Period: entities.PeriodDaily, Status: entities.BudgetArchived}
	require.NoError(t, f.budgets.Create(ctx, archived))

	report, err := f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)

	got, _ := f.budgets.GetByID(ctx, "u1", archived.ID)
	assert.Zero(t, got.EnergyUsage)
}

func TestRun_IsolatesBudgetFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.device(t, "u1", entities.DeviceOn, 20)
	f.device(t, "u2", entities.DeviceOn, 30)
	bad := f.budget(t, "u1", 50)
	good := f.budget(t, "u2", 10)
	f.budgets.FailUpdate = map[string]error{bad.ID: errors.New("write failed")}

	report, err := f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Processed)

	got, _ := f.budgets.GetByID(ctx, "u2", good.ID)
	assert.Equal(t, 30.0, got.EnergyUsage)
	assert.True(t, got.Alerts)

	last, ok := f.agg.LastRun()
	require.True(t, ok)
	assert.Equal(t, 1, last.Failed)
}

func TestRun_AlertsAgainAfterRecovery(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	d := &entities.Device{UserID: "u1", Name: "d", Status: entities.DeviceOn, EnergyUsage: 60}
	require.NoError(t, f.devices.Create(ctx, d))
	f.budget(t, "u1", 50)

	_, err := f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)

	d.Status = entities.DeviceOff
	require.NoError(t, f.devices.Update(ctx, d))
	_, err = f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)

	d.Status = entities.DeviceOn
	require.NoError(t, f.devices.Update(ctx, d))
	report, err := f.agg.Run(ctx, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, report.NewAlerts)
	assert.Equal(t, 2, f.notifier.count())
}

func TestAggregateBudget_NotFound(t *testing.T) {
	f := newFixture()
	b := f.budget(t, "u1", 50)

	_, err := f.agg.AggregateBudget(context.Background(), "u2", b.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestAggregateBudget_ConcurrentWithRunCreatesOneAlert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.device(t, "u1", entities.DeviceOn, 80)
	b := f.budget(t, "u1", 50)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.agg.Run(ctx, TriggerScheduled)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.agg.AggregateBudget(ctx, "u1", b.ID)
		}()
	}
	wg.Wait()

	alerts, _ := f.alerts.GetByUserID(ctx, "u1")
	assert.Len(t, alerts, 1)
	assert.Zero(t, f.agg.locks.size())
}

func TestStart_InvalidSchedule(t *testing.T) {
	f := newFixture()
	assert.Error(t, f.agg.Start(context.Background(), "not a schedule"))
}

func TestStart_RunsOnSchedule(t *testing.T) {
	f := newFixture()
	f.device(t, "u1", entities.DeviceOn, 5)
	f.budget(t, "u1", 50)

	require.NoError(t, f.agg.Start(context.Background(), "@every 1s"))
	defer f.agg.Stop()

	require.Eventually(t, func() bool {
		r, ok := f.agg.LastRun()
		return ok && r.Trigger == TriggerScheduled
	}, 3*time.Second, 50*time.Millisecond)
}

func TestUserLocks_Serializes(t *testing.T) {
	l := newUserLocks()
	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("u1")
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Zero(t, l.size())
}
