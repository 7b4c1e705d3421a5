package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"energy-server/entities"
	"energy-server/metrics"
	"energy-server/notifiers"
	"energy-server/repositories"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"

	scheduledRunTimeout = 5 * time.Minute
)

// RunReport summarizes one pass of the aggregation job.
type RunReport struct {
	Trigger    string        `json:"trigger"`
	Processed  int           `json:"processed"`
	Failed     int           `json:"failed"`
	Overruns   int           `json:"overruns"`
	NewAlerts  int           `json:"newAlerts"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"durationMs"`
}

// BudgetAggregator recomputes active budgets from the owners' devices that
// are switched on and raises an alert when a budget first goes over its limit.
type BudgetAggregator struct {
	budgets  repositories.BudgetRepository
	devices  repositories.DeviceRepository
	alerts   repositories.AlertRepository
	notifier notifiers.Notifier
	locks    *userLocks
	log      zerolog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last *RunReport
	cron *cron.Cron
}

func NewBudgetAggregator(budgets repositories.BudgetRepository, devices repositories.DeviceRepository, alerts repositories.AlertRepository, notifier notifiers.Notifier, log zerolog.Logger) *BudgetAggregator {
	if notifier == nil {
		notifier = notifiers.Nop{}
	}
	return &BudgetAggregator{
		budgets:  budgets,
		devices:  devices,
		alerts:   alerts,
		notifier: notifier,
		locks:    newUserLocks(),
		log:      log,
		now:      time.Now,
	}
}

func (a *BudgetAggregator) WithClock(now func() time.Time) *BudgetAggregator {
	a.now = now
	return a
}

// Run aggregates every active budget. A failure on one budget is logged and
// counted without stopping the run; only failing to list budgets is an error.
func (a *BudgetAggregator) Run(ctx context.Context, trigger string) (RunReport, error) {
	report := RunReport{Trigger: trigger, StartedAt: a.now().UTC()}
	start := time.Now()

	budgets, err := a.budgets.GetByStatus(ctx, entities.BudgetActive)
	if err != nil {
		report.Duration = time.Since(start)
		report.DurationMS = report.Duration.Milliseconds()
		metrics.RecordAggregationRun(trigger, report.Duration, 0, 0, false)
		a.log.Error().Err(err).Str("trigger", trigger).Msg("aggregation: cannot list active budgets")
		return report, fmt.Errorf("list active budgets: %w", err)
	}

	for _, b := range budgets {
		if err := ctx.Err(); err != nil {
			a.log.Warn().Err(err).Int("remaining", len(budgets)-report.Processed-report.Failed).Msg("aggregation interrupted")
			break
		}

		res, err := a.recompute(ctx, b.UserID, b.ID)
		if err != nil {
			report.Failed++
			a.log.Error().Err(err).Str("budget_id", b.ID).Str("user_id", b.UserID).Msg("aggregation: budget failed")
			continue
		}
		report.Processed++
		if res.budget.Alerts {
			report.Overruns++
		}
		if res.alertCreated {
			report.NewAlerts++
		}
	}

	report.Duration = time.Since(start)
	report.DurationMS = report.Duration.Milliseconds()

	a.mu.Lock()
	r := report
	a.last = &r
	a.mu.Unlock()

	metrics.RecordAggregationRun(trigger, report.Duration, report.Processed, report.Failed, true)
	a.log.Info().
		Str("trigger", trigger).
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Int("overruns", report.Overruns).
		Int("new_alerts", report.NewAlerts).
		Dur("duration", report.Duration).
		Msg("aggregation finished")

	return report, ctx.Err()
}

// AggregateBudget recomputes a single budget of the user.
func (a *BudgetAggregator) AggregateBudget(ctx context.Context, userID, budgetID string) (*entities.Budget, error) {
	res, err := a.recompute(ctx, userID, budgetID)
	if err != nil {
		return nil, err
	}
	return res.budget, nil
}

// ApplyBudget runs mutate on the stored budget under its owner's lock, then
// saves it with a fresh overrun flag. An alert is raised when the flag turns
// on, whatever changed the usage or the limit. Errors from mutate are
// returned unchanged and nothing is saved.
func (a *BudgetAggregator) ApplyBudget(ctx context.Context, userID, budgetID string, mutate func(*entities.Budget) error) (*entities.Budget, error) {
	res, err := a.apply(ctx, userID, budgetID, mutate)
	if err != nil {
		return nil, err
	}
	return res.budget, nil
}

type recomputeResult struct {
	budget       *entities.Budget
	alertCreated bool
}

func (a *BudgetAggregator) recompute(ctx context.Context, userID, budgetID string) (recomputeResult, error) {
	return a.apply(ctx, userID, budgetID, func(b *entities.Budget) error {
		total, err := a.devices.SumEnergyUsage(ctx, userID, entities.DeviceOn)
		if err != nil {
			return fmt.Errorf("sum device usage: %w", err)
		}
		b.EnergyUsage = total
		return nil
	})
}

func (a *BudgetAggregator) apply(ctx context.Context, userID, budgetID string, mutate func(*entities.Budget) error) (recomputeResult, error) {
	unlock := a.locks.lock(userID)
	defer unlock()

	// re-read under the lock so the previous alerts flag is current
	budget, err := a.budgets.GetByID(ctx, userID, budgetID)
	if err != nil {
		return recomputeResult{}, err
	}

	wasExceeded := budget.Alerts
	if err := mutate(budget); err != nil {
		return recomputeResult{}, err
	}
	budget.Alerts = budget.Exceeded()

	if err := a.budgets.Update(ctx, budget); err != nil {
		return recomputeResult{}, fmt.Errorf("save budget: %w", err)
	}

	res := recomputeResult{budget: budget}
	if budget.Alerts && !wasExceeded {
		res.alertCreated = a.raiseAlert(ctx, budget)
	}
	return res, nil
}

func (a *BudgetAggregator) raiseAlert(ctx context.Context, b *entities.Budget) bool {
	alert := &entities.Alert{
		UserID:   b.UserID,
		BudgetID: b.ID,
		Message:  OverrunMessage(b),
	}
	if err := a.alerts.Create(ctx, alert); err != nil {
		a.log.Error().Err(err).Str("budget_id", b.ID).Msg("failed to store overrun alert")
		return false
	}
	metrics.RecordAlertCreated()

	if err := a.notifier.Notify(ctx, alert); err != nil {
		a.log.Warn().Err(err).Str("alert_id", alert.ID).Msg("overrun notification failed")
	}
	return true
}

// OverrunMessage is the text of the alert raised when b goes over its limit.
func OverrunMessage(b *entities.Budget) string {
	name := string(b.Period)
	if b.Label != "" {
		name = b.Label
	}
	return fmt.Sprintf("Budget exceeded: %s usage %.2f kWh is over the %.2f kWh limit", name, b.EnergyUsage, b.EnergyLimit)
}

// LastRun returns the report of the most recent completed run.
func (a *BudgetAggregator) LastRun() (RunReport, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return RunReport{}, false
	}
	return *a.last, true
}

// Start schedules Run on the cron spec until Stop. Overlapping runs are skipped.
func (a *BudgetAggregator) Start(ctx context.Context, schedule string) error {
	logger := cronLogger{log: a.log}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, scheduledRunTimeout)
		defer cancel()
		_, _ = a.Run(runCtx, TriggerScheduled)
	})
	if err != nil {
		return fmt.Errorf("invalid aggregation schedule %q: %w", schedule, err)
	}

	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()

	c.Start()
	a.log.Info().Str("schedule", schedule).Msg("aggregation job scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (a *BudgetAggregator) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	a.log.Info().Msg("aggregation job stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
