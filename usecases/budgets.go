package usecases

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"energy-server/entities"
	"energy-server/repositories"

	"github.com/rs/zerolog"
)

// UsageAggregator recomputes budgets under their owner's lock and raises
// overrun alerts.
type UsageAggregator interface {
	AggregateBudget(ctx context.Context, userID, budgetID string) (*entities.Budget, error)
	ApplyBudget(ctx context.Context, userID, budgetID string, mutate func(*entities.Budget) error) (*entities.Budget, error)
}

type BudgetInput struct {
	UserID      string
	EnergyLimit *float64
	Period      string
	Label       string
	Status      string
	StartDate   *time.Time
	EndDate     *time.Time
}

type BudgetUpdate struct {
	EnergyLimit *float64
	Period      *string
	Label       *string
	Status      *string
	StartDate   *time.Time
	EndDate     *time.Time
}

type BudgetUseCase struct {
	budgets    repositories.BudgetRepository
	users      repositories.UserRepository
	aggregator UsageAggregator
	log        zerolog.Logger
}

func NewBudgetUseCase(budgets repositories.BudgetRepository, users repositories.UserRepository, aggregator UsageAggregator, log zerolog.Logger) *BudgetUseCase {
	return &BudgetUseCase{
		budgets:    budgets,
		users:      users,
		aggregator: aggregator,
		log:        log,
	}
}

func budgetErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("budget %w", ErrNotFound)
	}
	return err
}

func validLimit(v *ValidationError, limit float64) {
	if limit <= 0 || math.IsNaN(limit) || math.IsInf(limit, 0) {
		v.add("energyLimit", "energyLimit must be greater than zero")
	}
}

func validRange(v *ValidationError, start, end *time.Time) {
	if start != nil && end != nil && end.Before(*start) {
		v.add("endDate", "endDate must not be before startDate")
	}
}

func (uc *BudgetUseCase) CreateBudget(ctx context.Context, in BudgetInput) (*entities.Budget, error) {
	v := &ValidationError{}
	if strings.TrimSpace(in.UserID) == "" {
		v.add("userId", "userId is required")
	}
	if in.EnergyLimit == nil {
		v.add("energyLimit", "energyLimit is required")
	} else {
		validLimit(v, *in.EnergyLimit)
	}
	period := entities.PeriodMonthly
	if in.Period != "" {
		p, ok := entities.ParseBudgetPeriod(in.Period)
		if !ok {
			v.add("period", "period must be one of Daily, Weekly, Monthly, Yearly")
		}
		period = p
	}
	status := entities.BudgetActive
	if in.Status != "" {
		s, ok := entities.ParseBudgetStatus(in.Status)
		if !ok {
			v.add("status", "status must be Active or Archived")
		}
		status = s
	}
	validRange(v, in.StartDate, in.EndDate)
	if err := v.orNil(); err != nil {
		return nil, err
	}

	if _, err := uc.users.GetByID(ctx, in.UserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("user %w", ErrNotFound)
		}
		return nil, err
	}

	budget := &entities.Budget{
		UserID:      in.UserID,
		EnergyLimit: *in.EnergyLimit,
		Period:      period,
		Label:       strings.TrimSpace(in.Label),
		Status:      status,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if err := uc.budgets.Create(ctx, budget); err != nil {
		return nil, fmt.Errorf("create budget: %w", err)
	}
	return budget, nil
}

func (uc *BudgetUseCase) ListBudgets(ctx context.Context, userID string) ([]entities.Budget, error) {
	budgets, err := uc.budgets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if budgets == nil {
		budgets = []entities.Budget{}
	}
	return budgets, nil
}

func (uc *BudgetUseCase) GetBudget(ctx context.Context, userID, id string) (*entities.Budget, error) {
	budget, err := uc.budgets.GetByID(ctx, userID, id)
	if err != nil {
		return nil, budgetErr(err)
	}
	return budget, nil
}

// UpdateBudget applies a partial update and recomputes the overrun flag
// against the new limit.
func (uc *BudgetUseCase) UpdateBudget(ctx context.Context, userID, id string, upd BudgetUpdate) (*entities.Budget, error) {
	budget, err := uc.aggregator.ApplyBudget(ctx, userID, id, func(budget *entities.Budget) error {
		v := &ValidationError{}
		if upd.EnergyLimit != nil {
			validLimit(v, *upd.EnergyLimit)
			budget.EnergyLimit = *upd.EnergyLimit
		}
		if upd.Period != nil {
			p, ok := entities.ParseBudgetPeriod(*upd.Period)
			if !ok {
				v.add("period", "period must be one of Daily, Weekly, Monthly, Yearly")
			}
			budget.Period = p
		}
		if upd.Label != nil {
			budget.Label = strings.TrimSpace(*upd.Label)
		}
		if upd.Status != nil {
			s, ok := entities.ParseBudgetStatus(*upd.Status)
			if !ok {
				v.add("status", "status must be Active or Archived")
			}
			budget.Status = s
		}
		if upd.StartDate != nil {
			budget.StartDate = upd.StartDate
		}
		if upd.EndDate != nil {
			budget.EndDate = upd.EndDate
		}
		validRange(v, budget.StartDate, budget.EndDate)
		return v.orNil()
	})
	if err != nil {
		return nil, budgetErr(err)
	}
	return budget, nil
}

func (uc *BudgetUseCase) DeleteBudget(ctx context.Context, userID, id string) error {
	return budgetErr(uc.budgets.Delete(ctx, userID, id))
}

func (uc *BudgetUseCase) GetEnergyUsage(ctx context.Context, userID, id string) (*entities.Budget, error) {
	return uc.GetBudget(ctx, userID, id)
}

// SetEnergyUsage overwrites the recorded usage of a budget.
func (uc *BudgetUseCase) SetEnergyUsage(ctx context.Context, userID, id string, usage float64) (*entities.Budget, error) {
	if usage < 0 || math.IsNaN(usage) || math.IsInf(usage, 0) {
		return nil, validationErr("energyUsage", "Energy usage cannot be negative")
	}

	budget, err := uc.aggregator.ApplyBudget(ctx, userID, id, func(b *entities.Budget) error {
		b.EnergyUsage = usage
		return nil
	})
	if err != nil {
		return nil, budgetErr(err)
	}
	return budget, nil
}

// AggregateUsage recomputes a single budget with the aggregation job's rules.
func (uc *BudgetUseCase) AggregateUsage(ctx context.Context, userID, id string) (*entities.Budget, error) {
	budget, err := uc.aggregator.AggregateBudget(ctx, userID, id)
	if err != nil {
		return nil, budgetErr(err)
	}
	return budget, nil
}
