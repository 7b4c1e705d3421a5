package repositories

import (
	"context"
	"time"

	"energy-server/db"
	"energy-server/entities"
)

type budgetPgRepository struct {
	db db.Database
}

func NewBudgetPgRepository(database db.Database) BudgetRepository {
	return &budgetPgRepository{db: database}
}

func (r *budgetPgRepository) Create(ctx context.Context, budget *entities.Budget) error {
	return translate(r.db.GetDB().WithContext(ctx).Create(budget).Error)
}

func (r *budgetPgRepository) GetByID(ctx context.Context, userID, id string) (*entities.Budget, error) {
	var budget entities.Budget
	err := r.db.GetDB().WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&budget).Error
	if err != nil {
		return nil, translate(err)
	}
	return &budget, nil
}

func (r *budgetPgRepository) GetByUserID(ctx context.Context, userID string) ([]entities.Budget, error) {
	var budgets []entities.Budget
	err := r.db.GetDB().WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&budgets).Error
	return budgets, translate(err)
}

func (r *budgetPgRepository) GetByStatus(ctx context.Context, status entities.BudgetStatus) ([]entities.Budget, error) {
	var budgets []entities.Budget
	err := r.db.GetDB().WithContext(ctx).Where("status = ?", status).Find(&budgets).Error
	return budgets, translate(err)
}

func (r *budgetPgRepository) Update(ctx context.Context, budget *entities.Budget) error {
	budget.UpdatedAt = time.Now().UTC()
	return translate(r.db.GetDB().WithContext(ctx).Save(budget).Error)
}

func (r *budgetPgRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.GetDB().WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entities.Budget{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
