package repositories

import (
	"context"
	"time"

	"energy-server/db"
	"energy-server/entities"
)

type alertPgRepository struct {
	db db.Database
}

func NewAlertPgRepository(database db.Database) AlertRepository {
	return &alertPgRepository{db: database}
}

func (r *alertPgRepository) Create(ctx context.Context, alert *entities.Alert) error {
	return translate(r.db.GetDB().WithContext(ctx).Create(alert).Error)
}

func (r *alertPgRepository) GetByID(ctx context.Context, userID, id string) (*entities.Alert, error) {
	var alert entities.Alert
	err := r.db.GetDB().WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&alert).Error
	if err != nil {
		return nil, translate(err)
	}
	return &alert, nil
}

func (r *alertPgRepository) GetByUserID(ctx context.Context, userID string) ([]entities.Alert, error) {
	var alerts []entities.Alert
	err := r.db.GetDB().WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&alerts).Error
	return alerts, translate(err)
}

func (r *alertPgRepository) Update(ctx context.Context, alert *entities.Alert) error {
	alert.UpdatedAt = time.Now().UTC()
	return translate(r.db.GetDB().WithContext(ctx).Save(alert).Error)
}
