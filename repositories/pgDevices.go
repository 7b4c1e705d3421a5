package repositories

import (
	"context"
	"slices"
	"time"

	"energy-server/db"
	"energy-server/entities"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type devicePgRepository struct {
	db db.Database
}

func NewDevicePgRepository(database db.Database) DeviceRepository {
	return &devicePgRepository{db: database}
}

func (r *devicePgRepository) Create(ctx context.Context, device *entities.Device) error {
	return translate(r.db.GetDB().WithContext(ctx).Omit(clause.Associations).Create(device).Error)
}

func (r *devicePgRepository) GetByID(ctx context.Context, userID, id string) (*entities.Device, error) {
	var device entities.Device
	err := r.db.GetDB().WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&device).Error
	if err != nil {
		return nil, translate(err)
	}
	return &device, nil
}

func (r *devicePgRepository) GetByUserID(ctx context.Context, userID string, offset, limit int) ([]entities.Device, int64, error) {
	var total int64
	q := r.db.GetDB().WithContext(ctx).Model(&entities.Device{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var devices []entities.Device
	err := r.db.GetDB().WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&devices).Error
	return devices, total, translate(err)
}

func (r *devicePgRepository) GetAllByUserID(ctx context.Context, userID string) ([]entities.Device, error) {
	var devices []entities.Device
	err := r.db.GetDB().WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&devices).Error
	return devices, translate(err)
}

func (r *devicePgRepository) GetByUserIDCreatedBetween(ctx context.Context, userID string, from, to time.Time) ([]entities.Device, error) {
	var devices []entities.Device
	err := r.db.GetDB().WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Order("created_at DESC").
		Find(&devices).Error
	return devices, translate(err)
}

func (r *devicePgRepository) Update(ctx context.Context, device *entities.Device) error {
	device.UpdatedAt = time.Now().UTC()
	return translate(r.db.GetDB().WithContext(ctx).Omit(clause.Associations).Save(device).Error)
}

func (r *devicePgRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.GetDB().WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entities.Device{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *devicePgRepository) SumEnergyUsage(ctx context.Context, userID string, status entities.DeviceStatus) (float64, error) {
	var total float64
	err := r.db.GetDB().WithContext(ctx).
		Model(&entities.Device{}).
		Select("COALESCE(SUM(energy_usage), 0)").
		Where("user_id = ? AND status = ?", userID, status).
		Row().Scan(&total)
	if err != nil {
		return 0, translate(err)
	}
	return total, nil
}

func (r *devicePgRepository) RecordUsage(ctx context.Context, device *entities.Device, sample *entities.EnergySample) error {
	return translate(r.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		device.UpdatedAt = time.Now().UTC()
		if err := tx.Omit(clause.Associations).Save(device).Error; err != nil {
			return err
		}
		sample.DeviceID = device.ID
		return tx.Create(sample).Error
	}))
}

func (r *devicePgRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]entities.EnergySample, error) {
	var samples []entities.EnergySample
	q := r.db.GetDB().WithContext(ctx).Where("device_id = ?", deviceID).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&samples).Error; err != nil {
		return nil, translate(err)
	}
	slices.Reverse(samples)
	return samples, nil
}
