package repositories

import (
	"context"

	"energy-server/db"
	"energy-server/entities"
)

type userPgRepository struct {
	db db.Database
}

func NewUserPgRepository(database db.Database) UserRepository {
	return &userPgRepository{db: database}
}

func (r *userPgRepository) Create(ctx context.Context, user *entities.User) error {
	return translate(r.db.GetDB().WithContext(ctx).Create(user).Error)
}

func (r *userPgRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	err := r.db.GetDB().WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userPgRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	err := r.db.GetDB().WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
