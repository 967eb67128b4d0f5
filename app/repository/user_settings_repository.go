package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
)

type userSettingsRepository struct {
	db *gorm.DB
}

// NewUserSettingsRepository creates a new user settings repository instance
func NewUserSettingsRepository(db *gorm.DB) UserSettingsRepository {
	return &userSettingsRepository{db: db}
}

func (r *userSettingsRepository) GetOrCreate(ctx context.Context, userID uint) (*models.UserSettings, error) {
	return models.GetOrCreateUserSettings(r.db.WithContext(ctx), userID)
}

func (r *userSettingsRepository) Save(ctx context.Context, us *models.UserSettings) error {
	return r.db.WithContext(ctx).Save(us).Error
}
