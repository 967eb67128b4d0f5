package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// styleRepository implements the StyleRepository interface
type styleRepository struct {
	db *gorm.DB
}

// NewStyleRepository creates a new style repository instance
func NewStyleRepository(db *gorm.DB) StyleRepository {
	return &styleRepository{db: db}
}

// GetByID retrieves a style by its ID
func (r *styleRepository) GetByID(ctx context.Context, id uint) (*models.Style, error) {
	var style models.Style
	if err := r.db.WithContext(ctx).First(&style, id).Error; err != nil {
		return nil, err
	}
	return &style, nil
}

func (r *styleRepository) ListByUserID(ctx context.Context, userID uint) ([]models.Style, error) {
	var styles []models.Style
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&styles).Error
	return styles, err
}

func (r *styleRepository) UpdateFields(ctx context.Context, id uint, patch *models.Style, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	tx := r.db.WithContext(ctx).Model(&models.Style{}).Where("id = ?", id).Select(columns).Updates(patch)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a style by its ID
func (r *styleRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Style{}, id).Error
}
