package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// draftRepository implements the DraftRepository interface
type draftRepository struct {
	db *gorm.DB
}

// NewDraftRepository creates a new draft repository instance
func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) CreateReplacingOpen(ctx context.Context, d *models.Draft) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Draft{}).
			Where("user_id = ? AND kind = ? AND status = ?", d.UserID, d.Kind, models.DraftStatusOpen).
			Updates(map[string]interface{}{
				"status":     models.DraftStatusAbandoned,
				"open_slot":  nil,
				"updated_at": time.Now(),
			}).Error
		if err != nil {
			return err
		}
		slot := models.DraftOpenSlot
		d.OpenSlot = &slot
		d.Status = models.DraftStatusOpen
		return tx.Create(d).Error
	})
}

func (r *draftRepository) GetByID(ctx context.Context, id string) (*models.Draft, error) {
	var d models.Draft
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepository) GetOpen(ctx context.Context, userID uint, kind string) (*models.Draft, error) {
	var d models.Draft
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND status = ?", userID, kind, models.DraftStatusOpen).
		Order("updated_at DESC").
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepository) UpdateOpenFields(ctx context.Context, id string, userID uint, patch *models.Draft, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	// struct updates go through the json serializer; Select limits the SET list
	tx := r.db.WithContext(ctx).Model(&models.Draft{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.DraftStatusOpen).
		Select(columns).
		Updates(patch)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrDraftNotOpen
	}
	return nil
}

func (r *draftRepository) Finalize(ctx context.Context, id string, userID uint, create EntityCreator) (uint, error) {
	var entityID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Draft{}).
			Where("id = ? AND user_id = ? AND status = ?", id, userID, models.DraftStatusOpen).
			Updates(map[string]interface{}{
				"status":       models.DraftStatusFinalized,
				"open_slot":    nil,
				"finalized_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDraftNotOpen
		}

		eid, err := create(tx)
		if err != nil {
			return err
		}
		entityID = eid
		return tx.Model(&models.Draft{}).Where("id = ?", id).Update("entity_id", eid).Error
	})
	if err != nil {
		if errors.Is(err, ErrDraftNotOpen) {
			return 0, ErrDraftNotOpen
		}
		return 0, err
	}
	return entityID, nil
}
