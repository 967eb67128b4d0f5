package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// ledgerReferenceRepository implements the LedgerReferenceRepository interface
type ledgerReferenceRepository struct {
	db *gorm.DB
}

// NewLedgerReferenceRepository creates a new reference ledger repository instance
func NewLedgerReferenceRepository(db *gorm.DB) LedgerReferenceRepository {
	return &ledgerReferenceRepository{db: db}
}

func (r *ledgerReferenceRepository) Get(ctx context.Context, entityType string, entityID uint) (*models.LedgerReference, error) {
	var ref models.LedgerReference
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		First(&ref).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *ledgerReferenceRepository) Upsert(ctx context.Context, ref *models.LedgerReference) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"row_ref",
			"sub_ledger_id",
			"last_op",
			"synced_at",
			"updated_at",
		}),
	}).Create(ref).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return db.Where("entity_type = ? AND entity_id = ?", ref.EntityType, ref.EntityID).First(ref).Error
}

func (r *ledgerReferenceRepository) Delete(ctx context.Context, entityType string, entityID uint) error {
	return r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Delete(&models.LedgerReference{}).Error
}
