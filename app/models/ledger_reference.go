package models

import "time"

const (
	LedgerEntityStyle   = "style"
	LedgerEntityProfile = "profile"
)

// LedgerReference maps an internal entity to its rows in the external ledger.
// A missing row means the entity has not been synced yet.
type LedgerReference struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EntityType  string    `gorm:"type:varchar(20);not null;index:ux_ledger_references_entity,unique,priority:1" json:"entity_type"`
	EntityID    uint      `gorm:"not null;index:ux_ledger_references_entity,unique,priority:2" json:"entity_id"`
	RowRef      string    `gorm:"type:varchar(191);default:''" json:"row_ref"`
	SubLedgerID string    `gorm:"type:varchar(191);default:''" json:"sub_ledger_id"`
	LastOp      string    `gorm:"type:varchar(16);default:''" json:"last_op"`
	SyncedAt    time.Time `gorm:"type:timestamp" json:"synced_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
