package models

import "time"

// Style is the finalized article-style entity produced by an article-style draft.
type Style struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	DraftID   string    `gorm:"type:char(36);not null;uniqueIndex" json:"draft_id"`
	Name      string    `gorm:"type:varchar(150);not null" json:"name"`
	Language  string    `gorm:"type:varchar(16);default:''" json:"language"`
	Samples   []string  `gorm:"type:json;serializer:json" json:"samples"`
	Topics    []string  `gorm:"type:json;serializer:json" json:"topics"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
