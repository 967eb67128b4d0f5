package models

import (
	"strings"
	"time"
)

const (
	DraftKindArticleStyle = "article-style"
	DraftKindOnboarding   = "onboarding"
)

const (
	DraftStatusOpen      = "open"
	DraftStatusFinalized = "finalized"
	DraftStatusAbandoned = "abandoned"
)

// DraftOpenSlot is stored in Draft.OpenSlot while a draft is open. Closed
// drafts carry NULL, so the unique index only constrains open drafts.
const DraftOpenSlot = "open"

// Weekday codes used for delivery days, Monday first.
var DeliveryDayCodes = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Draft accumulates a multi-step wizard submission until it is finalized.
type Draft struct {
	ID           string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index:ux_drafts_user_kind_open,unique,priority:1" json:"user_id"`
	Kind         string     `gorm:"type:varchar(32);not null;index:ux_drafts_user_kind_open,unique,priority:2" json:"kind"`
	OpenSlot     *string    `gorm:"type:varchar(8);default:null;index:ux_drafts_user_kind_open,unique,priority:3" json:"-"`
	Status       string     `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	Samples      []string   `gorm:"type:json;serializer:json" json:"samples,omitempty"`
	Topics       []string   `gorm:"type:json;serializer:json" json:"topics,omitempty"`
	Name         *string    `gorm:"type:varchar(150);default:null" json:"name,omitempty"`
	Language     *string    `gorm:"type:varchar(16);default:null" json:"language,omitempty"`
	DeliveryDays []string   `gorm:"type:json;serializer:json" json:"delivery_days,omitempty"`
	Email        *string    `gorm:"type:varchar(200);default:null" json:"email,omitempty"`
	EntityID     *uint      `gorm:"default:null" json:"entity_id,omitempty"`
	FinalizedAt  *time.Time `gorm:"type:timestamp;default:null" json:"finalized_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d *Draft) IsOpen() bool {
	return d != nil && d.Status == DraftStatusOpen
}

func (d *Draft) IsFinalized() bool {
	return d != nil && d.Status == DraftStatusFinalized
}

// NameValue returns the trimmed name or "".
func (d *Draft) NameValue() string {
	return derefTrim(d.Name)
}

func (d *Draft) LanguageValue() string {
	return derefTrim(d.Language)
}

func (d *Draft) EmailValue() string {
	return derefTrim(d.Email)
}

// NonEmptySamples returns samples with blank entries dropped.
func (d *Draft) NonEmptySamples() []string {
	out := make([]string, 0, len(d.Samples))
	for _, s := range d.Samples {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func derefTrim(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
