package models

import "time"

// OnboardingProfile is the finalized customer profile produced by the onboarding wizard.
type OnboardingProfile struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	DraftID      string    `gorm:"type:char(36);not null;uniqueIndex" json:"draft_id"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name"`
	Email        string    `gorm:"type:varchar(200);not null" json:"email"`
	Language     string    `gorm:"type:varchar(16);not null" json:"language"`
	DeliveryDays []string  `gorm:"type:json;serializer:json" json:"delivery_days"`
	Samples      []string  `gorm:"type:json;serializer:json" json:"samples"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DeliversOn reports whether the profile has the given weekday code selected.
func (p *OnboardingProfile) DeliversOn(code string) bool {
	for _, d := range p.DeliveryDays {
		if d == code {
			return true
		}
	}
	return false
}
