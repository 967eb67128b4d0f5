package draft

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// Entity is the immutable result of finalizing a draft.
type Entity struct {
	Type  string      `json:"type"`
	ID    uint        `json:"id"`
	Value interface{} `json:"value"`
}

// Finalizer inserts the entity for a closed draft inside the finalization
// transaction.
type Finalizer func(tx *gorm.DB, d *models.Draft) (*Entity, error)

// DefaultFinalizers maps every draft kind to its finalizer.
func DefaultFinalizers() map[string]Finalizer {
	return map[string]Finalizer{
		models.DraftKindArticleStyle: StyleFinalizer,
		models.DraftKindOnboarding:   OnboardingFinalizer,
	}
}

// StyleFinalizer creates a Style from an article-style draft.
func StyleFinalizer(tx *gorm.DB, d *models.Draft) (*Entity, error) {
	style := &models.Style{
		UserID:   d.UserID,
		DraftID:  d.ID,
		Name:     d.NameValue(),
		Language: d.LanguageValue(),
		Samples:  d.NonEmptySamples(),
		Topics:   append([]string{}, d.Topics...),
	}
	if err := tx.Create(style).Error; err != nil {
		return nil, err
	}
	return &Entity{Type: models.LedgerEntityStyle, ID: style.ID, Value: style}, nil
}

// OnboardingFinalizer creates the user's OnboardingProfile.
func OnboardingFinalizer(tx *gorm.DB, d *models.Draft) (*Entity, error) {
	profile := &models.OnboardingProfile{
		UserID:       d.UserID,
		DraftID:      d.ID,
		Name:         d.NameValue(),
		Email:        d.EmailValue(),
		Language:     d.LanguageValue(),
		DeliveryDays: append([]string{}, d.DeliveryDays...),
		Samples:      d.NonEmptySamples(),
	}
	if err := tx.Create(profile).Error; err != nil {
		return nil, err
	}
	return &Entity{Type: models.LedgerEntityProfile, ID: profile.ID, Value: profile}, nil
}
