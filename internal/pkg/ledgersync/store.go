package ledgersync

import (
	"context"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/app/repository"
)

// Store loads the entities a task refers to. Missing rows are reported as
// gorm.ErrRecordNotFound.
type Store interface {
	GetStyle(ctx context.Context, id uint) (*models.Style, error)
	GetProfile(ctx context.Context, id uint) (*models.OnboardingProfile, error)
	GetProfileByUser(ctx context.Context, userID uint) (*models.OnboardingProfile, error)
	// GetSubscription returns nil without error when the user never subscribed.
	GetSubscription(ctx context.Context, userID uint) (*models.BillingSubscription, error)
}

type gormStore struct {
	db       *gorm.DB
	styles   repository.StyleRepository
	profiles repository.ProfileRepository
}

// NewGormStore builds a Store on the application database.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:       db,
		styles:   repository.NewStyleRepository(db),
		profiles: repository.NewProfileRepository(db),
	}
}

func (s *gormStore) GetStyle(ctx context.Context, id uint) (*models.Style, error) {
	return s.styles.GetByID(ctx, id)
}

func (s *gormStore) GetProfile(ctx context.Context, id uint) (*models.OnboardingProfile, error) {
	return s.profiles.GetByID(ctx, id)
}

func (s *gormStore) GetProfileByUser(ctx context.Context, userID uint) (*models.OnboardingProfile, error) {
	return s.profiles.GetByUserID(ctx, userID)
}

func (s *gormStore) GetSubscription(ctx context.Context, userID uint) (*models.BillingSubscription, error) {
	var subs []models.BillingSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&subs).Error; err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}
