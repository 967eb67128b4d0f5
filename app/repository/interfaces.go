package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// ErrDraftNotOpen is returned by conditional draft writes when the draft is
// no longer open (finalized or abandoned) or does not belong to the owner.
var ErrDraftNotOpen = errors.New("draft is not open")

// EntityCreator inserts the finalized entity inside the finalization
// transaction and returns its id.
type EntityCreator func(tx *gorm.DB) (uint, error)

// DraftRepository defines the storage operations of the draft accumulator
type DraftRepository interface {
	// CreateReplacingOpen inserts d and abandons any open draft of the same owner/kind.
	CreateReplacingOpen(ctx context.Context, d *models.Draft) error
	GetByID(ctx context.Context, id string) (*models.Draft, error)
	GetOpen(ctx context.Context, userID uint, kind string) (*models.Draft, error)
	// UpdateOpenFields writes only the named columns of patch, and only while the draft is open.
	UpdateOpenFields(ctx context.Context, id string, userID uint, patch *models.Draft, columns []string) error
	// Finalize closes an open draft and creates its entity in one transaction.
	Finalize(ctx context.Context, id string, userID uint, create EntityCreator) (uint, error)
}

// StyleRepository defines the interface for finalized article styles
type StyleRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Style, error)
	ListByUserID(ctx context.Context, userID uint) ([]models.Style, error)
	// UpdateFields writes only the named columns of patch.
	UpdateFields(ctx context.Context, id uint, patch *models.Style, columns []string) error
	Delete(ctx context.Context, id uint) error
}

// ProfileRepository defines the interface for finalized onboarding profiles
type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (*models.OnboardingProfile, error)
	GetByUserID(ctx context.Context, userID uint) (*models.OnboardingProfile, error)
}

// LedgerReferenceRepository is the reference ledger: entity id -> external row ids
type LedgerReferenceRepository interface {
	Get(ctx context.Context, entityType string, entityID uint) (*models.LedgerReference, error)
	Upsert(ctx context.Context, ref *models.LedgerReference) error
	Delete(ctx context.Context, entityType string, entityID uint) error
}

// UserSettingsRepository defines the interface for per-user plan snapshots
type UserSettingsRepository interface {
	GetOrCreate(ctx context.Context, userID uint) (*models.UserSettings, error)
	Save(ctx context.Context, us *models.UserSettings) error
}

// UserRepository resolves request identities
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, *models.UserSettings, error)
	TouchAPIKey(ctx context.Context, settingsID uint) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Draft        DraftRepository
	Style        StyleRepository
	Profile      ProfileRepository
	LedgerRef    LedgerReferenceRepository
	UserSettings UserSettingsRepository
	User         UserRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Draft:        NewDraftRepository(db),
		Style:        NewStyleRepository(db),
		Profile:      NewProfileRepository(db),
		LedgerRef:    NewLedgerReferenceRepository(db),
		UserSettings: NewUserSettingsRepository(db),
		User:         NewUserRepository(db),
	}
}
