package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory builds the repository set once per database handle
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns the repository set, creating it on first use
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetDraftRepository returns the draft repository instance
func (f *Factory) GetDraftRepository() DraftRepository {
	return f.GetRepositories().Draft
}

// GetStyleRepository returns the style repository instance
func (f *Factory) GetStyleRepository() StyleRepository {
	return f.GetRepositories().Style
}

// GetProfileRepository returns the onboarding profile repository instance
func (f *Factory) GetProfileRepository() ProfileRepository {
	return f.GetRepositories().Profile
}

// GetLedgerReferenceRepository returns the reference ledger repository instance
func (f *Factory) GetLedgerReferenceRepository() LedgerReferenceRepository {
	return f.GetRepositories().LedgerRef
}

// GetUserSettingsRepository returns the user settings repository instance
func (f *Factory) GetUserSettingsRepository() UserSettingsRepository {
	return f.GetRepositories().UserSettings
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}
