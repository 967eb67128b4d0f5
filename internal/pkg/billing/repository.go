package billing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/Scribefox/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	FindActivePlanMapping(ctx context.Context, provider, providerPlanRef string) (*models.BillingPlanMapping, error)
	UpsertBillingAccount(ctx context.Context, account *models.BillingAccount) error
	FindUserIDByCustomer(ctx context.Context, provider, customerRef string) (uint, error)
	// UpsertSubscription writes obs as the user's canonical record inside one
	// locked transaction and reports whether anything changed.
	UpsertSubscription(ctx context.Context, obs Observation) (*models.BillingSubscription, bool, error)
	GetSubscriptionByUser(ctx context.Context, userID uint) (*models.BillingSubscription, error)
	GetSubscriptionByProviderID(ctx context.Context, provider, subscriptionID string) (*models.BillingSubscription, error)
	GetOrCreateUserSettings(ctx context.Context, userID uint) (*models.UserSettings, error)
	SaveUserSettings(ctx context.Context, us *models.UserSettings) error
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindActivePlanMapping(ctx context.Context, provider, providerPlanRef string) (*models.BillingPlanMapping, error) {
	var m models.BillingPlanMapping
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_plan_ref = ? AND is_active = ?", provider, providerPlanRef, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) UpsertBillingAccount(ctx context.Context, account *models.BillingAccount) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_account_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "email", "updated_at"}),
	}).Create(account).Error; err != nil {
		return err
	}

	return db.Where("provider = ? AND provider_account_id = ?", account.Provider, account.ProviderAccountID).
		First(account).Error
}

// FindUserIDByCustomer resolves a provider customer through linked billing
// accounts first and known subscriptions second.
func (r *gormRepository) FindUserIDByCustomer(ctx context.Context, provider, customerRef string) (uint, error) {
	db := r.db.WithContext(ctx)
	var account models.BillingAccount
	err := db.Where("provider = ? AND provider_account_id = ?", provider, customerRef).First(&account).Error
	if err == nil {
		return account.UserID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	var sub models.BillingSubscription
	if err := db.Where("provider = ? AND customer_ref = ?", provider, customerRef).
		Order("updated_at DESC").First(&sub).Error; err != nil {
		return 0, err
	}
	return sub.UserID, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, obs Observation) (*models.BillingSubscription, bool, error) {
	var (
		out     models.BillingSubscription
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.BillingSubscription
		err := forUpdate(tx).
			Where("provider = ? AND provider_subscription_id = ?", obs.Provider, obs.ProviderSubscriptionID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = forUpdate(tx).Where("user_id = ?", obs.UserID).First(&existing).Error
		}

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			out = models.BillingSubscription{UserID: obs.UserID}
			applyObservation(&out, obs)
			changed = true
			return tx.Create(&out).Error
		case err != nil:
			return err
		}

		if sameState(&existing, obs) {
			out = existing
			return nil
		}
		applyObservation(&existing, obs)
		changed = true
		out = existing
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &out, changed, nil
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect supports row locks.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *gormRepository) GetSubscriptionByUser(ctx context.Context, userID uint) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByProviderID(ctx context.Context, provider, subscriptionID string) (*models.BillingSubscription, error) {
	var sub models.BillingSubscription
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_subscription_id = ?", provider, subscriptionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetOrCreateUserSettings(ctx context.Context, userID uint) (*models.UserSettings, error) {
	return models.GetOrCreateUserSettings(r.db.WithContext(ctx), userID)
}

func (r *gormRepository) SaveUserSettings(ctx context.Context, us *models.UserSettings) error {
	return r.db.WithContext(ctx).Save(us).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func applyObservation(sub *models.BillingSubscription, obs Observation) {
	sub.Provider = obs.Provider
	sub.ProviderSubscriptionID = obs.ProviderSubscriptionID
	sub.ProviderPlanRef = obs.ProviderPlanRef
	sub.InternalPlan = obs.InternalPlan
	sub.ArticlesPerPeriod = obs.ArticlesPerPeriod
	sub.Status = obs.Status
	sub.CurrentPeriodStart = obs.CurrentPeriodStart
	sub.CurrentPeriodEnd = obs.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = obs.CancelAtPeriodEnd
	if obs.CustomerRef != "" {
		sub.CustomerRef = obs.CustomerRef
	}
	sub.LastSource = obs.Source
	if obs.RawPayloadJSON != "" {
		sub.RawPayloadJSON = obs.RawPayloadJSON
	}
}

// sameState compares the reconciled tuple only; source and raw payload do not
// make an observation new.
func sameState(sub *models.BillingSubscription, obs Observation) bool {
	return sub.Provider == obs.Provider &&
		sub.ProviderSubscriptionID == obs.ProviderSubscriptionID &&
		sub.ProviderPlanRef == obs.ProviderPlanRef &&
		sub.InternalPlan == obs.InternalPlan &&
		sub.ArticlesPerPeriod == obs.ArticlesPerPeriod &&
		sub.Status == obs.Status &&
		sameTime(sub.CurrentPeriodStart, obs.CurrentPeriodStart) &&
		sameTime(sub.CurrentPeriodEnd, obs.CurrentPeriodEnd) &&
		sub.CancelAtPeriodEnd == obs.CancelAtPeriodEnd &&
		(obs.CustomerRef == "" || sub.CustomerRef == obs.CustomerRef)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Unix() == b.Unix()
}
