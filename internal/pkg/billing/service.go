package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/database"
	"github.com/ManuelReschke/Scribefox/internal/pkg/entitlements"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
	"github.com/ManuelReschke/Scribefox/internal/pkg/metrics/counter"
)

// OutcomeDuplicate marks a webhook delivery that was already processed.
const OutcomeDuplicate ApplyOutcome = "duplicate"

// Service reconciles subscription state observed through provider webhooks
// and client checkout verification into one canonical record per user.
type Service struct {
	repo          Repository
	plans         PlanResolver
	checkout      CheckoutProvider
	dispatcher    ledgersync.Dispatcher
	metrics       *counter.Recorder
	webhookSecret string
	now           func() time.Time
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, plans PlanResolver, checkout CheckoutProvider, dispatcher ledgersync.Dispatcher, metrics *counter.Recorder) *Service {
	if dispatcher == nil {
		dispatcher = ledgersync.Nop
	}
	return &Service{
		repo:       repo,
		plans:      plans,
		checkout:   checkout,
		dispatcher: dispatcher,
		metrics:    metrics,
		now:        time.Now,
	}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, checkout CheckoutProvider, dispatcher ledgersync.Dispatcher, metrics *counter.Recorder) *Service {
	repo := NewRepository(db)
	return NewService(repo, NewPlanResolver(repo, DefaultPlanFromEnv()), checkout, dispatcher, metrics)
}

// WithWebhookSecret sets the secret used to verify provider webhooks.
func (s *Service) WithWebhookSecret(secret string) *Service {
	s.webhookSecret = secret
	return s
}

// HandleStripeWebhook verifies, records and applies one Stripe delivery.
// Signature failures wrap ErrInvalidSignature or ErrSignatureExpired.
func (s *Service) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (ApplyOutcome, error) {
	const op = "billing.HandleStripeWebhook"

	if err := VerifyStripeWebhookSignature(payload, signature, s.webhookSecret, s.now()); err != nil {
		s.metrics.Webhook("invalid_signature")
		return "", err
	}
	eventID, eventType, objectID, err := PeekStripeEvent(payload)
	if err != nil {
		s.metrics.Webhook("bad_payload")
		return "", apperr.Wrap(apperr.KindValidation, op, err)
	}

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:         models.BillingProviderStripe,
		ProviderEventID:  eventID,
		EventType:        eventType,
		ProviderObjectID: objectID,
		PayloadJSON:      string(payload),
		SignatureValid:   true,
	})
	if err != nil {
		return "", apperr.Unavailable(op, err)
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		log.Debugf("[Billing] duplicate webhook %s ignored", eventID)
		s.metrics.Webhook(string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	outcome, procErr := s.applyStripePayload(ctx, payload)
	if err := s.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
		log.Errorf("[Billing] mark webhook %s processed failed: %v", eventID, err)
	}
	if procErr != nil {
		s.metrics.Webhook(counter.OutcomeFailed)
		return "", procErr
	}
	s.metrics.Webhook(string(outcome))
	return outcome, nil
}

func (s *Service) applyStripePayload(ctx context.Context, payload []byte) (ApplyOutcome, error) {
	ev, err := ParseStripeSubscriptionEvent(payload)
	if err != nil {
		if errors.Is(err, ErrUnsupportedEvent) {
			return OutcomeIgnored, nil
		}
		return "", apperr.Wrap(apperr.KindValidation, "billing.HandleStripeWebhook", err)
	}
	return s.ApplyProviderEvent(ctx, *ev)
}

// ApplyProviderEvent reconciles a subscription lifecycle event. Events whose
// user cannot be resolved are ignored.
func (s *Service) ApplyProviderEvent(ctx context.Context, ev SubscriptionEvent) (ApplyOutcome, error) {
	const op = "billing.ApplyProviderEvent"
	provider := models.BillingProviderStripe

	userID, err := s.resolveUser(ctx, provider, ev)
	if err != nil {
		return "", apperr.Unavailable(op, err)
	}
	if userID == 0 {
		log.Warnf("[Billing] event %s for subscription %s has no resolvable user, ignored", ev.EventID, ev.ProviderSubscriptionID)
		s.metrics.Reconcile(models.BillingSourceWebhook, counter.OutcomeSkipped)
		return OutcomeIgnored, nil
	}

	plan, articles := s.plans.Resolve(ctx, provider, ev.PriceRef)
	_, changed, err := s.UpsertSubscription(ctx, observationFrom(ev, userID, provider, plan, articles, models.BillingSourceWebhook))
	if err != nil {
		return "", err
	}
	s.linkCustomer(ctx, userID, provider, ev.CustomerRef)
	if !changed {
		return OutcomeUnchanged, nil
	}
	return OutcomeApplied, nil
}

// resolveUser tries event metadata, then the known subscription, then the customer.
// It returns 0 without error when nothing matches.
func (s *Service) resolveUser(ctx context.Context, provider string, ev SubscriptionEvent) (uint, error) {
	if ev.MetadataUserID != 0 {
		return ev.MetadataUserID, nil
	}
	if ev.ProviderSubscriptionID != "" {
		sub, err := s.repo.GetSubscriptionByProviderID(ctx, provider, ev.ProviderSubscriptionID)
		if err == nil {
			return sub.UserID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}
	if ev.CustomerRef != "" {
		userID, err := s.repo.FindUserIDByCustomer(ctx, provider, ev.CustomerRef)
		if err == nil {
			return userID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}
	return 0, nil
}

// VerifyCheckoutSession reconciles the subscription behind a completed
// checkout on behalf of the returning client.
func (s *Service) VerifyCheckoutSession(ctx context.Context, userID uint, sessionID string) (*VerifyResult, error) {
	const op = "billing.VerifyCheckoutSession"
	if strings.TrimSpace(sessionID) == "" {
		return nil, apperr.Validation(op, "session_id")
	}
	if s.checkout == nil {
		return nil, apperr.Unavailable(op, ErrStripeNotConfigured)
	}

	sess, err := s.checkout.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		log.Errorf("[Billing] retrieve checkout session %s failed: %v", sessionID, err)
		return nil, apperr.Unavailable(op, err)
	}
	if sessionUserID(sess) != userID {
		return nil, apperr.Forbidden(op, "checkout session belongs to another user")
	}
	if !isSettledPayment(sess.PaymentStatus) || sess.Subscription == nil {
		s.metrics.Reconcile(models.BillingSourceVerification, counter.OutcomeSkipped)
		return &VerifyResult{Status: VerifyStatusPending}, nil
	}

	provider := models.BillingProviderStripe
	ev := *sess.Subscription
	if ev.CustomerRef == "" {
		ev.CustomerRef = sess.CustomerRef
	}
	if ev.RawPayloadJSON == "" {
		ev.RawPayloadJSON = sess.RawPayloadJSON
	}
	if ev.Status == "" {
		ev.Status = models.BillingStatusActive
	}
	plan, articles := s.plans.Resolve(ctx, provider, ev.PriceRef)
	rec, _, err := s.UpsertSubscription(ctx, observationFrom(ev, userID, provider, plan, articles, models.BillingSourceVerification))
	if err != nil {
		return nil, err
	}
	s.linkCustomer(ctx, userID, provider, ev.CustomerRef)
	return &VerifyResult{Status: rec.Status, Plan: rec.InternalPlan}, nil
}

// UpsertSubscription makes obs the user's canonical subscription state.
// Re-applying an identical observation writes nothing and reports changed=false.
func (s *Service) UpsertSubscription(ctx context.Context, obs Observation) (*models.BillingSubscription, bool, error) {
	const op = "billing.UpsertSubscription"

	obs.Provider = strings.ToLower(strings.TrimSpace(obs.Provider))
	obs.ProviderSubscriptionID = strings.TrimSpace(obs.ProviderSubscriptionID)
	obs.ProviderPlanRef = strings.TrimSpace(obs.ProviderPlanRef)
	obs.InternalPlan = string(entitlements.Normalize(obs.InternalPlan))
	obs.Status = NormalizeStatus(obs.Status)
	obs.CurrentPeriodStart = truncateSecond(obs.CurrentPeriodStart)
	obs.CurrentPeriodEnd = truncateSecond(obs.CurrentPeriodEnd)

	var missing []string
	if obs.UserID == 0 {
		missing = append(missing, "user_id")
	}
	if obs.Provider == "" {
		missing = append(missing, "provider")
	}
	if obs.ProviderSubscriptionID == "" {
		missing = append(missing, "provider_subscription_id")
	}
	if len(missing) > 0 {
		return nil, false, apperr.Validation(op, missing...)
	}

	rec, changed, err := s.repo.UpsertSubscription(ctx, obs)
	if err != nil && database.IsWriteConflict(err) {
		// lost the first-insert race to the other path (duplicate key, or an
		// InnoDB gap-lock deadlock); the rerun sees the committed row
		log.Warnf("[Billing] upsert subscription %s for user %d raced, retrying: %v", obs.ProviderSubscriptionID, obs.UserID, err)
		rec, changed, err = s.repo.UpsertSubscription(ctx, obs)
	}
	if err != nil {
		s.metrics.Reconcile(obs.Source, counter.OutcomeFailed)
		log.Errorf("[Billing] upsert subscription %s for user %d failed: %v", obs.ProviderSubscriptionID, obs.UserID, err)
		return nil, false, apperr.Unavailable(op, err)
	}

	if !changed {
		s.metrics.Reconcile(obs.Source, counter.OutcomeNoChange)
		return rec, false, nil
	}
	s.metrics.Reconcile(obs.Source, counter.OutcomeChanged)
	log.Infof("[Billing] subscription %s for user %d now %s/%s (via %s)", rec.ProviderSubscriptionID, rec.UserID, rec.InternalPlan, rec.Status, obs.Source)
	s.afterChange(ctx, rec)
	return rec, true, nil
}

// afterChange refreshes the entitlement snapshot and the ledger row of the
// user's profile. Neither may fail the reconciliation.
func (s *Service) afterChange(ctx context.Context, rec *models.BillingSubscription) {
	plan, articles := string(entitlements.PlanFree), 0
	if rec.IsPaywallOpen() {
		plan, articles = rec.InternalPlan, rec.ArticlesPerPeriod
	}

	us, err := s.repo.GetOrCreateUserSettings(ctx, rec.UserID)
	if err == nil && (us.Plan != plan || us.ArticlesPerPeriod != articles) {
		us.Plan = plan
		us.ArticlesPerPeriod = articles
		err = s.repo.SaveUserSettings(ctx, us)
	}
	if err != nil {
		log.Errorf("[Billing] update settings of user %d failed: %v", rec.UserID, err)
	}

	ledgersync.Fire(ctx, s.dispatcher, ledgersync.Task{
		Op:         ledgersync.OpUpdate,
		EntityType: models.LedgerEntityProfile,
		UserID:     rec.UserID,
	})
}

func (s *Service) linkCustomer(ctx context.Context, userID uint, provider, customerRef string) {
	if customerRef == "" {
		return
	}
	account := &models.BillingAccount{UserID: userID, Provider: provider, ProviderAccountID: customerRef}
	if err := s.repo.UpsertBillingAccount(ctx, account); err != nil {
		log.Warnf("[Billing] link customer %s to user %d failed: %v", customerRef, userID, err)
	}
}

// GetSubscription returns the canonical subscription record of a user.
func (s *Service) GetSubscription(ctx context.Context, userID uint) (*models.BillingSubscription, error) {
	const op = "billing.GetSubscription"
	sub, err := s.repo.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "no subscription")
		}
		return nil, apperr.Unavailable(op, err)
	}
	return sub, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:         provider,
		ProviderEventID:  eventID,
		EventType:        strings.TrimSpace(in.EventType),
		ProviderObjectID: strings.TrimSpace(in.ProviderObjectID),
		PayloadJSON:      in.PayloadJSON,
		SignatureValid:   in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}

func observationFrom(ev SubscriptionEvent, userID uint, provider, plan string, articles int, source string) Observation {
	return Observation{
		UserID:                 userID,
		Provider:               provider,
		ProviderSubscriptionID: ev.ProviderSubscriptionID,
		ProviderPlanRef:        ev.PriceRef,
		InternalPlan:           plan,
		ArticlesPerPeriod:      articles,
		Status:                 ev.Status,
		CurrentPeriodStart:     ev.CurrentPeriodStart,
		CurrentPeriodEnd:       ev.CurrentPeriodEnd,
		CancelAtPeriodEnd:      ev.CancelAtPeriodEnd,
		CustomerRef:            ev.CustomerRef,
		Source:                 source,
		RawPayloadJSON:         ev.RawPayloadJSON,
	}
}

func sessionUserID(sess *CheckoutSession) uint {
	if sess.MetadataUserID != 0 {
		return sess.MetadataUserID
	}
	id, err := strconv.ParseUint(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func isSettledPayment(status string) bool {
	switch status {
	case "paid", "no_payment_required":
		return true
	default:
		return false
	}
}

func truncateSecond(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Second)
	return &v
}
