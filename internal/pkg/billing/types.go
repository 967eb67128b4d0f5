package billing

import "time"

// Observation is one observed subscription state, from either the provider
// webhook or the client verification path.
type Observation struct {
	UserID                 uint
	Provider               string
	ProviderSubscriptionID string
	ProviderPlanRef        string
	InternalPlan           string
	ArticlesPerPeriod      int
	Status                 string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	CustomerRef            string
	Source                 string
	RawPayloadJSON         string
}

// SubscriptionEvent is a provider subscription lifecycle event, already parsed
// and signature checked.
type SubscriptionEvent struct {
	EventID                string
	EventType              string
	ProviderSubscriptionID string
	CustomerRef            string
	PriceRef               string
	Status                 string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	CancelAtPeriodEnd      bool
	// MetadataUserID is the user id the checkout attached to the subscription, 0 if absent.
	MetadataUserID uint
	RawPayloadJSON string
}

// CheckoutSession is the subset of a provider checkout session used for verification.
type CheckoutSession struct {
	ID                string
	ClientReferenceID string
	MetadataUserID    uint
	PaymentStatus     string
	CustomerRef       string
	Subscription      *SubscriptionEvent
	RawPayloadJSON    string
}

// VerifyResult is returned to the client after a checkout verification.
type VerifyResult struct {
	Status string `json:"status"`
	Plan   string `json:"plan,omitempty"`
}

const (
	VerifyStatusPending = "pending"
	VerifyStatusActive  = "active"
)

// ApplyOutcome describes what happened to a provider event.
type ApplyOutcome string

const (
	OutcomeApplied   ApplyOutcome = "applied"
	OutcomeUnchanged ApplyOutcome = "unchanged"
	OutcomeIgnored   ApplyOutcome = "ignored"
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider         string
	ProviderEventID  string
	EventType        string
	ProviderObjectID string
	PayloadJSON      string
	SignatureValid   bool
}
