package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/env"
)

const (
	defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

	// StripeSignatureTolerance is the maximum age of a signed webhook timestamp.
	StripeSignatureTolerance = 5 * time.Minute
)

var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrSignatureExpired    = errors.New("webhook signature timestamp outside tolerance")
	ErrUnsupportedEvent    = errors.New("unsupported webhook event type")
	ErrStripeNotConfigured = errors.New("STRIPE_SECRET_KEY is not configured")
)

// CheckoutProvider fetches checkout sessions from the payment provider.
type CheckoutProvider interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

type StripeClient struct {
	SecretKey  string
	APIBaseURL string
	HTTPClient *http.Client
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// RetrieveCheckoutSession loads a checkout session with its subscription expanded.
func (c *StripeClient) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, ErrStripeNotConfigured
	}
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, errors.New("session id is required")
	}

	u, err := url.Parse(strings.TrimRight(c.APIBaseURL, "/") + "/checkout/sessions/" + url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Add("expand[]", "subscription")
	q.Add("expand[]", "line_items")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.SecretKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe checkout session request failed: status=%d body=%s", resp.StatusCode, string(body))
	}
	return parseCheckoutSession(body)
}

type stripeSubscription struct {
	ID                 string            `json:"id"`
	Customer           json.RawMessage   `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Customer          json.RawMessage   `json:"customer"`
	Metadata          map[string]string `json:"metadata"`
	Subscription      json.RawMessage   `json:"subscription"`
	LineItems         struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"line_items"`
}

func parseCheckoutSession(body []byte) (*CheckoutSession, error) {
	var raw stripeCheckoutSession
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out := &CheckoutSession{
		ID:                raw.ID,
		ClientReferenceID: strings.TrimSpace(raw.ClientReferenceID),
		MetadataUserID:    parseUserID(raw.Metadata["user_id"]),
		PaymentStatus:     strings.ToLower(strings.TrimSpace(raw.PaymentStatus)),
		CustomerRef:       expandableID(raw.Customer),
		RawPayloadJSON:    string(body),
	}

	if len(raw.Subscription) > 0 && string(raw.Subscription) != "null" {
		var sub stripeSubscription
		if err := json.Unmarshal(raw.Subscription, &sub); err == nil && sub.ID != "" {
			out.Subscription = sub.toEvent()
		} else if id := expandableID(raw.Subscription); id != "" {
			out.Subscription = &SubscriptionEvent{ProviderSubscriptionID: id, CustomerRef: out.CustomerRef}
		}
	}
	if out.Subscription != nil && out.Subscription.PriceRef == "" && len(raw.LineItems.Data) > 0 {
		out.Subscription.PriceRef = raw.LineItems.Data[0].Price.ID
	}
	return out, nil
}

func (s stripeSubscription) toEvent() *SubscriptionEvent {
	ev := &SubscriptionEvent{
		ProviderSubscriptionID: s.ID,
		CustomerRef:            expandableID(s.Customer),
		Status:                 s.Status,
		CancelAtPeriodEnd:      s.CancelAtPeriodEnd,
		MetadataUserID:         parseUserID(s.Metadata["user_id"]),
	}
	start, end := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		ev.PriceRef = item.Price.ID
		// newer API versions only carry the period on the item
		if start == 0 {
			start = item.CurrentPeriodStart
		}
		if end == 0 {
			end = item.CurrentPeriodEnd
		}
	}
	ev.CurrentPeriodStart = unixPtr(start)
	ev.CurrentPeriodEnd = unixPtr(end)
	return ev
}

// ParseStripeSubscriptionEvent decodes a customer.subscription.* webhook payload.
func ParseStripeSubscriptionEvent(payload []byte) (*SubscriptionEvent, error) {
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object stripeSubscription `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}
	switch envelope.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, envelope.Type)
	}
	if envelope.Data.Object.ID == "" {
		return nil, errors.New("stripe event without subscription id")
	}

	ev := envelope.Data.Object.toEvent()
	ev.EventID = envelope.ID
	ev.EventType = envelope.Type
	ev.RawPayloadJSON = string(payload)
	if envelope.Type == "customer.subscription.deleted" && NormalizeStatus(ev.Status) != models.BillingStatusCanceled {
		ev.Status = models.BillingStatusCanceled
	}
	return ev, nil
}

// PeekStripeEvent returns the id and type of any Stripe event payload.
func PeekStripeEvent(payload []byte) (id, eventType, objectID string, err error) {
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", "", "", fmt.Errorf("decode stripe event: %w", err)
	}
	return envelope.ID, envelope.Type, envelope.Data.Object.ID, nil
}

// VerifyStripeWebhookSignature checks a Stripe-Signature header
// ("t=<unix>,v1=<hex>[,v1=<hex>]") against the raw payload.
func VerifyStripeWebhookSignature(payload []byte, header, secret string, now time.Time) error {
	secret = strings.TrimSpace(secret)
	if secret == "" || strings.TrimSpace(header) == "" {
		return ErrInvalidSignature
	}

	var (
		timestamp  int64
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			valid = true
			break
		}
	}
	if !valid {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return ErrSignatureExpired
	}
	return nil
}

// SignStripePayload builds a Stripe-Signature header value for payload.
func SignStripePayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// expandableID returns the id of a Stripe field that is either a plain id or an expanded object.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func parseUserID(s string) uint {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
