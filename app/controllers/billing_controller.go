package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/billing"
	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// BillingController receives provider webhooks and client checkout verifications
type BillingController struct {
	billing *billing.Service
}

// NewBillingController creates a new billing controller
func NewBillingController(svc *billing.Service) *BillingController {
	return &BillingController{billing: svc}
}

// HandleStripeWebhook acknowledges accepted, duplicate and ignored deliveries
// with 200. Signature failures answer 401, malformed payloads 400 and
// storage failures 503 so the provider redelivers.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	signature := c.Get("Stripe-Signature")

	outcome, err := bc.billing.HandleStripeWebhook(c.UserContext(), payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidSignature), errors.Is(err, billing.ErrSignatureExpired):
			log.Warnf("[Billing] rejected stripe webhook: %v", err)
			return fiber.NewError(fiber.StatusUnauthorized, "invalid signature")
		case apperr.KindOf(err) == apperr.KindValidation:
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		default:
			return err
		}
	}
	return c.JSON(fiber.Map{"received": true, "result": outcome})
}

type verifySessionRequest struct {
	SessionID string `json:"session_id"`
}

// HandleVerifySession is the client fallback after checkout. A pending result
// tells the client to poll again or wait for the webhook.
func (bc *BillingController) HandleVerifySession(c *fiber.Ctx) error {
	var req verifySessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(c.Query("session_id"))
	}

	res, err := bc.billing.VerifyCheckoutSession(c.UserContext(), usercontext.GetUserID(c), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// HandleGetSubscription returns the caller's canonical subscription record.
func (bc *BillingController) HandleGetSubscription(c *fiber.Ctx) error {
	sub, err := bc.billing.GetSubscription(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"subscription": sub,
		"paywall_open": sub.IsPaywallOpen(),
	})
}
