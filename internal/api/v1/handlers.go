package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/Scribefox/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	drafts  *controllers.DraftController
	styles  *controllers.StyleController
	billing *controllers.BillingController
	account *controllers.AccountController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(drafts *controllers.DraftController, styles *controllers.StyleController, billing *controllers.BillingController, account *controllers.AccountController) *APIServer {
	return &APIServer{
		drafts:  drafts,
		styles:  styles,
		billing: billing,
		account: account,
	}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetUserAccount returns account information for the authenticated user.
func (s *APIServer) GetUserAccount(c *fiber.Ctx) error {
	return s.account.HandleGetUserAccount(c)
}

func (s *APIServer) PostUserAPIKey(c *fiber.Ctx) error {
	return s.account.HandleRotateAPIKey(c)
}

func (s *APIServer) DeleteUserAPIKey(c *fiber.Ctx) error {
	return s.account.HandleRevokeAPIKey(c)
}

// Controllers read kind, step and id from the route params themselves.

func (s *APIServer) GetDraft(c *fiber.Ctx, kind string) error {
	return s.drafts.HandleGetDraft(c)
}

func (s *APIServer) PostDraftStep(c *fiber.Ctx, kind string, step int) error {
	return s.drafts.HandleSaveStep(c)
}

func (s *APIServer) PostDraftComplete(c *fiber.Ctx, kind string) error {
	return s.drafts.HandleComplete(c)
}

func (s *APIServer) ListStyles(c *fiber.Ctx) error {
	return s.styles.HandleListStyles(c)
}

func (s *APIServer) UpdateStyle(c *fiber.Ctx, id int) error {
	return s.styles.HandleUpdateStyle(c)
}

func (s *APIServer) DeleteStyle(c *fiber.Ctx, id int) error {
	return s.styles.HandleDeleteStyle(c)
}

// PostBillingVerifySession is the client-side fallback after a Stripe checkout.
func (s *APIServer) PostBillingVerifySession(c *fiber.Ctx) error {
	return s.billing.HandleVerifySession(c)
}

func (s *APIServer) GetBillingSubscription(c *fiber.Ctx) error {
	return s.billing.HandleGetSubscription(c)
}
