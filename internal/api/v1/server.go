package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// Pong is the ping response
type Pong struct {
	Ping string `json:"ping"`
}

// ServerInterface lists the v1 operations of public/docs/v1/openapi.yml
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (GET /user/account)
	GetUserAccount(c *fiber.Ctx) error
	// (POST /user/api-key)
	PostUserAPIKey(c *fiber.Ctx) error
	// (DELETE /user/api-key)
	DeleteUserAPIKey(c *fiber.Ctx) error
	// (GET /drafts/{kind})
	GetDraft(c *fiber.Ctx, kind string) error
	// (POST /drafts/{kind}/steps/{step})
	PostDraftStep(c *fiber.Ctx, kind string, step int) error
	// (POST /drafts/{kind}/complete)
	PostDraftComplete(c *fiber.Ctx, kind string) error
	// (GET /styles)
	ListStyles(c *fiber.Ctx) error
	// (PATCH /styles/{id})
	UpdateStyle(c *fiber.Ctx, id int) error
	// (DELETE /styles/{id})
	DeleteStyle(c *fiber.Ctx, id int) error
	// (POST /billing/verify-session)
	PostBillingVerifySession(c *fiber.Ctx) error
	// (GET /billing/subscription)
	GetBillingSubscription(c *fiber.Ctx) error
}

// ServerInterfaceWrapper converts path parameters before calling the server
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return w.Handler.GetPing(c)
}

func (w *ServerInterfaceWrapper) GetUserAccount(c *fiber.Ctx) error {
	return w.Handler.GetUserAccount(c)
}

func (w *ServerInterfaceWrapper) PostUserAPIKey(c *fiber.Ctx) error {
	return w.Handler.PostUserAPIKey(c)
}

func (w *ServerInterfaceWrapper) DeleteUserAPIKey(c *fiber.Ctx) error {
	return w.Handler.DeleteUserAPIKey(c)
}

func (w *ServerInterfaceWrapper) GetDraft(c *fiber.Ctx) error {
	return w.Handler.GetDraft(c, c.Params("kind"))
}

func (w *ServerInterfaceWrapper) PostDraftStep(c *fiber.Ctx) error {
	step, err := c.ParamsInt("step")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid format for parameter step")
	}
	return w.Handler.PostDraftStep(c, c.Params("kind"), step)
}

func (w *ServerInterfaceWrapper) PostDraftComplete(c *fiber.Ctx) error {
	return w.Handler.PostDraftComplete(c, c.Params("kind"))
}

func (w *ServerInterfaceWrapper) ListStyles(c *fiber.Ctx) error {
	return w.Handler.ListStyles(c)
}

func (w *ServerInterfaceWrapper) UpdateStyle(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid format for parameter id")
	}
	return w.Handler.UpdateStyle(c, id)
}

func (w *ServerInterfaceWrapper) DeleteStyle(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid format for parameter id")
	}
	return w.Handler.DeleteStyle(c, id)
}

func (w *ServerInterfaceWrapper) PostBillingVerifySession(c *fiber.Ctx) error {
	return w.Handler.PostBillingVerifySession(c)
}

func (w *ServerInterfaceWrapper) GetBillingSubscription(c *fiber.Ctx) error {
	return w.Handler.GetBillingSubscription(c)
}

// RegisterHandlers mounts the v1 operations on router. Every operation but
// ping runs behind auth.
func RegisterHandlers(router fiber.Router, si ServerInterface, auth fiber.Handler) {
	w := &ServerInterfaceWrapper{Handler: si}

	router.Get("/ping", w.GetPing)

	router.Get("/user/account", auth, w.GetUserAccount)
	router.Post("/user/api-key", auth, w.PostUserAPIKey)
	router.Delete("/user/api-key", auth, w.DeleteUserAPIKey)

	router.Get("/drafts/:kind", auth, w.GetDraft)
	router.Post("/drafts/:kind/steps/:step", auth, w.PostDraftStep)
	router.Post("/drafts/:kind/complete", auth, w.PostDraftComplete)

	router.Get("/styles", auth, w.ListStyles)
	router.Patch("/styles/:id", auth, w.UpdateStyle)
	router.Delete("/styles/:id", auth, w.DeleteStyle)

	router.Post("/billing/verify-session", auth, w.PostBillingVerifySession)
	router.Get("/billing/subscription", auth, w.GetBillingSubscription)
}
