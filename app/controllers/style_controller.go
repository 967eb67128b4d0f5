package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/draft"
	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// StyleController exposes explicit updates of finalized styles
type StyleController struct {
	styles *draft.StyleService
}

// NewStyleController creates a new style controller
func NewStyleController(styles *draft.StyleService) *StyleController {
	return &StyleController{styles: styles}
}

type styleUpdateRequest struct {
	Name     *string  `json:"name" validate:"omitempty,max=150"`
	Language *string  `json:"language" validate:"omitempty,max=16"`
	Samples  []string `json:"samples" validate:"omitempty,dive,max=20000"`
	Topics   []string `json:"topics" validate:"omitempty,dive,max=120"`
}

func (sc *StyleController) HandleListStyles(c *fiber.Ctx) error {
	styles, err := sc.styles.List(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"styles": styles})
}

// HandleUpdateStyle applies a partial update; absent fields keep their values.
func (sc *StyleController) HandleUpdateStyle(c *fiber.Ctx) error {
	id, err := styleID(c)
	if err != nil {
		return err
	}

	var req styleUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return apperr.Validation("controllers.UpdateStyle", invalidFields(err)...)
	}

	style, err := sc.styles.Update(c.UserContext(), usercontext.GetUserID(c), id, draft.StyleUpdate{
		Name:     req.Name,
		Language: req.Language,
		Samples:  req.Samples,
		Topics:   req.Topics,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"style": style})
}

func (sc *StyleController) HandleDeleteStyle(c *fiber.Ctx) error {
	id, err := styleID(c)
	if err != nil {
		return err
	}
	if err := sc.styles.Delete(c.UserContext(), usercontext.GetUserID(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func styleID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Validation("controllers.Style", "id")
	}
	return uint(id), nil
}
