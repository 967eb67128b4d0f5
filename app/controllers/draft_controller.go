package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/apperr"
	"github.com/ManuelReschke/Scribefox/internal/pkg/draft"
	"github.com/ManuelReschke/Scribefox/internal/pkg/usercontext"
)

// DraftController serves the multi-step wizards backed by the draft accumulator
type DraftController struct {
	drafts *draft.Accumulator
}

// NewDraftController creates a new draft controller
func NewDraftController(drafts *draft.Accumulator) *DraftController {
	return &DraftController{drafts: drafts}
}

// HandleSaveStep accepts one wizard step and returns the draft id to send
// with the following steps.
func (dc *DraftController) HandleSaveStep(c *fiber.Ctx) error {
	kind := c.Params("kind")
	if !dc.drafts.SupportsKind(kind) {
		return fiber.NewError(fiber.StatusNotFound, "unknown draft kind")
	}
	step, err := c.ParamsInt("step")
	if _, known := stepRules[kind][step]; err != nil || !known {
		return apperr.Validation("controllers.SaveStep", "step")
	}

	var req stepRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.DraftID = strings.TrimSpace(req.DraftID)
	if step > 1 && req.DraftID == "" {
		return apperr.Validation("controllers.SaveStep", "draft_id")
	}

	fields, err := stepFields(kind, step, &req)
	if err != nil {
		return err
	}

	userID := usercontext.GetUserID(c)
	draftID, err := dc.drafts.SaveStep(c.UserContext(), userID, kind, req.DraftID, fields)
	if err != nil {
		return err
	}

	status := fiber.StatusOK
	if req.DraftID == "" {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"draft_id": draftID})
}

// HandleGetDraft returns the caller's open draft of a kind so a wizard can resume.
func (dc *DraftController) HandleGetDraft(c *fiber.Ctx) error {
	kind := c.Params("kind")
	if !dc.drafts.SupportsKind(kind) {
		return fiber.NewError(fiber.StatusNotFound, "unknown draft kind")
	}

	d, err := dc.drafts.GetDraft(c.UserContext(), usercontext.GetUserID(c), kind)
	if err != nil {
		return err
	}
	if d == nil {
		return draft.ErrDraftNotFound
	}
	return c.JSON(fiber.Map{"draft": d})
}

type completeRequest struct {
	DraftID string `json:"draft_id"`
}

// HandleComplete finalizes a draft into its entity.
func (dc *DraftController) HandleComplete(c *fiber.Ctx) error {
	kind := c.Params("kind")
	check, ok := draft.RequiredFieldsFor(kind)
	if !ok || !dc.drafts.SupportsKind(kind) {
		return fiber.NewError(fiber.StatusNotFound, "unknown draft kind")
	}

	var req completeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.DraftID = strings.TrimSpace(req.DraftID)
	if req.DraftID == "" {
		return apperr.Validation("controllers.Complete", "draft_id")
	}

	entity, err := dc.drafts.Complete(c.UserContext(), req.DraftID, usercontext.GetUserID(c), sameKind(kind, check))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"entity": entity})
}

// sameKind rejects drafts of another kind than the route names.
func sameKind(kind string, check draft.RequiredFieldCheck) draft.RequiredFieldCheck {
	return func(d *models.Draft) []string {
		if d.Kind != kind {
			return []string{"draft_id"}
		}
		return check(d)
	}
}
