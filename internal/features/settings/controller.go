package settings

import (
	"errors"

	"go-staffhub/pkg/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SettingsController struct {
	Registry *EngineRegistry
	Hub      *StatusHub
}

func NewSettingsController(registry *EngineRegistry, hub *StatusHub) *SettingsController {
	return &SettingsController{
		Registry: registry,
		Hub:      hub,
	}
}

// GetSettings returns the canonical record plus per-section lifecycle status.
// A failed load is retried on the next call; until then sections render from
// declared defaults and the record-level error is surfaced as a banner.
func (ctrl *SettingsController) GetSettings(c *fiber.Ctx) error {
	engine := ctrl.Registry.For(c.Params("userId"))
	if !engine.Loaded() {
		_ = engine.LoadAll(c.UserContext())
	}

	response := fiber.Map{
		"data":   engine.Record(),
		"status": engine.Lifecycles().Snapshot(),
	}
	if recordErr := engine.RecordError(); recordErr != "" {
		response["error"] = recordErr
	}
	return c.JSON(response)
}

// GetStatus returns only the lifecycle snapshot.
func (ctrl *SettingsController) GetStatus(c *fiber.Ctx) error {
	engine := ctrl.Registry.For(c.Params("userId"))
	return c.JSON(engine.Lifecycles().Snapshot())
}

// UpdateSection submits one section's draft.
func (ctrl *SettingsController) UpdateSection(c *fiber.Ctx) error {
	return ctrl.updateSection(c, SectionID(c.Params("section")))
}

// UpdateNamedSection binds the section for routes that pin it in the path.
func (ctrl *SettingsController) UpdateNamedSection(sectionID SectionID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return ctrl.updateSection(c, sectionID)
	}
}

func (ctrl *SettingsController) updateSection(c *fiber.Ctx, sectionID SectionID) error {
	var draft SectionData
	if err := c.BodyParser(&draft); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	engine := ctrl.Registry.For(c.Params("userId"))

	result, err := engine.SubmitSection(c.UserContext(), sectionID, draft, callerRole(c))
	if err != nil {
		return ctrl.submitError(c, engine, sectionID, err)
	}
	if !result.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": result})
	}

	return c.JSON(fiber.Map{
		"message": "Settings updated successfully",
		"data":    engine.Record()[sectionID],
		"status":  engine.Lifecycles().Get(sectionID),
	})
}

// PreviewSection merges a draft into the canonical section without saving.
func (ctrl *SettingsController) PreviewSection(c *fiber.Ctx) error {
	var draft SectionData
	if err := c.BodyParser(&draft); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	engine := ctrl.Registry.For(c.Params("userId"))
	preview, err := engine.PreviewSection(SectionID(c.Params("section")), draft)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"preview": preview})
}

// ResetSection clears a section's error so the user can retry.
func (ctrl *SettingsController) ResetSection(c *fiber.Ctx) error {
	engine := ctrl.Registry.For(c.Params("userId"))
	if err := engine.ResetSection(SectionID(c.Params("section"))); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Section reset"})
}

// GetAccess returns the access decision for every gated field of a section,
// evaluated against the caller's role and the current canonical state.
func (ctrl *SettingsController) GetAccess(c *fiber.Ctx) error {
	sectionID := SectionID(c.Params("section"))
	if !IsKnownSection(sectionID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ErrUnknownSection.Error()})
	}

	engine := ctrl.Registry.For(c.Params("userId"))
	state := engine.Record()[sectionID]
	role := callerRole(c)

	decisions := make(map[string]AccessDecision)
	for path := range accessTable[sectionID] {
		if path == "" {
			continue
		}
		decisions[path] = Decide(role, sectionID, path, state)
	}
	return c.JSON(decisions)
}

// HandleStatusStream keeps a websocket open and pushes lifecycle transitions.
func (ctrl *SettingsController) HandleStatusStream(c *websocket.Conn) {
	userID := c.Params("userId")
	ctrl.Hub.Subscribe(userID, c)
	defer ctrl.Hub.Unsubscribe(userID, c)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (ctrl *SettingsController) submitError(c *fiber.Ctx, engine *Engine, sectionID SectionID, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownSection):
		status = fiber.StatusNotFound
	case errors.Is(err, ErrSectionBusy):
		status = fiber.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, ErrInvalidCredentials):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"error":  err.Error(),
		"status": engine.Lifecycles().Get(sectionID),
	})
}

func callerRole(c *fiber.Ctx) string {
	claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return ""
	}
	if claims.HasRole(RoleAdmin) {
		return RoleAdmin
	}
	if len(claims.Roles) > 0 {
		return claims.Roles[0]
	}
	return ""
}
