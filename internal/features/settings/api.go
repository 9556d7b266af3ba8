package settings

import (
	"go-staffhub/internal/common/api"
	"go-staffhub/internal/config"
	"go-staffhub/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SettingsApi struct {
	Controller *SettingsController
	Config     *config.Config
}

func NewSettingsApi(controller *SettingsController, config *config.Config) api.Route {
	return &SettingsApi{
		Controller: controller,
		Config:     config,
	}
}

func (a *SettingsApi) Setup(app *fiber.App) {
	// Status stream: the websocket upgrade cannot carry the auth middleware
	// chain, matching how the rest of the app exposes its socket.
	app.Get("/api/settings/ws/:userId", websocket.New(a.Controller.HandleStatusStream))

	group := app.Group("/api/settings", middleware.AuthMiddleware(a.Config.SkipAuth))

	group.Get("/:userId", a.Controller.GetSettings)
	group.Get("/:userId/status", a.Controller.GetStatus)
	group.Get("/:userId/:section/access", a.Controller.GetAccess)

	// Admin-gated sections keep their own routes; the gateway re-checks the
	// role either way.
	group.Put("/:userId/jobSettings", middleware.AdminMiddleware(), a.Controller.UpdateNamedSection(SectionJobSettings))
	group.Put("/:userId/adminSettings", middleware.AdminMiddleware(), a.Controller.UpdateNamedSection(SectionAdminSettings))
	group.Put("/:userId/:section", a.Controller.UpdateSection)

	group.Post("/:userId/:section/preview", a.Controller.PreviewSection)
	group.Post("/:userId/:section/reset", a.Controller.ResetSection)
}
