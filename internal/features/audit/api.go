package audit

import (
	"go-staffhub/internal/common/api"
	"go-staffhub/internal/config"
	"go-staffhub/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	Controller *AuditController
	Config     *config.Config
}

func NewAuditApi(controller *AuditController, config *config.Config) api.Route {
	return &AuditApi{
		Controller: controller,
		Config:     config,
	}
}

func (a *AuditApi) Setup(app *fiber.App) {
	group := app.Group("/api/audit-logs", middleware.AuthMiddleware(a.Config.SkipAuth))

	group.Get("/", middleware.AdminMiddleware(), a.Controller.ListLogs)
}
