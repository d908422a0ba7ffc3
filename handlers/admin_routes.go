// handlers/admin_routes.go
package handlers

import (
	"royale-indexer/middleware"
	"royale-indexer/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes registers the operator endpoints behind the admin token.
func SetupAdminRoutes(app *fiber.App, adminService *services.AdminService, adminToken string) {
	admin := app.Group("/admin", middleware.AdminAuthMiddleware(adminToken))

	admin.Post("/reindex", adminService.TriggerReindex)
	admin.Post("/snapshot", adminService.TriggerSnapshot)
}
