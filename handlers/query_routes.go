// handlers/query_routes.go
package handlers

import (
	"royale-indexer/services"

	"github.com/gofiber/fiber/v2"
)

// SetupQueryRoutes registers the public, read-only projection endpoints.
func SetupQueryRoutes(app *fiber.App, queryService *services.QueryService) {
	app.Get("/games", queryService.GetAllGames)
	app.Get("/games/:id", queryService.GetGameByID)
	app.Get("/games/:id/board", queryService.GetGameBoard)

	app.Get("/players", queryService.GetAllPlayers)
	app.Get("/players/:id", queryService.GetPlayerByID)

	app.Get("/world", queryService.GetWorld)
	app.Get("/world/:x/:y", queryService.GetWorldCell)

	app.Get("/status", queryService.GetStatus)
	app.Get("/stream", queryService.StreamStatusSSE)
}
