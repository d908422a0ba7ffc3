package services

import (
	"context"
	"errors"

	"royale-indexer/logger"
	"royale-indexer/models"

	"github.com/gofiber/fiber/v2"
)

// Reindexer wipes the projection and rewinds to the start block.
// The sync worker implements it so a reindex never races a batch in flight.
type Reindexer interface {
	Reindex(ctx context.Context) (models.Checkpoint, error)
}

// AdminService serves the operator endpoints.
type AdminService struct {
	Reindexer Reindexer
	Snapshots *SnapshotService
}

// TriggerReindex handles POST /admin/reindex.
func (s *AdminService) TriggerReindex(c *fiber.Ctx) error {
	cp, err := s.Reindexer.Reindex(c.UserContext())
	if err != nil {
		logger.Component("admin").WithError(err).Error("[ADMIN] reindex failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "reindex failed"})
	}
	return c.JSON(fiber.Map{"message": "projection reset", "checkpoint": cp})
}

// TriggerSnapshot handles POST /admin/snapshot.
func (s *AdminService) TriggerSnapshot(c *fiber.Ctx) error {
	if s.Snapshots == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": ErrSnapshotsDisabled.Error()})
	}
	res, err := s.Snapshots.Export(c.UserContext())
	if errors.Is(err, ErrSnapshotsDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		logger.Component("admin").WithError(err).Error("[ADMIN] snapshot export failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "snapshot export failed"})
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}
