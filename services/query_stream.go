package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"royale-indexer/logger"
	"royale-indexer/models"

	"github.com/gofiber/fiber/v2"
)

// StreamInterval is how often the SSE feed polls the checkpoint.
var StreamInterval = 2 * time.Second

// StreamStatusSSE pushes a "checkpoint" event every time the projection moves.
func (s *QueryService) StreamStatusSSE(c *fiber.Ctx) error {
	if s.projector == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "projection not running"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(StreamInterval)
		defer ticker.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-done:
				cancel()
			case <-ctx.Done():
			}
		}()
		s.streamCheckpoints(ctx, w, ticker.C)
	})
	return nil
}

// streamCheckpoints writes the current checkpoint, then one event per observed change,
// until ctx ends or the client goes away.
func (s *QueryService) streamCheckpoints(ctx context.Context, w *bufio.Writer, tick <-chan time.Time) {
	log := logger.Component("sse")

	// Initial keepalive (comment event)
	w.WriteString(":\n\n")
	if err := w.Flush(); err != nil {
		return
	}

	var last models.Checkpoint
	first := true
	for {
		cp, err := s.projector.Checkpoint(ctx)
		if err != nil {
			log.WithError(err).Warn("[SSE] checkpoint read failed")
		} else if first || moved(last, cp) {
			first = false
			last = cp
			payload, _ := json.Marshal(cp)
			fmt.Fprintf(w, "event: checkpoint\ndata: %s\n\n", payload)
			if err := w.Flush(); err != nil {
				// Client disconnected
				return
			}
		}

		select {
		case <-tick:
		case <-ctx.Done():
			return
		}
	}
}

func moved(a, b models.Checkpoint) bool {
	return a.NextBlock != b.NextBlock || a.LastBlock != b.LastBlock || a.LastLogIndex != b.LastLogIndex
}
