// middleware/request_context.go
package middleware

import (
	"time"

	"royale-indexer/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestContextMiddleware tags every request with an id (the caller's, or a fresh uuid),
// exposes it as the "request_id" local and logs the request once it completes.
func RequestContextMiddleware() fiber.Handler {
	log := logger.Component("http")

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Locals("request_id", requestID)
		c.Set(RequestIDHeader, requestID)

		start := time.Now()
		err := c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"duration":   time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("[HTTP] request failed")
		} else {
			entry.Debug("[HTTP] request served")
		}
		return err
	}
}
