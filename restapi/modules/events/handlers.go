// Package events implements the REST API handler for incoming cloud events.
package events

import (
	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// PostEvent handles POST /event. Any structurally valid event is accepted with
// 202, routed or not; the targeted scans run in the background.
func PostEvent(router *cloudevents.Router, dispatcher cloudevents.Dispatcher, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routing, err := cloudevents.HandleCloudEvent(c.UserContext(), c.Body(), router, dispatcher)
		metrics.RecordEvent("http", cloudevents.Outcome(routing, err))

		if err != nil {
			logger.Debug("Rejected event", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid event",
			})
		}

		if !routing.Routed() {
			logger.Debug("Unroutable event", zap.String("reason", routing.Unroutable))
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "processed",
		})
	}
}
