// Package findings implements the REST API handlers for findings and the dashboard.
package findings

import (
	"strconv"

	"github.com/clousec/clousec/graphql/modules/dashboard"
	gqlfindings "github.com/clousec/clousec/graphql/modules/findings"
	"github.com/gofiber/fiber/v2"
)

// GetFindings handles GET /findings with optional status, service, severity
// and limit query parameters.
func GetFindings(store gqlfindings.Finder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		args := map[string]interface{}{
			"status":   c.Query("status"),
			"service":  c.Query("service"),
			"severity": c.Query("severity"),
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid limit",
				})
			}
			args["limit"] = limit
		}

		filter, err := gqlfindings.FilterFromArgs(args)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		found, err := store.Find(c.UserContext(), filter)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to query findings: " + err.Error(),
			})
		}
		return c.JSON(found)
	}
}

// GetDashboard handles GET /dashboard.
func GetDashboard(view dashboard.Summarizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		summary, err := view.Summary(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to compute dashboard: " + err.Error(),
			})
		}
		return c.JSON(summary)
	}
}
