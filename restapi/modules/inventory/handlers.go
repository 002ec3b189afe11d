// Package inventory implements the REST API handler for the resource inventory.
package inventory

import (
	"context"

	"github.com/clousec/clousec/model"
	"github.com/gofiber/fiber/v2"
)

// Lister enumerates in-scope resources.
type Lister interface {
	Inventory(ctx context.Context, regions []string) model.Inventory
}

// RegionSource returns the regions in scope, after the allow-list.
type RegionSource interface {
	Regions(ctx context.Context) []string
}

// GetInventory handles GET /inventory. Partial listing failures are reported in
// the errors field, not as an HTTP error.
func GetInventory(lister Lister, regions RegionSource) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		return c.JSON(lister.Inventory(ctx, regions.Regions(ctx)))
	}
}
