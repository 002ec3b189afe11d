// Package scans implements the REST API handlers for on-demand sweeps.
package scans

import (
	"context"
	"errors"

	"github.com/clousec/clousec/internal/scanner"
	"github.com/gofiber/fiber/v2"
)

// Sweeper starts a background sweep, failing with scanner.ErrScanInProgress
// while another one runs.
type Sweeper interface {
	StartSweep(ctx context.Context, services ...string) error
}

// PostScan handles POST /scan. The sweep runs under ctx, not the request's
// context, so it outlives the response.
func PostScan(ctx context.Context, sweeper Sweeper) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return start(ctx, c, sweeper)
	}
}

// PostServiceScan handles POST /scan/:service for s3, ec2 or iam.
func PostServiceScan(ctx context.Context, sweeper Sweeper) fiber.Handler {
	return func(c *fiber.Ctx) error {
		service, err := scanner.ParseService(c.Params("service"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return start(ctx, c, sweeper, service)
	}
}

func start(ctx context.Context, c *fiber.Ctx, sweeper Sweeper, services ...string) error {
	err := sweeper.StartSweep(ctx, services...)
	if errors.Is(err, scanner.ErrScanInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Scan already in progress",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	resp := fiber.Map{"status": "scan started"}
	if len(services) == 1 {
		resp["service"] = services[0]
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}
