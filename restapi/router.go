// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"context"

	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/graphql/modules/dashboard"
	gqlfindings "github.com/clousec/clousec/graphql/modules/findings"
	"github.com/clousec/clousec/restapi/modules/events"
	"github.com/clousec/clousec/restapi/modules/findings"
	"github.com/clousec/clousec/restapi/modules/inventory"
	"github.com/clousec/clousec/restapi/modules/scans"
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"
)

// Services are the components the routes serve.
type Services struct {
	// Context bounds background sweeps started over HTTP.
	Context    context.Context
	Findings   gqlfindings.Finder
	Dashboard  dashboard.Summarizer
	Router     *cloudevents.Router
	Dispatcher cloudevents.Dispatcher
	Sweeper    scans.Sweeper
	Inventory  inventory.Lister
	Regions    inventory.RegionSource
	Logger     *zap.Logger
}

// SetupRoutes configures the REST routes at the root and under /api/v1, and the
// GraphQL endpoint under /api/v1.
func SetupRoutes(app *fiber.App, svc Services, schema graphql.Schema) {
	if svc.Context == nil {
		svc.Context = context.Background()
	}
	if svc.Logger == nil {
		svc.Logger = zap.NewNop()
	}

	mount(app, svc)

	api := app.Group("/api/v1")
	mount(api, svc)
	api.Post("/graphql", GraphQLHandler(schema))

	svc.Logger.Info("API routes initialized successfully")
}

func mount(r fiber.Router, svc Services) {
	r.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Get("/findings", findings.GetFindings(svc.Findings))
	r.Get("/dashboard", findings.GetDashboard(svc.Dashboard))
	r.Post("/event", events.PostEvent(svc.Router, svc.Dispatcher, svc.Logger))

	r.Post("/scan", scans.PostScan(svc.Context, svc.Sweeper))
	r.Post("/scan/:service", scans.PostServiceScan(svc.Context, svc.Sweeper))

	if svc.Inventory != nil && svc.Regions != nil {
		r.Get("/inventory", inventory.GetInventory(svc.Inventory, svc.Regions))
	}
}
