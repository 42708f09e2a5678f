package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-desk/internal/api/http/handlers"
	"github.com/spec-kit/complaint-desk/internal/auth"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Tickets     *handlers.TicketsHandler
	Thread      *handlers.ThreadHandler
	Analytics   *handlers.AnalyticsHandler
	Departments *handlers.DepartmentsHandler
	Identity    *auth.IdentityMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", cfg.Identity.Handle)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/number/:number", cfg.Tickets.GetTicketByNumber)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/status", cfg.Tickets.TransitionTicket)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/rating", cfg.Tickets.RateTicket)

	tickets.Get("/:id/comments", cfg.Thread.ListComments)
	tickets.Post("/:id/comments", cfg.Thread.AddComment)
	tickets.Get("/:id/activities", cfg.Thread.ListActivities)
	tickets.Get("/:id/watchers", cfg.Thread.ListWatchers)
	tickets.Post("/:id/watch", cfg.Thread.Watch)
	tickets.Delete("/:id/watch", cfg.Thread.Unwatch)
	tickets.Get("/:id/attachments", cfg.Thread.ListAttachments)
	tickets.Post("/:id/attachments", cfg.Thread.AddAttachment)

	api.Get("/analytics/overview", auth.RequireRole(domain.RoleAdmin, domain.RoleSupervisor), cfg.Analytics.Overview)

	departments := api.Group("/departments")
	departments.Get("/", cfg.Departments.List)
	departments.Get("/:id", cfg.Departments.Get)
	adminOnly := auth.RequireRole(domain.RoleAdmin)
	departments.Post("/", adminOnly, cfg.Departments.Create)
	departments.Put("/:id", adminOnly, cfg.Departments.Update)
	departments.Delete("/:id", adminOnly, cfg.Departments.Delete)
}
