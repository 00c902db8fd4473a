package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/supportdesk/ticketflow/internal/api/http/handlers"
	"github.com/supportdesk/ticketflow/internal/auth"
	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Audit          *handlers.AuditHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	tickets.Post("/", auth.RequireRole(domain.RoleCustomer), cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)

	tickets.Post("/:id/take", auth.RequireRole(domain.RoleAgent), cfg.StaffTickets.Take)
	tickets.Post("/:id/cancel-take", auth.RequireRole(domain.RoleAgent), cfg.StaffTickets.CancelTake)
	tickets.Post("/:id/assignee", auth.RequireRole(domain.RoleAdmin), cfg.StaffTickets.Reassign)
	tickets.Post("/:id/internal-notes", auth.RequireRole(domain.RoleAgent, domain.RoleAdmin), cfg.StaffTickets.AddInternalNote)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/audit-logs", cfg.Audit.ListAuditLogs)
}
