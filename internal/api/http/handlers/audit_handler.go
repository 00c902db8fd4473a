package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/ticketflow/internal/api/dto"
	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/service"
)

// AuditHandler serves the administrative audit log.
type AuditHandler struct {
	tickets *service.TicketService
}

// NewAuditHandler constructs handler.
func NewAuditHandler(ticketService *service.TicketService) *AuditHandler {
	return &AuditHandler{tickets: ticketService}
}

// ListAuditLogs GET /admin/audit-logs.
func (h *AuditHandler) ListAuditLogs(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	limit, offset, err := parsePage(c)
	if err != nil {
		return err
	}
	input := service.AuditListInput{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(c.Query("entity_type")); raw != "" {
		entityType := domain.AuditEntityType(strings.ToUpper(raw))
		input.EntityType = &entityType
	}
	if raw := strings.TrimSpace(c.Query("entity_id")); raw != "" {
		entityID := strings.Clone(raw)
		input.EntityID = &entityID
	}
	page, err := h.tickets.ListAuditLog(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	items := make([]dto.AuditLogResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.NewAuditLogResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": dto.ListResponse[dto.AuditLogResponse]{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}})
}
