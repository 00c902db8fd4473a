package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/ticketflow/internal/api/dto"
	"github.com/supportdesk/ticketflow/internal/service"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// StaffTicketsHandler serves the agent and admin workflow endpoints.
type StaffTicketsHandler struct {
	tickets *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(ticketService *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{tickets: ticketService}
}

// Take POST /tickets/:id/take.
func (h *StaffTicketsHandler) Take(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Take(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CancelTake POST /tickets/:id/cancel-take.
func (h *StaffTicketsHandler) CancelTake(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.CancelTake(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Reassign POST /tickets/:id/assignee.
func (h *StaffTicketsHandler) Reassign(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	assigneeID, err := parseAssignee(req.AssigneeID)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Reassign(c.UserContext(), actor, c.Params("id"), assigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddInternalNote POST /tickets/:id/internal-notes.
func (h *StaffTicketsHandler) AddInternalNote(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.tickets.PostInternalNote(c.UserContext(), actor, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketMessageResponse(msg)})
}

// parseAssignee requires the field to be present: a string assigns, null
// unassigns.
func parseAssignee(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 {
		return nil, apperrors.NewValidationError("assignee_id is required", nil)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, apperrors.NewValidationError("assignee_id must be a string or null", nil)
	}
	return &id, nil
}
