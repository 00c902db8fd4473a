package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/supportdesk/ticketflow/internal/api/dto"
	"github.com/supportdesk/ticketflow/internal/auth"
	"github.com/supportdesk/ticketflow/internal/domain"
	"github.com/supportdesk/ticketflow/internal/repository"
	"github.com/supportdesk/ticketflow/internal/service"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// TicketsHandler serves the ticket endpoints every role shares.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, first, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.CreatedTicketResponse{
		Ticket:  dto.NewTicketResponse(ticket),
		Message: dto.NewTicketMessageResponse(first),
	}})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	limit, offset, err := parsePage(c)
	if err != nil {
		return err
	}
	input := service.TicketListInput{
		View:   repository.TicketView(strings.ToLower(strings.TrimSpace(c.Query("view")))),
		Limit:  limit,
		Offset: offset,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := domain.TicketStatus(strings.ToUpper(raw))
		input.Status = &status
	}
	page, err := h.service.ListTickets(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.NewTicketResponse(&page.Items[i]))
	}
	return c.JSON(fiber.Map{"data": dto.ListResponse[dto.TicketResponse]{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(&detail.Ticket, detail.Messages)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, ticket, err := h.service.PostMessage(c.UserContext(), actor, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.PostedMessageResponse{
		Message: dto.NewTicketMessageResponse(msg),
		Ticket:  dto.NewTicketResponse(ticket),
	}})
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := requireActor(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ChangeStatus(c.UserContext(), actor, c.Params("id"),
		domain.TicketStatus(strings.ToUpper(string(req.From))),
		domain.TicketStatus(strings.ToUpper(string(req.To))))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func requireActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parsePage(c *fiber.Ctx) (limit, offset int, err error) {
	if limit, err = parseInt(c.Query("limit"), 0); err != nil {
		return 0, 0, apperrors.NewValidationError("limit must be an integer", nil)
	}
	if offset, err = parseInt(c.Query("offset"), 0); err != nil {
		return 0, 0, apperrors.NewValidationError("offset must be an integer", nil)
	}
	return limit, offset, nil
}

func parseInt(val string, def int) (int, error) {
	if val == "" {
		return def, nil
	}
	return strconv.Atoi(val)
}
