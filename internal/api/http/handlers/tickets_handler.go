package handlers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-desk/internal/api/dto"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/service"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets     *service.TicketService
	assignments *service.AssignmentService
	validate    *validator.Validate
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, assignments *service.AssignmentService, validate *validator.Validate) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments, validate: validate}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.Create(c.UserContext(), actor, service.CreateTicketCommand{
		Title:        req.Title,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		DepartmentID: req.DepartmentID,
		Priority:     domain.TicketPriority(strings.ToLower(req.Priority)),
		DueDate:      req.DueDate,
	})
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	query, page, pageSize, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.List(c.UserContext(), actor, query)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items, "page": page, "page_size": pageSize})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicketByNumber GET /tickets/number/:number.
func (h *TicketsHandler) GetTicketByNumber(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetByNumber(c.UserContext(), actor, c.Params("number"))
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		return err
	}
	patch := service.TicketPatch{
		Title:        req.Title,
		Description:  req.Description,
		CategoryID:   req.CategoryID,
		DepartmentID: req.DepartmentID,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		AssignedTo:   req.AssignedTo,
	}
	if req.Priority != nil {
		priority := domain.TicketPriority(strings.ToLower(*req.Priority))
		patch.Priority = &priority
	}
	ticket, err := h.tickets.Update(c.UserContext(), actor, service.UpdateTicketCommand{
		TicketID:        c.Params("id"),
		ExpectedVersion: version,
		Patch:           patch,
	})
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// TransitionTicket POST /tickets/:id/status.
func (h *TicketsHandler) TransitionTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		return err
	}
	cmd := service.TransitionCommand{
		TicketID:        c.Params("id"),
		Status:          domain.TicketStatus(req.Status),
		ExpectedVersion: version,
		Note:            req.Note,
	}
	if req.From != "" {
		from := domain.TicketStatus(req.From)
		cmd.From = &from
	}
	ticket, err := h.tickets.Transition(c.UserContext(), actor, cmd)
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReopenRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Reopen(c.UserContext(), actor, service.ReopenCommand{
		TicketID:        c.Params("id"),
		ExpectedVersion: version,
		Reason:          req.Reason,
	})
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		return err
	}
	ticket, err := h.assignments.Assign(c.UserContext(), actor, service.AssignCommand{
		TicketID:        c.Params("id"),
		AssigneeID:      req.AssigneeID,
		ExpectedVersion: version,
	})
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// RateTicket POST /tickets/:id/rating.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RateRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.Rate(c.UserContext(), actor, service.RateTicketCommand{
		TicketID:        c.Params("id"),
		ExpectedVersion: version,
		Rating:          req.Rating,
	})
	if err != nil {
		return err
	}
	setETag(c, ticket)
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) (service.ListTicketsQuery, int, int, error) {
	query := service.ListTicketsQuery{
		DepartmentID: queryString(c, "department_id"),
		AssigneeID:   queryString(c, "assigned_to"),
		CreatedBy:    queryString(c, "created_by"),
		SearchTerm:   queryString(c, "q"),
	}
	for _, part := range splitAndTrim(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.TicketStatus(strings.ToLower(part)))
	}
	for _, part := range splitAndTrim(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.TicketPriority(strings.ToLower(part)))
	}
	var err error
	if query.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		return query, 0, 0, err
	}
	if query.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		return query, 0, 0, err
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return query, 0, 0, err
	}
	pageSize, err := queryInt(c, "page_size", 20)
	if err != nil {
		return query, 0, 0, err
	}
	query.Offset = (page - 1) * pageSize
	query.Limit = pageSize
	return query, page, pageSize, nil
}
