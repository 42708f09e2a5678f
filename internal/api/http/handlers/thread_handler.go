package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-desk/internal/api/dto"
	"github.com/spec-kit/complaint-desk/internal/service"
)

// ThreadHandler serves comments, watchers, attachments and the activity log
// of a ticket.
type ThreadHandler struct {
	tickets    *service.TicketService
	activities *service.ActivityService
	validate   *validator.Validate
}

// NewThreadHandler constructs handler.
func NewThreadHandler(tickets *service.TicketService, activities *service.ActivityService, validate *validator.Validate) *ThreadHandler {
	return &ThreadHandler{tickets: tickets, activities: activities, validate: validate}
}

// AddComment POST /tickets/:id/comments.
func (h *ThreadHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	comment, err := h.tickets.AddComment(c.UserContext(), actor, service.AddCommentCommand{
		TicketID:   c.Params("id"),
		Content:    req.Content,
		IsInternal: req.IsInternal,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *ThreadHandler) ListComments(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	comments, err := h.tickets.ListComments(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.NewCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListActivities GET /tickets/:id/activities.
func (h *ThreadHandler) ListActivities(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.activities.ListForTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ActivityResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewActivityResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Watch POST /tickets/:id/watch.
func (h *ThreadHandler) Watch(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Watch(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Unwatch DELETE /tickets/:id/watch.
func (h *ThreadHandler) Unwatch(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Unwatch(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListWatchers GET /tickets/:id/watchers.
func (h *ThreadHandler) ListWatchers(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	watchers, err := h.tickets.ListWatchers(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.WatcherResponse, 0, len(watchers))
	for _, w := range watchers {
		items = append(items, dto.WatcherResponse{UserID: w.UserID, CreatedAt: w.CreatedAt})
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddAttachment POST /tickets/:id/attachments.
func (h *ThreadHandler) AddAttachment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateAttachmentRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	version, err := expectedVersion(c, req.Version)
	if err != nil {
		return err
	}
	attachment, err := h.tickets.AddAttachment(c.UserContext(), actor, service.AddAttachmentCommand{
		TicketID:        c.Params("id"),
		ExpectedVersion: version,
		Path:            req.Path,
		FileName:        req.FileName,
		SizeBytes:       req.SizeBytes,
		MimeType:        req.MimeType,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// ListAttachments GET /tickets/:id/attachments.
func (h *ThreadHandler) ListAttachments(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	attachments, err := h.tickets.ListAttachments(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, dto.NewAttachmentResponse(&attachments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
