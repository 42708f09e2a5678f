package dto

import (
	"time"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"required,max=10000"`
	CategoryID   *string    `json:"category_id" validate:"omitempty,max=64"`
	DepartmentID *string    `json:"department_id" validate:"omitempty,max=64"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate      *time.Time `json:"due_date"`
}

// UpdateTicketRequest is a partial update. Empty strings clear references.
type UpdateTicketRequest struct {
	Title        *string    `json:"title" validate:"omitempty,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=10000"`
	CategoryID   *string    `json:"category_id" validate:"omitempty,max=64"`
	DepartmentID *string    `json:"department_id" validate:"omitempty,max=64"`
	Priority     *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	AssignedTo   *string    `json:"assigned_to" validate:"omitempty,max=64"`
	Version      *int64     `json:"version"`
}

// TransitionRequest moves a ticket to another status.
type TransitionRequest struct {
	From    string `json:"from" validate:"omitempty,oneof=open in_progress pending resolved closed"`
	Status  string `json:"status" validate:"required,oneof=open in_progress pending resolved closed"`
	Note    string `json:"note" validate:"max=2000"`
	Version *int64 `json:"version"`
}

// ReopenRequest reopens a resolved or closed ticket.
type ReopenRequest struct {
	Reason  string `json:"reason" validate:"max=2000"`
	Version *int64 `json:"version"`
}

// AssignRequest sets or clears the assignee.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id" validate:"omitempty,max=64"`
	Version    *int64  `json:"version"`
}

// RateRequest records satisfaction.
type RateRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Version *int64 `json:"version"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content    string `json:"content" validate:"required,max=10000"`
	IsInternal bool   `json:"is_internal"`
}

// CreateAttachmentRequest describes a blob already uploaded to storage.
type CreateAttachmentRequest struct {
	Path      string `json:"path" validate:"required,max=1024"`
	FileName  string `json:"file_name" validate:"required,max=255"`
	SizeBytes int64  `json:"size_bytes" validate:"required,gt=0"`
	MimeType  string `json:"mime_type" validate:"required,max=255"`
	Version   *int64 `json:"version"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID                 string                `json:"id"`
	OrganizationID     string                `json:"organization_id"`
	TicketNumber       string                `json:"ticket_number"`
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	CategoryID         *string               `json:"category_id"`
	DepartmentID       *string               `json:"department_id"`
	Priority           domain.TicketPriority `json:"priority"`
	Status             domain.TicketStatus   `json:"status"`
	CreatedBy          string                `json:"created_by"`
	AssignedTo         *string               `json:"assigned_to"`
	DueDate            *time.Time            `json:"due_date"`
	ResolvedAt         *time.Time            `json:"resolved_at"`
	ResolvedBy         *string               `json:"resolved_by"`
	ClosedAt           *time.Time            `json:"closed_at"`
	ReopenedAt         *time.Time            `json:"reopened_at"`
	SatisfactionRating *int                  `json:"satisfaction_rating"`
	Version            int64                 `json:"version"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// CommentResponse is the wire form of a comment.
type CommentResponse struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticket_id"`
	UserID          string    `json:"user_id"`
	Content         string    `json:"content"`
	IsInternal      bool      `json:"is_internal"`
	IsSystemMessage bool      `json:"is_system_message"`
	CreatedAt       time.Time `json:"created_at"`
}

// ActivityResponse is the wire form of an audit entry.
type ActivityResponse struct {
	ID          int64                 `json:"id"`
	TicketID    string                `json:"ticket_id"`
	UserID      string                `json:"user_id"`
	Action      domain.ActivityAction `json:"action"`
	Description string                `json:"description"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	UploadedBy string    `json:"uploaded_by"`
	Path       string    `json:"path"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// WatcherResponse lists one subscriber.
type WatcherResponse struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		OrganizationID:     t.OrganizationID,
		TicketNumber:       t.TicketNumber,
		Title:              t.Title,
		Description:        t.Description,
		CategoryID:         t.CategoryID,
		DepartmentID:       t.DepartmentID,
		Priority:           t.Priority,
		Status:             t.Status,
		CreatedBy:          t.CreatedBy,
		AssignedTo:         t.AssignedTo,
		DueDate:            t.DueDate,
		ResolvedAt:         t.ResolvedAt,
		ResolvedBy:         t.ResolvedBy,
		ClosedAt:           t.ClosedAt,
		ReopenedAt:         t.ReopenedAt,
		SatisfactionRating: t.SatisfactionRating,
		Version:            t.Version,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// NewCommentResponse maps a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:              c.ID,
		TicketID:        c.TicketID,
		UserID:          c.UserID,
		Content:         c.Content,
		IsInternal:      c.IsInternal,
		IsSystemMessage: c.IsSystemMessage,
		CreatedAt:       c.CreatedAt,
	}
}

// NewActivityResponse maps an audit entry.
func NewActivityResponse(a *domain.Activity) ActivityResponse {
	return ActivityResponse{
		ID:          a.ID,
		TicketID:    a.TicketID,
		UserID:      a.UserID,
		Action:      a.Action,
		Description: a.Description,
		Metadata:    a.Metadata,
		CreatedAt:   a.CreatedAt,
	}
}

// NewAttachmentResponse maps attachment metadata.
func NewAttachmentResponse(a *domain.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		TicketID:   a.TicketID,
		UploadedBy: a.UploadedBy,
		Path:       a.Path,
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		CreatedAt:  a.CreatedAt,
	}
}
