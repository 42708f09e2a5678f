package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPending,
	TicketStatusResolved,
	TicketStatusClosed,
}

// ParseTicketStatus converts raw input into a TicketStatus.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return status, nil
}

// Valid reports whether s is a declared status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every priority from lowest to highest.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// ParseTicketPriority converts raw input into a TicketPriority.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	priority := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	if !priority.Valid() {
		return "", fmt.Errorf("unknown priority %q", raw)
	}
	return priority, nil
}

// Valid reports whether p is a declared priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket is the aggregate for complaints.
type Ticket struct {
	ID                 string
	OrganizationID     string
	TicketNumber       string
	Title              string
	Description        string
	CategoryID         *string
	DepartmentID       *string
	Priority           TicketPriority
	Status             TicketStatus
	CreatedBy          string
	AssignedTo         *string
	DueDate            *time.Time
	ResolvedAt         *time.Time
	ResolvedBy         *string
	ClosedAt           *time.Time
	ReopenedAt         *time.Time
	SatisfactionRating *int
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a copy that shares no pointers with t.
func (t Ticket) Clone() Ticket {
	out := t
	out.CategoryID = cloneString(t.CategoryID)
	out.DepartmentID = cloneString(t.DepartmentID)
	out.AssignedTo = cloneString(t.AssignedTo)
	out.ResolvedBy = cloneString(t.ResolvedBy)
	out.DueDate = cloneTime(t.DueDate)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.ClosedAt = cloneTime(t.ClosedAt)
	out.ReopenedAt = cloneTime(t.ReopenedAt)
	if t.SatisfactionRating != nil {
		v := *t.SatisfactionRating
		out.SatisfactionRating = &v
	}
	return out
}

// Watcher marks notification interest in a ticket.
type Watcher struct {
	TicketID  string
	UserID    string
	CreatedAt time.Time
}

// Attachment stores metadata for a file held by the storage collaborator.
type Attachment struct {
	ID         string
	TicketID   string
	UploadedBy string
	Path       string
	FileName   string
	SizeBytes  int64
	MimeType   string
	CreatedAt  time.Time
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
