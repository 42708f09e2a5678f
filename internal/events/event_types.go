package events

import (
	"time"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

// EventType mirrors the activity action that produced the event.
type EventType = domain.ActivityAction

const (
	EventTicketCreated       = domain.ActionCreated
	EventTicketUpdated       = domain.ActionUpdated
	EventTicketCommented     = domain.ActionCommented
	EventTicketAssigned      = domain.ActionAssigned
	EventTicketStatusChanged = domain.ActionStatusChanged
)

// Event is published once per committed activity row.
type Event struct {
	ID             string          `json:"id"`
	Type           EventType       `json:"type"`
	OrganizationID string          `json:"organization_id"`
	TicketID       string          `json:"ticket_id"`
	TicketNumber   string          `json:"ticket_number"`
	ActorID        string          `json:"actor_id"`
	Description    string          `json:"description"`
	Internal       bool            `json:"internal"` // content must not reach end users
	Activity       domain.Activity `json:"-"`
	Timestamp      time.Time       `json:"timestamp"`
}

// FromActivity builds the event for a committed activity on ticket.
func FromActivity(id string, ticket *domain.Ticket, entry domain.Activity, internal bool) Event {
	return Event{
		ID:             id,
		Type:           entry.Action,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		TicketNumber:   ticket.TicketNumber,
		ActorID:        entry.UserID,
		Description:    entry.Description,
		Internal:       internal,
		Activity:       entry,
		Timestamp:      entry.CreatedAt,
	}
}
