package domain

import "time"

// ActivityAction enumerates audit entry kinds.
type ActivityAction string

const (
	ActionCreated       ActivityAction = "created"
	ActionUpdated       ActivityAction = "updated"
	ActionCommented     ActivityAction = "commented"
	ActionAssigned      ActivityAction = "assigned"
	ActionStatusChanged ActivityAction = "status_changed"
)

// Valid reports whether a is a declared action.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionCommented, ActionAssigned, ActionStatusChanged:
		return true
	}
	return false
}

// Activity is an immutable audit trail entry. ID is assigned by the store
// and increases monotonically.
type Activity struct {
	ID          int64
	TicketID    string
	UserID      string
	Action      ActivityAction
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}
