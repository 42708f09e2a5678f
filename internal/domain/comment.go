package domain

import "time"

// Comment is a message in a ticket thread.
type Comment struct {
	ID              string
	TicketID        string
	UserID          string
	Content         string
	IsInternal      bool
	IsSystemMessage bool
	CreatedAt       time.Time
}
