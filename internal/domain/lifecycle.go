package domain

// progressions is the single forward step of the normal flow
// open -> in_progress -> pending -> resolved -> closed. Moves to open and
// closed are handled by CanTransition for every non-terminal state.
var progressions = map[TicketStatus]TicketStatus{
	TicketStatusOpen:       TicketStatusInProgress,
	TicketStatusInProgress: TicketStatusPending,
	TicketStatusPending:    TicketStatusResolved,
	TicketStatusResolved:   TicketStatusClosed,
}

// CanTransition reports whether from -> to is a default transition.
// Leaving closed is never a default transition; see CanReopen.
func CanTransition(from, to TicketStatus) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if from == TicketStatusClosed {
		return false
	}
	if to == TicketStatusClosed || to == TicketStatusOpen {
		return true
	}
	next, ok := progressions[from]
	return ok && next == to
}

// CanReopen reports whether a ticket in status s may be explicitly reopened.
func CanReopen(s TicketStatus) bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}
