package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

// TransitionCommand moves TicketID from From to Status. From is the status
// the caller last saw; when both From and ExpectedVersion are empty the
// status read at the start of the call is used instead.
type TransitionCommand struct {
	TicketID        string
	From            *domain.TicketStatus
	Status          domain.TicketStatus
	ExpectedVersion *int64
	Note            string
}

// ReopenCommand explicitly returns a resolved or closed ticket to open.
type ReopenCommand struct {
	TicketID        string
	ExpectedVersion *int64
	Reason          string
}

// Transition applies a default state machine move and records it both as a
// status_changed activity and as a system comment on the thread.
func (s *TicketService) Transition(ctx context.Context, actor domain.Actor, cmd TransitionCommand) (*domain.Ticket, error) {
	if !cmd.Status.Valid() {
		return nil, apperrors.NewValidationError(string(policy.FieldStatus), "unknown status")
	}
	if cmd.From != nil && !cmd.From.Valid() {
		return nil, apperrors.NewValidationError("from", "unknown status")
	}
	note := s.sanitizeText(cmd.Note)

	expectedFrom := cmd.From
	if expectedFrom == nil && cmd.ExpectedVersion == nil {
		seen, err := s.loadVisible(ctx, actor, cmd.TicketID)
		if err != nil {
			return nil, err
		}
		expectedFrom = &seen.Status
	}

	return s.mutate(ctx, actor, cmd.TicketID, cmd.ExpectedVersion, func(_ context.Context, _ repository.Repositories, ticket *domain.Ticket, now time.Time) (*change, error) {
		if !policy.CanMutate(actor, ticket, []policy.Field{policy.FieldStatus}) {
			return nil, apperrors.NewForbidden("not allowed to change ticket status")
		}
		from := ticket.Status
		if expectedFrom != nil && *expectedFrom != from {
			return nil, statusConflict(ticket)
		}
		if !domain.CanTransition(from, cmd.Status) {
			return nil, apperrors.NewValidationError(string(policy.FieldStatus),
				fmt.Sprintf("cannot move ticket from %s to %s", from, cmd.Status))
		}
		applyStatus(ticket, cmd.Status, actor.ID, now)
		return statusChange(ticket, actor, from, note, false), nil
	})
}

// Reopen is the staff-only way out of resolved or closed.
func (s *TicketService) Reopen(ctx context.Context, actor domain.Actor, cmd ReopenCommand) (*domain.Ticket, error) {
	reason := s.sanitizeText(cmd.Reason)

	return s.mutate(ctx, actor, cmd.TicketID, cmd.ExpectedVersion, func(_ context.Context, _ repository.Repositories, ticket *domain.Ticket, now time.Time) (*change, error) {
		if !policy.CanReopen(actor, ticket) {
			return nil, apperrors.NewForbidden("only supervisors and admins may reopen tickets")
		}
		from := ticket.Status
		if !domain.CanReopen(from) {
			return nil, apperrors.NewValidationError(string(policy.FieldStatus),
				fmt.Sprintf("cannot reopen a ticket that is %s", from))
		}
		applyStatus(ticket, domain.TicketStatusOpen, actor.ID, now)
		return statusChange(ticket, actor, from, reason, true), nil
	})
}

// applyStatus moves ticket to status and maintains the lifecycle stamps.
// resolved_at and closed_at are written on first entry and again only for a
// fresh entry after the ticket was reopened.
func applyStatus(ticket *domain.Ticket, status domain.TicketStatus, actorID string, now time.Time) {
	from := ticket.Status
	ticket.Status = status

	switch status {
	case domain.TicketStatusResolved:
		if stampDue(ticket.ResolvedAt, ticket.ReopenedAt) {
			ticket.ResolvedAt = &now
			ticket.ResolvedBy = strPtr(actorID)
		}
	case domain.TicketStatusClosed:
		if stampDue(ticket.ClosedAt, ticket.ReopenedAt) {
			ticket.ClosedAt = &now
		}
	case domain.TicketStatusOpen:
		if domain.CanReopen(from) {
			ticket.ReopenedAt = &now
		}
	case domain.TicketStatusInProgress, domain.TicketStatusPending:
	}
}

// statusConflict reports that another transition won the race.
func statusConflict(ticket *domain.Ticket) error {
	return apperrors.NewConflict("ticket status was changed concurrently", map[string]any{
		"current_status":  string(ticket.Status),
		"current_version": ticket.Version,
	})
}

func stampDue(stamp, reopenedAt *time.Time) bool {
	if stamp == nil {
		return true
	}
	return reopenedAt != nil && !reopenedAt.Before(*stamp)
}

func statusChange(ticket *domain.Ticket, actor domain.Actor, from domain.TicketStatus, note string, reopen bool) *change {
	verb := "Status changed"
	if reopen {
		verb = "Ticket reopened"
	}
	description := fmt.Sprintf("%s from %s to %s", verb, from, ticket.Status)

	body := description
	if strings.TrimSpace(note) != "" {
		body = description + ": " + note
	}

	metadata := map[string]any{
		"from": string(from),
		"to":   string(ticket.Status),
	}
	if reopen {
		metadata["reopened"] = true
	}
	if note != "" {
		metadata["note"] = note
	}

	return &change{
		action:      domain.ActionStatusChanged,
		description: description,
		metadata:    metadata,
		comment: &domain.Comment{
			ID:              uuid.NewString(),
			TicketID:        ticket.ID,
			UserID:          actor.ID,
			Content:         body,
			IsSystemMessage: true,
		},
	}
}
