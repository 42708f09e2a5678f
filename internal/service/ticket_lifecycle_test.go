package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-desk/internal/domain"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

func TestTransitionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Broken badge reader")

	_, err := f.tickets.Transition(ctx, userA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusClosed})
	require.True(t, apperrors.IsForbidden(err), "creators cannot change status: %v", err)

	_, err = f.tickets.Transition(ctx, userA2, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusClosed})
	require.True(t, apperrors.IsNotFound(err), "invisible tickets stay hidden: %v", err)

	_, err = f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusResolved})
	require.True(t, apperrors.IsValidation(err), "open cannot jump to resolved")

	_, err = f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusOpen})
	require.True(t, apperrors.IsValidation(err), "same-state moves are rejected")

	_, err = f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: "archived"})
	require.True(t, apperrors.IsValidation(err))
	require.Equal(t, "status", apperrors.FieldOf(err))

	require.Len(t, f.ledger(t, ticket.ID), 1, "rejected transitions write nothing")

	moved, err := f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusInProgress, Note: "on it"})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusInProgress, moved.Status)

	entries := f.ledger(t, ticket.ID)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActionStatusChanged, entries[1].Action)
	require.Equal(t, "open", entries[1].Metadata["from"])
	require.Equal(t, "in_progress", entries[1].Metadata["to"])

	comments, err := f.tickets.ListComments(ctx, userA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.True(t, comments[0].IsSystemMessage)
	require.Contains(t, comments[0].Content, "on it")

	closed, err := f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusClosed})
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)

	_, err = f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusOpen})
	require.True(t, apperrors.IsValidation(err), "closed is left only through reopen")
}

func TestResolutionStampsAcrossReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Projector flicker")

	transition := func(status domain.TicketStatus) *domain.Ticket {
		t.Helper()
		f.clock.Advance(time.Hour)
		out, err := f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: status})
		require.NoError(t, err)
		return out
	}

	transition(domain.TicketStatusInProgress)
	transition(domain.TicketStatusPending)
	resolved := transition(domain.TicketStatusResolved)
	firstResolution := *resolved.ResolvedAt
	require.Equal(t, fixtureStart.Add(3*time.Hour), firstResolution)
	require.Equal(t, supervisorA.ID, *resolved.ResolvedBy)

	closed := transition(domain.TicketStatusClosed)
	require.Equal(t, fixtureStart.Add(4*time.Hour), *closed.ClosedAt)
	require.Equal(t, firstResolution, *closed.ResolvedAt, "closing keeps the resolution stamp")

	_, err := f.tickets.Reopen(ctx, userA, ReopenCommand{TicketID: ticket.ID})
	require.True(t, apperrors.IsForbidden(err), "users cannot reopen")

	f.clock.Advance(time.Hour)
	reopened, err := f.tickets.Reopen(ctx, supervisorA, ReopenCommand{TicketID: ticket.ID, Reason: "came back"})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, reopened.Status)
	require.Equal(t, fixtureStart.Add(5*time.Hour), *reopened.ReopenedAt)

	_, err = f.tickets.Reopen(ctx, supervisorA, ReopenCommand{TicketID: ticket.ID})
	require.True(t, apperrors.IsValidation(err), "open tickets cannot be reopened")

	transition(domain.TicketStatusInProgress)
	transition(domain.TicketStatusPending)
	again := transition(domain.TicketStatusResolved)
	require.Equal(t, fixtureStart.Add(8*time.Hour), *again.ResolvedAt, "a fresh resolution after reopen is stamped")

	entries := f.ledger(t, ticket.ID)
	last := entries[len(entries)-1]
	require.Equal(t, string(again.Status), last.Metadata["to"], "ledger agrees with the ticket")

	var reopenEntry *domain.Activity
	for i := range entries {
		if entries[i].Metadata["reopened"] == true {
			reopenEntry = &entries[i]
		}
	}
	require.NotNil(t, reopenEntry)
	require.Equal(t, "closed", reopenEntry.Metadata["from"])
}

func TestResolvedToOpenTransitionCountsAsReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Heating")

	for _, status := range []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusPending, domain.TicketStatusResolved} {
		_, err := f.tickets.Transition(ctx, adminA, TransitionCommand{TicketID: ticket.ID, Status: status})
		require.NoError(t, err)
	}
	f.clock.Advance(time.Minute)
	reopened, err := f.tickets.Transition(ctx, adminA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusOpen})
	require.NoError(t, err)
	require.NotNil(t, reopened.ReopenedAt)
	require.Equal(t, fixtureStart.Add(time.Minute), *reopened.ReopenedAt)
}
