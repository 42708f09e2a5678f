package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/events"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

func TestUserCannotPostInternalComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Leaking roof")

	_, err := f.tickets.AddComment(ctx, userA, AddCommentCommand{TicketID: ticket.ID, Content: "psst", IsInternal: true})
	require.True(t, apperrors.IsForbidden(err))

	comments, err := f.tickets.ListComments(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	require.Empty(t, comments)

	current, err := f.tickets.Get(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, ticket.Version, current.Version)
	require.Len(t, f.ledger(t, ticket.ID), 1)
}

func TestInternalNotesAreHiddenFromUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Invoice mismatch")

	_, err := f.tickets.AddComment(ctx, userA, AddCommentCommand{TicketID: ticket.ID, Content: "Any update?"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	note, err := f.tickets.AddComment(ctx, supervisorA, AddCommentCommand{TicketID: ticket.ID, Content: "Escalate to finance", IsInternal: true})
	require.NoError(t, err)
	require.True(t, note.IsInternal)

	userView, err := f.tickets.ListComments(ctx, userA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, userView, 1)
	require.Equal(t, "Any update?", userView[0].Content)

	staffView, err := f.tickets.ListComments(ctx, supervisorA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, staffView, 2)

	userLedger, err := f.activities.ListForTicket(ctx, userA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, userLedger, 2)
	staffLedger, err := f.activities.ListForTicket(ctx, supervisorA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, staffLedger, 3)
	require.Equal(t, domain.ActionCommented, staffLedger[2].Action)
	require.Equal(t, true, staffLedger[2].Metadata["internal"])
}

func TestCommentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Noise")

	_, err := f.tickets.AddComment(ctx, userA, AddCommentCommand{TicketID: ticket.ID, Content: "   "})
	require.True(t, apperrors.IsValidation(err))
	require.Equal(t, "content", apperrors.FieldOf(err))

	_, err = f.tickets.AddComment(ctx, userA, AddCommentCommand{TicketID: ticket.ID, Content: "<script>alert(1)</script>"})
	require.True(t, apperrors.IsValidation(err), "content that sanitizes to nothing is empty")

	_, err = f.tickets.AddComment(ctx, adminB, AddCommentCommand{TicketID: ticket.ID, Content: "hello"})
	require.True(t, apperrors.IsNotFound(err))
}

func TestActivityLedgerIsOrderedAndConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "VPN drops")

	steps := []func() error{
		func() error {
			_, err := f.tickets.AddComment(ctx, userA, AddCommentCommand{TicketID: ticket.ID, Content: "Still dropping"})
			return err
		},
		func() error {
			_, err := f.assignments.Assign(ctx, supervisorA, AssignCommand{TicketID: ticket.ID, AssigneeID: strPtr(supervisorA.ID)})
			return err
		},
		func() error {
			_, err := f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusInProgress})
			return err
		},
		func() error {
			_, err := f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusPending})
			return err
		},
	}
	for _, step := range steps {
		f.clock.Advance(time.Minute)
		require.NoError(t, step())
	}

	entries, err := f.activities.ListForTicket(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i := 1; i < len(entries); i++ {
		require.Greater(t, entries[i].ID, entries[i-1].ID)
		require.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}
	require.Equal(t, domain.ActionCreated, entries[0].Action)

	current, err := f.tickets.Get(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	var lastStatus string
	for _, entry := range entries {
		if entry.Action == domain.ActionStatusChanged {
			lastStatus, _ = entry.Metadata["to"].(string)
		}
	}
	require.Equal(t, string(current.Status), lastStatus)
	require.Equal(t, int64(len(entries)), current.Version, "one ledger row per version")

	// Reading again yields the same ledger.
	again, err := f.activities.ListForTicket(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, entries, again)

	_, err = f.activities.ListForTicket(ctx, userA2, ticket.ID)
	require.True(t, apperrors.IsNotFound(err))

	require.Equal(t, []events.EventType{
		events.EventTicketCreated,
		events.EventTicketCommented,
		events.EventTicketAssigned,
		events.EventTicketStatusChanged,
		events.EventTicketStatusChanged,
	}, f.recorder.types())
}
