package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/events"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ticket, err := f.tickets.Create(ctx, userA, CreateTicketCommand{
		Title:       "  Printer's jammed  ",
		Description: "Paper stuck in tray 2 <script>alert(1)</script>",
	})
	require.NoError(t, err)
	require.Equal(t, "TCK-000001", ticket.TicketNumber)
	require.Equal(t, "Printer's jammed", ticket.Title)
	require.NotContains(t, ticket.Description, "<script>")
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	require.Equal(t, deptA, *ticket.DepartmentID, "department defaults to the creator's")
	require.Equal(t, int64(1), ticket.Version)
	require.Equal(t, fixtureStart, ticket.CreatedAt)

	entries := f.ledger(t, ticket.ID)
	require.Len(t, entries, 1)
	require.Equal(t, domain.ActionCreated, entries[0].Action)
	require.Equal(t, userA.ID, entries[0].UserID)

	watchers, err := f.tickets.ListWatchers(ctx, userA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, watchers, 1)
	require.Equal(t, userA.ID, watchers[0].UserID)

	second := f.createTicket(t, supervisorA, "VPN drops")
	require.Equal(t, "TCK-000002", second.TicketNumber)

	other := f.createTicket(t, adminB, "Other tenant")
	require.Equal(t, "TCK-000001", other.TicketNumber, "numbers are allocated per organization")

	require.Equal(t, []events.EventType{events.EventTicketCreated, events.EventTicketCreated, events.EventTicketCreated}, f.recorder.types())
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := fixtureStart.Add(-time.Hour)

	cases := []struct {
		name  string
		cmd   CreateTicketCommand
		field string
	}{
		{name: "empty title", cmd: CreateTicketCommand{Title: "  ", Description: "x"}, field: "title"},
		{name: "markup only title", cmd: CreateTicketCommand{Title: "<b></b>", Description: "x"}, field: "title"},
		{name: "empty description", cmd: CreateTicketCommand{Title: "t"}, field: "description"},
		{name: "unknown priority", cmd: CreateTicketCommand{Title: "t", Description: "d", Priority: "critical"}, field: "priority"},
		{name: "past due date", cmd: CreateTicketCommand{Title: "t", Description: "d", DueDate: &past}, field: "due_date"},
		{name: "unknown department", cmd: CreateTicketCommand{Title: "t", Description: "d", DepartmentID: strPtr("nope")}, field: "department_id"},
		{name: "inactive department", cmd: CreateTicketCommand{Title: "t", Description: "d", DepartmentID: strPtr("dept-closed")}, field: "department_id"},
		{name: "unknown category", cmd: CreateTicketCommand{Title: "t", Description: "d", CategoryID: strPtr("nope")}, field: "category_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.tickets.Create(ctx, userA, tc.cmd)
			require.True(t, apperrors.IsValidation(err), "got %v", err)
			require.Equal(t, tc.field, apperrors.FieldOf(err))
		})
	}

	inactive := userA
	inactive.Status = domain.UserStatusSuspended
	_, err := f.tickets.Create(ctx, inactive, CreateTicketCommand{Title: "t", Description: "d"})
	require.True(t, apperrors.IsForbidden(err))

	tickets, err := f.tickets.List(ctx, adminA, ListTicketsQuery{})
	require.NoError(t, err)
	require.Empty(t, tickets, "failed creates leave nothing behind")
}

func TestOutOfScopeTicketsAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Broken chair")

	for name, outsider := range map[string]domain.Actor{
		"other organization":  adminB,
		"other department":    supervisorB,
		"unrelated same-dept": userA2,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.tickets.Get(ctx, outsider, ticket.ID)
			require.True(t, apperrors.IsNotFound(err), "get: %v", err)

			_, err = f.tickets.GetByNumber(ctx, outsider, ticket.TicketNumber)
			require.True(t, apperrors.IsNotFound(err), "get by number: %v", err)

			_, err = f.tickets.Update(ctx, outsider, UpdateTicketCommand{TicketID: ticket.ID, Patch: TicketPatch{Title: strPtr("hijack")}})
			require.True(t, apperrors.IsNotFound(err), "update: %v", err)

			_, err = f.tickets.AddComment(ctx, outsider, AddCommentCommand{TicketID: ticket.ID, Content: "hello"})
			require.True(t, apperrors.IsNotFound(err), "comment: %v", err)

			_, err = f.activities.ListForTicket(ctx, outsider, ticket.ID)
			require.True(t, apperrors.IsNotFound(err), "activities: %v", err)
		})
	}

	_, err := f.tickets.Get(ctx, adminA, "missing")
	require.True(t, apperrors.IsNotFound(err))
	require.Len(t, f.ledger(t, ticket.ID), 1)
}

func TestListTicketsAppliesScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.createTicket(t, userA, "Mine")
	f.clock.Advance(time.Minute)
	f.createTicket(t, userA2, "Theirs")
	f.clock.Advance(time.Minute)
	f.createTicket(t, adminA, "Unrouted")

	list := func(a domain.Actor, q ListTicketsQuery) []domain.Ticket {
		t.Helper()
		tickets, err := f.tickets.List(ctx, a, q)
		require.NoError(t, err)
		return tickets
	}

	own := list(userA, ListTicketsQuery{})
	require.Len(t, own, 1)
	require.Equal(t, mine.ID, own[0].ID)

	require.Len(t, list(supervisorA, ListTicketsQuery{}), 2)
	require.Empty(t, list(supervisorB, ListTicketsQuery{}))
	require.Len(t, list(adminA, ListTicketsQuery{}), 3)
	require.Empty(t, list(adminB, ListTicketsQuery{}))

	all := list(adminA, ListTicketsQuery{})
	require.Equal(t, "Unrouted", all[0].Title, "most recently updated first")

	require.Len(t, list(adminA, ListTicketsQuery{Limit: 2}), 2)
	require.Len(t, list(adminA, ListTicketsQuery{Limit: 2, Offset: 2}), 1)

	_, err := f.tickets.List(ctx, adminA, ListTicketsQuery{Statuses: []domain.TicketStatus{"bogus"}})
	require.True(t, apperrors.IsValidation(err))
	require.Equal(t, "status", apperrors.FieldOf(err))
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Leaky tap")

	updated, err := f.tickets.Update(ctx, userA, UpdateTicketCommand{
		TicketID: ticket.ID,
		Patch:    TicketPatch{Title: strPtr("Leaky tap in kitchen"), Priority: priorityPtr(domain.TicketPriorityHigh)},
	})
	require.NoError(t, err)
	require.Equal(t, "Leaky tap in kitchen", updated.Title)
	require.Equal(t, domain.TicketPriorityHigh, updated.Priority)
	require.Equal(t, int64(2), updated.Version)

	entries := f.ledger(t, ticket.ID)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActionUpdated, entries[1].Action)
	require.Equal(t, []string{"title", "priority"}, entries[1].Metadata["fields"])

	_, err = f.tickets.Update(ctx, userA, UpdateTicketCommand{TicketID: ticket.ID, Patch: TicketPatch{AssignedTo: strPtr(userA2.ID)}})
	require.True(t, apperrors.IsForbidden(err), "users cannot assign")

	_, err = f.tickets.Update(ctx, userA, UpdateTicketCommand{TicketID: ticket.ID, Patch: TicketPatch{Title: strPtr("Leaky tap in kitchen")}})
	require.True(t, apperrors.IsValidation(err))
	require.Equal(t, "fields", apperrors.FieldOf(err))

	_, err = f.tickets.Update(ctx, userA, UpdateTicketCommand{TicketID: ticket.ID})
	require.True(t, apperrors.IsValidation(err))

	assigned, err := f.tickets.Update(ctx, supervisorA, UpdateTicketCommand{TicketID: ticket.ID, Patch: TicketPatch{AssignedTo: strPtr(userA2.ID)}})
	require.NoError(t, err)
	require.Equal(t, userA2.ID, *assigned.AssignedTo)
	entries = f.ledger(t, ticket.ID)
	require.Equal(t, domain.ActionAssigned, entries[len(entries)-1].Action)

	_, err = f.tickets.Update(ctx, supervisorA, UpdateTicketCommand{
		TicketID:        ticket.ID,
		ExpectedVersion: versionPtr(1),
		Patch:           TicketPatch{Title: strPtr("stale")},
	})
	require.True(t, apperrors.IsConflict(err))
	require.Len(t, f.ledger(t, ticket.ID), 3)
}

func TestRateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Slow laptop")

	_, err := f.tickets.Rate(ctx, userA, RateTicketCommand{TicketID: ticket.ID, Rating: 4})
	require.True(t, apperrors.IsValidation(err), "open tickets cannot be rated")

	for _, status := range []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusPending, domain.TicketStatusResolved} {
		_, err = f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: status})
		require.NoError(t, err)
	}

	_, err = f.tickets.Rate(ctx, userA, RateTicketCommand{TicketID: ticket.ID, Rating: 6})
	require.True(t, apperrors.IsValidation(err))

	_, err = f.tickets.Rate(ctx, supervisorA, RateTicketCommand{TicketID: ticket.ID, Rating: 5})
	require.True(t, apperrors.IsForbidden(err), "only the creator rates")

	rated, err := f.tickets.Rate(ctx, userA, RateTicketCommand{TicketID: ticket.ID, Rating: 5})
	require.NoError(t, err)
	require.Equal(t, 5, *rated.SatisfactionRating)
}

func TestAttachmentsAndWatchers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Invoice mismatch")

	_, err := f.tickets.AddAttachment(ctx, userA, AddAttachmentCommand{TicketID: ticket.ID, Path: "b/1", FileName: "a.pdf", MimeType: "application/pdf", SizeBytes: 4096})
	require.True(t, apperrors.IsValidation(err))
	require.Equal(t, "size_bytes", apperrors.FieldOf(err))

	attachment, err := f.tickets.AddAttachment(ctx, userA, AddAttachmentCommand{TicketID: ticket.ID, Path: "b/1", FileName: "a.pdf", MimeType: "Application/PDF", SizeBytes: 512})
	require.NoError(t, err)
	require.Equal(t, "application/pdf", attachment.MimeType)

	attachments, err := f.tickets.ListAttachments(ctx, supervisorA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	require.Len(t, f.ledger(t, ticket.ID), 2)

	before, err := f.tickets.Get(ctx, adminA, ticket.ID)
	require.NoError(t, err)

	require.NoError(t, f.tickets.Watch(ctx, supervisorA, ticket.ID))
	require.NoError(t, f.tickets.Watch(ctx, supervisorA, ticket.ID))
	watchers, err := f.tickets.ListWatchers(ctx, supervisorA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, watchers, 2)

	require.NoError(t, f.tickets.Unwatch(ctx, supervisorA, ticket.ID))
	require.NoError(t, f.tickets.Unwatch(ctx, supervisorA, ticket.ID))
	watchers, err = f.tickets.ListWatchers(ctx, supervisorA, ticket.ID)
	require.NoError(t, err)
	require.Len(t, watchers, 1)

	require.True(t, apperrors.IsNotFound(f.tickets.Watch(ctx, supervisorB, ticket.ID)))

	after, err := f.tickets.Get(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, before.Version, after.Version, "watching is not a ticket mutation")
	require.Len(t, f.ledger(t, ticket.ID), 2)
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Desk move")

	_, err := f.tickets.Get(ctx, userA2, ticket.ID)
	require.True(t, apperrors.IsNotFound(err))

	_, err = f.assignments.Assign(ctx, userA, AssignCommand{TicketID: ticket.ID, AssigneeID: strPtr(userA2.ID)})
	require.True(t, apperrors.IsForbidden(err))

	for _, bad := range []string{adminB.ID, "suspended-a", "ghost"} {
		_, err = f.assignments.Assign(ctx, supervisorA, AssignCommand{TicketID: ticket.ID, AssigneeID: strPtr(bad)})
		require.True(t, apperrors.IsValidation(err), "assignee %s: %v", bad, err)
		require.Equal(t, "assigned_to", apperrors.FieldOf(err))
	}

	assigned, err := f.assignments.Assign(ctx, supervisorA, AssignCommand{TicketID: ticket.ID, AssigneeID: strPtr(userA2.ID)})
	require.NoError(t, err)
	require.Equal(t, userA2.ID, *assigned.AssignedTo)

	_, err = f.tickets.Get(ctx, userA2, ticket.ID)
	require.NoError(t, err, "assignees can see the ticket")

	entries := f.ledger(t, ticket.ID)
	last := entries[len(entries)-1]
	require.Equal(t, domain.ActionAssigned, last.Action)
	require.Equal(t, userA2.ID, last.Metadata["to"])

	cleared, err := f.assignments.Assign(ctx, supervisorA, AssignCommand{TicketID: ticket.ID})
	require.NoError(t, err)
	require.Nil(t, cleared.AssignedTo)
}

func TestConcurrentMutationsProduceOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Race")

	targets := []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusClosed}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, status := range targets {
		wg.Add(1)
		go func(i int, status domain.TicketStatus) {
			defer wg.Done()
			_, errs[i] = f.tickets.Transition(ctx, supervisorA, TransitionCommand{
				TicketID:        ticket.ID,
				Status:          status,
				ExpectedVersion: versionPtr(ticket.Version),
			})
		}(i, status)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperrors.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, conflicted)

	statusChanges := 0
	for _, entry := range f.ledger(t, ticket.ID) {
		if entry.Action == domain.ActionStatusChanged {
			statusChanges++
		}
	}
	require.Equal(t, 1, statusChanges)

	current, err := f.tickets.Get(ctx, adminA, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), current.Version)
}

func TestConcurrentTransitionsWithoutVersionProduceOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for run := 0; run < 20; run++ {
		ticket := f.createTicket(t, userA, "Race without version")
		targets := []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusClosed}
		errs := make([]error, len(targets))
		var wg sync.WaitGroup
		for i, status := range targets {
			wg.Add(1)
			go func(i int, status domain.TicketStatus) {
				defer wg.Done()
				_, errs[i] = f.tickets.Transition(ctx, supervisorA, TransitionCommand{
					TicketID: ticket.ID,
					From:     statusPtr(domain.TicketStatusOpen),
					Status:   status,
				})
			}(i, status)
		}
		wg.Wait()

		succeeded, conflicted := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case apperrors.IsConflict(err):
				conflicted++
			default:
				t.Fatalf("run %d: unexpected error: %v", run, err)
			}
		}
		require.Equal(t, 1, succeeded, "run %d", run)
		require.Equal(t, 1, conflicted, "run %d", run)

		statusChanges := 0
		for _, entry := range f.ledger(t, ticket.ID) {
			if entry.Action == domain.ActionStatusChanged {
				statusChanges++
			}
		}
		require.Equal(t, 1, statusChanges, "run %d", run)
	}
}

func TestStaleFromStatusIsAConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Stale view")

	_, err := f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusInProgress})
	require.NoError(t, err)

	_, err = f.tickets.Transition(ctx, supervisorA, TransitionCommand{
		TicketID: ticket.ID,
		From:     statusPtr(domain.TicketStatusOpen),
		Status:   domain.TicketStatusClosed,
	})
	require.True(t, apperrors.IsConflict(err), "got %v", err)
	require.Len(t, f.ledger(t, ticket.ID), 2)

	_, err = f.tickets.Transition(ctx, supervisorA, TransitionCommand{
		TicketID: ticket.ID,
		From:     statusPtr(domain.TicketStatus("archived")),
		Status:   domain.TicketStatusClosed,
	})
	require.Equal(t, "from", apperrors.FieldOf(err))
}

func TestUpdatedAtNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, userA, "Clock skew")

	f.clock.Set(fixtureStart.Add(-time.Hour))
	moved, err := f.tickets.Transition(ctx, supervisorA, TransitionCommand{TicketID: ticket.ID, Status: domain.TicketStatusInProgress})
	require.NoError(t, err)
	require.False(t, moved.UpdatedAt.Before(ticket.UpdatedAt))

	entries := f.ledger(t, ticket.ID)
	require.False(t, entries[1].CreatedAt.Before(entries[0].CreatedAt))
}

func priorityPtr(p domain.TicketPriority) *domain.TicketPriority { return &p }
