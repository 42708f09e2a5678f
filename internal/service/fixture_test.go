package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-desk/internal/config"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/events"
	"github.com/spec-kit/complaint-desk/internal/repository/memory"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store       *memory.Store
	clock       *testClock
	recorder    *eventRecorder
	dispatcher  events.Dispatcher
	tickets     *TicketService
	assignments *AssignmentService
	activities  *ActivityService
}

var fixtureStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

const (
	orgA  = "org-a"
	orgB  = "org-b"
	deptA = "dept-a"
	deptB = "dept-b"
)

var (
	adminA      = actor("admin-a", orgA, nil, domain.RoleAdmin)
	supervisorA = actor("sup-a", orgA, strPtr(deptA), domain.RoleSupervisor)
	supervisorB = actor("sup-b", orgA, strPtr(deptB), domain.RoleSupervisor)
	userA       = actor("user-a", orgA, strPtr(deptA), domain.RoleUser)
	userA2      = actor("user-a2", orgA, strPtr(deptA), domain.RoleUser)
	adminB      = actor("admin-b", orgB, nil, domain.RoleAdmin)
)

func actor(id, org string, dept *string, role domain.Role) domain.Actor {
	return domain.Actor{ID: id, OrganizationID: org, DepartmentID: dept, Role: role, Status: domain.UserStatusActive}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	for _, dept := range []domain.Department{
		{ID: deptA, OrganizationID: orgA, Name: "Billing", IsActive: true, CreatedAt: fixtureStart},
		{ID: deptB, OrganizationID: orgA, Name: "Network", IsActive: true, CreatedAt: fixtureStart},
		{ID: "dept-closed", OrganizationID: orgA, Name: "Archive", IsActive: false, CreatedAt: fixtureStart},
	} {
		store.PutDepartment(dept)
	}
	for _, a := range []domain.Actor{adminA, supervisorA, supervisorB, userA, userA2, adminB} {
		store.PutUser(domain.User{
			ID:             a.ID,
			OrganizationID: a.OrganizationID,
			DepartmentID:   a.DepartmentID,
			Name:           a.ID,
			Email:          a.ID + "@example.com",
			Role:           a.Role,
			Status:         a.Status,
			CreatedAt:      fixtureStart.AddDate(0, -1, 0),
		})
	}
	store.PutUser(domain.User{ID: "suspended-a", OrganizationID: orgA, Role: domain.RoleUser, Status: domain.UserStatusSuspended})

	clock := &testClock{now: fixtureStart}
	recorder := &eventRecorder{}
	dispatcher := events.NewInMemoryDispatcher(nil)
	for _, et := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketCommented,
		events.EventTicketAssigned,
		events.EventTicketStatusChanged,
	} {
		dispatcher.Subscribe(et, recorder.handle)
	}

	deps := TicketDependencies{Store: store, Dispatcher: dispatcher, Clock: clock.Now}
	return &fixture{
		store:      store,
		clock:      clock,
		recorder:   recorder,
		dispatcher: dispatcher,
		tickets: NewTicketService(deps, config.TicketsConfig{
			NumberPrefix:       "TCK",
			MaxAttachmentBytes: 1024,
			CommentRetries:     3,
		}),
		assignments: NewAssignmentService(deps),
		activities:  NewActivityService(store),
	}
}

func (f *fixture) createTicket(t *testing.T, by domain.Actor, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), by, CreateTicketCommand{
		Title:       title,
		Description: "Details for " + title,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) ledger(t *testing.T, ticketID string) []domain.Activity {
	t.Helper()
	entries, err := f.store.Repositories().Activities.ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return entries
}

func versionPtr(v int64) *int64 { return &v }

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }
