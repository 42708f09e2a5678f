package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/events"
	"github.com/spec-kit/complaint-desk/internal/repository/memory"
	"github.com/spec-kit/complaint-desk/internal/service"
)

const testStream = "notifications"

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
	// failTo limits err to one address when set.
	failTo string
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil && (m.failTo == "" || m.failTo == msg.To) {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) heal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.To)
	}
	sort.Strings(out)
	return out
}

func newWorkerFixture(t *testing.T, mailer Mailer) (*NotificationWorker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.NewStore()
	users := []domain.User{
		{ID: "creator", Email: "creator@example.com", Role: domain.RoleUser, Status: domain.UserStatusActive},
		{ID: "agent", Email: "agent@example.com", Role: domain.RoleSupervisor, Status: domain.UserStatusActive},
		{ID: "boss", Email: "boss@example.com", Role: domain.RoleAdmin, Status: domain.UserStatusActive},
		{ID: "gone", Email: "gone@example.com", Role: domain.RoleUser, Status: domain.UserStatusSuspended},
		{ID: "silent", Role: domain.RoleSupervisor, Status: domain.UserStatusActive},
	}
	for _, u := range users {
		u.OrganizationID = "org-1"
		store.PutUser(u)
		require.NoError(t, store.Repositories().Watchers.Add(context.Background(), &domain.Watcher{TicketID: "t-1", UserID: u.ID}))
	}

	w := NewNotificationWorker(client, store, mailer, Options{Stream: testStream, From: "desk@example.com", Block: -1}, nil)
	require.NoError(t, w.Init(context.Background()))
	require.NoError(t, w.Init(context.Background()), "existing group is tolerated")
	return w, client
}

func enqueue(t *testing.T, client *redis.Client, job service.NotificationJob) {
	t.Helper()
	require.NoError(t, service.NewRedisStreamNotifier(client, testStream).Notify(context.Background(), job))
}

func job(eventType events.EventType, actorID string, internal bool) service.NotificationJob {
	return service.NotificationJob{
		EventID:        "evt",
		Type:           eventType,
		OrganizationID: "org-1",
		TicketID:       "t-1",
		TicketNumber:   "TCK-000001",
		ActorID:        actorID,
		Description:    "something happened",
		Internal:       internal,
		OccurredAt:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestWorkerMailsWatchersExceptActor(t *testing.T) {
	mailer := &recordingMailer{}
	w, client := newWorkerFixture(t, mailer)
	ctx := context.Background()

	enqueue(t, client, job(events.EventTicketCreated, "creator", false))

	acked, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, acked)
	require.Equal(t, []string{"agent@example.com", "boss@example.com"}, mailer.recipients())
	require.Equal(t, "[TCK-000001] New ticket", mailer.sent[0].Subject)
	require.Equal(t, "desk@example.com", mailer.sent[0].From)

	acked, err = w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Zero(t, acked, "nothing left to read")
}

func TestWorkerKeepsInternalEventsAmongStaff(t *testing.T) {
	mailer := &recordingMailer{}
	w, client := newWorkerFixture(t, mailer)

	enqueue(t, client, job(events.EventTicketCommented, "agent", true))

	_, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"boss@example.com"}, mailer.recipients())
	require.Equal(t, "[TCK-000001] New comment", mailer.sent[0].Subject)
}

func TestWorkerDropsMalformedJobs(t *testing.T) {
	mailer := &recordingMailer{}
	w, client := newWorkerFixture(t, mailer)
	ctx := context.Background()

	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{Stream: testStream, Values: map[string]any{"junk": "1"}}).Err())

	acked, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, acked)
	require.Empty(t, mailer.sent)

	pending, err := client.XPending(ctx, testStream, defaultGroup).Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)
}

func TestWorkerLeavesFailedDeliveriesPending(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	w, client := newWorkerFixture(t, mailer)
	ctx := context.Background()

	enqueue(t, client, job(events.EventTicketStatusChanged, "agent", false))

	acked, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Zero(t, acked)

	pending, err := client.XPending(ctx, testStream, defaultGroup).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), pending.Count)
}

func TestWorkerRetriesPendingJobsWithoutDuplicates(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("mailbox full"), failTo: "boss@example.com"}
	w, client := newWorkerFixture(t, mailer)
	w.opts.RetryEvery = -1
	ctx := context.Background()

	enqueue(t, client, job(events.EventTicketCreated, "creator", false))

	acked, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Zero(t, acked)
	require.NotContains(t, mailer.recipients(), "boss@example.com")

	mailer.heal()
	acked, err = w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, acked, "the pending job is picked up again")
	require.Equal(t, []string{"agent@example.com", "boss@example.com"}, mailer.recipients(), "each watcher is mailed once")

	pending, err := client.XPending(ctx, testStream, defaultGroup).Result()
	require.NoError(t, err)
	require.Zero(t, pending.Count)

	keys, err := client.Keys(ctx, testStream+":delivered:*").Result()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestWorkerWaitsBeforeRetrying(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	w, client := newWorkerFixture(t, mailer)
	ctx := context.Background()

	enqueue(t, client, job(events.EventTicketCreated, "creator", false))
	_, err := w.ProcessBatch(ctx)
	require.NoError(t, err)

	mailer.heal()
	acked, err := w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Zero(t, acked, "retry interval has not elapsed")

	w.nextRetry = time.Time{}
	acked, err = w.ProcessBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, acked)
}

func TestSubjectFor(t *testing.T) {
	require.Equal(t, "[TCK-000002] Status changed", subjectFor(service.NotificationJob{Type: events.EventTicketStatusChanged, TicketNumber: "TCK-000002"}))
	require.Equal(t, "[TCK-000002] Ticket updated", subjectFor(service.NotificationJob{Type: events.EventTicketAssigned, TicketNumber: "TCK-000002"}))
}
