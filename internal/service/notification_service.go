package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/events"
	"github.com/spec-kit/complaint-desk/internal/observability"
)

// NotificationJob is one fire-and-forget notification request.
type NotificationJob struct {
	EventID        string
	Type           events.EventType
	OrganizationID string
	TicketID       string
	TicketNumber   string
	ActorID        string
	Description    string
	Internal       bool
	OccurredAt     time.Time
}

// Values flattens the job into stream fields.
func (j NotificationJob) Values() map[string]any {
	return map[string]any{
		"event_id":        j.EventID,
		"type":            string(j.Type),
		"organization_id": j.OrganizationID,
		"ticket_id":       j.TicketID,
		"ticket_number":   j.TicketNumber,
		"actor_id":        j.ActorID,
		"description":     j.Description,
		"internal":        strconv.FormatBool(j.Internal),
		"occurred_at":     j.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

// ParseNotificationJob rebuilds a job from stream fields.
func ParseNotificationJob(values map[string]any) (NotificationJob, error) {
	field := func(key string) string {
		v, _ := values[key].(string)
		return v
	}
	job := NotificationJob{
		EventID:        field("event_id"),
		Type:           events.EventType(field("type")),
		OrganizationID: field("organization_id"),
		TicketID:       field("ticket_id"),
		TicketNumber:   field("ticket_number"),
		ActorID:        field("actor_id"),
		Description:    field("description"),
	}
	if job.TicketID == "" || job.Type == "" {
		return NotificationJob{}, errors.New("notification job is missing ticket_id or type")
	}
	if raw := field("internal"); raw != "" {
		internal, err := strconv.ParseBool(raw)
		if err != nil {
			return NotificationJob{}, fmt.Errorf("parse internal flag: %w", err)
		}
		job.Internal = internal
	}
	if raw := field("occurred_at"); raw != "" {
		occurred, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return NotificationJob{}, fmt.Errorf("parse occurred_at: %w", err)
		}
		job.OccurredAt = occurred
	}
	return job, nil
}

// Notifier hands a job to the delivery channel.
type Notifier interface {
	Notify(ctx context.Context, job NotificationJob) error
}

// RedisStreamNotifier appends jobs to a Redis stream consumed by the worker.
type RedisStreamNotifier struct {
	client *redis.Client
	stream string
}

// NewRedisStreamNotifier constructs the notifier.
func NewRedisStreamNotifier(client *redis.Client, stream string) *RedisStreamNotifier {
	return &RedisStreamNotifier{client: client, stream: stream}
}

// Notify performs XADD.
func (n *RedisStreamNotifier) Notify(ctx context.Context, job NotificationJob) error {
	return n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: job.Values(),
	}).Err()
}

// LogNotifier records jobs in the log when no Redis is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs the notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, job NotificationJob) error {
	n.logger.Info("notification",
		zap.String("event_type", string(job.Type)),
		zap.String("ticket_number", job.TicketNumber),
		zap.String("description", job.Description),
	)
	return nil
}

// NotificationService forwards notification-worthy events to a Notifier.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger.With(zap.String("component", "notification_service")),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.enqueue)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.enqueue)
	n.dispatcher.Subscribe(events.EventTicketCommented, n.enqueue)
}

// enqueue never returns an error; delivery problems must not reach the
// mutation that produced the event.
func (n *NotificationService) enqueue(ctx context.Context, event events.Event) error {
	job := NotificationJob{
		EventID:        event.ID,
		Type:           event.Type,
		OrganizationID: event.OrganizationID,
		TicketID:       event.TicketID,
		TicketNumber:   event.TicketNumber,
		ActorID:        event.ActorID,
		Description:    event.Description,
		Internal:       event.Internal,
		OccurredAt:     event.Timestamp,
	}
	err := n.notifier.Notify(ctx, job)
	observability.RecordNotification(string(event.Type), err)
	if err != nil {
		n.logger.Warn("failed to enqueue notification",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
	return nil
}
