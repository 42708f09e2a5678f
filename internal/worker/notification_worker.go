package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/repository"
	"github.com/spec-kit/complaint-desk/internal/service"
)

const (
	defaultGroup    = "notification-workers"
	defaultConsumer = "worker-1"
	defaultBatch    = 50
	defaultBlock    = 5 * time.Second
	defaultRetry    = 30 * time.Second
	deliveredTTL    = 24 * time.Hour
)

// Message is one outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs the mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Options tunes the stream consumer.
type Options struct {
	Stream   string
	Group    string
	Consumer string
	From     string
	Batch    int64
	// Block is how long a read waits for new jobs; negative returns at once.
	Block time.Duration
	// RetryEvery spaces out re-reads of this consumer's pending jobs;
	// negative retries on every batch.
	RetryEvery time.Duration
}

// NotificationWorker consumes notification jobs from a Redis stream and
// mails every watcher except the actor. Internal events only reach staff.
type NotificationWorker struct {
	client *redis.Client
	store  repository.Store
	mailer Mailer
	opts   Options
	logger *zap.Logger

	nextRetry time.Time
}

// NewNotificationWorker constructs the worker.
func NewNotificationWorker(client *redis.Client, store repository.Store, mailer Mailer, opts Options, logger *zap.Logger) *NotificationWorker {
	if opts.Group == "" {
		opts.Group = defaultGroup
	}
	if opts.Consumer == "" {
		opts.Consumer = defaultConsumer
	}
	if opts.Batch <= 0 {
		opts.Batch = defaultBatch
	}
	if opts.Block == 0 {
		opts.Block = defaultBlock
	}
	if opts.RetryEvery == 0 {
		opts.RetryEvery = defaultRetry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		client: client,
		store:  store,
		mailer: mailer,
		opts:   opts,
		logger: logger.With(zap.String("component", "notification_worker")),
	}
}

// Init creates the consumer group if it does not exist.
func (w *NotificationWorker) Init(ctx context.Context) error {
	err := w.client.XGroupCreateMkStream(ctx, w.opts.Stream, w.opts.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Run processes batches until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) error {
	if err := w.Init(ctx); err != nil {
		return err
	}
	w.logger.Info("notification worker started", zap.String("stream", w.opts.Stream))
	for {
		if _, err := w.ProcessBatch(ctx); err != nil {
			if ctx.Err() != nil {
				w.logger.Info("notification worker stopped")
				return nil
			}
			w.logger.Warn("notification batch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessBatch retries this consumer's pending jobs when a retry is due, then
// reads one batch of new jobs. It returns how many jobs were acknowledged.
// Jobs that cannot be parsed are acknowledged and dropped.
func (w *NotificationWorker) ProcessBatch(ctx context.Context) (int, error) {
	acked := 0
	if now := time.Now(); !now.Before(w.nextRetry) {
		w.nextRetry = now.Add(w.opts.RetryEvery)
		n, err := w.consume(ctx, "0", -1)
		acked += n
		if err != nil {
			return acked, err
		}
	}
	n, err := w.consume(ctx, ">", w.opts.Block)
	return acked + n, err
}

// consume reads from the group starting at id: ">" for new jobs, "0" for the
// jobs already delivered to this consumer but never acknowledged.
func (w *NotificationWorker) consume(ctx context.Context, id string, block time.Duration) (int, error) {
	streams, err := w.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    w.opts.Group,
		Consumer: w.opts.Consumer,
		Streams:  []string{w.opts.Stream, id},
		Count:    w.opts.Batch,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}

	acked := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			job, err := service.ParseNotificationJob(msg.Values)
			if err != nil {
				w.logger.Warn("dropping malformed notification job", zap.String("message_id", msg.ID), zap.Error(err))
			} else if err := w.deliver(ctx, msg.ID, job); err != nil {
				// left pending; retried on a later batch
				w.logger.Warn("notification delivery failed", zap.String("message_id", msg.ID), zap.Error(err))
				continue
			}
			if err := w.client.XAck(ctx, w.opts.Stream, w.opts.Group, msg.ID).Err(); err != nil {
				return acked, err
			}
			w.client.Del(ctx, w.deliveredKey(msg.ID))
			acked++
		}
	}
	return acked, nil
}

// deliveredKey names the set of recipients already mailed for one job, so a
// retried job only reaches the watchers the failed attempt missed.
func (w *NotificationWorker) deliveredKey(messageID string) string {
	return w.opts.Stream + ":delivered:" + messageID
}

func (w *NotificationWorker) deliver(ctx context.Context, messageID string, job service.NotificationJob) error {
	repos := w.store.Repositories()
	watchers, err := repos.Watchers.ListByTicket(ctx, job.TicketID)
	if err != nil {
		return err
	}
	key := w.deliveredKey(messageID)
	for _, watcher := range watchers {
		if watcher.UserID == job.ActorID {
			continue
		}
		user, err := repos.Users.GetByID(ctx, watcher.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return err
		}
		if user.Status != domain.UserStatusActive || user.Email == "" {
			continue
		}
		if job.Internal && !user.Role.IsStaff() {
			continue
		}
		done, err := w.client.SIsMember(ctx, key, user.ID).Result()
		if err != nil {
			return err
		}
		if done {
			continue
		}
		msg := Message{
			From:    w.opts.From,
			To:      user.Email,
			Subject: subjectFor(job),
			Body:    job.Description,
		}
		if err := w.mailer.Send(ctx, msg); err != nil {
			return err
		}
		pipe := w.client.TxPipeline()
		pipe.SAdd(ctx, key, user.ID)
		pipe.Expire(ctx, key, deliveredTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func subjectFor(job service.NotificationJob) string {
	switch job.Type {
	case domain.ActionCreated:
		return fmt.Sprintf("[%s] New ticket", job.TicketNumber)
	case domain.ActionStatusChanged:
		return fmt.Sprintf("[%s] Status changed", job.TicketNumber)
	case domain.ActionCommented:
		return fmt.Sprintf("[%s] New comment", job.TicketNumber)
	}
	return fmt.Sprintf("[%s] Ticket updated", job.TicketNumber)
}
