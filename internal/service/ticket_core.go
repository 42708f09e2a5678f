package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/events"
	"github.com/spec-kit/complaint-desk/internal/observability"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

const tracerName = "github.com/spec-kit/complaint-desk/internal/service"

// TicketDependencies bundles collaborators shared by the ticket services.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// ticketCore runs every ticket mutation: scoped load, policy check, version
// compare-and-set, and the activity append, all in one transaction.
type ticketCore struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	tracer     trace.Tracer
	plain      *bluemonday.Policy
	rich       *bluemonday.Policy
}

func newTicketCore(deps TicketDependencies, component string) *ticketCore {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ticketCore{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger.With(zap.String("component", component)),
		now:        func() time.Time { return clock().UTC() },
		tracer:     otel.Tracer(tracerName),
		plain:      bluemonday.StrictPolicy(),
		rich:       bluemonday.UGCPolicy(),
	}
}

// change describes the audit side of a mutation.
type change struct {
	action      domain.ActivityAction
	description string
	metadata    map[string]any
	// comment, when set, is written in the same transaction.
	comment  *domain.Comment
	internal bool
}

// applyFunc edits ticket in place. now is the mutation timestamp, never
// earlier than the ticket's current updated_at.
type applyFunc func(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, now time.Time) (*change, error)

// mutate loads ticketID under actor's visibility, lets apply edit it, and
// persists the result with exactly one activity row. expectedVersion, when
// set, must equal the stored version.
func (c *ticketCore) mutate(ctx context.Context, actor domain.Actor, ticketID string, expectedVersion *int64, apply applyFunc) (*domain.Ticket, error) {
	ctx, span := c.tracer.Start(ctx, "ticket.mutate")
	span.SetAttributes(attribute.String("ticket.id", ticketID), attribute.String("actor.role", string(actor.Role)))
	defer span.End()

	var (
		result *domain.Ticket
		entry  domain.Activity
		ch     *change
	)
	err := c.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := repos.Tickets.GetByID(ctx, policy.ComputeFilter(actor), ticketID)
		if err != nil {
			return storeError(err, "ticket")
		}
		if expectedVersion != nil && *expectedVersion != ticket.Version {
			return versionConflict(ticket.Version)
		}
		version := ticket.Version
		now := c.now()
		if now.Before(ticket.UpdatedAt) {
			now = ticket.UpdatedAt
		}

		ch, err = apply(ctx, repos, ticket, now)
		if err != nil {
			return err
		}

		ticket.UpdatedAt = now
		if err := repos.Tickets.Update(ctx, ticket, version); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return versionConflict(version)
			}
			return storeError(err, "ticket")
		}

		if ch.comment != nil {
			ch.comment.CreatedAt = now
			if err := repos.Comments.Create(ctx, ch.comment); err != nil {
				return storeError(err, "comment")
			}
		}

		entry = domain.Activity{
			TicketID:    ticket.ID,
			UserID:      actor.ID,
			Action:      ch.action,
			Description: ch.description,
			Metadata:    ch.metadata,
			CreatedAt:   now,
		}
		if err := repos.Activities.Append(ctx, &entry); err != nil {
			return storeError(err, "activity")
		}
		result = ticket
		return nil
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			observability.RecordConflict()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.KindOf(err))
		return nil, translateTxError(err)
	}

	observability.RecordMutation(string(entry.Action))
	c.publish(ctx, result, entry, ch.internal)
	return result, nil
}

func (c *ticketCore) publish(ctx context.Context, ticket *domain.Ticket, entry domain.Activity, internal bool) {
	if c.dispatcher == nil {
		return
	}
	c.dispatcher.Publish(ctx, events.FromActivity(uuid.NewString(), ticket, entry, internal))
}

// loadVisible fetches a ticket through the actor's scope.
func (c *ticketCore) loadVisible(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := c.store.Repositories().Tickets.GetByID(ctx, policy.ComputeFilter(actor), ticketID)
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	return ticket, nil
}

// sanitizeLine strips all markup from single-line plain text.
func (c *ticketCore) sanitizeLine(value string) string {
	return strings.TrimSpace(html.UnescapeString(c.plain.Sanitize(strings.TrimSpace(value))))
}

// sanitizeText keeps safe user-generated markup.
func (c *ticketCore) sanitizeText(value string) string {
	return strings.TrimSpace(c.rich.Sanitize(strings.TrimSpace(value)))
}

// storeError converts repository sentinels into domain errors.
func storeError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource)
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" already exists", nil)
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewUnavailable(err)
}

// translateTxError keeps domain errors from inside a transaction and treats
// anything else (commit failures, cancelled contexts) as unavailability.
func translateTxError(err error) error {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return apperrors.NewUnavailable(err)
}

func versionConflict(current int64) error {
	return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"current_version": current})
}

func strPtr(v string) *string { return &v }

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
