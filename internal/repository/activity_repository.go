package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/policy"
)

// ActivityRepository is the append-only audit ledger. It has no update or
// delete operation.
type ActivityRepository interface {
	// Append stores entry and assigns its monotonically increasing ID.
	Append(ctx context.Context, entry *domain.Activity) error
	// ListByTicket returns entries oldest first, ties broken by ID.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Activity, error)
	// ListForScope returns entries at or after since on tickets inside scope.
	ListForScope(ctx context.Context, scope policy.TicketScope, since time.Time) ([]domain.Activity, error)
}

type activityRepository struct {
	db DBTX
}

// NewActivityRepository builds repository.
func NewActivityRepository(db DBTX) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Append(ctx context.Context, entry *domain.Activity) error {
	const query = `
        INSERT INTO ticket_activities (ticket_id, user_id, action, description, metadata, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return translate(r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.UserID,
		entry.Action,
		entry.Description,
		metadata,
		entry.CreatedAt,
	).Scan(&entry.ID))
}

func (r *activityRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Activity, error) {
	const query = `
        SELECT a.id, a.ticket_id, a.user_id, a.action, a.description, a.metadata, a.created_at
        FROM ticket_activities a WHERE a.ticket_id=$1 ORDER BY a.created_at ASC, a.id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

func (r *activityRepository) ListForScope(ctx context.Context, scope policy.TicketScope, since time.Time) ([]domain.Activity, error) {
	args := []any{}
	clauses := scopeClauses(scope, "t", &args)
	args = append(args, since)
	clauses = append(clauses, fmt.Sprintf("a.created_at >= $%d", len(args)))

	query := fmt.Sprintf(`
        SELECT a.id, a.ticket_id, a.user_id, a.action, a.description, a.metadata, a.created_at
        FROM ticket_activities a JOIN tickets t ON t.id = a.ticket_id
        WHERE %s ORDER BY a.created_at ASC, a.id ASC`, strings.Join(clauses, " AND "))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

func scanActivities(rows pgx.Rows) ([]domain.Activity, error) {
	var result []domain.Activity
	for rows.Next() {
		var entry domain.Activity
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.UserID,
			&entry.Action,
			&entry.Description,
			&entry.Metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
