package repository

import (
	"context"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

// WatcherRepository stores ticket watcher set membership.
type WatcherRepository interface {
	// Add is idempotent.
	Add(ctx context.Context, watcher *domain.Watcher) error
	Remove(ctx context.Context, ticketID, userID string) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Watcher, error)
}

type watcherRepository struct {
	db DBTX
}

// NewWatcherRepository builds repository.
func NewWatcherRepository(db DBTX) WatcherRepository {
	return &watcherRepository{db: db}
}

func (r *watcherRepository) Add(ctx context.Context, watcher *domain.Watcher) error {
	const query = `
        INSERT INTO ticket_watchers (ticket_id, user_id, created_at)
        VALUES ($1,$2,$3)
        ON CONFLICT (ticket_id, user_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, watcher.TicketID, watcher.UserID, watcher.CreatedAt)
	return translate(err)
}

func (r *watcherRepository) Remove(ctx context.Context, ticketID, userID string) error {
	const query = `DELETE FROM ticket_watchers WHERE ticket_id=$1 AND user_id=$2`
	_, err := r.db.Exec(ctx, query, ticketID, userID)
	return translate(err)
}

func (r *watcherRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Watcher, error) {
	const query = `
        SELECT ticket_id, user_id, created_at
        FROM ticket_watchers WHERE ticket_id=$1 ORDER BY created_at ASC, user_id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Watcher
	for rows.Next() {
		var watcher domain.Watcher
		if err := rows.Scan(&watcher.TicketID, &watcher.UserID, &watcher.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, watcher)
	}
	return result, rows.Err()
}
