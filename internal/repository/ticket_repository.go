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

// TicketFilter captures list parameters. Scope is mandatory and always ANDed.
type TicketFilter struct {
	Scope        policy.TicketScope
	DepartmentID *string
	AssigneeID   *string
	CreatedBy    *string
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes ticket when the stored version equals expectedVersion and
	// advances ticket.Version on success. A stale version yields ErrConflict.
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error
	GetByID(ctx context.Context, scope policy.TicketScope, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, scope policy.TicketScope, number string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ListForAnalytics returns scoped tickets created at or after createdSince
	// or resolved at or after resolvedSince.
	ListForAnalytics(ctx context.Context, scope policy.TicketScope, createdSince, resolvedSince time.Time) ([]domain.Ticket, error)
}

const ticketColumns = `t.id, t.organization_id, t.ticket_number, t.title, t.description, t.category_id,
        t.department_id, t.priority, t.status, t.created_by, t.assigned_to, t.due_date, t.resolved_at,
        t.resolved_by, t.closed_at, t.reopened_at, t.satisfaction_rating, t.version, t.created_at, t.updated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, organization_id, ticket_number, title, description, category_id, department_id,
            priority, status, created_by, assigned_to, due_date, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.OrganizationID,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.DepartmentID,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.DueDate,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return translate(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category_id=$3, department_id=$4, priority=$5, status=$6,
            assigned_to=$7, due_date=$8, resolved_at=$9, resolved_by=$10, closed_at=$11, reopened_at=$12,
            satisfaction_rating=$13, updated_at=GREATEST(updated_at, $14), version=version+1
        WHERE id=$15 AND organization_id=$16 AND version=$17`
	cmd, err := r.db.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.CategoryID,
		ticket.DepartmentID,
		ticket.Priority,
		ticket.Status,
		ticket.AssignedTo,
		ticket.DueDate,
		ticket.ResolvedAt,
		ticket.ResolvedBy,
		ticket.ClosedAt,
		ticket.ReopenedAt,
		ticket.SatisfactionRating,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.OrganizationID,
		expectedVersion,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrConflict
	}
	ticket.Version = expectedVersion + 1
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, scope policy.TicketScope, id string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, scope, "t.id", id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, scope policy.TicketScope, number string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, scope, "t.ticket_number", number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, scope policy.TicketScope, column string, value string) (*domain.Ticket, error) {
	args := []any{value}
	clauses := append([]string{fmt.Sprintf("%s=$1", column)}, scopeClauses(scope, "t", &args)...)
	query := fmt.Sprintf(`SELECT %s FROM tickets t WHERE %s`, ticketColumns, strings.Join(clauses, " AND "))

	ticket, err := scanTicket(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translate(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	args := []any{}
	clauses := scopeClauses(filter.Scope, "t", &args)

	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("t.department_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("t.created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("t.created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(t.title) LIKE %s OR LOWER(t.description) LIKE %s OR LOWER(t.ticket_number) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets t WHERE %s ORDER BY t.updated_at DESC, t.id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListForAnalytics(ctx context.Context, scope policy.TicketScope, createdSince, resolvedSince time.Time) ([]domain.Ticket, error) {
	args := []any{}
	clauses := scopeClauses(scope, "t", &args)
	args = append(args, createdSince, resolvedSince)
	clauses = append(clauses, fmt.Sprintf("(t.created_at >= $%d OR t.resolved_at >= $%d)", len(args)-1, len(args)))

	query := fmt.Sprintf(`SELECT %s FROM tickets t WHERE %s ORDER BY t.created_at ASC`, ticketColumns, strings.Join(clauses, " AND "))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

// scopeClauses renders a visibility scope as SQL predicates over alias.
func scopeClauses(scope policy.TicketScope, alias string, args *[]any) []string {
	if scope.Empty {
		return []string{"FALSE"}
	}
	*args = append(*args, scope.OrganizationID)
	clauses := []string{fmt.Sprintf("%s.organization_id=$%d", alias, len(*args))}
	if scope.DepartmentID != nil {
		*args = append(*args, *scope.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("%s.department_id=$%d", alias, len(*args)))
	}
	if scope.ParticipantID != nil {
		*args = append(*args, *scope.ParticipantID)
		n := len(*args)
		clauses = append(clauses, fmt.Sprintf("(%s.created_by=$%d OR %s.assigned_to=$%d)", alias, n, alias, n))
	}
	return clauses
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.OrganizationID,
		&ticket.TicketNumber,
		&ticket.Title,
		&ticket.Description,
		&ticket.CategoryID,
		&ticket.DepartmentID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.DueDate,
		&ticket.ResolvedAt,
		&ticket.ResolvedBy,
		&ticket.ClosedAt,
		&ticket.ReopenedAt,
		&ticket.SatisfactionRating,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
