package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a row is absent or outside the given scope.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a compare-and-set or unique constraint fails.
	ErrConflict = errors.New("record conflict")
)

const uniqueViolation = "23505"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to one connection or transaction.
type Repositories struct {
	Tickets     TicketRepository
	Comments    CommentRepository
	Activities  ActivityRepository
	Watchers    WatcherRepository
	Attachments AttachmentRepository
	Sequences   SequenceRepository
	Users       UserRepository
	Departments DepartmentRepository
	Categories  CategoryRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	// WithinTx runs fn in a transaction; fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Ping(ctx context.Context) error
}

type postgresStore struct {
	pool  *pgxpool.Pool
	repos Repositories
}

// NewPostgresStore builds a Store on top of a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool, repos: newRepositories(pool)}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:     NewTicketRepository(db),
		Comments:    NewCommentRepository(db),
		Activities:  NewActivityRepository(db),
		Watchers:    NewWatcherRepository(db),
		Attachments: NewAttachmentRepository(db),
		Sequences:   NewSequenceRepository(db),
		Users:       NewUserRepository(db),
		Departments: NewDepartmentRepository(db),
		Categories:  NewCategoryRepository(db),
	}
}

func (s *postgresStore) Repositories() Repositories {
	return s.repos
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, newRepositories(tx))
	})
}

func (s *postgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
