// Package memory is an in-process implementation of the repository contracts.
// Transactions run against a private copy of the data that replaces the shared
// copy on commit, so a failed unit of work leaves nothing behind.
package memory

import (
	"context"
	"sync"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/repository"
)

type state struct {
	tickets        map[string]domain.Ticket
	comments       []domain.Comment
	activities     []domain.Activity
	nextActivityID int64
	watchers       []domain.Watcher
	attachments    []domain.Attachment
	sequences      map[string]int64
	users          map[string]domain.User
	departments    map[string]domain.Department
	categories     map[string]domain.Category
}

func newState() *state {
	return &state{
		tickets:     map[string]domain.Ticket{},
		sequences:   map[string]int64{},
		users:       map[string]domain.User{},
		departments: map[string]domain.Department{},
		categories:  map[string]domain.Category{},
	}
}

func (s *state) clone() *state {
	out := &state{
		tickets:        make(map[string]domain.Ticket, len(s.tickets)),
		comments:       append([]domain.Comment(nil), s.comments...),
		activities:     append([]domain.Activity(nil), s.activities...),
		nextActivityID: s.nextActivityID,
		watchers:       append([]domain.Watcher(nil), s.watchers...),
		attachments:    append([]domain.Attachment(nil), s.attachments...),
		sequences:      make(map[string]int64, len(s.sequences)),
		users:          make(map[string]domain.User, len(s.users)),
		departments:    make(map[string]domain.Department, len(s.departments)),
		categories:     make(map[string]domain.Category, len(s.categories)),
	}
	for k, v := range s.tickets {
		out.tickets[k] = v.Clone()
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.departments {
		out.departments[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	return out
}

// access abstracts over the shared data (autocommit) and a transaction copy.
type access interface {
	read(fn func(st *state) error) error
	write(fn func(st *state) error) error
}

// Store is a repository.Store backed by process memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

var _ repository.Store = (*Store)(nil)

type autocommit struct {
	store *Store
}

func (a autocommit) read(fn func(st *state) error) error {
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	return fn(a.store.data)
}

func (a autocommit) write(fn func(st *state) error) error {
	a.store.txMu.Lock()
	defer a.store.txMu.Unlock()
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return fn(a.store.data)
}

type txView struct {
	st *state
}

func (t txView) read(fn func(st *state) error) error  { return fn(t.st) }
func (t txView) write(fn func(st *state) error) error { return fn(t.st) }

func repositoriesFor(a access) repository.Repositories {
	return repository.Repositories{
		Tickets:     &ticketRepo{a: a},
		Comments:    &commentRepo{a: a},
		Activities:  &activityRepo{a: a},
		Watchers:    &watcherRepo{a: a},
		Attachments: &attachmentRepo{a: a},
		Sequences:   &sequenceRepo{a: a},
		Users:       &userRepo{a: a},
		Departments: &departmentRepo{a: a},
		Categories:  &categoryRepo{a: a},
	}
}

// Repositories returns autocommit repositories.
func (s *Store) Repositories() repository.Repositories {
	return repositoriesFor(autocommit{store: s})
}

// WithinTx serializes units of work and publishes the private copy on success.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	working := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, repositoriesFor(txView{st: working})); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u domain.User) {
	_ = autocommit{store: s}.write(func(st *state) error {
		st.users[u.ID] = u
		return nil
	})
}

// PutDepartment inserts or replaces a department.
func (s *Store) PutDepartment(d domain.Department) {
	_ = autocommit{store: s}.write(func(st *state) error {
		st.departments[d.ID] = d
		return nil
	})
}

// PutCategory inserts or replaces a category.
func (s *Store) PutCategory(c domain.Category) {
	_ = autocommit{store: s}.write(func(st *state) error {
		st.categories[c.ID] = c
		return nil
	})
}

// PutTicket inserts or replaces a ticket without touching the ledger.
func (s *Store) PutTicket(t domain.Ticket) {
	_ = autocommit{store: s}.write(func(st *state) error {
		st.tickets[t.ID] = t.Clone()
		return nil
	})
}

// PutActivity appends a ledger entry with the next ID.
func (s *Store) PutActivity(a domain.Activity) {
	_ = autocommit{store: s}.write(func(st *state) error {
		st.nextActivityID++
		a.ID = st.nextActivityID
		st.activities = append(st.activities, a)
		return nil
	})
}
