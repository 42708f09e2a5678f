package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
)

type ticketRepo struct{ a access }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	return r.a.write(func(st *state) error {
		if _, exists := st.tickets[ticket.ID]; exists {
			return repository.ErrConflict
		}
		for _, existing := range st.tickets {
			if existing.OrganizationID == ticket.OrganizationID && existing.TicketNumber == ticket.TicketNumber {
				return repository.ErrConflict
			}
		}
		st.tickets[ticket.ID] = ticket.Clone()
		return nil
	})
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	return r.a.write(func(st *state) error {
		stored, ok := st.tickets[ticket.ID]
		if !ok || stored.OrganizationID != ticket.OrganizationID || stored.Version != expectedVersion {
			return repository.ErrConflict
		}
		next := ticket.Clone()
		next.TicketNumber = stored.TicketNumber
		next.CreatedBy = stored.CreatedBy
		next.CreatedAt = stored.CreatedAt
		if next.UpdatedAt.Before(stored.UpdatedAt) {
			next.UpdatedAt = stored.UpdatedAt
		}
		next.Version = expectedVersion + 1
		st.tickets[ticket.ID] = next
		ticket.Version = next.Version
		ticket.UpdatedAt = next.UpdatedAt
		return nil
	})
}

func (r *ticketRepo) GetByID(_ context.Context, scope policy.TicketScope, id string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.a.read(func(st *state) error {
		t, ok := st.tickets[id]
		if !ok || !scope.Matches(&t) {
			return repository.ErrNotFound
		}
		c := t.Clone()
		out = &c
		return nil
	})
	return out, err
}

func (r *ticketRepo) GetByNumber(_ context.Context, scope policy.TicketScope, number string) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.a.read(func(st *state) error {
		for _, t := range st.tickets {
			if t.TicketNumber == number && scope.Matches(&t) {
				c := t.Clone()
				out = &c
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	err := r.a.read(func(st *state) error {
		for _, t := range st.tickets {
			if matchesFilter(&t, filter) {
				result = append(result, t.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func matchesFilter(t *domain.Ticket, filter repository.TicketFilter) bool {
	if !filter.Scope.Matches(t) {
		return false
	}
	if filter.DepartmentID != nil && (t.DepartmentID == nil || *t.DepartmentID != *filter.DepartmentID) {
		return false
	}
	if filter.AssigneeID != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssigneeID) {
		return false
	}
	if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
		return false
	}
	if filter.CreatedFrom != nil && t.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && t.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!strings.Contains(strings.ToLower(t.TicketNumber), term) {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, v domain.TicketStatus) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, v domain.TicketPriority) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}

func (r *ticketRepo) ListForAnalytics(_ context.Context, scope policy.TicketScope, createdSince, resolvedSince time.Time) ([]domain.Ticket, error) {
	var result []domain.Ticket
	err := r.a.read(func(st *state) error {
		for _, t := range st.tickets {
			if !scope.Matches(&t) {
				continue
			}
			created := !t.CreatedAt.Before(createdSince)
			resolved := t.ResolvedAt != nil && !t.ResolvedAt.Before(resolvedSince)
			if created || resolved {
				result = append(result, t.Clone())
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, err
}

type commentRepo struct{ a access }

func (r *commentRepo) Create(_ context.Context, comment *domain.Comment) error {
	return r.a.write(func(st *state) error {
		st.comments = append(st.comments, *comment)
		return nil
	})
}

func (r *commentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	var result []domain.Comment
	err := r.a.read(func(st *state) error {
		for _, c := range st.comments {
			if c.TicketID == ticketID {
				result = append(result, c)
			}
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, err
}

type activityRepo struct{ a access }

func (r *activityRepo) Append(_ context.Context, entry *domain.Activity) error {
	return r.a.write(func(st *state) error {
		st.nextActivityID++
		entry.ID = st.nextActivityID
		st.activities = append(st.activities, *entry)
		return nil
	})
}

func (r *activityRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Activity, error) {
	var result []domain.Activity
	err := r.a.read(func(st *state) error {
		for _, a := range st.activities {
			if a.TicketID == ticketID {
				result = append(result, a)
			}
		}
		return nil
	})
	sortActivities(result)
	return result, err
}

func (r *activityRepo) ListForScope(_ context.Context, scope policy.TicketScope, since time.Time) ([]domain.Activity, error) {
	var result []domain.Activity
	err := r.a.read(func(st *state) error {
		for _, a := range st.activities {
			if a.CreatedAt.Before(since) {
				continue
			}
			t, ok := st.tickets[a.TicketID]
			if ok && scope.Matches(&t) {
				result = append(result, a)
			}
		}
		return nil
	})
	sortActivities(result)
	return result, err
}

func sortActivities(list []domain.Activity) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

type watcherRepo struct{ a access }

func (r *watcherRepo) Add(_ context.Context, watcher *domain.Watcher) error {
	return r.a.write(func(st *state) error {
		for _, w := range st.watchers {
			if w.TicketID == watcher.TicketID && w.UserID == watcher.UserID {
				return nil
			}
		}
		st.watchers = append(st.watchers, *watcher)
		return nil
	})
}

func (r *watcherRepo) Remove(_ context.Context, ticketID, userID string) error {
	return r.a.write(func(st *state) error {
		kept := st.watchers[:0:0]
		for _, w := range st.watchers {
			if w.TicketID == ticketID && w.UserID == userID {
				continue
			}
			kept = append(kept, w)
		}
		st.watchers = kept
		return nil
	})
}

func (r *watcherRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Watcher, error) {
	var result []domain.Watcher
	err := r.a.read(func(st *state) error {
		for _, w := range st.watchers {
			if w.TicketID == ticketID {
				result = append(result, w)
			}
		}
		return nil
	})
	return result, err
}

type attachmentRepo struct{ a access }

func (r *attachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	return r.a.write(func(st *state) error {
		st.attachments = append(st.attachments, *attachment)
		return nil
	})
}

func (r *attachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	var result []domain.Attachment
	err := r.a.read(func(st *state) error {
		for _, at := range st.attachments {
			if at.TicketID == ticketID {
				result = append(result, at)
			}
		}
		return nil
	})
	return result, err
}

type sequenceRepo struct{ a access }

func (r *sequenceRepo) Next(_ context.Context, organizationID string) (int64, error) {
	var value int64
	err := r.a.write(func(st *state) error {
		st.sequences[organizationID]++
		value = st.sequences[organizationID]
		return nil
	})
	return value, err
}

type userRepo struct{ a access }

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var out *domain.User
	err := r.a.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.User, error) {
	var result []domain.User
	err := r.a.read(func(st *state) error {
		for _, u := range st.users {
			if u.OrganizationID == organizationID {
				result = append(result, u)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, err
}

func (r *userRepo) CountByDepartment(_ context.Context, organizationID, departmentID string) (int, error) {
	count := 0
	err := r.a.read(func(st *state) error {
		for _, u := range st.users {
			if u.OrganizationID == organizationID && u.DepartmentID != nil && *u.DepartmentID == departmentID {
				count++
			}
		}
		return nil
	})
	return count, err
}

type departmentRepo struct{ a access }

func (r *departmentRepo) Create(_ context.Context, dept *domain.Department) error {
	return r.a.write(func(st *state) error {
		if _, exists := st.departments[dept.ID]; exists {
			return repository.ErrConflict
		}
		st.departments[dept.ID] = *dept
		return nil
	})
}

func (r *departmentRepo) Update(_ context.Context, dept *domain.Department) error {
	return r.a.write(func(st *state) error {
		stored, ok := st.departments[dept.ID]
		if !ok || stored.OrganizationID != dept.OrganizationID {
			return repository.ErrNotFound
		}
		next := *dept
		next.CreatedAt = stored.CreatedAt
		st.departments[dept.ID] = next
		return nil
	})
}

func (r *departmentRepo) Delete(_ context.Context, organizationID, id string) error {
	return r.a.write(func(st *state) error {
		stored, ok := st.departments[id]
		if !ok || stored.OrganizationID != organizationID {
			return repository.ErrNotFound
		}
		delete(st.departments, id)
		return nil
	})
}

func (r *departmentRepo) GetByID(_ context.Context, organizationID, id string) (*domain.Department, error) {
	var out *domain.Department
	err := r.a.read(func(st *state) error {
		d, ok := st.departments[id]
		if !ok || d.OrganizationID != organizationID {
			return repository.ErrNotFound
		}
		out = &d
		return nil
	})
	return out, err
}

func (r *departmentRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.Department, error) {
	var result []domain.Department
	err := r.a.read(func(st *state) error {
		for _, d := range st.departments {
			if d.OrganizationID == organizationID {
				result = append(result, d)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, err
}

type categoryRepo struct{ a access }

func (r *categoryRepo) GetByID(_ context.Context, organizationID, id string) (*domain.Category, error) {
	var out *domain.Category
	err := r.a.read(func(st *state) error {
		c, ok := st.categories[id]
		if !ok || c.OrganizationID != organizationID {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r *categoryRepo) ListByOrganization(_ context.Context, organizationID string) ([]domain.Category, error) {
	var result []domain.Category
	err := r.a.read(func(st *state) error {
		for _, c := range st.categories {
			if c.OrganizationID == organizationID {
				result = append(result, c)
			}
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, err
}
