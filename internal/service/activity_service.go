package service

import (
	"context"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
)

// ActivityService exposes the read side of the audit ledger. Writes happen
// only inside ticket mutations.
type ActivityService struct {
	store repository.Store
}

// NewActivityService constructs the service.
func NewActivityService(store repository.Store) *ActivityService {
	return &ActivityService{store: store}
}

// ListForTicket returns the ledger of a visible ticket oldest first. Entries
// about internal notes are hidden from non-staff actors.
func (s *ActivityService) ListForTicket(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Activity, error) {
	repos := s.store.Repositories()
	if _, err := repos.Tickets.GetByID(ctx, policy.ComputeFilter(actor), ticketID); err != nil {
		return nil, storeError(err, "ticket")
	}
	entries, err := repos.Activities.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err, "activity")
	}
	visible := make([]domain.Activity, 0, len(entries))
	for _, entry := range entries {
		if internal, _ := entry.Metadata["internal"].(bool); internal && !actor.Role.IsStaff() {
			continue
		}
		visible = append(visible, entry)
	}
	return visible, nil
}
