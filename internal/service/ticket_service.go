package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/config"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/observability"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 10000
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	*ticketCore
	settings config.TicketsConfig
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies, settings config.TicketsConfig) *TicketService {
	if settings.NumberPrefix == "" {
		settings.NumberPrefix = "TCK"
	}
	return &TicketService{
		ticketCore: newTicketCore(deps, "ticket_service"),
		settings:   settings,
	}
}

// CreateTicketCommand is the draft submitted by an actor.
type CreateTicketCommand struct {
	Title        string
	Description  string
	CategoryID   *string
	DepartmentID *string
	Priority     domain.TicketPriority
	DueDate      *time.Time
}

// TicketPatch is the allow-listed partial update. Nil leaves a field alone;
// an empty string clears a nullable reference.
type TicketPatch struct {
	Title        *string
	Description  *string
	CategoryID   *string
	DepartmentID *string
	Priority     *domain.TicketPriority
	DueDate      *time.Time
	ClearDueDate bool
	AssignedTo   *string
}

// Fields lists the attributes the patch touches.
func (p TicketPatch) Fields() []policy.Field {
	var fields []policy.Field
	if p.Title != nil {
		fields = append(fields, policy.FieldTitle)
	}
	if p.Description != nil {
		fields = append(fields, policy.FieldDescription)
	}
	if p.CategoryID != nil {
		fields = append(fields, policy.FieldCategory)
	}
	if p.DepartmentID != nil {
		fields = append(fields, policy.FieldDepartment)
	}
	if p.Priority != nil {
		fields = append(fields, policy.FieldPriority)
	}
	if p.DueDate != nil || p.ClearDueDate {
		fields = append(fields, policy.FieldDueDate)
	}
	if p.AssignedTo != nil {
		fields = append(fields, policy.FieldAssignee)
	}
	return fields
}

// UpdateTicketCommand applies Patch to TicketID.
type UpdateTicketCommand struct {
	TicketID        string
	ExpectedVersion *int64
	Patch           TicketPatch
}

// ListTicketsQuery narrows a ticket listing. The actor's scope always applies.
type ListTicketsQuery struct {
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

// RateTicketCommand records the creator's satisfaction score.
type RateTicketCommand struct {
	TicketID        string
	ExpectedVersion *int64
	Rating          int
}

// Create opens a ticket with a fresh organization-unique number, subscribes
// the creator, and records the created activity.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, cmd CreateTicketCommand) (*domain.Ticket, error) {
	if actor.Status != domain.UserStatusActive || actor.OrganizationID == "" {
		return nil, apperrors.NewForbidden("actor cannot create tickets")
	}

	title := s.sanitizeLine(cmd.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	description := s.sanitizeText(cmd.Description)
	if err := validateDescription(description); err != nil {
		return nil, err
	}
	priority := cmd.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError(string(policy.FieldPriority), "unknown priority")
	}

	departmentID := normalizeRef(cmd.DepartmentID)
	if departmentID == nil && actor.DepartmentID != nil {
		departmentID = strPtr(*actor.DepartmentID)
	}
	categoryID := normalizeRef(cmd.CategoryID)

	now := s.now()
	if cmd.DueDate != nil && cmd.DueDate.Before(now) {
		return nil, apperrors.NewValidationError(string(policy.FieldDueDate), "due date must be in the future")
	}

	ctx, span := s.tracer.Start(ctx, "ticket.create")
	defer span.End()

	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		OrganizationID: actor.OrganizationID,
		Title:          title,
		Description:    description,
		CategoryID:     categoryID,
		DepartmentID:   departmentID,
		Priority:       priority,
		Status:         domain.TicketStatusOpen,
		CreatedBy:      actor.ID,
		DueDate:        cmd.DueDate,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var entry domain.Activity
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := checkCategory(ctx, repos, actor.OrganizationID, categoryID); err != nil {
			return err
		}
		if err := checkDepartment(ctx, repos, actor.OrganizationID, departmentID); err != nil {
			return err
		}

		seq, err := repos.Sequences.Next(ctx, actor.OrganizationID)
		if err != nil {
			return storeError(err, "ticket sequence")
		}
		ticket.TicketNumber = fmt.Sprintf("%s-%06d", s.settings.NumberPrefix, seq)

		if err := repos.Tickets.Create(ctx, ticket); err != nil {
			return storeError(err, "ticket")
		}
		if err := repos.Watchers.Add(ctx, &domain.Watcher{TicketID: ticket.ID, UserID: actor.ID, CreatedAt: now}); err != nil {
			return storeError(err, "watcher")
		}
		entry = domain.Activity{
			TicketID:    ticket.ID,
			UserID:      actor.ID,
			Action:      domain.ActionCreated,
			Description: fmt.Sprintf("Ticket %s created: %s", ticket.TicketNumber, ticket.Title),
			Metadata: map[string]any{
				"ticket_number": ticket.TicketNumber,
				"priority":      string(ticket.Priority),
			},
			CreatedAt: now,
		}
		if err := repos.Activities.Append(ctx, &entry); err != nil {
			return storeError(err, "activity")
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, translateTxError(err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("organization_id", ticket.OrganizationID),
	)
	observability.RecordMutation(string(domain.ActionCreated))
	s.publish(ctx, ticket, entry, false)
	return ticket, nil
}

// Get returns a ticket visible to actor.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.loadVisible(ctx, actor, ticketID)
}

// GetByNumber resolves a human-facing ticket number under the same scope as Get.
func (s *TicketService) GetByNumber(ctx context.Context, actor domain.Actor, number string) (*domain.Ticket, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if number == "" {
		return nil, apperrors.NewValidationError("ticket_number", "ticket number is required")
	}
	ticket, err := s.store.Repositories().Tickets.GetByNumber(ctx, policy.ComputeFilter(actor), number)
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	return ticket, nil
}

// List returns the page of tickets visible to actor that match query.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, query ListTicketsQuery) ([]domain.Ticket, error) {
	for _, st := range query.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("status", "unknown status")
		}
	}
	for _, pr := range query.Priorities {
		if !pr.Valid() {
			return nil, apperrors.NewValidationError("priority", "unknown priority")
		}
	}
	if query.CreatedFrom != nil && query.CreatedTo != nil && query.CreatedTo.Before(*query.CreatedFrom) {
		return nil, apperrors.NewValidationError("created_to", "created_to precedes created_from")
	}

	tickets, err := s.store.Repositories().Tickets.List(ctx, repository.TicketFilter{
		Scope:        policy.ComputeFilter(actor),
		DepartmentID: query.DepartmentID,
		AssigneeID:   query.AssigneeID,
		CreatedBy:    query.CreatedBy,
		Statuses:     query.Statuses,
		Priorities:   query.Priorities,
		SearchTerm:   query.SearchTerm,
		CreatedFrom:  query.CreatedFrom,
		CreatedTo:    query.CreatedTo,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		return nil, storeError(err, "ticket")
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// Update applies an allow-listed patch. Changing only the assignee is
// recorded as an assignment; anything else as an update.
func (s *TicketService) Update(ctx context.Context, actor domain.Actor, cmd UpdateTicketCommand) (*domain.Ticket, error) {
	fields := cmd.Patch.Fields()
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("fields", "no fields to update")
	}

	patch := cmd.Patch
	if patch.Title != nil {
		title := s.sanitizeLine(*patch.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		description := s.sanitizeText(*patch.Description)
		if err := validateDescription(description); err != nil {
			return nil, err
		}
		patch.Description = &description
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, apperrors.NewValidationError(string(policy.FieldPriority), "unknown priority")
	}

	return s.mutate(ctx, actor, cmd.TicketID, cmd.ExpectedVersion, func(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket, now time.Time) (*change, error) {
		if !policy.CanMutate(actor, ticket, fields) {
			return nil, apperrors.NewForbidden("not allowed to change these fields")
		}

		var changed []string
		previousAssignee := ticket.AssignedTo

		if patch.Title != nil && *patch.Title != ticket.Title {
			ticket.Title = *patch.Title
			changed = append(changed, string(policy.FieldTitle))
		}
		if patch.Description != nil && *patch.Description != ticket.Description {
			ticket.Description = *patch.Description
			changed = append(changed, string(policy.FieldDescription))
		}
		if patch.CategoryID != nil {
			next := normalizeRef(patch.CategoryID)
			if !sameStringPtr(next, ticket.CategoryID) {
				if err := checkCategory(ctx, repos, ticket.OrganizationID, next); err != nil {
					return nil, err
				}
				ticket.CategoryID = next
				changed = append(changed, string(policy.FieldCategory))
			}
		}
		if patch.DepartmentID != nil {
			next := normalizeRef(patch.DepartmentID)
			if !sameStringPtr(next, ticket.DepartmentID) {
				if err := checkDepartment(ctx, repos, ticket.OrganizationID, next); err != nil {
					return nil, err
				}
				ticket.DepartmentID = next
				changed = append(changed, string(policy.FieldDepartment))
			}
		}
		if patch.Priority != nil && *patch.Priority != ticket.Priority {
			ticket.Priority = *patch.Priority
			changed = append(changed, string(policy.FieldPriority))
		}
		if patch.ClearDueDate && ticket.DueDate != nil {
			ticket.DueDate = nil
			changed = append(changed, string(policy.FieldDueDate))
		} else if patch.DueDate != nil && !sameTimePtr(patch.DueDate, ticket.DueDate) {
			due := *patch.DueDate
			ticket.DueDate = &due
			changed = append(changed, string(policy.FieldDueDate))
		}
		if patch.AssignedTo != nil {
			next := normalizeRef(patch.AssignedTo)
			if !sameStringPtr(next, ticket.AssignedTo) {
				if err := checkAssignee(ctx, repos, ticket.OrganizationID, next); err != nil {
					return nil, err
				}
				ticket.AssignedTo = next
				changed = append(changed, string(policy.FieldAssignee))
			}
		}

		if len(changed) == 0 {
			return nil, apperrors.NewValidationError("fields", "update does not change the ticket")
		}
		if len(changed) == 1 && changed[0] == string(policy.FieldAssignee) {
			return assignmentChange(previousAssignee, ticket.AssignedTo), nil
		}
		return &change{
			action:      domain.ActionUpdated,
			description: "Updated " + strings.Join(changed, ", "),
			metadata:    map[string]any{"fields": changed},
		}, nil
	})
}

// Rate stores the creator's 1..5 satisfaction score on a resolved or closed ticket.
func (s *TicketService) Rate(ctx context.Context, actor domain.Actor, cmd RateTicketCommand) (*domain.Ticket, error) {
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return nil, apperrors.NewValidationError(string(policy.FieldRating), "rating must be between 1 and 5")
	}
	return s.mutate(ctx, actor, cmd.TicketID, cmd.ExpectedVersion, func(_ context.Context, _ repository.Repositories, ticket *domain.Ticket, _ time.Time) (*change, error) {
		if ticket.CreatedBy != actor.ID || !policy.CanMutate(actor, ticket, []policy.Field{policy.FieldRating}) {
			return nil, apperrors.NewForbidden("only the ticket creator may rate it")
		}
		if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
			return nil, apperrors.NewValidationError(string(policy.FieldStatus), "only resolved or closed tickets can be rated")
		}
		rating := cmd.Rating
		ticket.SatisfactionRating = &rating
		return &change{
			action:      domain.ActionUpdated,
			description: fmt.Sprintf("Rated %d out of 5", rating),
			metadata:    map[string]any{"fields": []string{string(policy.FieldRating)}, "rating": rating},
		}, nil
	})
}

func validateTitle(title string) error {
	if title == "" {
		return apperrors.NewValidationError(string(policy.FieldTitle), "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return apperrors.NewValidationError(string(policy.FieldTitle), fmt.Sprintf("title exceeds %d characters", maxTitleLength))
	}
	return nil
}

func validateDescription(description string) error {
	if description == "" {
		return apperrors.NewValidationError(string(policy.FieldDescription), "description is required")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return apperrors.NewValidationError(string(policy.FieldDescription), fmt.Sprintf("description exceeds %d characters", maxDescriptionLength))
	}
	return nil
}

func normalizeRef(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func checkCategory(ctx context.Context, repos repository.Repositories, organizationID string, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	if _, err := repos.Categories.GetByID(ctx, organizationID, *categoryID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(string(policy.FieldCategory), "unknown category")
		}
		return storeError(err, "category")
	}
	return nil
}

func checkDepartment(ctx context.Context, repos repository.Repositories, organizationID string, departmentID *string) error {
	if departmentID == nil {
		return nil
	}
	dept, err := repos.Departments.GetByID(ctx, organizationID, *departmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewValidationError(string(policy.FieldDepartment), "unknown department")
		}
		return storeError(err, "department")
	}
	if !dept.IsActive {
		return apperrors.NewValidationError(string(policy.FieldDepartment), "department is inactive")
	}
	return nil
}
