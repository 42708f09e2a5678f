package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

const (
	maxDepartmentName        = 120
	maxDepartmentDescription = 1000
)

// DepartmentInput carries department attributes for create and update.
type DepartmentInput struct {
	Name         string
	Description  string
	SupervisorID *string
	IsActive     *bool
}

// DepartmentService manages the routing units of an organization.
type DepartmentService struct {
	store  repository.Store
	logger *zap.Logger
	plain  *bluemonday.Policy
	now    func() time.Time
}

// NewDepartmentService constructs the service.
func NewDepartmentService(store repository.Store, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{
		store:  store,
		logger: logger.With(zap.String("component", "department_service")),
		plain:  bluemonday.StrictPolicy(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns the departments of the actor's organization.
func (s *DepartmentService) List(ctx context.Context, actor domain.Actor) ([]domain.Department, error) {
	if err := requireMember(actor); err != nil {
		return nil, err
	}
	departments, err := s.store.Repositories().Departments.ListByOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, storeError(err, "department")
	}
	if departments == nil {
		departments = []domain.Department{}
	}
	return departments, nil
}

// Get returns one department of the actor's organization.
func (s *DepartmentService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Department, error) {
	if err := requireMember(actor); err != nil {
		return nil, err
	}
	dept, err := s.store.Repositories().Departments.GetByID(ctx, actor.OrganizationID, id)
	if err != nil {
		return nil, storeError(err, "department")
	}
	return dept, nil
}

// Create adds a department. Admins only.
func (s *DepartmentService) Create(ctx context.Context, actor domain.Actor, input DepartmentInput) (*domain.Department, error) {
	if !policy.CanManageDepartments(actor) {
		return nil, apperrors.NewForbidden("only admins can manage departments")
	}
	name, description, err := s.cleanInput(input)
	if err != nil {
		return nil, err
	}
	now := s.now()
	dept := &domain.Department{
		ID:             uuid.NewString(),
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Description:    description,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if input.IsActive != nil {
		dept.IsActive = *input.IsActive
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		supervisor, err := checkSupervisor(ctx, repos, actor.OrganizationID, input.SupervisorID)
		if err != nil {
			return err
		}
		dept.SupervisorID = supervisor
		return storeError(repos.Departments.Create(ctx, dept), "department")
	})
	if err != nil {
		return nil, translateTxError(err)
	}
	s.logger.Info("department created", zap.String("department_id", dept.ID), zap.String("organization_id", dept.OrganizationID))
	return dept, nil
}

// Update replaces the mutable attributes of a department. Admins only.
func (s *DepartmentService) Update(ctx context.Context, actor domain.Actor, id string, input DepartmentInput) (*domain.Department, error) {
	if !policy.CanManageDepartments(actor) {
		return nil, apperrors.NewForbidden("only admins can manage departments")
	}
	name, description, err := s.cleanInput(input)
	if err != nil {
		return nil, err
	}

	var dept *domain.Department
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Departments.GetByID(ctx, actor.OrganizationID, id)
		if err != nil {
			return storeError(err, "department")
		}
		supervisor, err := checkSupervisor(ctx, repos, actor.OrganizationID, input.SupervisorID)
		if err != nil {
			return err
		}
		current.Name = name
		current.Description = description
		current.SupervisorID = supervisor
		if input.IsActive != nil {
			current.IsActive = *input.IsActive
		}
		current.UpdatedAt = s.now()
		if err := repos.Departments.Update(ctx, current); err != nil {
			return storeError(err, "department")
		}
		dept = current
		return nil
	})
	if err != nil {
		return nil, translateTxError(err)
	}
	return dept, nil
}

// Delete removes a department that no user belongs to. Admins only.
func (s *DepartmentService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if !policy.CanManageDepartments(actor) {
		return apperrors.NewForbidden("only admins can manage departments")
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Departments.GetByID(ctx, actor.OrganizationID, id); err != nil {
			return storeError(err, "department")
		}
		members, err := repos.Users.CountByDepartment(ctx, actor.OrganizationID, id)
		if err != nil {
			return storeError(err, "user")
		}
		if members > 0 {
			return apperrors.NewConflict("department still has members", map[string]any{"members": members})
		}
		return storeError(repos.Departments.Delete(ctx, actor.OrganizationID, id), "department")
	})
	if err != nil {
		return translateTxError(err)
	}
	s.logger.Info("department deleted", zap.String("department_id", id), zap.String("organization_id", actor.OrganizationID))
	return nil
}

func (s *DepartmentService) cleanInput(input DepartmentInput) (string, string, error) {
	name := strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(strings.TrimSpace(input.Name))))
	if name == "" {
		return "", "", apperrors.NewValidationError("name", "department name is required")
	}
	if len([]rune(name)) > maxDepartmentName {
		return "", "", apperrors.NewValidationError("name", "department name is too long")
	}
	description := strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(strings.TrimSpace(input.Description))))
	if len([]rune(description)) > maxDepartmentDescription {
		return "", "", apperrors.NewValidationError("description", "department description is too long")
	}
	return name, description, nil
}

// checkSupervisor resolves an optional supervisor reference. An empty string
// clears it.
func checkSupervisor(ctx context.Context, repos repository.Repositories, organizationID string, supervisorID *string) (*string, error) {
	if supervisorID == nil || strings.TrimSpace(*supervisorID) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*supervisorID)
	user, err := repos.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewValidationError("supervisor_id", "supervisor does not exist")
		}
		return nil, storeError(err, "user")
	}
	if user.OrganizationID != organizationID || user.Status != domain.UserStatusActive {
		return nil, apperrors.NewValidationError("supervisor_id", "supervisor must be an active member of the organization")
	}
	return &id, nil
}

func requireMember(actor domain.Actor) error {
	if actor.OrganizationID == "" || actor.Status != domain.UserStatusActive {
		return apperrors.NewForbidden("actor is not an active organization member")
	}
	return nil
}
