package repository

import (
	"context"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

// DepartmentRepository manages department persistence.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	Update(ctx context.Context, dept *domain.Department) error
	Delete(ctx context.Context, organizationID, id string) error
	GetByID(ctx context.Context, organizationID, id string) (*domain.Department, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.Department, error)
}

const departmentColumns = `id, organization_id, name, description, supervisor_id, is_active, created_at, updated_at`

type departmentRepository struct {
	db DBTX
}

// NewDepartmentRepository builds the repository.
func NewDepartmentRepository(db DBTX) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	const query = `
        INSERT INTO departments (id, organization_id, name, description, supervisor_id, is_active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.db.Exec(ctx, query,
		dept.ID,
		dept.OrganizationID,
		dept.Name,
		dept.Description,
		dept.SupervisorID,
		dept.IsActive,
		dept.CreatedAt,
		dept.UpdatedAt,
	)
	return translate(err)
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department) error {
	const query = `
        UPDATE departments SET name=$1, description=$2, supervisor_id=$3, is_active=$4, updated_at=$5
        WHERE id=$6 AND organization_id=$7`
	cmd, err := r.db.Exec(ctx, query,
		dept.Name,
		dept.Description,
		dept.SupervisorID,
		dept.IsActive,
		dept.UpdatedAt,
		dept.ID,
		dept.OrganizationID,
	)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *departmentRepository) Delete(ctx context.Context, organizationID, id string) error {
	const query = `DELETE FROM departments WHERE id=$1 AND organization_id=$2`
	cmd, err := r.db.Exec(ctx, query, id, organizationID)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *departmentRepository) GetByID(ctx context.Context, organizationID, id string) (*domain.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE id=$1 AND organization_id=$2`
	dept, err := scanDepartment(r.db.QueryRow(ctx, query, id, organizationID))
	if err != nil {
		return nil, translate(err)
	}
	return dept, nil
}

func (r *departmentRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.Department, error) {
	const query = `SELECT ` + departmentColumns + ` FROM departments WHERE organization_id=$1 ORDER BY name ASC, id ASC`
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Department
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dept)
	}
	return result, rows.Err()
}

func scanDepartment(row rowScanner) (*domain.Department, error) {
	var dept domain.Department
	if err := row.Scan(
		&dept.ID,
		&dept.OrganizationID,
		&dept.Name,
		&dept.Description,
		&dept.SupervisorID,
		&dept.IsActive,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &dept, nil
}
