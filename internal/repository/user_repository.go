package repository

import (
	"context"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

// UserRepository defines read access to organization members. Account
// creation belongs to the identity collaborator.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.User, error)
	CountByDepartment(ctx context.Context, organizationID, departmentID string) (int, error)
}

const userColumns = `id, organization_id, department_id, name, email, role, status, created_at, updated_at`

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return user, nil
}

func (r *userRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE organization_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *userRepository) CountByDepartment(ctx context.Context, organizationID, departmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE organization_id=$1 AND department_id=$2`
	var count int
	if err := r.db.QueryRow(ctx, query, organizationID, departmentID).Scan(&count); err != nil {
		return 0, translate(err)
	}
	return count, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.OrganizationID,
		&user.DepartmentID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
