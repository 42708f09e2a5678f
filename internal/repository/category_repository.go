package repository

import (
	"context"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

// CategoryRepository reads ticket categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, organizationID, id string) (*domain.Category, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.Category, error)
}

type categoryRepository struct {
	db DBTX
}

// NewCategoryRepository builds repository.
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, organizationID, id string) (*domain.Category, error) {
	const query = `SELECT id, organization_id, name, created_at FROM categories WHERE id=$1 AND organization_id=$2`
	var category domain.Category
	if err := r.db.QueryRow(ctx, query, id, organizationID).Scan(
		&category.ID,
		&category.OrganizationID,
		&category.Name,
		&category.CreatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &category, nil
}

func (r *categoryRepository) ListByOrganization(ctx context.Context, organizationID string) ([]domain.Category, error) {
	const query = `SELECT id, organization_id, name, created_at FROM categories WHERE organization_id=$1 ORDER BY name ASC`
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var result []domain.Category
	for rows.Next() {
		var category domain.Category
		if err := rows.Scan(&category.ID, &category.OrganizationID, &category.Name, &category.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
