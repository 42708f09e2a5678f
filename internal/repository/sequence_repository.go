package repository

import "context"

// SequenceRepository allocates per-organization ticket numbers.
type SequenceRepository interface {
	// Next atomically increments and returns the organization's counter.
	Next(ctx context.Context, organizationID string) (int64, error)
}

type sequenceRepository struct {
	db DBTX
}

// NewSequenceRepository builds repository.
func NewSequenceRepository(db DBTX) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, organizationID string) (int64, error) {
	const query = `
        INSERT INTO organization_ticket_sequences (organization_id, last_value)
        VALUES ($1, 1)
        ON CONFLICT (organization_id) DO UPDATE SET last_value = organization_ticket_sequences.last_value + 1
        RETURNING last_value`
	var value int64
	if err := r.db.QueryRow(ctx, query, organizationID).Scan(&value); err != nil {
		return 0, translate(err)
	}
	return value, nil
}
