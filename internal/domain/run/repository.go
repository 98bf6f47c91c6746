package run

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for pipeline run persistence
type Repository interface {
	// Save inserts or updates a run report
	Save(ctx context.Context, report *Report) error

	// Get retrieves a run by ID
	Get(ctx context.Context, id uuid.UUID) (*Report, error)

	// List retrieves runs, newest first
	List(ctx context.Context, filter Filter) ([]*Report, int64, error)
}
