package rates

import "context"

// Repository defines the interface for azure_rates access
type Repository interface {
	// Replace atomically swaps the table content for records
	Replace(ctx context.Context, records []Record) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)
}
