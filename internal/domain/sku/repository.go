package sku

import "context"

// Repository defines the interface for resource table access
type Repository interface {
	// EnsureTable creates the schema's table if it does not exist
	EnsureTable(ctx context.Context, schema *Schema) error

	// Replace atomically swaps the table content for rows
	Replace(ctx context.Context, schema *Schema, rows []ResourceRow) error
}
