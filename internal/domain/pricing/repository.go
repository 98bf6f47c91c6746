package pricing

import (
	"context"
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
)

// Repository defines the interface for vm_pricing access
type Repository interface {
	// Replace atomically swaps the table content for rows
	Replace(ctx context.Context, rows []Row) error

	// List retrieves pricing rows ordered by location, name
	List(ctx context.Context, filter Filter) ([]Row, int64, error)
}

// HistoryRepository defines the interface for vm_pricing_history access
type HistoryRepository interface {
	// AppendSnapshot copies the current vm_pricing content stamped with runAt
	AppendSnapshot(ctx context.Context, runAt time.Time) (int64, error)

	// List retrieves history entries, newest run first
	List(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, int64, error)
}

// InventoryReader loads the virtual machine inventory keyed by (name, location)
type InventoryReader interface {
	VirtualMachines(ctx context.Context) ([]VirtualMachine, error)
}

// RateReader loads the rate records that match some inventory key
type RateReader interface {
	MatchingRates(ctx context.Context) ([]rates.Record, error)
}
