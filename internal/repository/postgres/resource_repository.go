package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

// ResourceRepository implements sku.Repository and pricing.InventoryReader
type ResourceRepository struct {
	db        *DB
	refresher *Refresher
}

// NewResourceRepository creates a new resource table repository
func NewResourceRepository(db *DB, refresher *Refresher) *ResourceRepository {
	return &ResourceRepository{db: db, refresher: refresher}
}

// TableDefFor returns the table definition generated from a schema
func TableDefFor(schema *sku.Schema) TableDef {
	return TableDef{Name: schema.Table, Columns: schema.Columns()}
}

// EnsureTable creates the schema's table if it does not exist
func (r *ResourceRepository) EnsureTable(ctx context.Context, schema *sku.Schema) error {
	return r.refresher.EnsureTable(ctx, TableDefFor(schema))
}

// Replace atomically swaps the table content for rows
func (r *ResourceRepository) Replace(ctx context.Context, schema *sku.Schema, rows []sku.ResourceRow) error {
	args := make([][]any, len(rows))
	for i := range rows {
		args[i] = rows[i].Args(schema)
	}
	return r.refresher.Refresh(ctx, TableDefFor(schema), args)
}

// VirtualMachines loads the distinct (name, location) keys of the VM
// inventory with their characteristics. The first row of a key supplies
// memory, vCPU and GPU values.
func (r *ResourceRepository) VirtualMachines(ctx context.Context) ([]pricing.VirtualMachine, error) {
	start := time.Now()
	table := sku.TableName(sku.TypeVirtualMachines)
	defer func() { metrics.RecordDBQuery("select", table, time.Since(start)) }()

	query := fmt.Sprintf(`
		SELECT name, locations, memorygb, vcpus, gpus
		FROM %s
		WHERE name IS NOT NULL AND locations IS NOT NULL
		ORDER BY id
	`, r.db.Dialect.Quote(table))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query virtual machine inventory: %w", err)
	}
	defer rows.Close()

	type key struct{ name, location string }
	seen := make(map[key]bool)
	var vms []pricing.VirtualMachine
	for rows.Next() {
		var vm pricing.VirtualMachine
		if err := rows.Scan(&vm.Name, &vm.Location, &vm.MemoryGB, &vm.VCPUs, &vm.GPUs); err != nil {
			return nil, fmt.Errorf("failed to scan virtual machine: %w", err)
		}
		k := key{vm.Name, vm.Location}
		if seen[k] {
			continue
		}
		seen[k] = true
		vms = append(vms, vm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate virtual machines: %w", err)
	}
	return vms, nil
}
