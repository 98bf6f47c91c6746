package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

const ratesTable = "azure_rates"

// RatesTable is the azure_rates load definition
var RatesTable = TableDef{Name: ratesTable, Columns: textColumns(rates.Columns)}

// RatesRepository implements rates.Repository and pricing.RateReader
type RatesRepository struct {
	db        *DB
	refresher *Refresher
}

// NewRatesRepository creates a new rates repository
func NewRatesRepository(db *DB, refresher *Refresher) *RatesRepository {
	return &RatesRepository{db: db, refresher: refresher}
}

// Replace atomically swaps the table content for records
func (r *RatesRepository) Replace(ctx context.Context, records []rates.Record) error {
	args := make([][]any, len(records))
	for i := range records {
		args[i] = records[i].Args()
	}
	return r.refresher.Refresh(ctx, RatesTable, args)
}

// Count returns the number of stored records
func (r *RatesRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ratesTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rates: %w", err)
	}
	return n, nil
}

// MatchingRates loads the rate records whose (arm_sku_name, arm_region_name)
// appears in the virtual machine inventory
func (r *RatesRepository) MatchingRates(ctx context.Context) ([]rates.Record, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", ratesTable, time.Since(start)) }()

	query := fmt.Sprintf(`
		SELECT %s
		FROM azure_rates r
		WHERE EXISTS (
			SELECT 1 FROM %s vm
			WHERE vm.name = r.arm_sku_name AND vm.locations = r.arm_region_name
		)
	`, "r."+strings.Join(rates.Columns, ", r."), r.db.Dialect.Quote(sku.TableName(sku.TypeVirtualMachines)))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query matching rates: %w", err)
	}
	defer rows.Close()

	var out []rates.Record
	for rows.Next() {
		var rec rates.Record
		if err := rows.Scan(
			&rec.CurrencyCode,
			&rec.TierMinimumUnits,
			&rec.ReservationTerm,
			&rec.RetailPrice,
			&rec.UnitPrice,
			&rec.ARMRegionName,
			&rec.Location,
			&rec.EffectiveStartDate,
			&rec.MeterID,
			&rec.MeterName,
			&rec.ProductID,
			&rec.SkuID,
			&rec.ProductName,
			&rec.SkuName,
			&rec.ServiceName,
			&rec.ServiceID,
			&rec.ServiceFamily,
			&rec.UnitOfMeasure,
			&rec.Type,
			&rec.IsPrimaryMeterRegion,
			&rec.ARMSkuName,
			&rec.SavingsPlan3Y.UnitPrice,
			&rec.SavingsPlan3Y.RetailPrice,
			&rec.SavingsPlan3Y.Term,
			&rec.SavingsPlan1Y.UnitPrice,
			&rec.SavingsPlan1Y.RetailPrice,
			&rec.SavingsPlan1Y.Term,
			&rec.RunTimestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rates: %w", err)
	}
	return out, nil
}

// textColumns builds column definitions for tables created by migrations,
// where only the names matter for loading
func textColumns(names []string) []sku.Column {
	cols := make([]sku.Column, len(names))
	for i, n := range names {
		cols[i] = sku.Column{Name: n, Type: sku.FieldText}
	}
	return cols
}
