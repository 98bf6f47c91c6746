package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

const (
	pricingTable = "vm_pricing"
	historyTable = "vm_pricing_history"
)

// PricingTable is the vm_pricing load definition
var PricingTable = TableDef{Name: pricingTable, Columns: textColumns(pricing.Columns())}

// PricingRepository implements pricing.Repository
type PricingRepository struct {
	db        *DB
	refresher *Refresher
}

// NewPricingRepository creates a new pricing repository
func NewPricingRepository(db *DB, refresher *Refresher) *PricingRepository {
	return &PricingRepository{db: db, refresher: refresher}
}

// Replace atomically swaps the table content for rows
func (r *PricingRepository) Replace(ctx context.Context, rows []pricing.Row) error {
	args := make([][]any, len(rows))
	for i := range rows {
		args[i] = rows[i].Args()
	}
	return r.refresher.Refresh(ctx, PricingTable, args)
}

// List retrieves pricing rows ordered by location, name
func (r *PricingRepository) List(ctx context.Context, filter pricing.Filter) ([]pricing.Row, int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", pricingTable, time.Since(start)) }()

	where, args := keyFilter(filter.Name, filter.Location)

	var total int64
	countQuery := r.db.Dialect.Rebind("SELECT COUNT(*) FROM " + pricingTable + where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count pricing rows: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY location ASC, name ASC",
		strings.Join(pricing.Columns(), ", "), pricingTable, where)
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pricing rows: %w", err)
	}
	defer rows.Close()

	var out []pricing.Row
	for rows.Next() {
		var row pricing.Row
		if err := rows.Scan(row.ScanTargets()...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan pricing row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate pricing rows: %w", err)
	}
	return out, total, nil
}

// HistoryRepository implements pricing.HistoryRepository
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new pricing history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AppendSnapshot copies every vm_pricing row into vm_pricing_history stamped
// with runAt. Existing history is never touched.
func (r *HistoryRepository) AppendSnapshot(ctx context.Context, runAt time.Time) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", historyTable, time.Since(start)) }()

	cols := strings.Join(pricing.Columns(), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s, run_timestamp) SELECT %s, ? FROM %s",
		historyTable, cols, cols, pricingTable)

	res, err := r.db.ExecContext(ctx, r.db.Dialect.Rebind(query), runAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to append pricing snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot size: %w", err)
	}
	return n, nil
}

// List retrieves history entries, newest run first
func (r *HistoryRepository) List(ctx context.Context, filter pricing.HistoryFilter) ([]pricing.HistoryEntry, int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", historyTable, time.Since(start)) }()

	where, args := keyFilter(filter.Name, filter.Location)
	if filter.Since != nil {
		where, args = and(where, "run_timestamp >= ?"), append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		where, args = and(where, "run_timestamp < ?"), append(args, filter.Until.UTC())
	}

	var total int64
	countQuery := r.db.Dialect.Rebind("SELECT COUNT(*) FROM " + historyTable + where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history rows: %w", err)
	}

	query := fmt.Sprintf("SELECT %s, run_timestamp FROM %s%s ORDER BY run_timestamp DESC, location ASC, name ASC",
		strings.Join(pricing.Columns(), ", "), historyTable, where)
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history rows: %w", err)
	}
	defer rows.Close()

	var out []pricing.HistoryEntry
	for rows.Next() {
		var e pricing.HistoryEntry
		if err := rows.Scan(append(e.ScanTargets(), &e.RunTimestamp)...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return out, total, nil
}

func keyFilter(name, location string) (string, []any) {
	var where string
	var args []any
	if name != "" {
		where, args = and(where, "name = ?"), append(args, name)
	}
	if location != "" {
		where, args = and(where, "location = ?"), append(args, location)
	}
	return where, args
}

func and(where, clause string) string {
	if where == "" {
		return " WHERE " + clause
	}
	return where + " AND " + clause
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 {
		return query, args
	}
	query += " LIMIT ? OFFSET ?"
	return query, append(args, limit, offset)
}
