package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

// TableDef names a table and its loadable columns
type TableDef struct {
	Name    string
	Columns []sku.Column
}

// ColumnNames returns the column names in order
func (t TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Refresher replaces table content wholesale inside one transaction, so
// readers see either the previous content or the new content.
type Refresher struct {
	db     *DB
	logger *logger.Logger
}

// NewRefresher creates a new table refresher
func NewRefresher(db *DB, log *logger.Logger) *Refresher {
	return &Refresher{db: db, logger: log.WithComponent("refresher")}
}

// EnsureTable creates the table if it does not exist
func (r *Refresher) EnsureTable(ctx context.Context, def TableDef) error {
	d := r.db.Dialect
	defs := make([]string, 0, len(def.Columns)+1)
	defs = append(defs, d.SerialPrimaryKey())
	for _, c := range def.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", d.Quote(c.Name), d.ColumnType(c.Type)))
	}
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.Quote(def.Name), strings.Join(defs, ",\n\t"))

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return apperrors.DatabaseError(fmt.Sprintf("failed to create table %s", def.Name), err)
	}
	return nil
}

// Refresh deletes every row of the table and inserts rows in order. Each row
// must carry one value per column. Any failure, including cancellation,
// rolls the table back to its previous content.
func (r *Refresher) Refresh(ctx context.Context, def TableDef, rows [][]any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("refresh", def.Name, time.Since(start))
	}()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.RefreshTransaction(def.Name, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				r.logger.WithFields(map[string]interface{}{"table": def.Name}).
					ErrorWithErr(rbErr, "rollback failed")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+r.db.Dialect.Quote(def.Name)); err != nil {
		return apperrors.RefreshTransaction(def.Name, err)
	}

	if err = r.insert(ctx, tx, def, rows); err != nil {
		return apperrors.RefreshTransaction(def.Name, err)
	}

	if err = tx.Commit(); err != nil {
		return apperrors.RefreshTransaction(def.Name, err)
	}

	metrics.SetRowsRefreshed(def.Name, len(rows))
	r.logger.WithFields(map[string]interface{}{
		"table":       def.Name,
		"rows":        len(rows),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("table refreshed")
	return nil
}

func (r *Refresher) insert(ctx context.Context, tx *sql.Tx, def TableDef, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	cols := def.ColumnNames()

	var query string
	if r.db.Dialect == DialectPostgres {
		query = pq.CopyIn(def.Name, cols...)
	} else {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = r.db.Dialect.Quote(c)
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			r.db.Dialect.Quote(def.Name),
			strings.Join(quoted, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(cols) {
			return fmt.Errorf("row %d has %d values, table has %d columns", i, len(row), len(cols))
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if r.db.Dialect == DialectPostgres {
		// An argument-less Exec flushes the COPY buffer
		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("flush copy: %w", err)
		}
	}
	return nil
}
