package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
)

// RunRepository implements run.Repository
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new pipeline run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save inserts or updates a run report
func (r *RunRepository) Save(ctx context.Context, report *run.Report) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	stages := report.Stages
	if stages == nil {
		stages = []run.StageResult{}
	}
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	var completedAt any
	if report.CompletedAt != nil {
		completedAt = report.CompletedAt.UTC()
	}

	query := `
		INSERT INTO pipeline_runs (id, trigger_source, status, run_timestamp, started_at, completed_at, stages)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			stages = excluded.stages
	`
	_, err = r.db.ExecContext(ctx, r.db.Dialect.Rebind(query),
		report.ID.String(),
		string(report.Trigger),
		string(report.Status),
		report.RunTimestamp.UTC(),
		report.StartedAt.UTC(),
		completedAt,
		string(stagesJSON),
	)
	if err != nil {
		return apperrors.DatabaseError("failed to save pipeline run", err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*run.Report, error) {
	query := `
		SELECT id, trigger_source, status, run_timestamp, started_at, completed_at, stages
		FROM pipeline_runs
		WHERE id = ?
	`
	report, err := scanRun(r.db.QueryRowContext(ctx, r.db.Dialect.Rebind(query), id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("pipeline run")
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to get pipeline run", err)
	}
	return report, nil
}

// List retrieves runs, newest first
func (r *RunRepository) List(ctx context.Context, filter run.Filter) ([]*run.Report, int64, error) {
	var where string
	var args []any
	if filter.Status != "" {
		where, args = and(where, "status = ?"), append(args, string(filter.Status))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, r.db.Dialect.Rebind("SELECT COUNT(*) FROM pipeline_runs"+where), args...).Scan(&total); err != nil {
		return nil, 0, apperrors.DatabaseError("failed to count pipeline runs", err)
	}

	query := `SELECT id, trigger_source, status, run_timestamp, started_at, completed_at, stages
		FROM pipeline_runs` + where + ` ORDER BY started_at DESC`
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, r.db.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, 0, apperrors.DatabaseError("failed to list pipeline runs", err)
	}
	defer rows.Close()

	var reports []*run.Report
	for rows.Next() {
		report, err := scanRun(rows)
		if err != nil {
			return nil, 0, apperrors.DatabaseError("failed to scan pipeline run", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.DatabaseError("failed to iterate pipeline runs", err)
	}
	return reports, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*run.Report, error) {
	var (
		report      run.Report
		id          string
		trigger     string
		status      string
		completedAt sql.NullTime
		stages      string
	)
	if err := s.Scan(&id, &trigger, &status, &report.RunTimestamp, &report.StartedAt, &completedAt, &stages); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	report.ID = parsed
	report.Trigger = run.Trigger(trigger)
	report.Status = run.Status(status)
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		report.CompletedAt = &t
	}
	report.RunTimestamp = report.RunTimestamp.UTC()
	report.StartedAt = report.StartedAt.UTC()
	if err := json.Unmarshal([]byte(stages), &report.Stages); err != nil {
		return nil, fmt.Errorf("invalid stages for run %s: %w", id, err)
	}
	return &report, nil
}
