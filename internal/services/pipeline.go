package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	"github.com/pratik-mahalle/skuprice/internal/extractor"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
	"github.com/pratik-mahalle/skuprice/internal/providers"
)

// ErrRunInProgress is returned when a run is triggered while another is active
var ErrRunInProgress = apperrors.Conflict("a pipeline run is already in progress")

// RateFetcher downloads the full retail price list
type RateFetcher interface {
	FetchRates(ctx context.Context, runAt time.Time) ([]rates.Record, error)
}

// PipelineConfig contains run options
type PipelineConfig struct {
	SubscriptionID string
	// ResourceTypes limits the harvested types; empty means every registered type
	ResourceTypes     []string
	RateStageAttempts int
}

// PipelineDeps are the collaborators a pipeline drives
type PipelineDeps struct {
	Registry  *sku.Registry
	Source    providers.SKUSource
	Extractor *extractor.Extractor
	Resources sku.Repository
	Fetcher   RateFetcher
	Rates     rates.Repository
	Engine    *PricingEngine
	History   *HistoryRecorder
	Runs      run.Repository
}

// Pipeline runs the harvest stages in order: resource tables, rates, pricing,
// history. Only one run is active at a time.
type Pipeline struct {
	cfg  PipelineConfig
	deps PipelineDeps

	logger *logger.Logger
	now    func() time.Time

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewPipeline creates a new pipeline
func NewPipeline(cfg PipelineConfig, deps PipelineDeps, log *logger.Logger) *Pipeline {
	if cfg.RateStageAttempts < 1 {
		cfg.RateStageAttempts = 1
	}
	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithComponent("pipeline"),
		now:    time.Now,
	}
}

// SetClock replaces the time source used for run timestamps
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Run executes one pipeline run and blocks until it finishes. When the
// context is cancelled the remaining stages are reported cancelled and the
// context error is returned along with the report.
func (p *Pipeline) Run(ctx context.Context, trigger run.Trigger) (*run.Report, error) {
	report, err := p.start(trigger)
	if err != nil {
		return nil, err
	}
	defer p.mu.Unlock()

	p.execute(ctx, report)
	if report.Status == run.StatusCancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// RunAsync starts a run in the background and returns its initial report.
// The run is detached from ctx cancellation.
func (p *Pipeline) RunAsync(ctx context.Context, trigger run.Trigger) (*run.Report, error) {
	report, err := p.start(trigger)
	if err != nil {
		return nil, err
	}
	initial := *report

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.mu.Unlock()
		p.execute(context.WithoutCancel(ctx), report)
	}()
	return &initial, nil
}

// Wait blocks until background runs have finished
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) start(trigger run.Trigger) (*run.Report, error) {
	if !p.mu.TryLock() {
		metrics.RecordRunSkipped()
		p.logger.With("trigger", string(trigger)).Warn("Pipeline run skipped, another run is in progress")
		return nil, ErrRunInProgress
	}
	now := p.now().UTC()
	return &run.Report{
		ID:           uuid.New(),
		Trigger:      trigger,
		Status:       run.StatusRunning,
		RunTimestamp: now,
		StartedAt:    now,
		Stages:       []run.StageResult{},
	}, nil
}

func (p *Pipeline) execute(ctx context.Context, report *run.Report) {
	log := p.logger.WithFields(map[string]interface{}{
		"run_id":  report.ID.String(),
		"trigger": string(report.Trigger),
	})
	log.Info("Pipeline run started")
	p.save(ctx, report)

	runAt := report.RunTimestamp
	registerErr := p.deps.Source.Register(ctx)
	if registerErr != nil {
		log.ErrorWithErr(registerErr, "SKU source registration failed")
	}

	for _, resourceType := range p.resourceTypes() {
		p.stage(ctx, report, run.ResourceStage(resourceType), func(ctx context.Context) (int, int, error) {
			if registerErr != nil {
				return 0, 1, registerErr
			}
			n, err := p.refreshResources(ctx, resourceType, runAt)
			return n, 1, err
		})
	}

	p.stage(ctx, report, run.StageRates, func(ctx context.Context) (int, int, error) {
		return p.refreshRates(ctx, runAt)
	})

	vmStage := run.ResourceStage(sku.TypeVirtualMachines)
	if !p.committed(report, vmStage) || !p.committed(report, run.StageRates) {
		p.skip(ctx, report, run.StagePricing, "virtual machine or rate refresh did not commit")
	} else {
		p.stage(ctx, report, run.StagePricing, func(ctx context.Context) (int, int, error) {
			n, err := p.deps.Engine.Derive(ctx)
			return n, 1, err
		})
	}

	if !p.committed(report, run.StagePricing) {
		p.skip(ctx, report, run.StageHistory, "pricing derivation did not commit")
	} else {
		p.stage(ctx, report, run.StageHistory, func(ctx context.Context) (int, int, error) {
			n, err := p.deps.History.Snapshot(ctx, runAt)
			return int(n), 1, err
		})
	}

	p.finish(ctx, report)
	log.WithFields(map[string]interface{}{
		"status":   string(report.Status),
		"duration": report.CompletedAt.Sub(report.StartedAt).String(),
	}).Info("Pipeline run finished")
}

func (p *Pipeline) resourceTypes() []string {
	if len(p.cfg.ResourceTypes) > 0 {
		return p.cfg.ResourceTypes
	}
	return p.deps.Registry.Types()
}

func (p *Pipeline) refreshResources(ctx context.Context, resourceType string, runAt time.Time) (int, error) {
	schema, err := p.deps.Registry.SchemaFor(resourceType)
	if err != nil {
		return 0, err
	}
	if err := p.deps.Resources.EnsureTable(ctx, schema); err != nil {
		return 0, err
	}

	records, err := p.deps.Source.ListSKUs(ctx, providers.SKUQuery{
		SubscriptionID: p.cfg.SubscriptionID,
		ResourceType:   resourceType,
	})
	if err != nil {
		return 0, err
	}

	res, err := p.deps.Extractor.ExtractAll(ctx, records, schema, runAt)
	if err != nil {
		return 0, err
	}
	if err := p.deps.Resources.Replace(ctx, schema, res.Rows); err != nil {
		return 0, err
	}

	p.logger.WithFields(map[string]interface{}{
		"resource_type": resourceType,
		"records":       len(records),
		"rows":          len(res.Rows),
		"field_errors":  len(res.FieldErrors),
		"rejected":      res.Rejected,
	}).Info("Resource table refreshed")
	return len(res.Rows), nil
}

// refreshRates fetches and stores the price list, repeating the whole fetch
// when a page could not be retrieved
func (p *Pipeline) refreshRates(ctx context.Context, runAt time.Time) (int, int, error) {
	var (
		records []rates.Record
		err     error
	)
	attempt := 0
	for attempt < p.cfg.RateStageAttempts {
		attempt++
		records, err = p.deps.Fetcher.FetchRates(ctx, runAt)
		if err == nil || !apperrors.HasCode(err, apperrors.ErrCodeFetchFailed) || ctx.Err() != nil {
			break
		}
		p.logger.WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": p.cfg.RateStageAttempts,
		}).WarnWithErr(err, "Rate fetch failed")
	}
	if err != nil {
		return 0, attempt, err
	}
	if err := p.deps.Rates.Replace(ctx, records); err != nil {
		return 0, attempt, err
	}
	return len(records), attempt, nil
}

// stage runs fn unless the context is already done, and records the outcome
func (p *Pipeline) stage(ctx context.Context, report *run.Report, name string, fn func(context.Context) (int, int, error)) {
	if ctx.Err() != nil {
		p.record(report, run.StageResult{Stage: name, Status: run.StatusCancelled, Error: ctx.Err().Error()}, 0)
		return
	}

	start := time.Now()
	rows, attempts, err := fn(ctx)
	result := run.StageResult{Stage: name, Status: run.StatusCompleted, Rows: rows, Attempts: attempts}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Status = run.StatusCancelled
		result.Rows = 0
		result.Error = err.Error()
	default:
		result.Status = run.StatusFailed
		result.Rows = 0
		result.ErrorCode = apperrors.Code(err)
		result.Error = err.Error()
		p.logger.With("stage", name).ErrorWithErr(err, "Pipeline stage failed")
	}
	p.record(report, result, time.Since(start))
	p.save(ctx, report)
}

func (p *Pipeline) skip(ctx context.Context, report *run.Report, name, reason string) {
	status := run.StatusSkipped
	if ctx.Err() != nil {
		status = run.StatusCancelled
		reason = ctx.Err().Error()
	}
	p.record(report, run.StageResult{Stage: name, Status: status, Error: reason}, 0)
}

func (p *Pipeline) record(report *run.Report, result run.StageResult, d time.Duration) {
	result.DurationMs = d.Milliseconds()
	report.Stages = append(report.Stages, result)
	metrics.RecordStage(result.Stage, string(result.Status), d)
}

func (p *Pipeline) committed(report *run.Report, stage string) bool {
	s, ok := report.Stage(stage)
	return ok && s.Status == run.StatusCompleted
}

func (p *Pipeline) finish(ctx context.Context, report *run.Report) {
	completed, failed := 0, 0
	for _, s := range report.Stages {
		switch s.Status {
		case run.StatusCompleted:
			completed++
		case run.StatusFailed:
			failed++
		}
	}

	switch {
	case ctx.Err() != nil:
		report.Status = run.StatusCancelled
	case failed > 0 && completed == 0:
		report.Status = run.StatusFailed
	case failed > 0:
		report.Status = run.StatusPartial
	default:
		report.Status = run.StatusCompleted
	}

	now := p.now().UTC()
	report.CompletedAt = &now
	p.save(ctx, report)
	metrics.RecordRun(string(report.Trigger), string(report.Status))
}

// save persists the report. It ignores cancellation so that cancelled runs
// are still recorded.
func (p *Pipeline) save(ctx context.Context, report *run.Report) {
	if p.deps.Runs == nil {
		return
	}
	if err := p.deps.Runs.Save(context.WithoutCancel(ctx), report); err != nil {
		p.logger.WithError(err).Warn("Failed to persist pipeline run")
	}
}
