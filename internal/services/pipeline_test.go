package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	"github.com/pratik-mahalle/skuprice/internal/extractor"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/repository/postgres"
	"github.com/pratik-mahalle/skuprice/internal/testutil"
)

const d2sRecord = `{
	"capabilities": [
		{"name": "MemoryGB", "value": "8"},
		{"name": "vCPUs", "value": "2"}
	],
	"locations": ["eastus"],
	"name": "Standard_D2s_v3",
	"resourceType": "virtualMachines",
	"size": "D2s_v3",
	"tier": "Standard"
}`

const diskRecord = `{
	"capabilities": [{"name": "MaxSizeGiB", "value": "4"}],
	"locations": ["eastus"],
	"name": "Premium_LRS",
	"resourceType": "disks"
}`

type harness struct {
	pipeline *Pipeline
	source   *testutil.MockSKUSource
	fetcher  *testutil.MockRateFetcher
	rates    *postgres.RatesRepository
	pricing  *postgres.PricingRepository
	history  *postgres.HistoryRepository
	runs     *postgres.RunRepository
}

func newHarness(t *testing.T, cfg PipelineConfig) *harness {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := testutil.NewTestLogger()
	refresher := postgres.NewRefresher(db, log)
	resources := postgres.NewResourceRepository(db, refresher)
	rateRepo := postgres.NewRatesRepository(db, refresher)
	pricingRepo := postgres.NewPricingRepository(db, refresher)
	historyRepo := postgres.NewHistoryRepository(db)
	runRepo := postgres.NewRunRepository(db)

	source := testutil.NewMockSKUSource(map[string][]json.RawMessage{
		sku.TypeVirtualMachines: {json.RawMessage(d2sRecord)},
		sku.TypeDisks:           {json.RawMessage(diskRecord)},
	})
	fetcher := &testutil.MockRateFetcher{Records: []rates.Record{
		rate(rates.TypeConsumption, linuxProduct, "D2s v3", "0.10"),
		rate(rates.TypeConsumption, windowsProduct, "D2s v3", "0.15"),
		rate(rates.TypeConsumption, linuxProduct, "B1", "0.50"),
	}}
	fetcher.Records[2].ARMSkuName = testutil.StrPtr("Standard_B1s")

	if cfg.RateStageAttempts == 0 {
		cfg.RateStageAttempts = 2
	}
	p := NewPipeline(cfg, PipelineDeps{
		Registry:  sku.DefaultRegistry(),
		Source:    source,
		Extractor: extractor.New(log, 4),
		Resources: resources,
		Fetcher:   fetcher,
		Rates:     rateRepo,
		Engine:    NewPricingEngine(resources, rateRepo, pricingRepo, log),
		History:   NewHistoryRecorder(historyRepo, log),
		Runs:      runRepo,
	}, log)

	var mu sync.Mutex
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Hour)
		return clock
	})

	return &harness{
		pipeline: p,
		source:   source,
		fetcher:  fetcher,
		rates:    rateRepo,
		pricing:  pricingRepo,
		history:  historyRepo,
		runs:     runRepo,
	}
}

func stageStatus(t *testing.T, report *run.Report, name string) run.StageResult {
	t.Helper()
	s, ok := report.Stage(name)
	if !ok {
		t.Fatalf("stage %s not reported", name)
	}
	return s
}

func TestPipeline_Run(t *testing.T) {
	h := newHarness(t, PipelineConfig{})
	ctx := context.Background()

	report, err := h.pipeline.Run(ctx, run.TriggerManual)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != run.StatusCompleted {
		t.Fatalf("Run() status = %s, stages = %+v", report.Status, report.Stages)
	}
	if got := len(report.Stages); got != len(sku.DefaultRegistry().Types())+3 {
		t.Errorf("reported %d stages", got)
	}
	if s := stageStatus(t, report, run.ResourceStage(sku.TypeVirtualMachines)); s.Rows != 1 {
		t.Errorf("virtual machine rows = %d, want 1", s.Rows)
	}
	if s := stageStatus(t, report, run.StageRates); s.Rows != 3 || s.Attempts != 1 {
		t.Errorf("rates stage = %+v", s)
	}
	if h.source.RegisterCalls != 1 {
		t.Errorf("Register called %d times, want 1", h.source.RegisterCalls)
	}

	rows, total, err := h.pricing.List(ctx, pricing.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("pricing rows = %d (total %d), want 1", len(rows), total)
	}
	row := rows[0]
	if row.Name != "Standard_D2s_v3" || row.Location != "eastus" {
		t.Errorf("pricing key = %s/%s", row.Name, row.Location)
	}
	if !row.LinuxOnDemand.Decimal.Equal(decimal.RequireFromString("0.10")) ||
		!row.WindowsOnDemand.Decimal.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("on-demand prices = %v / %v", row.LinuxOnDemand, row.WindowsOnDemand)
	}
	if row.LinuxSpot.Valid || row.LinuxReservation1Y.Valid {
		t.Error("unmatched columns should be NULL")
	}
	if *row.VCPUs != 2 {
		t.Errorf("vcpus = %d", *row.VCPUs)
	}

	saved, err := h.runs.Get(ctx, report.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if saved.Status != run.StatusCompleted || len(saved.Stages) != len(report.Stages) {
		t.Errorf("saved run = %s with %d stages", saved.Status, len(saved.Stages))
	}
}

func TestPipeline_HistoryAccumulates(t *testing.T) {
	h := newHarness(t, PipelineConfig{})
	ctx := context.Background()

	first, err := h.pipeline.Run(ctx, run.TriggerSchedule)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := h.pipeline.Run(ctx, run.TriggerSchedule)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if first.RunTimestamp.Equal(second.RunTimestamp) {
		t.Fatal("runs share a timestamp")
	}

	entries, total, err := h.history.List(ctx, pricing.HistoryFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("history rows = %d, want 2", total)
	}
	if !entries[0].RunTimestamp.Equal(second.RunTimestamp) || !entries[1].RunTimestamp.Equal(first.RunTimestamp) {
		t.Errorf("history timestamps = %v, %v", entries[0].RunTimestamp, entries[1].RunTimestamp)
	}
}

func TestPipeline_RunInProgress(t *testing.T) {
	h := newHarness(t, PipelineConfig{ResourceTypes: []string{sku.TypeVirtualMachines}})
	h.source.Block = make(chan struct{})
	h.source.Entered = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := h.pipeline.Run(context.Background(), run.TriggerSchedule)
		done <- err
	}()
	<-h.source.Entered

	if _, err := h.pipeline.Run(context.Background(), run.TriggerManual); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrRunInProgress", err)
	}
	if _, err := h.pipeline.RunAsync(context.Background(), run.TriggerManual); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent RunAsync() error = %v, want ErrRunInProgress", err)
	}

	close(h.source.Block)
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := h.pipeline.Run(context.Background(), run.TriggerManual); err != nil {
		t.Errorf("Run() after completion error = %v", err)
	}
}

func TestPipeline_RunAsync(t *testing.T) {
	h := newHarness(t, PipelineConfig{})

	initial, err := h.pipeline.RunAsync(context.Background(), run.TriggerManual)
	if err != nil {
		t.Fatalf("RunAsync() error = %v", err)
	}
	if initial.Status != run.StatusRunning {
		t.Errorf("initial status = %s", initial.Status)
	}
	h.pipeline.Wait()

	saved, err := h.runs.Get(context.Background(), initial.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if saved.Status != run.StatusCompleted {
		t.Errorf("saved status = %s", saved.Status)
	}
}

func TestPipeline_UnknownResourceType(t *testing.T) {
	h := newHarness(t, PipelineConfig{ResourceTypes: []string{"galleries", sku.TypeVirtualMachines}})

	report, err := h.pipeline.Run(context.Background(), run.TriggerManual)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != run.StatusPartial {
		t.Errorf("status = %s, want partial", report.Status)
	}
	bad := stageStatus(t, report, run.ResourceStage("galleries"))
	if bad.Status != run.StatusFailed || bad.ErrorCode != apperrors.ErrCodeUnknownResourceType {
		t.Errorf("unknown type stage = %+v", bad)
	}
	if s := stageStatus(t, report, run.ResourceStage(sku.TypeVirtualMachines)); s.Status != run.StatusCompleted {
		t.Errorf("virtual machine stage = %+v", s)
	}
	if s := stageStatus(t, report, run.StageHistory); s.Status != run.StatusCompleted {
		t.Errorf("history stage = %+v", s)
	}
}

func TestPipeline_RateFetchFailed(t *testing.T) {
	h := newHarness(t, PipelineConfig{})
	ctx := context.Background()

	if _, err := h.pipeline.Run(ctx, run.TriggerManual); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	before, err := h.rates.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}

	fetchErr := apperrors.FetchFailed("https://prices.example/api", fmt.Errorf("503"))
	h.fetcher.Errs = []error{fetchErr, fetchErr}
	h.fetcher.Calls = 0

	report, err := h.pipeline.Run(ctx, run.TriggerManual)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	rs := stageStatus(t, report, run.StageRates)
	if rs.Status != run.StatusFailed || rs.ErrorCode != apperrors.ErrCodeFetchFailed || rs.Attempts != 2 {
		t.Errorf("rates stage = %+v", rs)
	}
	if h.fetcher.Calls != 2 {
		t.Errorf("FetchRates called %d times, want 2", h.fetcher.Calls)
	}
	if s := stageStatus(t, report, run.StagePricing); s.Status != run.StatusSkipped {
		t.Errorf("pricing stage = %+v, want skipped", s)
	}
	if s := stageStatus(t, report, run.StageHistory); s.Status != run.StatusSkipped {
		t.Errorf("history stage = %+v, want skipped", s)
	}

	after, err := h.rates.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if after != before {
		t.Errorf("azure_rates rows = %d, want previous %d", after, before)
	}
}

func TestPipeline_RateFetchRecovers(t *testing.T) {
	h := newHarness(t, PipelineConfig{RateStageAttempts: 3})
	h.fetcher.Errs = []error{apperrors.FetchFailed("https://prices.example/api", fmt.Errorf("timeout"))}

	report, err := h.pipeline.Run(context.Background(), run.TriggerManual)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	rs := stageStatus(t, report, run.StageRates)
	if rs.Status != run.StatusCompleted || rs.Attempts != 2 {
		t.Errorf("rates stage = %+v", rs)
	}
}

func TestPipeline_RegisterFailure(t *testing.T) {
	h := newHarness(t, PipelineConfig{})
	h.source.RegisterErr = apperrors.ProviderAPIError("azure", fmt.Errorf("forbidden"))

	report, err := h.pipeline.Run(context.Background(), run.TriggerManual)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, typ := range sku.DefaultRegistry().Types() {
		if s := stageStatus(t, report, run.ResourceStage(typ)); s.ErrorCode != apperrors.ErrCodeProviderAPI {
			t.Errorf("%s stage = %+v", typ, s)
		}
	}
	if s := stageStatus(t, report, run.StageRates); s.Status != run.StatusCompleted {
		t.Errorf("rates stage = %+v", s)
	}
	if s := stageStatus(t, report, run.StagePricing); s.Status != run.StatusSkipped {
		t.Errorf("pricing stage = %+v", s)
	}
	if report.Status != run.StatusPartial {
		t.Errorf("status = %s, want partial", report.Status)
	}
}

func TestPipeline_Cancelled(t *testing.T) {
	h := newHarness(t, PipelineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.pipeline.Run(ctx, run.TriggerManual)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if report.Status != run.StatusCancelled {
		t.Errorf("status = %s", report.Status)
	}
	for _, s := range report.Stages {
		if s.Status != run.StatusCancelled {
			t.Errorf("stage %s = %s, want cancelled", s.Stage, s.Status)
		}
	}

	saved, err := h.runs.Get(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if saved.Status != run.StatusCancelled {
		t.Errorf("saved status = %s", saved.Status)
	}
}
