package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/repository/postgres"
	"github.com/pratik-mahalle/skuprice/internal/testutil"
)

func pricingRow(name, location, linux string) pricing.Row {
	return pricing.Row{
		Name:           name,
		Location:       location,
		InstanceMemory: decimal.NewNullDecimal(decimal.NewFromInt(4)),
		VCPUs:          testutil.Int64Ptr(2),
		LinuxOnDemand:  decimal.NewNullDecimal(decimal.RequireFromString(linux)),
	}
}

func TestPricingRepository_ReplaceAndList(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := postgres.NewPricingRepository(db, postgres.NewRefresher(db, testutil.NewTestLogger()))
	ctx := context.Background()

	rows := []pricing.Row{
		pricingRow("Standard_B2s", "westus", "0.04"),
		pricingRow("Standard_A1", "westus", "0.02"),
		pricingRow("Standard_D2s_v3", "eastus", "0.10"),
	}
	if err := repo.Replace(ctx, rows); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	tests := []struct {
		name      string
		filter    pricing.Filter
		wantNames []string
		wantTotal int64
	}{
		{name: "all ordered by location then name", filter: pricing.Filter{}, wantNames: []string{"Standard_D2s_v3", "Standard_A1", "Standard_B2s"}, wantTotal: 3},
		{name: "by location", filter: pricing.Filter{Location: "westus"}, wantNames: []string{"Standard_A1", "Standard_B2s"}, wantTotal: 2},
		{name: "by name", filter: pricing.Filter{Name: "Standard_A1"}, wantNames: []string{"Standard_A1"}, wantTotal: 1},
		{name: "paginated", filter: pricing.Filter{Limit: 1, Offset: 1}, wantNames: []string{"Standard_A1"}, wantTotal: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("List() total = %d, want %d", total, tt.wantTotal)
			}
			if len(got) != len(tt.wantNames) {
				t.Fatalf("List() returned %d rows, want %d", len(got), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if got[i].Name != name {
					t.Errorf("row %d = %s, want %s", i, got[i].Name, name)
				}
			}
		})
	}

	got, _, err := repo.List(ctx, pricing.Filter{Name: "Standard_D2s_v3"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	row := got[0]
	if !row.LinuxOnDemand.Decimal.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("linux_on_demand_cost = %v", row.LinuxOnDemand)
	}
	if row.WindowsOnDemand.Valid || row.GPUs != nil {
		t.Error("unset columns should scan as NULL")
	}
	if row.VCPUs == nil || *row.VCPUs != 2 {
		t.Errorf("vcpus = %v", row.VCPUs)
	}
}

func TestHistoryRepository_AppendSnapshot(t *testing.T) {
	db := testutil.NewTestDB(t)
	pricingRepo := postgres.NewPricingRepository(db, postgres.NewRefresher(db, testutil.NewTestLogger()))
	history := postgres.NewHistoryRepository(db)
	ctx := context.Background()

	rows := []pricing.Row{
		pricingRow("Standard_A1", "westus", "0.02"),
		pricingRow("Standard_D2s_v3", "eastus", "0.10"),
	}
	if err := pricingRepo.Replace(ctx, rows); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	first := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)
	for _, ts := range []time.Time{first, second} {
		n, err := history.AppendSnapshot(ctx, ts)
		if err != nil {
			t.Fatalf("AppendSnapshot() error = %v", err)
		}
		if n != int64(len(rows)) {
			t.Errorf("AppendSnapshot() = %d rows, want %d", n, len(rows))
		}
	}

	entries, total, err := history.List(ctx, pricing.HistoryFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 4 || len(entries) != 4 {
		t.Fatalf("history rows = %d, want 4", total)
	}
	perRun := map[time.Time]int{}
	for _, e := range entries {
		perRun[e.RunTimestamp.UTC()]++
	}
	if perRun[first] != 2 || perRun[second] != 2 {
		t.Errorf("rows per run = %v", perRun)
	}
	if !entries[0].RunTimestamp.Equal(second) {
		t.Errorf("newest entry = %v, want %v", entries[0].RunTimestamp, second)
	}

	since := second
	recent, total, err := history.List(ctx, pricing.HistoryFilter{Since: &since, Location: "eastus"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(recent) != 1 || recent[0].Name != "Standard_D2s_v3" {
		t.Errorf("filtered history = %+v (total %d)", recent, total)
	}
}

func TestRunRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := postgres.NewRunRepository(db)
	ctx := context.Background()

	started := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	older := &run.Report{Trigger: run.TriggerSchedule, Status: run.StatusRunning, RunTimestamp: started, StartedAt: started}
	if err := repo.Save(ctx, older); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if older.ID == uuid.Nil {
		t.Fatal("Save() did not assign an ID")
	}

	done := started.Add(time.Minute)
	older.Status = run.StatusPartial
	older.CompletedAt = &done
	older.Stages = []run.StageResult{
		{Stage: run.StageRates, Status: run.StatusFailed, ErrorCode: apperrors.ErrCodeFetchFailed, Attempts: 2},
	}
	if err := repo.Save(ctx, older); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	newer := &run.Report{Trigger: run.TriggerManual, Status: run.StatusCompleted, RunTimestamp: started.Add(time.Hour), StartedAt: started.Add(time.Hour)}
	if err := repo.Save(ctx, newer); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, older.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != run.StatusPartial || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("Get() = %+v", got)
	}
	if s, ok := got.Stage(run.StageRates); !ok || s.ErrorCode != apperrors.ErrCodeFetchFailed || s.Attempts != 2 {
		t.Errorf("stage = %+v", s)
	}

	if _, err := repo.Get(ctx, uuid.New()); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("Get() missing error = %v, want NOT_FOUND", err)
	}

	all, total, err := repo.List(ctx, run.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(all) != 2 || all[0].ID != newer.ID {
		t.Errorf("List() = %d runs, first %v", total, all[0].ID)
	}

	partial, total, err := repo.List(ctx, run.Filter{Status: run.StatusPartial})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || partial[0].ID != older.ID {
		t.Errorf("List(partial) = %d runs", total)
	}
}

func TestResourceRepository_VirtualMachines(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := postgres.NewResourceRepository(db, postgres.NewRefresher(db, testutil.NewTestLogger()))
	ctx := context.Background()

	schema, err := sku.DefaultRegistry().SchemaFor(sku.TypeVirtualMachines)
	if err != nil {
		t.Fatalf("SchemaFor() error = %v", err)
	}
	if err := repo.EnsureTable(ctx, schema); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}

	runAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	vmRow := func(name, location string, vcpus int64) sku.ResourceRow {
		values := make([]any, len(schema.Capabilities))
		for i, c := range schema.Capabilities {
			switch c.Name {
			case "vCPUs":
				values[i] = vcpus
			case "MemoryGB":
				values[i] = decimal.NewFromInt(8)
			}
		}
		return sku.ResourceRow{
			Common: sku.Common{
				Name:         testutil.StrPtr(name),
				Locations:    testutil.StrPtr(location),
				ResourceType: testutil.StrPtr(sku.TypeVirtualMachines),
				LocationInfo: json.RawMessage(`[{"location":"` + location + `"}]`),
			},
			Values:       values,
			RunTimestamp: runAt,
		}
	}

	rows := []sku.ResourceRow{
		vmRow("Standard_D2s_v3", "eastus", 2),
		vmRow("Standard_D2s_v3", "westus", 2),
		vmRow("Standard_D2s_v3", "eastus", 4),
	}
	if err := repo.Replace(ctx, schema, rows); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	vms, err := repo.VirtualMachines(ctx)
	if err != nil {
		t.Fatalf("VirtualMachines() error = %v", err)
	}
	if len(vms) != 2 {
		t.Fatalf("VirtualMachines() = %d keys, want 2", len(vms))
	}
	if vms[0].Location != "eastus" || vms[0].VCPUs == nil || *vms[0].VCPUs != 2 {
		t.Errorf("first key = %+v, want the first eastus row", vms[0])
	}
	if !vms[0].MemoryGB.Decimal.Equal(decimal.NewFromInt(8)) {
		t.Errorf("memory = %v", vms[0].MemoryGB)
	}
}

func TestRatesRepository_MatchingRates(t *testing.T) {
	db := testutil.NewTestDB(t)
	refresher := postgres.NewRefresher(db, testutil.NewTestLogger())
	resources := postgres.NewResourceRepository(db, refresher)
	repo := postgres.NewRatesRepository(db, refresher)
	ctx := context.Background()

	schema, _ := sku.DefaultRegistry().SchemaFor(sku.TypeVirtualMachines)
	if err := resources.EnsureTable(ctx, schema); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	vm := sku.ResourceRow{
		Common: sku.Common{Name: testutil.StrPtr("Standard_D2s_v3"), Locations: testutil.StrPtr("eastus")},
		Values: make([]any, len(schema.Capabilities)),
	}
	if err := resources.Replace(ctx, schema, []sku.ResourceRow{vm}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	runAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	primary := true
	records := []rates.Record{
		{
			ARMSkuName:           testutil.StrPtr("Standard_D2s_v3"),
			ARMRegionName:        testutil.StrPtr("eastus"),
			UnitPrice:            decimal.NewNullDecimal(decimal.RequireFromString("0.096")),
			Type:                 testutil.StrPtr(rates.TypeConsumption),
			EffectiveStartDate:   &start,
			IsPrimaryMeterRegion: &primary,
			SavingsPlan1Y: rates.SavingsPlanSlot{
				UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("0.07")),
				Term:      testutil.StrPtr(rates.TermOneYear),
			},
			RunTimestamp: runAt,
		},
		{ARMSkuName: testutil.StrPtr("Standard_D2s_v3"), ARMRegionName: testutil.StrPtr("westus"), RunTimestamp: runAt},
		{ARMSkuName: testutil.StrPtr("Standard_B1s"), ARMRegionName: testutil.StrPtr("eastus"), RunTimestamp: runAt},
	}
	if err := repo.Replace(ctx, records); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if n, err := repo.Count(ctx); err != nil || n != 3 {
		t.Fatalf("Count() = %d, %v", n, err)
	}

	matched, err := repo.MatchingRates(ctx)
	if err != nil {
		t.Fatalf("MatchingRates() error = %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("MatchingRates() = %d records, want 1", len(matched))
	}
	got := matched[0]
	if !got.UnitPrice.Decimal.Equal(decimal.RequireFromString("0.096")) {
		t.Errorf("unit_price = %v", got.UnitPrice)
	}
	if rates.Value(got.SavingsPlan1Y.Term) != rates.TermOneYear || got.SavingsPlan3Y.Term != nil {
		t.Errorf("savings slots = %+v / %+v", got.SavingsPlan1Y, got.SavingsPlan3Y)
	}
	if got.IsPrimaryMeterRegion == nil || !*got.IsPrimaryMeterRegion {
		t.Errorf("is_primary_meter_region = %v", got.IsPrimaryMeterRegion)
	}
	if got.EffectiveStartDate == nil || !got.EffectiveStartDate.Equal(start) {
		t.Errorf("effective_start_date = %v", got.EffectiveStartDate)
	}
	if !got.RunTimestamp.Equal(runAt) {
		t.Errorf("run_timestamp = %v", got.RunTimestamp)
	}
}
