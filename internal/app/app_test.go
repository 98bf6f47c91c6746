package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pratik-mahalle/skuprice/internal/config"
	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	"github.com/pratik-mahalle/skuprice/internal/providers"
	"github.com/pratik-mahalle/skuprice/internal/testutil"
)

const vmFixture = `{"value": [{
	"capabilities": [{"name": "vCPUs", "value": "2"}, {"name": "MemoryGB", "value": "8"}],
	"locations": ["eastus"],
	"name": "Standard_D2s_v3",
	"resourceType": "virtualMachines",
	"tier": "Standard"
}]}`

func pricesServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"BillingCurrency": "USD",
			"Count":           1,
			"Items": []map[string]any{{
				"currencyCode":  "USD",
				"retailPrice":   0.096,
				"unitPrice":     0.096,
				"armRegionName": "eastus",
				"armSkuName":    "Standard_D2s_v3",
				"skuName":       "D2s v3",
				"productName":   "Virtual Machines DSv3 Series",
				"serviceName":   "Virtual Machines",
				"type":          "Consumption",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, pricesURL string) *config.Config {
	t.Helper()

	fixtures := t.TempDir()
	if err := os.WriteFile(filepath.Join(fixtures, "virtualMachines.json"), []byte(vmFixture), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	vars := map[string]string{
		"DB_DRIVER":                    "sqlite",
		"DB_PATH":                      filepath.Join(t.TempDir(), "skuprice.db"),
		"LOG_LEVEL":                    "error",
		"SKU_SOURCE":                   "file",
		"SKU_FIXTURE_DIR":              fixtures,
		"PRICING_BASE_URL":             pricesURL,
		"PRICING_RETRY_DELAY":          "1ms",
		"PIPELINE_RUN_ON_START":        "false",
		"SERVER_ENABLED":               "false",
		"PIPELINE_RESOURCE_TYPES":      "virtualMachines",
		"PIPELINE_EXTRACT_CONCURRENCY": "2",
	}
	cfg, err := config.LoadWith(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}
	return cfg
}

func TestApp_RunAndServe(t *testing.T) {
	cfg := testConfig(t, pricesServer(t).URL)
	ctx := context.Background()

	a, err := New(ctx, cfg, testutil.NewTestLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	report, err := a.Pipeline.Run(ctx, run.TriggerManual)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Status != run.StatusCompleted {
		t.Fatalf("status = %s, stages = %+v", report.Status, report.Stages)
	}

	rows, total, err := a.Pricing.List(ctx, pricing.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || rows[0].Name != "Standard_D2s_v3" || rows[0].Location != "eastus" {
		t.Fatalf("pricing rows = %+v", rows)
	}
	if got := rows[0].LinuxOnDemand.Decimal.String(); got != "0.096" {
		t.Errorf("linux_on_demand_cost = %s, want 0.096", got)
	}

	h := a.Handler()
	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/v1/pricing", http.StatusOK},
		{"/api/v1/pricing/history", http.StatusOK},
		{"/api/v1/runs/" + report.ID.String(), http.StatusOK},
		{"/api/v1/schemas", http.StatusOK},
		{"/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rr.Code != tt.expectedStatus {
				t.Errorf("GET %s = %d, want %d", tt.path, rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestNewSKUSource(t *testing.T) {
	src, err := NewSKUSource(config.AzureConfig{Source: "file", FixtureDir: t.TempDir()}, testutil.NewTestLogger())
	if err != nil {
		t.Fatalf("NewSKUSource() error = %v", err)
	}
	if _, ok := src.(*providers.FileSKUSource); !ok {
		t.Errorf("source = %T, want *providers.FileSKUSource", src)
	}

	if _, err := NewSKUSource(config.AzureConfig{Source: "ftp"}, testutil.NewTestLogger()); err == nil {
		t.Error("NewSKUSource() expected error for unsupported source")
	}
}
