package retailprices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
)

func strp(s string) *string { return &s }

func newTestClient(baseURL string) *Client {
	return NewClient(Config{BaseURL: baseURL, RetryDelay: time.Millisecond, Timeout: 5 * time.Second}, logger.Nop())
}

func item(sku string) map[string]any {
	return map[string]any{
		"currencyCode":  "USD",
		"retailPrice":   0.096,
		"unitPrice":     0.096,
		"armRegionName": "eastus",
		"armSkuName":    sku,
		"skuName":       "D2s v3",
		"productName":   "Virtual Machines DSv3 Series",
		"type":          "Consumption",
	}
}

func TestClient_FetchRates_RetriesFailedPage(t *testing.T) {
	var page2Calls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		switch r.URL.Query().Get("page") {
		case "":
			body = map[string]any{"Items": []any{item("Standard_A1")}, "NextPageLink": srv.URL + "?page=2"}
		case "2":
			if page2Calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			body = map[string]any{"Items": []any{item("Standard_A2")}, "NextPageLink": srv.URL + "?page=3"}
		case "3":
			body = map[string]any{"Items": []any{item("Standard_A3")}, "NextPageLink": ""}
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	runAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	records, err := newTestClient(srv.URL).FetchRates(context.Background(), runAt)
	if err != nil {
		t.Fatalf("FetchRates() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("FetchRates() returned %d records, want 3", len(records))
	}
	for i, want := range []string{"Standard_A1", "Standard_A2", "Standard_A3"} {
		if got := rates.Value(records[i].ARMSkuName); got != want {
			t.Errorf("record %d arm_sku_name = %q, want %q", i, got, want)
		}
		if !records[i].RunTimestamp.Equal(runAt) {
			t.Errorf("record %d run_timestamp = %v, want %v", i, records[i].RunTimestamp, runAt)
		}
	}
	if got := page2Calls.Load(); got != 2 {
		t.Errorf("page 2 requested %d times, want 2", got)
	}
}

func TestClient_FetchRates_FailsAfterSecondAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchRates(context.Background(), time.Now())
	if err == nil {
		t.Fatal("FetchRates() expected error")
	}
	if !apperrors.HasCode(err, apperrors.ErrCodeFetchFailed) {
		t.Errorf("FetchRates() error code = %q, want %q", apperrors.Code(err), apperrors.ErrCodeFetchFailed)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestClient_FetchRates_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{not json")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchRates(context.Background(), time.Now())
	if !apperrors.HasCode(err, apperrors.ErrCodeFetchFailed) {
		t.Errorf("FetchRates() error = %v, want FETCH_FAILED", err)
	}
}

func TestClient_FetchRates_CancelledDuringRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RetryDelay: time.Minute}, logger.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchRates(ctx, time.Now())
	if err != context.DeadlineExceeded {
		t.Errorf("FetchRates() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestClient_StartURL(t *testing.T) {
	c := NewClient(Config{
		BaseURL: "https://prices.azure.com/api/retail/prices",
		Filter:  "serviceName eq 'Virtual Machines'",
	}, logger.Nop())

	got, err := c.StartURL()
	if err != nil {
		t.Fatalf("StartURL() error = %v", err)
	}
	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("StartURL() returned unparsable URL %q", got)
	}
	if v := u.Query().Get("api-version"); v != DefaultAPIVersion {
		t.Errorf("api-version = %q, want %q", v, DefaultAPIVersion)
	}
	if v := u.Query().Get("$filter"); v != "serviceName eq 'Virtual Machines'" {
		t.Errorf("$filter = %q", v)
	}
}

func TestItem_ToRecord(t *testing.T) {
	raw := `{
		"currencyCode": "USD",
		"retailPrice": 0.5,
		"unitPrice": 0.5,
		"armSkuName": "Standard_D2s_v3",
		"effectiveStartDate": "2023-04-01T00:00:00Z",
		"isPrimaryMeterRegion": true,
		"type": "Consumption",
		"savingsPlan": [
			{"unitPrice": 0.2, "retailPrice": 0.2, "term": "3 Years"},
			{"unitPrice": 0.3, "retailPrice": 0.3, "term": "1 Year"}
		]
	}`
	var it Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	rec := it.ToRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"unit price", rec.UnitPrice.Decimal.String(), "0.5"},
		{"3y slot price", rec.SavingsPlan3Y.UnitPrice.Decimal.String(), "0.2"},
		{"3y slot term", rates.Value(rec.SavingsPlan3Y.Term), "3 Years"},
		{"1y slot price", rec.SavingsPlan1Y.UnitPrice.Decimal.String(), "0.3"},
		{"1y slot term", rates.Value(rec.SavingsPlan1Y.Term), "1 Year"},
		{"reservation term", rates.Value(rec.ReservationTerm), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if rec.EffectiveStartDate == nil || rec.EffectiveStartDate.Year() != 2023 {
		t.Errorf("effective start date = %v", rec.EffectiveStartDate)
	}
	if rec.IsPrimaryMeterRegion == nil || !*rec.IsPrimaryMeterRegion {
		t.Errorf("is_primary_meter_region = %v", rec.IsPrimaryMeterRegion)
	}
	if rec.TierMinimumUnits.Valid {
		t.Error("absent tierMinimumUnits should be NULL")
	}
}

func TestItem_ToRecord_SingleSavingsPlan(t *testing.T) {
	it := Item{ArmSkuName: strp("Standard_B1s"), SavingsPlan: []SavingsPlan{{Term: strp("3 Years")}}}
	rec := it.ToRecord(time.Now())
	if rates.Value(rec.SavingsPlan3Y.Term) != "3 Years" {
		t.Errorf("3y slot term = %q", rates.Value(rec.SavingsPlan3Y.Term))
	}
	if rec.SavingsPlan1Y.Term != nil || rec.SavingsPlan1Y.UnitPrice.Valid {
		t.Error("1y slot should stay empty")
	}
}
