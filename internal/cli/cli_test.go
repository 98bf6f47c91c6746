package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() {
		outputFormat = "table"
		viper.Reset()
	})

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute(%v) error = %v", args, err)
	}
	return buf.String()
}

func TestSchemasCommand(t *testing.T) {
	out := execute(t, "schemas", "-o", "json")

	var schemas []struct {
		ResourceType string `json:"resource_type"`
	}
	if err := json.Unmarshal([]byte(out), &schemas); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(schemas) != len(sku.DefaultRegistry().Types()) {
		t.Errorf("got %d schemas", len(schemas))
	}
}

func TestSchemasCommand_Table(t *testing.T) {
	out := execute(t, "schemas")
	if !strings.Contains(out, "RESOURCE TYPE") || !strings.Contains(out, "virtual_machines") {
		t.Errorf("unexpected table output:\n%s", out)
	}
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("SKU_SOURCE", "file")
	t.Setenv("SKU_FIXTURE_DIR", t.TempDir())

	out := execute(t, "migrate")
	if !strings.Contains(out, "Applied 001_create_azure_rates.sql") {
		t.Errorf("first migrate output:\n%s", out)
	}
	out = execute(t, "migrate")
	if !strings.Contains(out, "Database is up to date") {
		t.Errorf("second migrate output:\n%s", out)
	}
}

func TestLookup_PrefersViper(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("DB_DRIVER", "postgres")

	if v, _ := lookup("DB_DRIVER"); v != "postgres" {
		t.Errorf("lookup() = %q, want environment value", v)
	}
	viper.Set("db_driver", "sqlite")
	if v, _ := lookup("DB_DRIVER"); v != "sqlite" {
		t.Errorf("lookup() = %q, want config value", v)
	}
}

func TestParseTimeFlag(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{value: ""},
		{value: "2024-05-01T02:00:00+02:00", want: "2024-05-01T00:00:00Z"},
		{value: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseTimeFlag("since", tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeFlag(%q) error = %v", tt.value, err)
			continue
		}
		if tt.want == "" {
			if got != nil && !tt.wantErr {
				t.Errorf("parseTimeFlag(%q) = %v, want nil", tt.value, got)
			}
			continue
		}
		if got.Format("2006-01-02T15:04:05Z07:00") != tt.want {
			t.Errorf("parseTimeFlag(%q) = %v, want %s", tt.value, got, tt.want)
		}
	}
}

func TestFormatting(t *testing.T) {
	if got := formatDecimal(decimal.NullDecimal{}); got != "-" {
		t.Errorf("formatDecimal(null) = %q", got)
	}
	if got := formatDecimal(decimal.NewNullDecimal(decimal.RequireFromString("0.125"))); got != "0.125" {
		t.Errorf("formatDecimal() = %q", got)
	}
	if got := maskValue("azure_client_secret", "s3cr3t"); got != "********" {
		t.Errorf("maskValue() = %q", got)
	}
	if got := maskValue("db_host", "localhost"); got != "localhost" {
		t.Errorf("maskValue() = %q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("truncate() = %q", got)
	}
	if got := formatStatus("partial"); got != "[*] partial" {
		t.Errorf("formatStatus() = %q", got)
	}
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	data := struct {
		Price decimal.Decimal `json:"price"`
	}{decimal.RequireFromString("1.5")}
	if err := printYAML(&buf, data); err != nil {
		t.Fatalf("printYAML() error = %v", err)
	}
	if !strings.Contains(buf.String(), `price: "1.5"`) {
		t.Errorf("yaml output = %q", buf.String())
	}
}
