package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// Coerce converts a capability's text value to the Go value stored for t:
// int64, decimal.Decimal, bool, time.Time (dates at UTC midnight) or string.
func Coerce(value string, t sku.FieldType) (any, error) {
	v := strings.TrimSpace(value)
	switch t {
	case sku.FieldInteger:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %w", err)
		}
		return n, nil

	case sku.FieldDecimal:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("not a decimal: %w", err)
		}
		return d, nil

	case sku.FieldBoolean:
		return parseBool(v)

	case sku.FieldDate:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				y, m, d := ts.UTC().Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
			}
		}
		return nil, fmt.Errorf("not a date")

	case sku.FieldJSON:
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("not valid JSON")
		}
		return v, nil

	case sku.FieldText:
		return value, nil
	}
	return nil, fmt.Errorf("unsupported field type %q", t)
}

// parseBool accepts the spellings a SQL boolean cast accepts
func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "t", "yes", "y", "on", "1":
		return true, nil
	case "false", "f", "no", "n", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}
