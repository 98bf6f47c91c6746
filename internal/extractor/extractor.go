package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

// nullSentinel is how the metadata source spells a missing value
const nullSentinel = "null"

// Extractor maps raw SKU records onto schema-typed rows
type Extractor struct {
	logger      *logger.Logger
	concurrency int
}

// New creates an extractor that processes up to concurrency records at once
func New(log *logger.Logger, concurrency int) *Extractor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{
		logger:      log.WithComponent("extractor"),
		concurrency: concurrency,
	}
}

// Result is the outcome of extracting a batch of records
type Result struct {
	Rows []sku.ResourceRow
	// FieldErrors holds one FIELD_COERCION error per value that was nulled
	FieldErrors []error
	// Rejected counts records that were not JSON objects
	Rejected int
}

// Extract converts one SKU record. Values that fail coercion become NULL and
// are reported in the returned field errors; only a record that is not a JSON
// object fails as a whole.
func (e *Extractor) Extract(raw json.RawMessage, schema *sku.Schema, runAt time.Time) ([]sku.ResourceRow, []error, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(raw, &record); err != nil || record == nil {
		if err == nil {
			err = fmt.Errorf("record is null")
		}
		return nil, nil, fmt.Errorf("decode %s record: %w", schema.ResourceType, err)
	}

	base := sku.ResourceRow{
		Common: sku.Common{
			APIVersions:  textField(record["apiVersions"]),
			Capacity:     textField(record["capacity"]),
			Costs:        textField(record["costs"]),
			Family:       textField(record["family"]),
			Kind:         textField(record["kind"]),
			LocationInfo: jsonField(record["locationInfo"]),
			Name:         textField(record["name"]),
			ResourceType: textField(record["resourceType"]),
			Restrictions: restrictionsField(record["restrictions"]),
			Size:         textField(record["size"]),
			Tier:         textField(record["tier"]),
		},
		RunTimestamp: runAt.UTC(),
	}
	if schema.KeepRawCapabilities {
		base.RawCapabilities = jsonField(record["capabilities"])
	}

	items := capabilityItems(record["capabilities"])
	values, fieldErrs := e.coerceAll(schema, items, base.Name)
	base.Values = values

	if !schema.FanOutLocations {
		base.Locations = textField(record["locations"])
		return []sku.ResourceRow{base}, fieldErrs, nil
	}

	locations := stringList(record["locations"])
	if len(locations) == 0 {
		e.logger.WithFields(map[string]interface{}{
			"resource_type": schema.ResourceType,
			"name":          stringOrEmpty(base.Name),
		}).Debug("record has no locations, no rows emitted")
		return nil, fieldErrs, nil
	}

	rows := make([]sku.ResourceRow, 0, len(locations))
	for _, loc := range locations {
		row := base
		row.Locations = &loc
		rows = append(rows, row)
	}
	return rows, fieldErrs, nil
}

// ExtractAll converts records on a bounded pool. Output rows keep the input
// record order.
func (e *Extractor) ExtractAll(ctx context.Context, records []json.RawMessage, schema *sku.Schema, runAt time.Time) (*Result, error) {
	type outcome struct {
		rows      []sku.ResourceRow
		fieldErrs []error
		rejected  bool
	}
	outcomes := make([]outcome, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, fieldErrs, err := e.Extract(records[i], schema, runAt)
			if err != nil {
				e.logger.WarnWithErr(err, "skipping malformed record")
				outcomes[i] = outcome{rejected: true}
				return nil
			}
			outcomes[i] = outcome{rows: rows, fieldErrs: fieldErrs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	for _, o := range outcomes {
		if o.rejected {
			result.Rejected++
			continue
		}
		result.Rows = append(result.Rows, o.rows...)
		result.FieldErrors = append(result.FieldErrors, o.fieldErrs...)
	}
	return result, nil
}

// coerceAll resolves each declared capability against the item list. The
// first item with a matching name wins.
func (e *Extractor) coerceAll(schema *sku.Schema, items []sku.CapabilityItem, name *string) ([]any, []error) {
	if len(schema.Capabilities) == 0 {
		return nil, nil
	}

	byName := make(map[string]string, len(items))
	for _, item := range items {
		if _, seen := byName[item.Name]; !seen {
			byName[item.Name] = item.Value
		}
	}

	values := make([]any, len(schema.Capabilities))
	var fieldErrs []error
	for i, c := range schema.Capabilities {
		raw, ok := byName[c.Name]
		if !ok || raw == nullSentinel {
			continue
		}
		v, err := Coerce(raw, c.Type)
		if err != nil {
			appErr := apperrors.FieldCoercion(c.Name, string(c.Type), raw, err)
			e.logger.WithFields(map[string]interface{}{
				"resource_type": schema.ResourceType,
				"name":          stringOrEmpty(name),
				"field":         c.Name,
				"value":         raw,
			}).WarnWithErr(err, "capability value does not fit declared type, storing NULL")
			metrics.RecordCoercionError(schema.ResourceType)
			fieldErrs = append(fieldErrs, appErr)
			continue
		}
		values[i] = v
	}
	return values, fieldErrs
}

// capabilityItems decodes the capabilities list. Anything that is not a list
// of objects, directly or JSON-encoded in a string, yields no items.
func capabilityItems(raw json.RawMessage) []sku.CapabilityItem {
	elems := decodeList(raw)
	items := make([]sku.CapabilityItem, 0, len(elems))
	for _, elem := range elems {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(elem, &obj); err != nil {
			continue
		}
		name := textField(obj["name"])
		if name == nil {
			continue
		}
		value := nullSentinel
		if v := textField(obj["value"]); v != nil {
			value = *v
		}
		items = append(items, sku.CapabilityItem{Name: *name, Value: value})
	}
	return items
}

func stringList(raw json.RawMessage) []string {
	elems := decodeList(raw)
	out := make([]string, 0, len(elems))
	for _, elem := range elems {
		if s := textField(elem); s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// decodeList accepts a JSON array or a string holding a JSON array
func decodeList(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// textField extracts a value as text the way a JSON ->> operator does:
// strings lose their quotes, other values keep their compact JSON form,
// null and the "null" sentinel become NULL.
func textField(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if s == nullSentinel {
			return nil
		}
		return &s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		s := string(raw)
		return &s
	}
	s := buf.String()
	return &s
}

// jsonField returns a structured JSON value, decoding a JSON-encoded string
// first. Strings that do not hold JSON are kept as JSON strings.
func jsonField(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			trimmed := bytes.TrimSpace([]byte(inner))
			if len(trimmed) > 0 && json.Valid(trimmed) {
				raw = trimmed
			}
		}
	}
	if string(raw) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil
	}
	return buf.Bytes()
}

// restrictionsField is jsonField with empty lists stored as NULL
func restrictionsField(raw json.RawMessage) json.RawMessage {
	v := jsonField(raw)
	if string(v) == "[]" {
		return nil
	}
	return v
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
