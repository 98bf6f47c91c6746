package sku

import (
	"encoding/json"
	"strings"
	"time"
)

// FieldType is the declared SQL type of a column
type FieldType string

const (
	FieldInteger   FieldType = "integer"
	FieldDecimal   FieldType = "decimal"
	FieldBoolean   FieldType = "boolean"
	FieldText      FieldType = "text"
	FieldDate      FieldType = "date"
	FieldJSON      FieldType = "json"
	FieldTimestamp FieldType = "timestamp"
)

// Capability is one named entry of a SKU's capabilities list that is
// promoted to its own typed column
type Capability struct {
	Name   string    `json:"name"`
	Column string    `json:"column"`
	Type   FieldType `json:"type"`
}

// Column is a named, typed table column
type Column struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema describes how SKU records of one resource type map onto a table
type Schema struct {
	ResourceType string       `json:"resource_type"`
	Table        string       `json:"table"`
	Capabilities []Capability `json:"capabilities"`
	// FanOutLocations emits one row per element of the locations list
	FanOutLocations bool `json:"fan_out_locations"`
	// KeepRawCapabilities stores the whole capabilities list in a JSON column
	KeepRawCapabilities bool `json:"keep_raw_capabilities"`
}

// Column names shared by every resource table
const (
	ColumnAPIVersions  = "apiversions"
	ColumnCapabilities = "capabilities"
	ColumnCapacity     = "capacity"
	ColumnCosts        = "costs"
	ColumnFamily       = "family"
	ColumnKind         = "kind"
	ColumnLocationInfo = "locationinfo"
	ColumnLocations    = "locations"
	ColumnName         = "name"
	ColumnResourceType = "resourcetype"
	ColumnRestrictions = "restrictions"
	ColumnSize         = "size"
	ColumnTier         = "tier"
	ColumnRunTimestamp = "run_timestamp"
)

// trailingColumns follow the capability columns in every resource table
var trailingColumns = []Column{
	{ColumnCapacity, FieldText},
	{ColumnCosts, FieldText},
	{ColumnFamily, FieldText},
	{ColumnKind, FieldText},
	{ColumnLocationInfo, FieldJSON},
	{ColumnLocations, FieldText},
	{ColumnName, FieldText},
	{ColumnResourceType, FieldText},
	{ColumnRestrictions, FieldJSON},
	{ColumnSize, FieldText},
	{ColumnTier, FieldText},
}

// Columns returns the table layout: apiversions, the raw capabilities column
// when kept, one column per declared capability, the remaining common
// fields and run_timestamp.
func (s *Schema) Columns() []Column {
	cols := make([]Column, 0, len(s.Capabilities)+len(trailingColumns)+3)
	cols = append(cols, Column{ColumnAPIVersions, FieldText})
	if s.KeepRawCapabilities {
		cols = append(cols, Column{ColumnCapabilities, FieldJSON})
	}
	for _, c := range s.Capabilities {
		cols = append(cols, Column{c.Column, c.Type})
	}
	cols = append(cols, trailingColumns...)
	cols = append(cols, Column{ColumnRunTimestamp, FieldTimestamp})
	return cols
}

// Capability returns the declared capability with the given name
func (s *Schema) Capability(name string) (Capability, bool) {
	for _, c := range s.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// CapabilityItem is one {name, value} pair from a SKU's capabilities list
type CapabilityItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Common holds the fields every resource table carries. A nil pointer or
// empty raw message is stored as NULL.
type Common struct {
	APIVersions  *string
	Capacity     *string
	Costs        *string
	Family       *string
	Kind         *string
	LocationInfo json.RawMessage
	Locations    *string
	Name         *string
	ResourceType *string
	Restrictions json.RawMessage
	Size         *string
	Tier         *string
}

// ResourceRow is one normalized row ready to be written to a resource table
type ResourceRow struct {
	Common
	// RawCapabilities is only stored when the schema keeps it
	RawCapabilities json.RawMessage
	// Values is aligned with Schema.Capabilities; nil means NULL
	Values       []any
	RunTimestamp time.Time
}

// Args returns the row's values in Schema.Columns order
func (r ResourceRow) Args(s *Schema) []any {
	args := make([]any, 0, len(s.Capabilities)+len(trailingColumns)+3)
	args = append(args, nullString(r.APIVersions))
	if s.KeepRawCapabilities {
		args = append(args, nullJSON(r.RawCapabilities))
	}
	for i := range s.Capabilities {
		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		args = append(args, v)
	}
	args = append(args,
		nullString(r.Capacity),
		nullString(r.Costs),
		nullString(r.Family),
		nullString(r.Kind),
		nullJSON(r.LocationInfo),
		nullString(r.Locations),
		nullString(r.Name),
		nullString(r.ResourceType),
		nullJSON(r.Restrictions),
		nullString(r.Size),
		nullString(r.Tier),
		r.RunTimestamp.UTC(),
	)
	return args
}

// TableName derives a table name from a resource type id,
// e.g. "hostGroups/hosts" becomes "host_groups_hosts".
func TableName(resourceType string) string {
	var b strings.Builder
	for i, r := range resourceType {
		switch {
		case r == '/' || r == '-' || r == '.':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
