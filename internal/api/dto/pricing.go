package dto

import (
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/pricing"
)

// PricingListRequest represents vm_pricing query parameters
type PricingListRequest struct {
	Name     string `json:"name" validate:"max=255"`
	Location string `json:"location" validate:"max=100"`
}

// HistoryListRequest represents vm_pricing_history query parameters.
// Since and Until are RFC 3339 timestamps.
type HistoryListRequest struct {
	Name     string `json:"name" validate:"max=255"`
	Location string `json:"location" validate:"max=100"`
	Since    string `json:"since" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Until    string `json:"until" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// HistoryFilter converts the request to a repository filter. Validate must
// have accepted the request.
func (r HistoryListRequest) HistoryFilter(limit, offset int) pricing.HistoryFilter {
	f := pricing.HistoryFilter{Name: r.Name, Location: r.Location, Limit: limit, Offset: offset}
	if t, err := time.Parse(time.RFC3339, r.Since); err == nil {
		f.Since = &t
	}
	if t, err := time.Parse(time.RFC3339, r.Until); err == nil {
		f.Until = &t
	}
	return f
}

// SchemaDTO describes one registered resource table
type SchemaDTO struct {
	ResourceType    string         `json:"resource_type"`
	Table           string         `json:"table"`
	FanOutLocations bool           `json:"fan_out_locations"`
	Columns         []SchemaColumn `json:"columns"`
}

// SchemaColumn is one column of a resource table
type SchemaColumn struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Capability string `json:"capability,omitempty"`
}
