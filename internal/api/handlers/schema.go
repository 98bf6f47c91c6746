package handlers

import (
	"net/http"

	"github.com/pratik-mahalle/skuprice/internal/api/dto"
	"github.com/pratik-mahalle/skuprice/internal/domain/sku"
	"github.com/pratik-mahalle/skuprice/internal/pkg/utils"
)

// SchemaHandler describes the registered resource tables
type SchemaHandler struct {
	registry *sku.Registry
}

// NewSchemaHandler creates a new schema handler
func NewSchemaHandler(registry *sku.Registry) *SchemaHandler {
	return &SchemaHandler{registry: registry}
}

// List returns every registered schema with its columns
func (h *SchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, SchemaDTOs(h.registry))
}

// SchemaDTOs describes every schema of the registry
func SchemaDTOs(registry *sku.Registry) []dto.SchemaDTO {
	schemas := registry.Schemas()
	out := make([]dto.SchemaDTO, 0, len(schemas))
	for _, s := range schemas {
		capabilityByColumn := make(map[string]string, len(s.Capabilities))
		for _, c := range s.Capabilities {
			capabilityByColumn[c.Column] = c.Name
		}

		cols := s.Columns()
		d := dto.SchemaDTO{
			ResourceType:    s.ResourceType,
			Table:           s.Table,
			FanOutLocations: s.FanOutLocations,
			Columns:         make([]dto.SchemaColumn, 0, len(cols)),
		}
		for _, c := range cols {
			d.Columns = append(d.Columns, dto.SchemaColumn{
				Name:       c.Name,
				Type:       string(c.Type),
				Capability: capabilityByColumn[c.Name],
			})
		}
		out = append(out, d)
	}
	return out
}
