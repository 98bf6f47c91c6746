package sku

import (
	"fmt"

	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
)

// Registry maps resource type ids to their table schemas
type Registry struct {
	order   []string
	schemas map[string]*Schema
}

// NewRegistry builds a registry from the given schemas, keeping their order
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for i := range schemas {
		s := schemas[i]
		if s.ResourceType == "" || s.Table == "" {
			return nil, fmt.Errorf("schema %d: resource type and table are required", i)
		}
		if _, dup := r.schemas[s.ResourceType]; dup {
			return nil, fmt.Errorf("schema for %q registered twice", s.ResourceType)
		}
		seen := make(map[string]bool, len(s.Capabilities))
		for _, c := range s.Capabilities {
			if seen[c.Column] {
				return nil, fmt.Errorf("schema %q: duplicate column %q", s.ResourceType, c.Column)
			}
			seen[c.Column] = true
		}
		r.schemas[s.ResourceType] = &s
		r.order = append(r.order, s.ResourceType)
	}
	return r, nil
}

// DefaultRegistry returns the compiled-in schemas for the harvested resource types
func DefaultRegistry() *Registry {
	r, err := NewRegistry(builtinSchemas...)
	if err != nil {
		panic(err)
	}
	return r
}

// SchemaFor returns the schema registered for resourceType
func (r *Registry) SchemaFor(resourceType string) (*Schema, error) {
	s, ok := r.schemas[resourceType]
	if !ok {
		return nil, apperrors.UnknownResourceType(resourceType)
	}
	return s, nil
}

// Types returns the registered resource types in registration order
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Schemas returns the registered schemas in registration order
func (r *Registry) Schemas() []*Schema {
	out := make([]*Schema, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.schemas[t])
	}
	return out
}
