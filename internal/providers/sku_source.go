package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
)

// SKUQuery selects the SKU records to list
type SKUQuery struct {
	SubscriptionID string
	ResourceType   string
}

// SKUSource lists raw resource SKU records for one resource type. Records
// are returned as the provider's JSON so the extractor sees the same shape
// whatever the source. Register is called at the start of every run.
type SKUSource interface {
	Register(ctx context.Context) error
	ListSKUs(ctx context.Context, q SKUQuery) ([]json.RawMessage, error)
}

// FileSKUSource reads SKU records from JSON files on disk, one file per
// resource type named after the type with "/" replaced by "_"
// (hostGroups/hosts.json becomes hostGroups_hosts.json).
type FileSKUSource struct {
	Dir string
}

// NewFileSKUSource creates a source reading fixtures from dir
func NewFileSKUSource(dir string) *FileSKUSource {
	return &FileSKUSource{Dir: dir}
}

// Register checks that the fixture directory exists
func (s *FileSKUSource) Register(ctx context.Context) error {
	info, err := os.Stat(s.Dir)
	if err != nil {
		return apperrors.ProviderAPIError("file", err)
	}
	if !info.IsDir() {
		return apperrors.ProviderAPIError("file", fmt.Errorf("%s is not a directory", s.Dir))
	}
	return nil
}

// Path returns the fixture file for a resource type
func (s *FileSKUSource) Path(resourceType string) string {
	return filepath.Join(s.Dir, strings.ReplaceAll(resourceType, "/", "_")+".json")
}

// ListSKUs returns the records of the type's fixture file. A missing file
// yields no records. The file may hold a bare array or an object with a
// "value" array as returned by the REST API.
func (s *FileSKUSource) ListSKUs(ctx context.Context, q SKUQuery) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(q.ResourceType))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ProviderAPIError("file", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var envelope struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, apperrors.ProviderAPIError("file", fmt.Errorf("decode %s: %w", s.Path(q.ResourceType), err))
	}
	return envelope.Value, nil
}
