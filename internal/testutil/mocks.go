package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	"github.com/pratik-mahalle/skuprice/internal/providers"
)

// MockSKUSource is a mock implementation of providers.SKUSource
type MockSKUSource struct {
	Records     map[string][]json.RawMessage
	Errors      map[string]error
	RegisterErr error

	// When Block is set, ListSKUs signals Entered and waits for Block to close
	Block   chan struct{}
	Entered chan struct{}

	mu            sync.Mutex
	RegisterCalls int
	Queries       []providers.SKUQuery
}

// NewMockSKUSource creates a mock source returning records per resource type
func NewMockSKUSource(records map[string][]json.RawMessage) *MockSKUSource {
	if records == nil {
		records = make(map[string][]json.RawMessage)
	}
	return &MockSKUSource{Records: records, Errors: make(map[string]error)}
}

func (m *MockSKUSource) Register(ctx context.Context) error {
	m.mu.Lock()
	m.RegisterCalls++
	m.mu.Unlock()
	return m.RegisterErr
}

func (m *MockSKUSource) ListSKUs(ctx context.Context, q providers.SKUQuery) ([]json.RawMessage, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, q)
	block, entered := m.Block, m.Entered
	m.mu.Unlock()

	if block != nil {
		if entered != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := m.Errors[q.ResourceType]; err != nil {
		return nil, err
	}
	return m.Records[q.ResourceType], nil
}

// MockRateFetcher is a mock implementation of services.RateFetcher. Each call
// consumes the next entry of Errs; once exhausted, Records is returned.
type MockRateFetcher struct {
	Records []rates.Record
	Errs    []error

	mu    sync.Mutex
	Calls int
}

func (m *MockRateFetcher) FetchRates(ctx context.Context, runAt time.Time) ([]rates.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls++
	if len(m.Errs) > 0 {
		err := m.Errs[0]
		m.Errs = m.Errs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make([]rates.Record, len(m.Records))
	for i, r := range m.Records {
		r.RunTimestamp = runAt.UTC()
		out[i] = r
	}
	return out, nil
}
