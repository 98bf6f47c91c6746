package providers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	armcompute "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	armresources "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
)

const computeNamespace = "Microsoft.Compute"

// AzureCredentials identify the service principal used for SKU listing.
// When ClientSecret is empty the default credential chain is used.
type AzureCredentials struct {
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string
}

// AzureSKUSource lists resource SKUs through the compute resource manager API.
// The subscription's SKU list is fetched once per run and filtered by type.
type AzureSKUSource struct {
	creds  AzureCredentials
	cred   azcore.TokenCredential
	logger *logger.Logger

	registerProvider func(ctx context.Context) error
	listAll          func(ctx context.Context, subscriptionID string) ([]*armcompute.ResourceSKU, error)

	mu         sync.Mutex
	registered bool
	listings   map[string][]*armcompute.ResourceSKU
}

// NewAzureSKUSource creates a new Azure SKU source
func NewAzureSKUSource(creds AzureCredentials, log *logger.Logger) (*AzureSKUSource, error) {
	var (
		cred azcore.TokenCredential
		err  error
	)
	if creds.ClientSecret != "" {
		cred, err = azidentity.NewClientSecretCredential(creds.TenantID, creds.ClientID, creds.ClientSecret, nil)
	} else {
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, apperrors.ProviderAuthError("azure", err)
	}
	s := &AzureSKUSource{creds: creds, cred: cred, logger: log.WithComponent("azure_skus")}
	s.registerProvider = s.registerCompute
	s.listAll = s.listResourceSKUs
	return s, nil
}

// Register prepares the source for a run. The compute resource provider is
// registered on the subscription until one attempt succeeds, and the SKU list
// of the previous run is dropped.
func (s *AzureSKUSource) Register(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listings = nil
	if s.registered {
		return nil
	}
	if err := s.registerProvider(ctx); err != nil {
		return err
	}
	s.registered = true
	return nil
}

func (s *AzureSKUSource) registerCompute(ctx context.Context) error {
	client, err := armresources.NewProvidersClient(s.creds.SubscriptionID, s.cred, nil)
	if err != nil {
		return apperrors.ProviderAPIError("azure", err)
	}
	resp, err := client.Register(ctx, computeNamespace, nil)
	if err != nil {
		return apperrors.ProviderAPIError("azure", err)
	}
	state := ""
	if resp.RegistrationState != nil {
		state = *resp.RegistrationState
	}
	s.logger.WithFields(map[string]interface{}{
		"namespace": computeNamespace,
		"state":     state,
	}).Info("resource provider registered")
	return nil
}

// ListSKUs returns the subscription's resource SKUs of the requested type
func (s *AzureSKUSource) ListSKUs(ctx context.Context, q SKUQuery) ([]json.RawMessage, error) {
	subscriptionID := q.SubscriptionID
	if subscriptionID == "" {
		subscriptionID = s.creds.SubscriptionID
	}
	skus, err := s.listing(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	var out []json.RawMessage
	for _, sku := range skus {
		if sku == nil || sku.ResourceType == nil || *sku.ResourceType != q.ResourceType {
			continue
		}
		raw, err := json.Marshal(sku)
		if err != nil {
			return nil, apperrors.Internal("failed to encode resource sku", err)
		}
		out = append(out, raw)
	}

	s.logger.WithFields(map[string]interface{}{
		"resource_type": q.ResourceType,
		"count":         len(out),
	}).Debug("resource skus listed")
	return out, nil
}

// listing returns the cached SKU list of a subscription, fetching it on first
// use. Failed fetches are not cached.
func (s *AzureSKUSource) listing(ctx context.Context, subscriptionID string) ([]*armcompute.ResourceSKU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if skus, ok := s.listings[subscriptionID]; ok {
		return skus, nil
	}
	skus, err := s.listAll(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if s.listings == nil {
		s.listings = make(map[string][]*armcompute.ResourceSKU)
	}
	s.listings[subscriptionID] = skus
	return skus, nil
}

func (s *AzureSKUSource) listResourceSKUs(ctx context.Context, subscriptionID string) ([]*armcompute.ResourceSKU, error) {
	client, err := armcompute.NewResourceSKUsClient(subscriptionID, s.cred, nil)
	if err != nil {
		return nil, apperrors.ProviderAPIError("azure", err)
	}

	var out []*armcompute.ResourceSKU
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, apperrors.ProviderAPIError("azure", err)
		}
		out = append(out, page.Value...)
	}
	s.logger.With("count", len(out)).Debug("subscription skus fetched")
	return out, nil
}
