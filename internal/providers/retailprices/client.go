package retailprices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/pratik-mahalle/skuprice/internal/domain/rates"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
	"github.com/pratik-mahalle/skuprice/internal/pkg/metrics"
)

// DefaultAPIVersion is the api-version the page format is known for
const DefaultAPIVersion = "2023-01-01-preview"

// Config contains retail prices client configuration
type Config struct {
	BaseURL           string
	APIVersion        string
	Filter            string
	RetryDelay        time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client reads the public retail prices API page by page
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

// NewClient creates a new retail prices client
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.WithComponent("retailprices"),
	}
}

// StartURL builds the first page URL from the base URL, api-version and
// optional OData filter
func (c *Client) StartURL() (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid pricing base URL: %w", err)
	}
	q := u.Query()
	q.Set("api-version", c.cfg.APIVersion)
	if c.cfg.Filter != "" {
		q.Set("$filter", c.cfg.Filter)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Pager walks the page chain starting at one URL
type Pager struct {
	client  *Client
	next    string
	started bool
	fetched int
}

// NewPager creates a pager whose first request goes to startURL
func (c *Client) NewPager(startURL string) *Pager {
	return &Pager{client: c, next: startURL}
}

// More reports whether another page remains
func (p *Pager) More() bool {
	return !p.started || p.next != ""
}

// NextPage fetches the next page and advances the cursor. On failure the
// cursor stays put, so the same page is requested again on the next call.
func (p *Pager) NextPage(ctx context.Context) (*Page, error) {
	if !p.More() {
		return nil, fmt.Errorf("no more pages")
	}
	page, err := p.client.fetchWithRetry(ctx, p.next)
	if err != nil {
		return nil, err
	}
	p.started = true
	p.fetched++
	p.next = page.NextPageLink
	return page, nil
}

// Fetched returns how many pages were fetched so far
func (p *Pager) Fetched() int {
	return p.fetched
}

// FetchAllPages calls fn for every page in order, stopping at the first error
func (c *Client) FetchAllPages(ctx context.Context, startURL string, fn func(*Page) error) error {
	pager := c.NewPager(startURL)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		if err := fn(page); err != nil {
			return err
		}
	}
	c.logger.WithFields(map[string]interface{}{"pages": pager.Fetched()}).Info("retail prices fetched")
	return nil
}

// FetchRates downloads the whole price list and converts it to rate records
// stamped with runAt
func (c *Client) FetchRates(ctx context.Context, runAt time.Time) ([]rates.Record, error) {
	startURL, err := c.StartURL()
	if err != nil {
		return nil, err
	}
	var records []rates.Record
	err = c.FetchAllPages(ctx, startURL, func(p *Page) error {
		for _, it := range p.Items {
			records = append(records, it.ToRecord(runAt))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// fetchWithRetry makes at most two attempts at one page, waiting the
// configured delay between them
func (c *Client) fetchWithRetry(ctx context.Context, pageURL string) (*Page, error) {
	page, err := c.fetchPage(ctx, pageURL)
	if err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.logger.WithFields(map[string]interface{}{
		"url":         pageURL,
		"retry_delay": c.cfg.RetryDelay.String(),
	}).WarnWithErr(err, "retail price page request failed, retrying")
	metrics.RecordPricingRetry()

	if err := sleep(ctx, c.cfg.RetryDelay); err != nil {
		return nil, err
	}

	page, err = c.fetchPage(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.FetchFailed(pageURL, err)
	}
	return page, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	metrics.RecordPricingPage()
	return &page, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
