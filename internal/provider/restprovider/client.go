// Package restprovider adapts JSON-over-HTTP registries to the provider contract.
// One configured endpoint becomes one provider per capability, each issuing
// GET {base_url}/{capability}?lat=..&lon=.. and decoding the body straight into
// the matching section type.
package restprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/config"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

const defaultBackoff = 200 * time.Millisecond

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBackoff sets the base delay between retries.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithClock overrides time.Now for source timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// Client is the HTTP core shared by every capability adapter of one endpoint.
type Client struct {
	name        string
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
	cache       *cache.Cache
	fallback    map[string]json.RawMessage
	fallbackSrc string
	now         func() time.Time
}

type cachedResponse struct {
	body        []byte
	found       bool
	url         string
	retrievedAt time.Time
}

// NewClient builds the HTTP core for cfg.
func NewClient(cfg config.ProviderConfig, opts ...Option) (*Client, error) {
	if cfg.Name == "" || cfg.BaseURL == "" {
		return nil, errors.New("restprovider: name and base_url are required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("restprovider: %s: parse base_url: %w", cfg.Name, err)
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst < 1 {
			burst = max(1, int(cfg.RateLimit))
		}
	}
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		name:        cfg.Name,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: max(1, cfg.MaxAttempts),
		backoff:     defaultBackoff,
		now:         time.Now,
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	if cfg.FallbackFile != "" {
		statics, err := loadFallbackFile(cfg.FallbackFile)
		if err != nil {
			return nil, fmt.Errorf("restprovider: %s: %w", cfg.Name, err)
		}
		c.fallback = statics
		c.fallbackSrc = "file://" + cfg.FallbackFile
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the configured provider name used in source records.
func (c *Client) Name() string { return c.name }

func (c *Client) requestURL(capability string, q provider.Query) string {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(q.Lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(q.Lon, 'f', 6, 64))
	if q.RadiusM > 0 {
		params.Set("radius", strconv.FormatFloat(q.RadiusM, 'f', 0, 64))
	}
	if q.TitleReference != "" {
		params.Set("title", q.TitleReference)
	}
	if q.Address != "" {
		params.Set("address", q.Address)
	}
	return c.baseURL + "/" + capability + "?" + params.Encode()
}

func cacheKey(capability string, q provider.Query) string {
	return fmt.Sprintf("%s:%.6f:%.6f:%.0f:%s", capability, q.Lat, q.Lon, q.RadiusM, q.TitleReference)
}

// fetch runs one lookup and decodes the body into out. found is false when the
// registry has no record for the query.
func (c *Client) fetch(ctx context.Context, capability string, q provider.Query, out any) (models.Source, bool, error) {
	key := cacheKey(capability, q)
	if c.cache != nil {
		if hit, ok := c.cache.Get(key); ok {
			cached := hit.(cachedResponse)
			src := models.Source{Name: c.name, URL: cached.url, RetrievedAt: cached.retrievedAt}
			if !cached.found {
				return src, false, nil
			}
			return src, true, c.decode(capability, cached.body, out)
		}
	}

	reqURL := c.requestURL(capability, q)
	body, found, err := c.getWithRetry(ctx, reqURL)
	src := models.Source{Name: c.name, URL: reqURL, RetrievedAt: c.now().UTC()}
	if err != nil {
		return src, false, err
	}
	if found {
		if err := c.decode(capability, body, out); err != nil {
			return src, false, err
		}
	}
	if c.cache != nil {
		c.cache.Set(key, cachedResponse{body: body, found: found, url: reqURL, retrievedAt: src.RetrievedAt}, cache.DefaultExpiration)
	}
	return src, found, nil
}

func (c *Client) decode(capability string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return provider.NewProviderError(provider.ErrorBadData, c.name, "decode "+capability+" response", err)
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, reqURL string) ([]byte, bool, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		body, found, err := c.get(ctx, reqURL)
		if err == nil {
			return body, found, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isTransient(err) || attempt == c.maxAttempts-1 {
			break
		}
		timer := time.NewTimer(c.backoff << attempt)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, lastErr
		case <-timer.C:
		}
	}
	return nil, false, lastErr
}

func isTransient(err error) bool {
	switch provider.Categorize(err) {
	case provider.ErrorUnavailable, provider.ErrorRateLimited:
		return true
	}
	return false
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, c.contextError(ctxErr)
		}
		return nil, false, provider.NewProviderError(provider.ErrorRateLimited, c.name, "local rate limit", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, provider.NewProviderError(provider.ErrorInternal, c.name, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, c.contextError(ctxErr)
		}
		return nil, false, provider.NewProviderError(provider.ErrorUnavailable, c.name, "request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, provider.NewProviderError(provider.ErrorRateLimited, c.name, "status 429", nil)
	case resp.StatusCode >= 500:
		return nil, false, provider.NewProviderError(provider.ErrorUnavailable, c.name, fmt.Sprintf("status %d", resp.StatusCode), nil)
	default:
		return nil, false, provider.NewProviderError(provider.ErrorBadData, c.name, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, c.contextError(ctxErr)
		}
		return nil, false, provider.NewProviderError(provider.ErrorUnavailable, c.name, "read body", err)
	}
	return body, true, nil
}

func (c *Client) contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.NewProviderError(provider.ErrorTimeout, c.name, "deadline exceeded", err)
	}
	return provider.NewProviderError(provider.ErrorCancelled, c.name, "cancelled", err)
}
