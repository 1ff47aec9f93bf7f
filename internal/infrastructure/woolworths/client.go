// Package woolworths is the product provider client for the Woolworths web
// API. Every outbound call passes through the shared rate limiter; results
// are cached and served stale when the retailer cannot be reached.
package woolworths

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/oakley-grocery/backend/internal/domain"
	"github.com/oakley-grocery/backend/internal/metrics"
)

const (
	opSearch   = "search"
	opDetails  = "details"
	opSpecials = "specials"

	// maxBodySize caps how much of a response body is read
	maxBodySize = 4 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Config holds the provider endpoints, retry policy and cache TTLs
type Config struct {
	BaseURL      string
	SearchPath   string
	ProductPath  string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	PageSize     int
	Sort         domain.SortOrder

	SearchTTL   time.Duration
	ProductTTL  time.Duration
	SpecialsTTL time.Duration
}

// DefaultConfig returns the production endpoints and policy
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://www.woolworths.com.au",
		SearchPath:   "/apis/ui/Search/products",
		ProductPath:  "/apis/ui/product/detail",
		Timeout:      20 * time.Second,
		Retries:      3,
		RetryBackoff: 500 * time.Millisecond,
		PageSize:     10,
		Sort:         domain.SortRelevance,
		SearchTTL:    time.Hour,
		ProductTTL:   24 * time.Hour,
		SpecialsTTL:  4 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = def.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.SearchPath == "" {
		c.SearchPath = def.SearchPath
	}
	if c.ProductPath == "" {
		c.ProductPath = def.ProductPath
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Retries <= 0 {
		c.Retries = 1
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.Sort == "" {
		c.Sort = def.Sort
	}
	if c.SearchTTL <= 0 {
		c.SearchTTL = def.SearchTTL
	}
	if c.ProductTTL <= 0 {
		c.ProductTTL = def.ProductTTL
	}
	if c.SpecialsTTL <= 0 {
		c.SpecialsTTL = def.SpecialsTTL
	}
	return c
}

// session is one cookie-carrying HTTP client. It is warmed by loading the
// home page once and discarded after a failed request.
type session struct {
	client *http.Client
	warm   sync.Once
}

// Client handles communication with the Woolworths web API
type Client struct {
	cfg     Config
	limiter domain.RateLimiter
	cache   domain.ResultCache
	log     zerolog.Logger
	group   singleflight.Group

	mu      sync.Mutex
	current *session
}

// NewClient creates a provider client sharing the given limiter and cache
func NewClient(cfg Config, limiter domain.RateLimiter, cache domain.ResultCache, log zerolog.Logger) *Client {
	return &Client{
		cfg:     cfg.withDefaults(),
		limiter: limiter,
		cache:   cache,
		log:     log.With().Str("component", "woolworths").Logger(),
	}
}

// Search returns the candidates for a free-text query. An empty result is
// not an error.
func (c *Client) Search(ctx context.Context, query domain.SearchQuery) ([]domain.CandidateProduct, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = c.cfg.PageSize
	}
	if query.Sort == "" {
		query.Sort = c.cfg.Sort
	}

	key := fmt.Sprintf("search:%s:%d:%d:%s", query.Query, query.Page, query.PageSize, query.Sort)
	return fetchCached(ctx, c, opSearch, key, c.cfg.SearchTTL, func(ctx context.Context) ([]domain.CandidateProduct, error) {
		body, err := c.post(ctx, opSearch, searchPayload{
			SearchTerm: query.Query,
			PageNumber: query.Page,
			PageSize:   query.PageSize,
			SortType:   string(query.Sort),
		})
		if err != nil {
			return nil, err
		}
		return parseSearch(body, false)
	})
}

// GetDetails returns a single product by stock code
func (c *Client) GetDetails(ctx context.Context, code int64) (*domain.CandidateProduct, error) {
	key := fmt.Sprintf("product:%d", code)
	return fetchCached(ctx, c, opDetails, key, c.cfg.ProductTTL, func(ctx context.Context) (*domain.CandidateProduct, error) {
		reqURL := c.cfg.BaseURL + c.cfg.ProductPath + "/" + strconv.FormatInt(code, 10)
		body, err := c.do(ctx, opDetails, func(ctx context.Context) (*http.Request, error) {
			return c.newRequest(ctx, http.MethodGet, reqURL, nil)
		})
		if err != nil {
			return nil, err
		}
		return parseDetails(body)
	})
}

// Specials returns the products currently on special
func (c *Client) Specials(ctx context.Context, page, pageSize int) ([]domain.CandidateProduct, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = c.cfg.PageSize
	}

	key := fmt.Sprintf("specials:%d:%d", page, pageSize)
	return fetchCached(ctx, c, opSpecials, key, c.cfg.SpecialsTTL, func(ctx context.Context) ([]domain.CandidateProduct, error) {
		body, err := c.post(ctx, opSpecials, searchPayload{
			PageNumber: page,
			PageSize:   pageSize,
			SortType:   string(domain.SortRelevance),
			IsSpecial:  true,
		})
		if err != nil {
			return nil, err
		}
		return parseSearch(body, true)
	})
}

type searchPayload struct {
	SearchTerm string `json:"SearchTerm"`
	PageNumber int    `json:"PageNumber"`
	PageSize   int    `json:"PageSize"`
	SortType   string `json:"SortType"`
	Location   string `json:"Location"`
	IsSpecial  bool   `json:"IsSpecial"`
}

// fetchCached serves key from the cache when fresh, otherwise fetches it
// once for all concurrent callers. When the fetch fails the last good
// payload is served if it is within the cache's staleness horizon.
func fetchCached[T any](ctx context.Context, c *Client, op, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	if data, err := c.cache.Get(ctx, key, ttl); err == nil {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			c.log.Debug().Str("key", key).Msg("cache hit")
			return cached, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if !isEmpty(result) {
			c.store(ctx, key, result)
		}
		return result, nil
	})
	if err == nil {
		if shared {
			c.log.Debug().Str("key", key).Msg("shared in-flight fetch")
		}
		return v.(T), nil
	}

	if errors.Is(err, domain.ErrProductNotFound) {
		return zero, err
	}

	if data, staleErr := c.cache.GetStale(ctx, key); staleErr == nil {
		var stale T
		if jsonErr := json.Unmarshal(data, &stale); jsonErr == nil {
			c.log.Warn().Err(err).Str("operation", op).Str("key", key).Msg("provider failed, serving stale cache entry")
			return stale, nil
		}
	}

	c.log.Error().Err(err).Str("operation", op).Str("key", key).Msg("provider request failed")
	return zero, fmt.Errorf("%w: %s: %v", domain.ErrProviderFailure, op, err)
}

func (c *Client) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}
	if err := c.cache.Set(ctx, key, data); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to write cache entry")
	}
}

// isEmpty reports whether a result should be left out of the cache.
// Empty result lists are never cached.
func isEmpty(v interface{}) bool {
	switch r := v.(type) {
	case []domain.CandidateProduct:
		return len(r) == 0
	case *domain.CandidateProduct:
		return r == nil
	}
	return false
}

func (c *Client) post(ctx context.Context, op string, payload searchPayload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	reqURL := c.cfg.BaseURL + c.cfg.SearchPath
	return c.do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	})
}

func (c *Client) newRequest(ctx context.Context, method, reqURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	req.Header.Set("Origin", c.cfg.BaseURL)
	req.Header.Set("Referer", c.cfg.BaseURL+"/shop/search/products")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// statusError is a non-retryable HTTP status from the provider
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// do executes a request with retries. Transport errors, 429 and 5xx are
// retried with exponential backoff; any other non-200 status fails at once.
// Only a product lookup maps 404 to ErrProductNotFound.
// Each attempt waits for a rate limiter permit.
func (c *Client) do(ctx context.Context, op string, newReq func(context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 1 {
			wait := exponentialBackoff(c.cfg.RetryBackoff, attempt-1)
			c.log.Debug().Str("operation", op).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying provider request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, err
		}

		sess := c.session(ctx)
		resp, err := sess.client.Do(req)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(op, "transport_error").Inc()
			c.resetSession(sess)
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn().Err(err).Str("operation", op).Int("attempt", attempt).Msg("provider transport error")
			continue
		}

		body, err := readLimitedBody(resp.Body, maxBodySize)
		resp.Body.Close()
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(op, "transport_error").Inc()
			c.resetSession(sess)
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		metrics.ProviderRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusNotFound && op == opDetails:
			return nil, domain.ErrProductNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			c.resetSession(sess)
			lastErr = &statusError{StatusCode: resp.StatusCode, Body: truncate(body, 200)}
			c.log.Warn().Int("status", resp.StatusCode).Str("operation", op).Int("attempt", attempt).Msg("provider returned retryable status")
		default:
			c.resetSession(sess)
			return nil, &statusError{StatusCode: resp.StatusCode, Body: truncate(body, 200)}
		}
	}

	return nil, lastErr
}

// session returns the current session, creating and warming one if needed.
// Warm-up failures are ignored; the API call itself decides success.
func (c *Client) session(ctx context.Context) *session {
	c.mu.Lock()
	if c.current == nil {
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		c.current = &session{client: &http.Client{Timeout: c.cfg.Timeout, Jar: jar}}
	}
	sess := c.current
	c.mu.Unlock()

	sess.warm.Do(func() {
		req, err := c.newRequest(ctx, http.MethodGet, c.cfg.BaseURL+"/", nil)
		if err != nil {
			return
		}
		resp, err := sess.client.Do(req)
		if err != nil {
			c.log.Debug().Err(err).Msg("session warm-up failed")
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
	})

	return sess
}

// resetSession drops sess if it is still current
func (c *Client) resetSession(sess *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == sess {
		c.current = nil
	}
}

// exponentialBackoff returns base doubled for every attempt after the first
func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n])
	}
	return string(body)
}
