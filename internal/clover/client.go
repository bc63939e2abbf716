package clover

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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-sales-assistant/internal/cache"
	"github.com/tbourn/go-sales-assistant/internal/metrics"
	"github.com/tbourn/go-sales-assistant/internal/observability"
)

const (
	defaultBaseURL      = "https://sandbox.dev.clover.com"
	defaultTimeout      = 15 * time.Second
	defaultInventoryTTL = 10 * time.Minute
	defaultPageSize     = 1000
	defaultMaxPages     = 50
	maxErrorBody        = 512
)

var (
	// ErrUnauthorized indicates Clover rejected the access token.
	ErrUnauthorized = errors.New("clover unauthorized")
	// ErrMalformed indicates a response body that could not be decoded.
	ErrMalformed = errors.New("clover malformed response")
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("clover %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401/403 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// Config holds Clover client configuration.
type Config struct {
	BaseURL      string
	MerchantID   string
	AccessToken  string
	Timeout      time.Duration
	InventoryTTL time.Duration
	PageSize     int
	// MaxPages caps pagination per call; reaching it is logged as truncation.
	MaxPages int
}

// Client provides typed access to the Clover v3 REST API.
type Client struct {
	logger       zerolog.Logger
	baseURL      string
	merchantID   string
	token        string
	http         *http.Client
	metrics      *metrics.Metrics
	cache        cache.JSONCache
	inventoryTTL time.Duration
	pageSize     int
	maxPages     int
}

// New creates a Clover client. m and c may be nil.
func New(cfg Config, m *metrics.Metrics, c cache.JSONCache) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ttl := cfg.InventoryTTL
	if ttl <= 0 {
		ttl = defaultInventoryTTL
	}
	size := cfg.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	pages := cfg.MaxPages
	if pages <= 0 {
		pages = defaultMaxPages
	}
	return &Client{
		logger:       log.With().Str("component", "clover").Logger(),
		baseURL:      base,
		merchantID:   cfg.MerchantID,
		token:        cfg.AccessToken,
		http:         &http.Client{Timeout: timeout},
		metrics:      m,
		cache:        c,
		inventoryTTL: ttl,
		pageSize:     size,
		maxPages:     pages,
	}
}

// NewSource returns the live client when a token is configured, otherwise
// the mock source.
func NewSource(cfg Config, m *metrics.Metrics, c cache.JSONCache) Source {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return NewMockSource()
	}
	return New(cfg, m, c)
}

// GetOrders fetches orders created in [start, end) with their line items,
// following offset pagination.
func (c *Client) GetOrders(ctx context.Context, start, end time.Time) ([]Order, error) {
	ctx, span := observability.Tracer("clover").Start(ctx, "GetOrders",
		trace.WithAttributes(attribute.String("merchant_id", c.merchantID)))
	defer span.End()

	q := url.Values{}
	q.Set("expand", "lineItems")
	q.Add("filter", "createdTime>="+strconv.FormatInt(start.UnixMilli(), 10))
	q.Add("filter", "createdTime<"+strconv.FormatInt(end.UnixMilli(), 10))

	out, truncated, err := fetchAll(ctx, c, "orders", q, wireOrder.toOrder)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch orders")
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders", len(out)), attribute.Bool("truncated", truncated))
	return out, nil
}

// GetInventory returns the item catalogue, cached in Redis for the
// configured TTL when a cache is wired.
func (c *Client) GetInventory(ctx context.Context) ([]InventoryItem, error) {
	ctx, span := observability.Tracer("clover").Start(ctx, "GetInventory")
	defer span.End()

	key := "clover:inventory:" + c.merchantID
	if c.cache != nil {
		var cached []InventoryItem
		ok, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			c.logger.Warn().Err(err).Msg("read inventory cache failed")
		} else if ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("expand", "categories")
	items, truncated, err := fetchAll(ctx, c, "items", q, wireItem.toItem)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch inventory")
		return nil, err
	}
	if items == nil {
		items = []InventoryItem{}
	}
	span.SetAttributes(attribute.Int("items", len(items)), attribute.Bool("truncated", truncated))

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, key, items, c.inventoryTTL); err != nil {
			c.logger.Warn().Err(err).Msg("set inventory cache failed")
		}
	}
	return items, nil
}

// fetchAll walks offset pagination on endpoint until a short page. It stops
// after c.maxPages full pages, logs that the result is truncated and reports
// it; what was read so far is still returned.
func fetchAll[W, T any](ctx context.Context, c *Client, endpoint string, base url.Values, conv func(W) T) ([]T, bool, error) {
	var out []T
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		for k, v := range base {
			q[k] = append([]string(nil), v...)
		}
		q.Set("limit", strconv.Itoa(c.pageSize))
		q.Set("offset", strconv.Itoa(page*c.pageSize))

		var env envelope[W]
		if err := c.get(ctx, endpoint, q, &env); err != nil {
			return nil, false, err
		}
		for _, w := range env.Elements {
			out = append(out, conv(w))
		}
		if len(env.Elements) < c.pageSize {
			return out, false, nil
		}
	}
	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("pages", c.maxPages).
		Int("page_size", c.pageSize).
		Int("elements", len(out)).
		Msg("page limit reached; results truncated")
	return out, true, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, dest any) error {
	reqURL := fmt.Sprintf("%s/v3/merchants/%s/%s", c.baseURL, url.PathEscape(c.merchantID), endpoint)
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "go-sales-assistant/clover-client")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CloverRequests.WithLabelValues(endpoint, "error").Inc()
		}
		return fmt.Errorf("clover request: %w", err)
	}
	defer res.Body.Close()

	statusLabel := strconv.Itoa(res.StatusCode)
	if c.metrics != nil {
		c.metrics.CloverRequests.WithLabelValues(endpoint, statusLabel).Inc()
		c.metrics.CloverLatency.WithLabelValues(endpoint, statusLabel).Observe(time.Since(start).Seconds())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 400 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return &HTTPError{Endpoint: endpoint, Status: res.StatusCode, Body: snippet}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, endpoint, err)
	}
	return nil
}
