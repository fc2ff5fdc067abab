package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Naver open API host
	DefaultBaseURL = "https://openapi.naver.com"

	providerName   = "naver"
	maxAttempts    = 3
	maxBodySize    = 1 << 20
	defaultDisplay = 5
)

// Config holds Naver Shopping search settings
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Display      int     // results per search, 1-100
	Sort         string  // sim, date, asc, dsc
	RateLimit    float64 // requests per second
	RateBurst    int
	Timeout      time.Duration
}

// Client handles communication with the Naver Shopping search API
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	baseURL      string
	display      int
	sort         string
	rateLimiter  *rate.Limiter
	backoff      func(attempt int) time.Duration
	debug        bool
	logger       *zap.Logger
}

// NewClient creates a new Naver Shopping client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Display <= 0 || cfg.Display > 100 {
		cfg.Display = defaultDisplay
	}
	if cfg.Sort == "" {
		cfg.Sort = "asc"
	}
	// The open API allows 25,000 calls a day; 10/s keeps a burst of lookups smooth
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		baseURL:      cfg.BaseURL,
		display:      cfg.Display,
		sort:         cfg.Sort,
		rateLimiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		backoff:      exponentialBackoff,
		logger:       logger.With(zap.String("provider", providerName)),
	}
}

// Name identifies the provider in cache keys and responses
func (c *Client) Name() string { return providerName }

// SetDebug enables per-attempt request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns the wait before retrying: 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// SearchOffers searches Naver Shopping and returns the priced results.
// 5xx and 429 responses are retried; 404 or an empty result is ErrProductNotFound.
func (c *Client) SearchOffers(ctx context.Context, query string) ([]domain.OnlineOffer, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, fmt.Errorf("%w: naver client id/secret missing", domain.ErrProviderNotConfigured)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(c.display))
	params.Set("start", "1")
	params.Set("sort", c.sort)
	reqURL := fmt.Sprintf("%s/v1/search/shop.json?%s", c.baseURL, params.Encode())

	start := time.Now()
	offers, err := c.search(ctx, reqURL, query)
	metrics.UpstreamRequestsTotal.WithLabelValues(providerName, metrics.Status(err)).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())

	return offers, err
}

func (c *Client) search(ctx context.Context, reqURL, query string) ([]domain.OnlineOffer, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		c.debugLog("searching", zap.String("query", query), zap.Int("attempt", attempt))

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("request failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		body, err := readLimitedBody(resp.Body, maxBodySize)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read body: %v", domain.ErrShoppingAPIFailure, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrProductNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: naver status %d", domain.ErrRateLimited, resp.StatusCode)
			c.logger.Warn("rate limited", zap.Int("attempt", attempt))
			continue
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrShoppingAPIFailure, resp.StatusCode)
			c.logger.Warn("server error", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			continue
		default:
			return nil, fmt.Errorf("%w: status %d: %s", domain.ErrShoppingAPIFailure, resp.StatusCode, apiErrorMessage(body))
		}

		var searchResp SearchResponse
		if err := json.Unmarshal(body, &searchResp); err != nil {
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrShoppingAPIFailure, err)
		}

		offers := MapToOffers(searchResp.Items, query)
		if len(offers) == 0 {
			c.debugLog("no results", zap.String("query", query))
			return nil, domain.ErrProductNotFound
		}

		c.debugLog("found offers", zap.String("query", query), zap.Int("count", len(offers)))
		return offers, nil
	}

	c.logger.Error("all retries failed", zap.String("query", query), zap.Error(lastErr))
	return nil, lastErr
}

// doRequest executes an HTTP GET request with the API credentials
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrShoppingAPIFailure, err)
	}
	return resp, nil
}

func (c *Client) debugLog(msg string, fields ...zap.Field) {
	if !c.debug {
		return
	}
	c.logger.Debug(msg, fields...)
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

// apiErrorMessage pulls errorMessage out of an error body, falling back to the raw text
func apiErrorMessage(body []byte) string {
	var apiErr ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorMessage != "" {
		return apiErr.ErrorCode + " " + apiErr.ErrorMessage
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
