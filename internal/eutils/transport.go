package eutils

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-search-service/internal/domain"
	"github.com/helixir/pubmed-search-service/internal/observability"
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 10 << 20

const userAgent = "pubmed-search-service/1.0"

// TransportConfig configures the shared E-utilities transport.
type TransportConfig struct {
	// BaseURL is the E-utilities base URL.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the NCBI API key, merged into every request when set.
	APIKey string

	// Email is the contact address, merged into every request when set.
	Email string

	// Timeout is the per-attempt request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RetryDelay is the base delay between retry attempts, doubling each
	// attempt. Defaults to DefaultRetryDelay if zero.
	RetryDelay time.Duration

	// Tier supplies the rate limit and concurrency gate capacity.
	Tier Tier

	// Logger receives retry warnings.
	Logger zerolog.Logger

	// Metrics, when non-nil, receives upstream request metrics.
	Metrics *observability.Metrics
}

// Transport executes rate-limited, concurrency-bounded GET requests against
// the E-utilities API with retry on transient failures. A concurrency slot
// is held across every retry attempt of one logical request. The underlying
// HTTP client is created lazily and can be released with Close; a closed
// transport re-creates the client on next use.
// Transport is safe for concurrent use.
type Transport struct {
	baseURL    string
	apiKey     string
	email      string
	timeout    time.Duration
	retryDelay time.Duration
	limiter    *RateLimiter
	gate       *ConcurrencyGate
	logger     zerolog.Logger
	metrics    *observability.Metrics

	mu     sync.Mutex
	client *http.Client
}

// NewTransport creates a transport from the given configuration.
func NewTransport(cfg TransportConfig) *Transport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Tier.RequestsPerSecond == 0 {
		cfg.Tier = TierFor(cfg.APIKey)
	}

	rps := cfg.Tier.RequestsPerSecond
	return &Transport{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		email:      cfg.Email,
		timeout:    cfg.Timeout,
		retryDelay: cfg.RetryDelay,
		limiter:    NewRateLimiter(float64(rps), rps),
		gate:       NewConcurrencyGate(rps),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Gate returns the transport's concurrency gate.
func (t *Transport) Gate() *ConcurrencyGate {
	return t.gate
}

// Close releases the underlying HTTP client's idle connections. The
// transport remains usable; the client is re-created on next use.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		t.client.CloseIdleConnections()
		t.client = nil
	}
}

// httpClient returns the shared HTTP client, creating it if needed.
func (t *Transport) httpClient() *http.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		t.client = &http.Client{Timeout: t.timeout}
	}
	return t.client
}

// Get executes one logical GET request against the named endpoint (for
// example "esearch.fcgi"). Credentials are merged into the parameters. The
// request is retried up to MaxAttempts times on connection errors and
// timeouts with doubling backoff; a non-2xx status and a decode failure are
// not retried.
func (t *Transport) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u, err := url.Parse(t.baseURL + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	if t.apiKey != "" {
		q.Set("api_key", t.apiKey)
	}
	if t.email != "" {
		q.Set("email", t.email)
	}
	u.RawQuery = q.Encode()

	label := strings.TrimSuffix(endpoint, ".fcgi")

	if t.metrics != nil {
		t.metrics.GateWaiting.Inc()
	}
	acquireErr := t.gate.Acquire(ctx)
	if t.metrics != nil {
		t.metrics.GateWaiting.Dec()
	}
	if acquireErr != nil {
		return nil, acquireErr
	}
	defer t.gate.Release()

	delay := t.retryDelay
	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			t.logger.Warn().
				Str("endpoint", label).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying upstream request")
			if t.metrics != nil {
				t.metrics.RecordUpstreamRetry(label)
			}
			if err := waitForRetry(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		body, err := t.doOnce(ctx, label, u.String())
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, domain.ErrTransient) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// GetJSON executes Get and decodes the payload as JSON.
func (t *Transport) GetJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	body, err := t.Get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewMalformedResponseError(strings.TrimSuffix(endpoint, ".fcgi"), err)
	}
	return nil
}

// GetXML executes Get and decodes the payload as XML.
func (t *Transport) GetXML(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	body, err := t.Get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return domain.NewMalformedResponseError(strings.TrimSuffix(endpoint, ".fcgi"), err)
	}
	return nil
}

// doOnce performs a single request attempt.
func (t *Transport) doOnce(ctx context.Context, label, fullURL string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := t.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if t.metrics != nil {
			t.metrics.RecordUpstreamFailure(label, "transient")
		}
		return nil, domain.NewTransientError(label, err)
	}
	defer resp.Body.Close()

	if t.metrics != nil {
		t.metrics.RecordUpstreamRequest(label, time.Since(start).Seconds())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if t.metrics != nil {
			t.metrics.RecordUpstreamFailure(label, "status")
		}
		return nil, domain.NewExternalAPIError(label, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordUpstreamFailure(label, "transient")
		}
		return nil, domain.NewTransientError(label, err)
	}
	return body, nil
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
