package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/observability/metrics"
	"github.com/smallbiznis/petroprice/internal/observability/tracing"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3

	headerIdempotencyKey = "Idempotency-Key"
	maxErrorBody         = 4 << 10
)

type Options struct {
	Provider      string
	BaseURL       string
	APIToken      string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	MaxRetries    uint
	Breaker       BreakerConfig
	HTTPClient    *http.Client
	Metrics       *metrics.Metrics
	Log           *zap.Logger
}

// Client performs JSON calls against one collaborator with throttling,
// a circuit breaker and retries for idempotent requests.
type Client struct {
	provider   string
	baseURL    string
	apiToken   string
	maxRetries uint
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *Breaker
	metrics    *metrics.Metrics
	log        *zap.Logger
	backoff    func() backoff.BackOff
}

type Request struct {
	Method string
	Path   string
	Body   any
	// Idempotent requests are retried with exponential backoff.
	Idempotent     bool
	IdempotencyKey string
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	base.Timeout = timeout

	limit := rate.Inf
	burst := opts.Burst
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		provider:   opts.Provider,
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiToken:   opts.APIToken,
		maxRetries: maxRetries,
		http:       tracing.WrapHTTPClient(base, opts.Provider),
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    NewBreaker(opts.Breaker),
		metrics:    opts.Metrics,
		log:        log.Named("providers." + opts.Provider),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

func (c *Client) Provider() string { return c.provider }

func (c *Client) Configured() bool { return c != nil && c.baseURL != "" }

func (c *Client) BreakerState() BreakerState { return c.breaker.State() }

// Do sends a JSON request. GET requests are treated as idempotent.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	return c.Send(ctx, Request{
		Method:     method,
		Path:       path,
		Body:       body,
		Idempotent: strings.EqualFold(method, http.MethodGet),
	}, out)
}

func (c *Client) Send(ctx context.Context, req Request, out any) error {
	if !c.Configured() {
		return &Error{Provider: c.provider, Method: req.Method, Path: req.Path, Err: ErrNotConfigured}
	}

	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", c.provider, err)
		}
		payload = encoded
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" && !strings.EqualFold(req.Method, http.MethodGet) {
		key = uuid.NewString()
	}

	operation := func() (struct{}, error) {
		err := c.attempt(ctx, req, payload, key, out)
		if err == nil {
			return struct{}{}, nil
		}
		var callErr *Error
		if !req.Idempotent || !errors.As(err, &callErr) || !callErr.Retryable() {
			return struct{}{}, backoff.Permanent(err)
		}
		c.log.Warn("retrying provider call",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		return struct{}{}, err
	}

	tries := uint(1)
	if req.Idempotent {
		tries = c.maxRetries
	}
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.backoff()),
		backoff.WithMaxTries(tries),
	)
	return err
}

func (c *Client) attempt(ctx context.Context, req Request, payload []byte, idempotencyKey string, out any) error {
	if err := c.breaker.Allow(); err != nil {
		return &Error{Provider: c.provider, Method: req.Method, Path: req.Path, Err: err}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		c.breaker.Record(true)
		return fmt.Errorf("%s rate limit wait: %w", c.provider, err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		c.breaker.Record(true)
		return fmt.Errorf("build %s request: %w", c.provider, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set(headerIdempotencyKey, idempotencyKey)
	}
	if c.apiToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.RecordProviderCall(ctx, c.provider, req.Path, 0, time.Since(start))
		callErr := &Error{Provider: c.provider, Method: req.Method, Path: req.Path, Err: err}
		c.breaker.Record(false)
		return callErr
	}
	defer resp.Body.Close()
	c.metrics.RecordProviderCall(ctx, c.provider, req.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		callErr := &Error{
			Provider:   c.provider,
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.Status),
		}
		c.breaker.Record(!callErr.countsAsFailure())
		return callErr
	}
	c.breaker.Record(true)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	return nil
}

// HealthCheck probes GET /health.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Send(ctx, Request{Method: http.MethodGet, Path: "/health", Idempotent: true}, nil)
}

// errorMessage pulls a message out of common JSON error envelopes.
func errorMessage(raw []byte, fallback string) string {
	var envelope struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		switch v := envelope.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fallback
}

// FromConfig builds a client for one collaborator from the shared provider settings.
func FromConfig(provider, baseURL string, cfg config.ProvidersConfig, m *metrics.Metrics, log *zap.Logger) *Client {
	return New(Options{
		Provider:      provider,
		BaseURL:       baseURL,
		APIToken:      cfg.APIToken,
		Timeout:       cfg.Timeout,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		Breaker:       DefaultBreakerConfig(),
		Metrics:       m,
		Log:           log,
	})
}
