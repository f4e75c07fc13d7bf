package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/zonal/pkg/logger"
	"github.com/okian/zonal/pkg/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Default HTTP backend settings.
const (
	defaultRatePerSec          = 5
	defaultBurst               = 5
	defaultBreakerRatio        = 0.6
	defaultBreakerMinRequests  = 10
	defaultBreakerOpenTimeout  = time.Minute
	defaultBreakerInterval     = time.Minute
	defaultBreakerHalfOpenReqs = 1
	reducePath                 = "/reduce-region"
	maxResponseBytes           = 8 << 20
	errorBodyPreview           = 256
)

// HTTPOption applies a configuration option to the HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient sets the client used for backend calls.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(b *HTTPBackend) {
		if c != nil {
			b.client = c
		}
	}
}

// WithRateLimit caps outgoing reductions to protect the backend quota.
func WithRateLimit(perSec float64, burst int) HTTPOption {
	return func(b *HTTPBackend) {
		if perSec > 0 && burst > 0 {
			b.ratePerSec = perSec
			b.burst = burst
		}
	}
}

// WithBreaker configures the circuit breaker trip ratio, the minimum number
// of requests before it may trip, and how long it stays open.
func WithBreaker(failureRatio float64, minRequests uint32, openTimeout time.Duration) HTTPOption {
	return func(b *HTTPBackend) {
		if failureRatio > 0 && failureRatio <= 1 {
			b.breakerRatio = failureRatio
		}
		if minRequests > 0 {
			b.breakerMinRequests = minRequests
		}
		if openTimeout > 0 {
			b.breakerOpenTimeout = openTimeout
		}
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l logger.Logger) HTTPOption {
	return func(b *HTTPBackend) {
		if l != nil {
			b.log = l
		}
	}
}

// HTTPBackend reduces regions through a remote HTTP service.
type HTTPBackend struct {
	endpoint string
	client   *http.Client
	log      logger.Logger

	ratePerSec         float64
	burst              int
	breakerRatio       float64
	breakerMinRequests uint32
	breakerOpenTimeout time.Duration

	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[Response]
}

// NewHTTPBackend creates a backend posting reductions to baseURL.
func NewHTTPBackend(baseURL string, opts ...HTTPOption) *HTTPBackend {
	b := &HTTPBackend{
		endpoint:           strings.TrimRight(baseURL, "/") + reducePath,
		client:             &http.Client{},
		log:                logger.Nop(),
		ratePerSec:         defaultRatePerSec,
		burst:              defaultBurst,
		breakerRatio:       defaultBreakerRatio,
		breakerMinRequests: defaultBreakerMinRequests,
		breakerOpenTimeout: defaultBreakerOpenTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.limiter = rate.NewLimiter(rate.Limit(b.ratePerSec), b.burst)
	b.cb = gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        b.Name(),
		MaxRequests: defaultBreakerHalfOpenReqs,
		Interval:    defaultBreakerInterval,
		Timeout:     b.breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.breakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= b.breakerRatio
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateCircuitBreakerState(name, breakerStateValue(to))
		},
	})
	metrics.UpdateCircuitBreakerState(b.Name(), breakerStateValue(gobreaker.StateClosed))

	return b
}

// Name identifies the backend in logs and metrics.
func (b *HTTPBackend) Name() string { return "http" }

// FrequencyHistogram posts one reduction. It waits for the rate limiter, then
// makes a single attempt through the circuit breaker.
func (b *HTTPBackend) FrequencyHistogram(ctx context.Context, req Request) (Response, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := b.cb.Execute(func() (Response, error) {
		return b.post(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return resp, err
}

func (b *HTTPBackend) post(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", b.endpoint, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(httpResp.Body, errorBodyPreview))
		return nil, fmt.Errorf("backend status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(preview)))
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return out, nil
}

// breakerSuccess keeps caller cancellations out of the failure counts.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
