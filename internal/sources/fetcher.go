package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/yegors/co-notam/pkg/logger"
)

// FetcherConfig holds the outbound HTTP policy for NOTAM sources
type FetcherConfig struct {
	RequestTimeout    time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	BreakerFailures   int
	BreakerOpenTime   time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

func (c FetcherConfig) normalize() FetcherConfig {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpenTime <= 0 {
		c.BreakerOpenTime = time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "co-notam/1.0"
	}
	return c
}

// StatusError is returned for non-200 responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

func retryable(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode == http.StatusTooManyRequests || status.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// Fetcher performs rate-limited GETs with retries and a circuit breaker per host
type Fetcher struct {
	config     FetcherConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewFetcher creates a fetcher. A zero RequestsPerSecond disables rate limiting.
func NewFetcher(config FetcherConfig, log *logger.Logger) *Fetcher {
	config = config.normalize()
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	return &Fetcher{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     log.Named("fetcher"),
		breakers:   make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

// Get returns the body of a successful GET. Requests to a host whose
// breaker is open fail immediately.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source URL %q: %w", rawURL, err)
	}
	breaker := f.breaker(u.Host)
	return breaker.Execute(func() ([]byte, error) {
		return f.getWithRetry(ctx, rawURL)
	})
}

// IsCircuitOpen reports whether err comes from an open or saturated breaker
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (f *Fetcher) breaker(host string) *gobreaker.CircuitBreaker[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.breakers[host]; ok {
		return b
	}
	failures := uint32(f.config.BreakerFailures)
	b := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     f.config.BreakerOpenTime,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("Source circuit breaker changed state",
				logger.String("host", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	f.breakers[host] = b
	return b
}

// getWithRetry performs the request with retry logic and exponential backoff
func (f *Fetcher) getWithRetry(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	backoff := f.config.InitialBackoff

	for attempt := 0; attempt <= f.config.MaxRetries; attempt++ {
		if attempt > 0 {
			f.logger.Info("Retrying NOTAM source fetch",
				logger.String("url", rawURL),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := f.get(ctx, rawURL)
		if err == nil {
			if attempt > 0 {
				f.logger.Info("Successfully fetched NOTAM source after retries",
					logger.String("url", rawURL),
					logger.Int("attempts_needed", attempt+1))
			}
			return body, nil
		}

		lastErr = err
		f.logger.Warn("NOTAM source request failed",
			logger.String("url", rawURL),
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", f.config.MaxRetries+1))
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
