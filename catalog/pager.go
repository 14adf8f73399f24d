// Package catalog fetches and reads the external image gallery: paginated
// search results, individual image pages and image downloads.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jwstascii/jwstascii/logging"
	"golang.org/x/time/rate"
)

var (
	ErrRequestFailed  = errors.New("request failed")
	ErrRetryExhausted = errors.New("retries exhausted")
	ErrInvalidPage    = errors.New("page numbers start at 1")
)

// DefaultPageURL is the gallery search, observations only, 100 per page.
const DefaultPageURL = "https://webbtelescope.org/resource-gallery/images?Type=Observations&itemsPerPage=100&page=%d"

// RequestError reports a response with an unexpected status code.
type RequestError struct {
	URL        string
	StatusCode int
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

// Transient reports whether the status is worth retrying.
func (e *RequestError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// PagerConfig holds the network settings of a Pager.
type PagerConfig struct {
	// PageURL is a format string with a single %d for the page number.
	PageURL        string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
	// RequestsPerSecond paces all requests; zero or less disables pacing.
	RequestsPerSecond float64
	UserAgent         string
}

// DefaultPagerConfig returns the default network settings.
func DefaultPagerConfig() PagerConfig {
	return PagerConfig{
		PageURL:           DefaultPageURL,
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 1,
		UserAgent:         "jwstascii/1.0 (daily archive publisher)",
	}
}

// Pager performs GET requests against the catalog with bounded retries.
type Pager struct {
	client  *http.Client
	config  PagerConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewPager creates a pager. A nil client gets one with the configured
// timeout.
func NewPager(config PagerConfig, client *http.Client, logger *slog.Logger) *Pager {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Pager{
		client:  client,
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logging.Default(logger).With("component", "pager"),
	}
}

// PageURL returns the URL of search result page n.
func (p *Pager) PageURL(n int) string {
	return fmt.Sprintf(p.config.PageURL, n)
}

// FetchPage returns the body of search result page n (1-indexed).
func (p *Pager) FetchPage(ctx context.Context, n int) ([]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPage, n)
	}
	return p.Get(ctx, p.PageURL(n))
}

// Get fetches url, retrying transport errors and transient statuses with
// exponential backoff. A non-transient status fails immediately with a
// *RequestError; running out of attempts fails with ErrRetryExhausted.
func (p *Pager) Get(ctx context.Context, url string) ([]byte, error) {
	var (
		body      []byte
		attempts  int
		permanent bool
	)

	operation := func() error {
		attempts++

		if err := p.limiter.Wait(ctx); err != nil {
			permanent = true
			return backoff.Permanent(err)
		}

		b, err := p.do(ctx, url)
		if err == nil {
			body = b
			return nil
		}

		if ctx.Err() != nil {
			permanent = true
			return backoff.Permanent(ctx.Err())
		}

		var reqErr *RequestError
		if errors.As(err, &reqErr) && !reqErr.Transient() {
			permanent = true
			return backoff.Permanent(err)
		}

		p.logger.Warn("transient fetch failure", "url", url, "attempt", attempts, "error", err)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.InitialBackoff
	b.MaxInterval = p.config.MaxBackoff
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.config.MaxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if permanent {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: GET %s after %d attempts: %v", ErrRetryExhausted, url, attempts, err)
	}

	p.logger.Debug("fetched", "url", url, "bytes", len(body), "attempts", attempts)
	return body, nil
}

func (p *Pager) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}
