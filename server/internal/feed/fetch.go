package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"time"

	"github.com/festtally/festtally/server/internal/config"
)

// maxBodyBytes caps how much of a feed response is read.
const maxBodyBytes = 8 << 20

// ErrTooLarge is wrapped in the NetworkError returned for a response body over
// the size cap. The feed is rejected rather than read partially.
var ErrTooLarge = fmt.Errorf("feed exceeds %d MiB", maxBodyBytes>>20)

// Fetcher returns the raw CSV content of the feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]byte, error)

// Fetch calls f(ctx).
func (f FetcherFunc) Fetch(ctx context.Context) ([]byte, error) { return f(ctx) }

// FileFetcher reads the feed from a local CSV file.
type FileFetcher struct {
	Path string
}

// Fetch reads the whole file. A read failure is reported as a NetworkError so
// callers handle local and remote sources alike.
func (f FileFetcher) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &NetworkError{URL: "file://" + f.Path, Attempts: 1, Err: err}
	}
	return data, nil
}

// HTTPFetcher GETs the feed URL, retrying network failures.
type HTTPFetcher struct {
	cfg    config.FeedConfig
	client *http.Client

	// wait blocks for d or until ctx is done; injectable for tests.
	wait func(ctx context.Context, d time.Duration) error

	// onAttempts receives the number of requests each Fetch made.
	onAttempts func(n int)
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithAttemptHook calls fn after every Fetch with the number of requests it
// made, retries included, whether the fetch succeeded or not.
func WithAttemptHook(fn func(n int)) HTTPOption {
	return func(f *HTTPFetcher) { f.onAttempts = fn }
}

// NewHTTPFetcher builds a fetcher for cfg. The HTTP client is created once and
// reused across loads.
func NewHTTPFetcher(cfg config.FeedConfig, opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		wait:   sleepCtx,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch performs up to 1+Retries GET requests. It returns the body of the
// first 200 response, or a *NetworkError describing the last failure.
func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	bo := newBackoff(f.cfg.BackoffInitial, f.cfg.BackoffMax)
	attempts := 1 + f.cfg.Retries

	made := 0
	defer func() {
		if f.onAttempts != nil {
			f.onAttempts(made)
		}
	}()

	var lastErr *NetworkError
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		body, err := f.fetchOnce(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err
		lastErr.Attempts = attempt

		if ctx.Err() != nil || !err.retryable() || attempt == attempts {
			break
		}

		wait := bo.next()
		slog.Warn("feed: fetch failed, will retry",
			"url", f.cfg.URL,
			"attempt", attempt,
			"status", err.StatusCode,
			"err", err.Err,
			"retry_in", wait)
		if werr := f.wait(ctx, wait); werr != nil {
			break
		}
	}
	return nil, lastErr
}

// fetchOnce performs a single GET and reads the response body.
func (f *HTTPFetcher) fetchOnce(ctx context.Context) ([]byte, *NetworkError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return nil, &NetworkError{URL: f.cfg.URL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: f.cfg.URL, Err: fmt.Errorf("http get: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &NetworkError{
			URL:        f.cfg.URL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &NetworkError{URL: f.cfg.URL, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &NetworkError{URL: f.cfg.URL, Err: ErrTooLarge}
	}
	return body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
	max     time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{current: initial, max: max}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}
