// Package fetcher retrieves chapter pages over HTTP with a browser-like
// identity, a per-request timeout, and bounded retries.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
)

// FetchError is the terminal failure returned once retries are exhausted.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options controls HTTP fetching behaviour.
type Options struct {
	Timeout    time.Duration
	MaxRetries int // total attempts, not additional retries
	UserAgent  string
	// RetryWaitMin/Max bound the random pause between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Client overrides the default client (used by tests).
	Client *http.Client
}

// Fetcher performs single GETs with retry and backoff.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxRetries   int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	log          *slog.Logger

	sleep func(time.Duration)
}

func New(opts Options, log *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 2 * time.Second
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = opts.RetryWaitMin + 2*time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
		// Browser-impersonating headers so novel sites behind Cloudflare
		// serve us the same pages they serve a real browser.
		client.Transport = cloudflarebp.AddCloudFlareByPass(http.DefaultTransport)
	}

	ua := pickUserAgent(opts.UserAgent)

	return &Fetcher{
		client:       client,
		userAgent:    ua,
		maxRetries:   opts.MaxRetries,
		retryWaitMin: opts.RetryWaitMin,
		retryWaitMax: opts.RetryWaitMax,
		log:          log,
		sleep:        time.Sleep,
	}
}

// Fetch GETs url, retrying on network errors and non-2xx statuses alike.
// It returns the page body and the number of attempts used, or a
// *FetchError once attempts are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, int, error) {
	var lastErr error

	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		body, err := f.get(ctx, url)
		if err == nil {
			f.log.Info("fetched page", "url", url, "attempt", attempt)
			return body, attempt, nil
		}
		lastErr = err
		f.log.Warn("fetch attempt failed",
			"url", url, "attempt", attempt, "max", f.maxRetries, "error", err)

		if ctx.Err() != nil {
			return "", attempt, &FetchError{URL: url, Attempts: attempt, Err: lastErr}
		}
		if attempt < f.maxRetries {
			f.sleep(f.retryWait())
		}
	}

	return "", f.maxRetries, &FetchError{URL: url, Attempts: f.maxRetries, Err: lastErr}
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused across retries.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("HTTP %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

// pickUserAgent resolves the configured identity. "random" draws a fresh
// browser identity per run; the default is a fixed current Chrome.
func pickUserAgent(override string) string {
	switch override {
	case "random":
		return browser.Random()
	case "":
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	default:
		return override
	}
}

func (f *Fetcher) retryWait() time.Duration {
	spread := f.retryWaitMax - f.retryWaitMin
	if spread <= 0 {
		return f.retryWaitMin
	}
	return f.retryWaitMin + time.Duration(rand.Int64N(int64(spread)))
}
