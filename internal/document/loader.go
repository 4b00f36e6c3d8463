package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/metrics"
)

// FetchError reports a response that arrived with a non-success status.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

// Limiter throttles requests per destination.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Options configures a Loader. Headless, Detector, and Limiter are optional.
type Options struct {
	Fetcher  crawler.Fetcher
	Headless crawler.Fetcher
	Detector crawler.HeadlessDetector
	Limiter  Limiter
	Headers  http.Header
	Logger   *zap.Logger
}

// Loader fetches pages and turns them into Documents or decoded JSON.
type Loader struct {
	opts   Options
	logger *zap.Logger
}

// NewLoader validates opts and returns a Loader.
func NewLoader(opts Options) (*Loader, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{opts: opts, logger: logger}, nil
}

// Fetch returns the raw response for url, promoting to the headless fetcher
// when the detector asks for it.
func (l *Loader) Fetch(ctx context.Context, url string) (crawler.FetchResponse, error) {
	resp, err := l.fetch(ctx, l.opts.Fetcher, url)
	if err != nil {
		return crawler.FetchResponse{}, err
	}
	if l.opts.Headless == nil || l.opts.Detector == nil || !l.opts.Detector.ShouldPromote(resp) {
		return resp, nil
	}
	l.logger.Debug("promoting fetch to headless", zap.String("url", url))
	rendered, err := l.fetch(ctx, l.opts.Headless, url)
	if err != nil {
		l.logger.Warn("headless fetch failed, keeping probe response", zap.String("url", url), zap.Error(err))
		return resp, nil
	}
	return rendered, nil
}

// Document fetches url and parses it.
func (l *Loader) Document(ctx context.Context, url string) (*Document, error) {
	resp, err := l.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	finalURL := resp.URL
	if finalURL == "" {
		finalURL = url
	}
	return Parse(finalURL, resp.Body)
}

// JSON fetches url and decodes its body into v.
func (l *Loader) JSON(ctx context.Context, url string, v any) error {
	resp, err := l.fetch(ctx, l.opts.Fetcher, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (l *Loader) fetch(ctx context.Context, f crawler.Fetcher, url string) (crawler.FetchResponse, error) {
	if l.opts.Limiter != nil {
		if err := l.opts.Limiter.Wait(ctx, url); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("wait for %s: %w", url, err)
		}
	}
	resp, err := f.Fetch(ctx, crawler.FetchRequest{URL: url, Headers: l.opts.Headers})
	if err != nil {
		metrics.ObserveFetch(url, "error", 0)
		return crawler.FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	metrics.ObserveFetch(url, statusLabel(resp.StatusCode), len(resp.Body))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return crawler.FetchResponse{}, &FetchError{URL: url, Status: resp.StatusCode}
	}
	return resp, nil
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}
