package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/metrics"
)

const reasonTLSHandshake = "TLS handshake timeout"

const allowAllRobots = "User-agent: *\nAllow: /"

var robotsBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsTransport retries robots.txt lookups that time out and, once retries
// are spent, answers with an allow-all file so the page fetch can proceed.
type robotsTransport struct {
	base  http.RoundTripper
	probe *robotsProbe
}

func (t *robotsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || req.URL == nil {
		return nil, errors.New("robots transport: nil request")
	}
	if t.probe == nil || !strings.EqualFold(req.URL.Path, "/robots.txt") {
		return t.base.RoundTrip(req)
	}
	for attempt := 0; ; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !isTransient(err) {
			return nil, fmt.Errorf("robots lookup: %w", err)
		}
		if attempt == len(robotsBackoff) {
			t.probe.markIndeterminate(reasonTLSHandshake)
			return allowAll(req), nil
		}
		if err := sleep(req.Context(), robotsBackoff[attempt]); err != nil {
			return nil, fmt.Errorf("robots backoff: %w", err)
		}
	}
}

// robotsProbe records how robots.txt resolved during one fetch.
type robotsProbe struct {
	status crawler.RobotsStatus
	reason string
}

func (p *robotsProbe) apply(resp *crawler.FetchResponse) {
	if p == nil || p.status == crawler.RobotsStatusUnknown {
		return
	}
	resp.RobotsStatus = p.status
	resp.RobotsReason = p.reason
}

func (p *robotsProbe) markIndeterminate(reason string) {
	if p.status == crawler.RobotsStatusIndeterminate {
		return
	}
	p.status = crawler.RobotsStatusIndeterminate
	p.reason = reason
	metrics.ObserveProbeTLSHandshakeTimeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func allowAll(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(allowAllRobots)),
		ContentLength: int64(len(allowAllRobots)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
