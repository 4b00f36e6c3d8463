package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

// TestNewChromedpDefaults verifies config validation and defaults without starting Chrome.
func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	f, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer f.Close()
	assert.NotNil(t, f.slots)
	assert.Equal(t, defaultNavTimeout, f.cfg.NavigationTimeout)
	assert.Equal(t, defaultWaitSelector, f.cfg.WaitSelector)
	assert.Equal(t, defaultSettle, f.cfg.Settle)

	f2, err := NewChromedp(Config{WaitSelector: `script[type="application/json"]`, Settle: -1})
	require.NoError(t, err)
	defer f2.Close()
	assert.Nil(t, f2.slots)
	assert.Zero(t, f2.cfg.Settle)
}

// TestFetchWaitsForSlot verifies a canceled context aborts the slot wait.
func TestFetchWaitsForSlot(t *testing.T) {
	t.Parallel()

	f, err := NewChromedp(Config{MaxParallel: 1, NavigationTimeout: time.Second})
	require.NoError(t, err)
	defer f.Close()
	require.True(t, f.slots.TryAcquire(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, crawler.FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, context.Canceled)
}

// TestDocumentMetaKeepsFirstDocument verifies only the main document is captured.
func TestDocumentMetaKeepsFirstDocument(t *testing.T) {
	t.Parallel()

	meta := &documentMeta{}
	meta.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://cdn/app.js"},
	})
	meta.observe(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  203,
			URL:     "https://example.com/journal/x",
			Headers: network.Headers{"X-Request-ID": "abc", "Set-Cookie": []any{"a=1", "b=2"}},
		},
	})
	meta.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://example.com/frame"},
	})

	status, headers, url := meta.result("https://req", "")
	assert.Equal(t, 203, status)
	assert.Equal(t, "abc", headers.Get("X-Request-ID"))
	assert.Equal(t, []string{"a=1", "b=2"}, headers.Values("Set-Cookie"))
	assert.Equal(t, "https://example.com/journal/x", url)
}

// TestDocumentMetaFallbacks verifies defaults when no document response was seen.
func TestDocumentMetaFallbacks(t *testing.T) {
	t.Parallel()

	status, headers, url := (&documentMeta{}).result("https://req", "https://final")
	assert.Equal(t, http.StatusOK, status)
	assert.NotNil(t, headers)
	assert.Equal(t, "https://final", url)

	_, _, url = (&documentMeta{}).result("https://req", "")
	assert.Equal(t, "https://req", url)
}

// TestToNetworkHeaders verifies single and multi-valued headers.
func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	got := toNetworkHeaders(http.Header{"A": {"1"}, "B": {"x", "y"}, "C": {}})
	assert.Equal(t, "1", got["A"])
	assert.Equal(t, []string{"x", "y"}, got["B"])
	_, ok := got["C"]
	assert.False(t, ok)
}

// TestNoopFetcher verifies the disabled fetcher reports ErrDisabled.
func TestNoopFetcher(t *testing.T) {
	t.Parallel()

	n := NewNoop()
	defer n.Close()
	_, err := n.Fetch(context.Background(), crawler.FetchRequest{})
	require.ErrorIs(t, err, ErrDisabled)
}
