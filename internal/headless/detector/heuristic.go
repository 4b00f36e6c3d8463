// Package detector inspects probe responses: it decides when a page needs a
// headless render and which page layout a journal uses.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

const defaultBodyThreshold = 2048

var (
	spaMarkers = [][]byte{
		[]byte("__next"),
		[]byte(`id="root"`),
		[]byte(`id="app"`),
		[]byte("data-reactroot"),
	}
	embeddedPayload = []byte(`type="application/json"`)
)

// Heuristic promotes responses that look like unrendered single page apps.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a detector. A zero threshold uses the default.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultBodyThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// ShouldPromote reports whether a headless fetch is warranted. A body that
// already embeds a JSON payload is never promoted.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK || resp.UsedHeadless {
		return false
	}
	body := resp.Body
	if len(body) == 0 {
		return true
	}
	if bytes.Contains(body, embeddedPayload) {
		return false
	}
	if len(body) < h.BodyLengthThreshold && scriptShare(body) >= 25 {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of body bytes inside script elements.
// An unterminated tag counts to the end of the document.
func scriptShare(body []byte) int {
	lower := strings.ToLower(string(body))
	total := len(lower)
	covered := 0
	for pos := 0; pos < total; {
		start := strings.Index(lower[pos:], "<script")
		if start < 0 {
			break
		}
		start += pos
		end := total
		if gt := strings.IndexByte(lower[start:], '>'); gt >= 0 {
			contentStart := start + gt + 1
			if closeAt := strings.Index(lower[contentStart:], "</script>"); closeAt >= 0 {
				end = contentStart + closeAt + len("</script>")
			}
		}
		covered += end - start
		pos = end
	}
	if total == 0 {
		return 0
	}
	return covered * 100 / total
}
