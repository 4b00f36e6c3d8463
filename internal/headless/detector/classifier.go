package detector

import (
	"bytes"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

// DefaultNewUIMarker is the landing-page text that only the new layout shows.
const DefaultNewUIMarker = "Find out more"

// UIClassifier routes a journal to the new or old layout handler.
type UIClassifier struct {
	marker []byte
}

// NewUIClassifier returns a classifier keyed on marker.
func NewUIClassifier(marker string) *UIClassifier {
	if marker == "" {
		marker = DefaultNewUIMarker
	}
	return &UIClassifier{marker: []byte(marker)}
}

// Classify inspects a landing-page probe.
func (c *UIClassifier) Classify(resp crawler.FetchResponse) crawler.UI {
	if bytes.Contains(resp.Body, c.marker) {
		return crawler.UINew
	}
	return crawler.UIOld
}
