// Package discover enumerates the volumes of a journal. New-layout journals
// expose an issues archive that is expanded with one request per year;
// old-layout journals are walked backwards through "previous volume" links.
package discover

import (
	"context"
	"fmt"
	"net/url"

	"github.com/JakeFAU/journal-email-crawler/internal/document"
)

// Pages loads documents and JSON resources.
type Pages interface {
	Document(ctx context.Context, url string) (*document.Document, error)
	JSON(ctx context.Context, url string, v any) error
}

const latestIssuesSelector = `a.js-latest-issues-link-text`

func origin(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", raw)
	}
	return u.Scheme + "://" + u.Host, nil
}
