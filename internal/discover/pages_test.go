package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/JakeFAU/journal-email-crawler/internal/document"
)

// stubPages serves canned HTML and JSON bodies keyed by URL.
type stubPages struct {
	mu        sync.Mutex
	html      map[string]string
	json      map[string]any
	requested []string
}

func newStubPages() *stubPages {
	return &stubPages{html: map[string]string{}, json: map[string]any{}}
}

func (s *stubPages) Document(_ context.Context, url string) (*document.Document, error) {
	s.mu.Lock()
	s.requested = append(s.requested, url)
	body, ok := s.html[url]
	s.mu.Unlock()
	if !ok {
		return nil, &document.FetchError{URL: url, Status: 404}
	}
	return document.Parse(url, []byte(body))
}

func (s *stubPages) JSON(_ context.Context, url string, v any) error {
	s.mu.Lock()
	s.requested = append(s.requested, url)
	payload, ok := s.json[url]
	s.mu.Unlock()
	if !ok {
		return &document.FetchError{URL: url, Status: 404}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stub payload: %w", err)
	}
	return json.Unmarshal(raw, v)
}

func (s *stubPages) Requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requested...)
}
