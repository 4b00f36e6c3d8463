// Package memory keeps result notifications in process when no Pub/Sub topic
// is configured.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

// Publisher holds every notification it receives, grouped by topic.
type Publisher struct {
	mu     sync.Mutex
	seq    int
	topics map[string][]any
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{topics: make(map[string][]any)}
}

// Publish appends payload to topic and returns a sequential message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.topics[topic] = append(p.topics[topic], payload)
	return "memory-" + strconv.Itoa(p.seq), nil
}

// Topic returns a copy of the payloads published to topic, oldest first.
func (p *Publisher) Topic(topic string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.topics[topic]...)
}

// Records returns the result records published to topic keyed by journal.
// A journal written twice keeps its latest record.
func (p *Publisher) Records(topic string) map[string]crawler.ResultRecord {
	out := make(map[string]crawler.ResultRecord)
	for _, payload := range p.Topic(topic) {
		switch rec := payload.(type) {
		case crawler.ResultRecord:
			out[rec.Journal] = rec
		case *crawler.ResultRecord:
			out[rec.Journal] = *rec
		}
	}
	return out
}
