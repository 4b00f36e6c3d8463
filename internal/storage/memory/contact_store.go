package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

// ContactStore keeps the latest contacts per run and journal.
type ContactStore struct {
	mu   sync.RWMutex
	runs map[string]map[string]*crawler.Contacts
}

// NewContactStore constructs an empty ContactStore.
func NewContactStore() *ContactStore {
	return &ContactStore{runs: make(map[string]map[string]*crawler.Contacts)}
}

// StoreContacts replaces the stored contacts for journal within runID.
func (s *ContactStore) StoreContacts(_ context.Context, runID, journal string, contacts *crawler.Contacts) error {
	snapshot := crawler.NewContacts()
	snapshot.Merge(contacts)

	s.mu.Lock()
	defer s.mu.Unlock()
	byJournal, ok := s.runs[runID]
	if !ok {
		byJournal = make(map[string]*crawler.Contacts)
		s.runs[runID] = byJournal
	}
	byJournal[journal] = snapshot
	return nil
}

// Contacts returns what was stored for journal within runID.
func (s *ContactStore) Contacts(runID, journal string) (*crawler.Contacts, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.runs[runID][journal]
	return c, ok
}

// Close is a no-op.
func (s *ContactStore) Close() {}
