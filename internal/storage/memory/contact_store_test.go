package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

// TestContactStoreSnapshots verifies stored contacts are detached from the caller's map.
func TestContactStoreSnapshots(t *testing.T) {
	t.Parallel()

	store := NewContactStore()
	defer store.Close()

	contacts := crawler.NewContacts()
	contacts.Put("Ada Lovelace", "ada@example.org")
	require.NoError(t, store.StoreContacts(context.Background(), "run-1", "Journal A", contacts))

	contacts.Put("Alan Turing", "alan@example.org")

	got, ok := store.Contacts("run-1", "Journal A")
	require.True(t, ok)
	assert.Equal(t, []string{"Ada Lovelace"}, got.Names())

	_, ok = store.Contacts("run-2", "Journal A")
	assert.False(t, ok)
}
