package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBlobStorePutObjectCopiesData verifies later writes to the source buffer don't leak in.
func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("Ada; ada@example.org\n")
	uri, err := store.PutObject(context.Background(), "run/Journal.txt", "text/plain", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://run/Journal.txt", uri)

	payload[0] = 'X'
	got, ok := store.Object("run/Journal.txt")
	require.True(t, ok)
	assert.Equal(t, "Ada; ada@example.org\n", string(got))
	assert.Equal(t, []string{"run/Journal.txt"}, store.Keys())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

// TestBlobStorePutObjectReadError verifies reader failures surface and nothing is stored.
func TestBlobStorePutObjectReadError(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	_, err := store.PutObject(context.Background(), "k", "text/plain", failingReader{})
	require.Error(t, err)
	_, ok := store.Object("k")
	assert.False(t, ok)
}
