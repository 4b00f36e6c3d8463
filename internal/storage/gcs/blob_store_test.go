package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newTestStore points a BlobStore at a fake GCS JSON API.
func newTestStore(t *testing.T, handler http.Handler, cfg Config) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, cfg)
	require.NoError(t, err)
	return store
}

// TestPutObjectUploads verifies the multipart upload carries the prefixed name and body.
func TestPutObjectUploads(t *testing.T) {
	body := "Ada; ada@example.org\n"
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/records/o")
		assert.Equal(t, "journals/run-1/A.txt", r.URL.Query().Get("name"))
		payload, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(payload), body)
		fmt.Fprintln(w, `{"name": "journals/run-1/A.txt", "bucket": "records"}`)
	})

	store := newTestStore(t, handler, Config{Bucket: "records", Prefix: "/journals/"})
	uri, err := store.PutObject(context.Background(), "run-1/A.txt", "text/plain", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	assert.Equal(t, "gs://records/journals/run-1/A.txt", uri)
}

// TestPutObjectServerError verifies upload failures are returned.
func TestPutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t, handler, Config{Bucket: "records"})
	_, err := store.PutObject(context.Background(), "A.txt", "text/plain", bytes.NewReader([]byte("x")))
	assert.Error(t, err)
}

// TestNewValidation verifies the client and bucket are required.
func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " / ", "", bytes.NewReader(nil))
	require.Error(t, err)
}
