package sha256

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptyDigest = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestHashIsStable(t *testing.T) {
	t.Parallel()

	record := []byte("Ada Lovelace; ada@example.org\n")
	got, err := New().Hash(record)
	require.NoError(t, err)
	assert.Len(t, got, 64)

	again, err := New().Hash(record)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	empty, err := New().Hash(nil)
	require.NoError(t, err)
	assert.Equal(t, emptyDigest, empty)
}

func TestFileMatchesHash(t *testing.T) {
	t.Parallel()

	record := []byte("Alan Turing; alan@example.org\n")
	path := filepath.Join(t.TempDir(), "J.txt")
	require.NoError(t, os.WriteFile(path, record, 0o600))

	want, err := New().Hash(record)
	require.NoError(t, err)
	got, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = File(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestSumReadError(t *testing.T) {
	t.Parallel()

	_, err := Sum(iotest.ErrReader(errors.New("disk gone")))
	require.ErrorContains(t, err, "disk gone")
}
