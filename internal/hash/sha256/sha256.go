// Package sha256 fingerprints result files so consumers of the published
// record can tell whether a journal's contacts changed between runs.
package sha256

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Hasher digests record bytes as lowercase hex SHA-256.
type Hasher struct{}

// New returns a Hasher.
func New() Hasher {
	return Hasher{}
}

// Hash digests an in-memory record.
func (Hasher) Hash(data []byte) (string, error) {
	return Sum(bytes.NewReader(data))
}

// Sum streams r through SHA-256.
func Sum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("sha256: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File digests a record already written to disk.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("sha256: %w", err)
	}
	defer f.Close()
	return Sum(f)
}
