// Package results persists one record file per journal.
//
// Files are written under a work directory and moved into the results
// directory only once complete, so a reader never observes a partial file.
// Optional mirrors (blob archive, contact store, publisher) run after the
// local write and never fail a flush.
package results

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/metrics"
)

const (
	partialSuffix = ".partial"
	recordSuffix  = ".txt"
	contentType   = "text/plain; charset=utf-8"
)

// PersistenceError reports a failed flush for one journal.
type PersistenceError struct {
	Journal string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Journal, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Config locates the writer's directories and mirror targets.
type Config struct {
	Dir           string
	WorkDir       string
	ArchivePrefix string
	Topic         string
}

// Options carries the writer's optional collaborators.
type Options struct {
	BlobStore    crawler.BlobStore
	ContactStore crawler.ContactStore
	Publisher    crawler.Publisher
	Hasher       crawler.Hasher
	Clock        crawler.Clock
	RunID        string
	Logger       *zap.Logger
}

// Writer flushes journal contacts to disk.
type Writer struct {
	cfg  Config
	opts Options
	log  *zap.Logger
}

// New prepares both directories and returns a Writer.
func New(cfg Config, opts Options) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, errors.New("results: dir is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir(cfg.Dir)
	}
	for _, dir := range []string{cfg.Dir, cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{cfg: cfg, opts: opts, log: logger.Named("results")}, nil
}

// DefaultWorkDir is the sibling of dir that holds partial files, keeping
// them out of the results tree.
func DefaultWorkDir(dir string) string {
	return filepath.Clean(dir) + ".work"
}

// Dir returns the directory final records land in.
func (w *Writer) Dir() string {
	return w.cfg.Dir
}

// Format renders contacts as "name; e1, e2" lines in insertion order.
func Format(contacts *crawler.Contacts) []byte {
	var buf bytes.Buffer
	contacts.Each(func(name string, emails []string) {
		buf.WriteString(name)
		buf.WriteString("; ")
		buf.WriteString(strings.Join(emails, ", "))
		buf.WriteByte('\n')
	})
	return buf.Bytes()
}

// Flush writes contacts for journal and returns the final path. A journal
// with no retained authors still produces an empty file.
func (w *Writer) Flush(ctx context.Context, journal string, contacts *crawler.Contacts) (string, error) {
	name := crawler.SanitizeName(journal, "-")
	if name == "" {
		return "", w.fail(journal, "name", errors.New("empty journal name"))
	}
	data := Format(contacts)

	final := filepath.Join(w.cfg.Dir, name+recordSuffix)
	partial, err := writePartial(w.cfg.WorkDir, name, data)
	if err != nil {
		return "", w.fail(journal, "write", err)
	}
	if err := promote(partial, final); err != nil {
		_ = os.Remove(partial)
		return "", w.fail(journal, "rename", err)
	}

	metrics.AddAuthors(contacts.Len())
	w.log.Info("journal flushed",
		zap.String("journal", journal),
		zap.String("path", final),
		zap.Int("authors", contacts.Len()),
	)
	w.mirror(ctx, journal, name, final, data, contacts)
	return final, nil
}

func (w *Writer) fail(journal, op string, err error) error {
	metrics.ObservePersistenceFailure(op)
	w.log.Error("journal flush failed",
		zap.String("journal", journal),
		zap.String("op", op),
		zap.Error(err),
	)
	return &PersistenceError{Journal: journal, Op: op, Err: err}
}

func (w *Writer) mirror(ctx context.Context, journal, name, final string, data []byte, contacts *crawler.Contacts) {
	var blobURI string
	if w.opts.BlobStore != nil {
		key := path.Join(w.cfg.ArchivePrefix, w.opts.RunID, name+recordSuffix)
		uri, err := w.opts.BlobStore.PutObject(ctx, key, contentType, bytes.NewReader(data))
		if err != nil {
			w.mirrorFailed(journal, "archive", err)
		} else {
			blobURI = uri
		}
	}
	if w.opts.ContactStore != nil {
		if err := w.opts.ContactStore.StoreContacts(ctx, w.opts.RunID, journal, contacts); err != nil {
			w.mirrorFailed(journal, "contacts", err)
		}
	}
	if w.opts.Publisher == nil {
		return
	}
	record := crawler.ResultRecord{
		RunID:   w.opts.RunID,
		Journal: journal,
		Path:    final,
		BlobURI: blobURI,
		Authors: contacts.Len(),
	}
	if w.opts.Hasher != nil {
		sum, err := w.opts.Hasher.Hash(data)
		if err == nil {
			record.SHA256 = sum
		}
	}
	if w.opts.Clock != nil {
		record.WrittenAt = w.opts.Clock.Now()
	}
	if _, err := w.opts.Publisher.Publish(ctx, w.cfg.Topic, record); err != nil {
		w.mirrorFailed(journal, "publish", err)
	}
}

func (w *Writer) mirrorFailed(journal, op string, err error) {
	metrics.ObservePersistenceFailure(op)
	w.log.Warn("result mirror failed",
		zap.String("journal", journal),
		zap.String("op", op),
		zap.Error(err),
	)
}

// writePartial writes data to a fresh file in dir so concurrent flushes of
// the same journal never share a partial.
func writePartial(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, name+recordSuffix+".*"+partialSuffix)
	if err != nil {
		return "", err
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(f.Name(), 0o644)
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// promote moves src to dst atomically. When the directories sit on
// different filesystems the data is copied next to dst first.
func promote(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	in, err := os.Open(src)
	if err != nil {
		_ = tmp.Close()
		return fmt.Errorf("open partial: %w", err)
	}
	_, copyErr := io.Copy(tmp, in)
	_ = in.Close()
	if copyErr == nil {
		copyErr = tmp.Sync()
	}
	if closeErr := tmp.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		return fmt.Errorf("copy partial: %w", copyErr)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("rename temp: %w", err)
	}
	return os.Remove(src)
}
