package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/config"
	"github.com/JakeFAU/journal-email-crawler/internal/pipeline"
)

type fakeRunner struct {
	urls    []string
	summary pipeline.Summary
	err     error
	closed  bool
}

func (f *fakeRunner) Run(_ context.Context, urls []string) (pipeline.Summary, error) {
	f.urls = urls
	return f.summary, f.err
}

func (f *fakeRunner) Close(context.Context) error {
	f.closed = true
	return nil
}

// useFakes swaps the application factory for the duration of a test.
func useFakes(t *testing.T, runner *fakeRunner) {
	t.Helper()
	prevRunner, prevLoad := newRunner, loadConfig
	newRunner = func(context.Context, config.Config) (Runner, error) { return runner, nil }
	loadConfig = func(string) (config.Config, error) { return config.Config{}, nil }
	t.Cleanup(func() { newRunner, loadConfig = prevRunner, prevLoad })
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReadInputSkipsBlankAndComments(t *testing.T) {
	t.Parallel()

	urls, err := readInput(strings.NewReader("\nhttps://a.example/j\n  # note\n https://b.example/j \n"), "-")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/j", "https://b.example/j"}, urls)

	path := filepath.Join(t.TempDir(), "journals.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://c.example/j\n"), 0o600))
	urls, err = readInput(strings.NewReader("ignored"), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://c.example/j"}, urls)

	_, err = readInput(nil, filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestCrawlReportsSummary(t *testing.T) {
	runner := &fakeRunner{summary: pipeline.Summary{Journals: []pipeline.Outcome{
		{URL: "https://a.example/j", Journal: "Journal A", Path: "results/Journal A.txt", Authors: 2, Volumes: 3},
		{URL: "https://b.example/j", Err: errors.New("probe: unexpected status 404")},
	}}}
	useFakes(t, runner)

	out, err := execute(t, "https://a.example/j\nhttps://b.example/j\n", "crawl")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/j", "https://b.example/j"}, runner.urls)
	assert.True(t, runner.closed)
	assert.Contains(t, out, "Journal A: 2 authors from 3 volumes -> results/Journal A.txt")
	assert.Contains(t, out, "https://b.example/j: failed: probe: unexpected status 404")
	assert.Contains(t, out, "2 journals, 1 failed, 2 authors")
	assert.Contains(t, out, "total elapsed time:")
}

func TestCrawlTreatsCancellationAsClean(t *testing.T) {
	runner := &fakeRunner{err: context.Canceled}
	useFakes(t, runner)

	_, err := execute(t, "https://a.example/j\n", "crawl")
	require.NoError(t, err)
	assert.True(t, runner.closed)
}

func TestCrawlRejectsEmptyInput(t *testing.T) {
	useFakes(t, &fakeRunner{})

	_, err := execute(t, "\n# nothing\n", "crawl")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}
