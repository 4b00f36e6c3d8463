package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

const site = "https://journals.example"

func archivePage(t *testing.T, pub string, archive map[string]any) string {
	t.Helper()
	inner, err := json.Marshal(archive)
	require.NoError(t, err)
	outer, err := json.Marshal(string(inner))
	require.NoError(t, err)
	return fmt.Sprintf(`<html><head><title>All issues</title><script type="application/json">%s</script></head>`+
		`<body><input name="pub" value="%s"></body></html>`, outer, pub)
}

func sampleArchive() map[string]any {
	return map[string]any{
		"titleMetadata": map[string]any{"title": "journal-of-tests"},
		"issuesArchive": map[string]any{"data": map[string]any{"results": []any{
			map[string]any{"year": 2019, "firstIssue": map[string]any{"issn": "12345678"}},
			map[string]any{"year": "2018"},
		}}},
	}
}

// TestNewUIDiscoverFollowsLatestIssues walks landing page, archive, and year listings.
func TestNewUIDiscoverFollowsLatestIssues(t *testing.T) {
	t.Parallel()

	pages := newStubPages()
	pages.html[site+"/journal/journal-of-tests"] = `<html><body>Find out more
		<a class="js-latest-issues-link-text" href="/journal/journal-of-tests/issues">All issues</a></body></html>`
	pages.html[site+"/journal/journal-of-tests/issues"] = archivePage(t, "Journal of Tests: Series A", sampleArchive())
	pages.json[site+"/journal/12345678/year/2019/issues"] = map[string]any{"data": []any{
		map[string]any{"volIssueSupplementText": "Volume 12, Issue 2", "uriLookup": "/vol/12/issue/2"},
		map[string]any{"volIssueSupplementText": "Volume 12, Issue 1", "uriLookup": "/vol/12/issue/1"},
		map[string]any{"volIssueSupplementText": "", "uriLookup": "/vol/12/suppl/C"},
	}}
	pages.json[site+"/journal/12345678/year/2018/issues"] = map[string]any{"data": []any{
		map[string]any{"volIssueSupplementText": "Volume 11", "uriLookup": "/vol/11"},
		map[string]any{"volIssueSupplementText": "Volume 12, Issue 1", "uriLookup": "/vol/12/issue/1b"},
	}}

	d := NewNewUI(pages, "", nil)
	task, volumes, err := d.Discover(context.Background(), site+"/journal/journal-of-tests")
	require.NoError(t, err)

	assert.Equal(t, "Journal of Tests- Series A", task.Name)
	assert.Equal(t, crawler.UINew, task.UI)
	assert.Equal(t, []crawler.VolumeRef{
		{Journal: task.Name, Label: "Volume 12, Issue 2", URL: site + "/journal/journal-of-tests/vol/12/issue/2"},
		{Journal: task.Name, Label: "Volume 12, Issue 1", URL: site + "/journal/journal-of-tests/vol/12/issue/1b"},
		{Journal: task.Name, Label: "Volume 11", URL: site + "/journal/journal-of-tests/vol/11"},
	}, volumes.Refs(task.Name))
}

// TestNewUIDiscoverSkipsFailedYears keeps volumes from years that did load.
func TestNewUIDiscoverSkipsFailedYears(t *testing.T) {
	t.Parallel()

	pages := newStubPages()
	pages.html[site+"/journal/j"] = archivePage(t, "J", sampleArchive())
	pages.json[site+"/journal/12345678/year/2018/issues"] = map[string]any{"data": []any{
		map[string]any{"volIssueSupplementText": "Volume 11", "uriLookup": "/vol/11"},
	}}

	task, volumes, err := NewNewUI(pages, site, nil).Discover(context.Background(), site+"/journal/j")
	require.NoError(t, err)
	assert.Equal(t, "J", task.Name)
	assert.Equal(t, 1, volumes.Len())
}

func TestNewUIDiscoverErrors(t *testing.T) {
	t.Parallel()

	pages := newStubPages()
	pages.html[site+"/journal/no-payload"] = `<html><body><input name="pub" value="Nope"></body></html>`
	pages.html[site+"/journal/no-issn"] = archivePage(t, "No ISSN", map[string]any{
		"titleMetadata": map[string]any{"title": "no-issn"},
		"issuesArchive": map[string]any{"data": map[string]any{"results": []any{map[string]any{"year": 2020}}}},
	})

	d := NewNewUI(pages, "", nil)
	_, _, err := d.Discover(context.Background(), site+"/journal/missing")
	require.Error(t, err)

	task, _, err := d.Discover(context.Background(), site+"/journal/no-payload")
	require.ErrorIs(t, err, ErrNoArchive)
	assert.Equal(t, "Nope", task.Name)

	_, _, err = d.Discover(context.Background(), site+"/journal/no-issn")
	require.ErrorIs(t, err, ErrNoArchive)

	_, _, err = d.Discover(context.Background(), "/relative")
	require.Error(t, err)
}
