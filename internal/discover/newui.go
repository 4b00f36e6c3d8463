package discover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/document"
)

// ErrNoArchive is returned when an all-issues page lacks the archive data
// needed to enumerate volumes.
var ErrNoArchive = errors.New("issues archive not found")

type archivePayload struct {
	TitleMetadata struct {
		Title string `json:"title"`
	} `json:"titleMetadata"`
	IssuesArchive struct {
		Data struct {
			Results []archiveYear `json:"results"`
		} `json:"data"`
	} `json:"issuesArchive"`
}

type archiveYear struct {
	Year       json.Number `json:"year"`
	FirstIssue struct {
		ISSN string `json:"issn"`
	} `json:"firstIssue"`
}

type yearIssues struct {
	Data []struct {
		Label     string `json:"volIssueSupplementText"`
		URILookup string `json:"uriLookup"`
	} `json:"data"`
}

// NewUI discovers volumes for journals served with the new layout.
type NewUI struct {
	pages   Pages
	baseURL string
	logger  *zap.Logger
}

// NewNewUI builds a NewUI discoverer. An empty baseURL means request paths
// are joined to the origin of each journal URL.
func NewNewUI(pages Pages, baseURL string, logger *zap.Logger) *NewUI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewUI{pages: pages, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Discover resolves the journal's display name and its volumes, ordered by
// archive year and then by listing order within each year.
func (d *NewUI) Discover(ctx context.Context, journalURL string) (crawler.JournalTask, *crawler.Volumes, error) {
	task := crawler.JournalTask{URL: journalURL, UI: crawler.UINew}
	base, err := d.base(journalURL)
	if err != nil {
		return task, nil, err
	}

	page, err := d.pages.Document(ctx, journalURL)
	if err != nil {
		return task, nil, fmt.Errorf("load journal page: %w", err)
	}
	if href, ok := page.Attr(latestIssuesSelector, "href"); ok && strings.TrimSpace(href) != "" {
		allIssues, err := crawler.ResolveURL(base, href)
		if err != nil {
			return task, nil, fmt.Errorf("resolve all issues link: %w", err)
		}
		page, err = d.pages.Document(ctx, allIssues)
		if err != nil {
			return task, nil, fmt.Errorf("load all issues page: %w", err)
		}
	}

	task.Name = journalName(page)

	var archive archivePayload
	if err := page.Payload(&archive); err != nil {
		return task, nil, fmt.Errorf("%w: %w", ErrNoArchive, err)
	}
	results := archive.IssuesArchive.Data.Results
	slug := strings.Trim(archive.TitleMetadata.Title, "/")
	if len(results) == 0 || slug == "" {
		return task, nil, ErrNoArchive
	}
	issn := results[0].FirstIssue.ISSN
	if issn == "" {
		return task, nil, fmt.Errorf("%w: missing journal identifier", ErrNoArchive)
	}

	volumes := crawler.NewVolumes()
	for _, y := range results {
		year := y.Year.String()
		if year == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return task, volumes, fmt.Errorf("discover canceled: %w", err)
		}
		var issues yearIssues
		listing := fmt.Sprintf("%s/journal/%s/year/%s/issues", base, issn, year)
		if err := d.pages.JSON(ctx, listing, &issues); err != nil {
			d.logger.Warn("year listing failed",
				zap.String("journal", task.Name),
				zap.String("year", year),
				zap.Error(err),
			)
			continue
		}
		for _, entry := range issues.Data {
			if entry.Label == "" || entry.URILookup == "" {
				continue
			}
			volumes.Set(entry.Label, fmt.Sprintf("%s/journal/%s%s", base, slug, entry.URILookup))
		}
	}
	return task, volumes, nil
}

func (d *NewUI) base(journalURL string) (string, error) {
	if d.baseURL != "" {
		return d.baseURL, nil
	}
	return origin(journalURL)
}

func journalName(page *document.Document) string {
	name, _ := page.Attr(`input[name="pub"]`, "value")
	if strings.TrimSpace(name) == "" {
		name = page.Text("title")
	}
	return crawler.SanitizeName(name, "-")
}
