package discover

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/document"
	"github.com/JakeFAU/journal-email-crawler/internal/extract"
	"github.com/JakeFAU/journal-email-crawler/internal/metrics"
)

// DefaultCutoffYear is the oldest publication year walked by OldUI.
const DefaultCutoffYear = 2010

const (
	oldLatestIssueSelector = `a[title="Latest issue"]`
	volumeHeaderSelector   = `div.volumeHeader`
	volumeLabelSelector    = `span[aria-selected="true"]`
	articleLinkSelector    = `a.cLink.artTitle.S_C_artTitle`
	previousVolumeSelector = `a[title="Previous volume/issue"]`
)

// VisitFunc is called after each volume page has been extracted.
type VisitFunc func(ref crawler.VolumeRef, extracted *crawler.Contacts)

// OldUI walks old-layout journals from the newest volume backwards.
type OldUI struct {
	pages     Pages
	extractor *extract.Chain
	cutoff    int
	logger    *zap.Logger
}

// NewOldUI builds an OldUI walker. A cutoff of zero selects DefaultCutoffYear.
func NewOldUI(pages Pages, extractor *extract.Chain, cutoff int, logger *zap.Logger) *OldUI {
	if cutoff == 0 {
		cutoff = DefaultCutoffYear
	}
	if extractor == nil {
		extractor = extract.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OldUI{pages: pages, extractor: extractor, cutoff: cutoff, logger: logger}
}

// Crawl walks one journal and returns everything extracted from it.
//
// The walk stops at the first volume whose header year is missing or older
// than the cutoff, when no previous link exists, or when the previous link
// itself names a year older than the cutoff. A failed article fetch skips
// that article; a failed volume fetch ends the walk with what was gathered.
func (o *OldUI) Crawl(ctx context.Context, journalURL string, visit VisitFunc) (crawler.JournalTask, *crawler.Contacts, error) {
	task := crawler.JournalTask{URL: journalURL, UI: crawler.UIOld}
	results := crawler.NewContacts()

	current, err := o.pages.Document(ctx, journalURL)
	if err != nil {
		return task, results, fmt.Errorf("load journal page: %w", err)
	}
	task.Name = crawler.SanitizeName(current.Text("span.pubTitle h1"), " -")
	if task.Name == "" {
		task.Name = crawler.SanitizeName(current.Text("title"), " -")
	}

	if latest := latestIssueHref(current); latest != "" {
		next, err := current.Resolve(latest)
		if err != nil {
			return task, results, fmt.Errorf("resolve latest issue link: %w", err)
		}
		if current, err = o.pages.Document(ctx, next); err != nil {
			return task, results, fmt.Errorf("load latest issue: %w", err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return task, results, fmt.Errorf("crawl canceled: %w", err)
		}
		header := current.Text(volumeHeaderSelector)
		year, ok := crawler.FirstYear(header)
		if !ok || year < o.cutoff {
			o.logger.Info("reached cutoff",
				zap.String("journal", task.Name),
				zap.String("header", header),
				zap.Int("cutoff", o.cutoff),
			)
			break
		}

		label := current.Text(volumeLabelSelector)
		if label == "" {
			label = header
		}
		ref := crawler.VolumeRef{Journal: task.Name, Label: label, URL: current.URL()}
		extracted := o.extractVolume(ctx, current)
		results.Merge(extracted)
		if visit != nil {
			visit(ref, extracted)
		}

		prev, ok := current.Attr(previousVolumeSelector, "href")
		if !ok || strings.TrimSpace(prev) == "" {
			break
		}
		if y, ok := crawler.FirstYear(current.Text(previousVolumeSelector)); ok && y < o.cutoff {
			break
		}
		next, err := current.Resolve(prev)
		if err != nil {
			o.logger.Warn("bad previous volume link", zap.String("journal", task.Name), zap.Error(err))
			break
		}
		if current, err = o.pages.Document(ctx, next); err != nil {
			o.logger.Warn("previous volume fetch failed",
				zap.String("journal", task.Name),
				zap.String("url", next),
				zap.Error(err),
			)
			break
		}
	}
	return task, results, nil
}

func (o *OldUI) extractVolume(ctx context.Context, volume *document.Document) *crawler.Contacts {
	contacts := crawler.NewContacts()
	volume.Find(articleLinkSelector).Each(func(_ int, link *goquery.Selection) {
		if ctx.Err() != nil {
			return
		}
		href, _ := link.Attr("href")
		articleURL, err := volume.Resolve(href)
		if err != nil {
			return
		}
		article, err := o.pages.Document(ctx, articleURL)
		if err != nil {
			o.logger.Debug("article fetch failed", zap.String("url", articleURL), zap.Error(err))
			return
		}
		out := o.extractor.Extract(article)
		metrics.ObserveExtraction(string(out.Variant))
		contacts.Merge(out.Contacts)
	})
	return contacts
}

func latestIssueHref(doc *document.Document) string {
	for _, sel := range []string{latestIssuesSelector, oldLatestIssueSelector} {
		if href, ok := doc.Attr(sel, "href"); ok && strings.TrimSpace(href) != "" {
			return href
		}
	}
	return ""
}
