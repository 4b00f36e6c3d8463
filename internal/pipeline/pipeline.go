// Package pipeline drives a crawl run: it classifies every input journal,
// discovers its volumes, extracts author contacts, and hands each finished
// journal to the result writer.
//
// Two shapes are available. The pool shape maps journals (and, for new-UI
// journals, their volumes) over bounded worker pools. The staged shape
// connects a collector, a parser, and a writer through bounded queues so
// that slow persistence pushes back on discovery. Old-UI journals always
// use the pool shape because their volumes form a sequential chain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-email-crawler/internal/clock/system"
	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/discover"
	"github.com/JakeFAU/journal-email-crawler/internal/dispatcher"
	"github.com/JakeFAU/journal-email-crawler/internal/extract"
	"github.com/JakeFAU/journal-email-crawler/internal/metrics"
	"github.com/JakeFAU/journal-email-crawler/internal/progress"
)

// Pipeline shapes.
const (
	ModePool   = "pool"
	ModeStaged = "staged"
)

// Prober fetches the raw landing page used for classification.
type Prober interface {
	Fetch(ctx context.Context, url string) (crawler.FetchResponse, error)
}

// Classifier decides which layout a landing page uses.
type Classifier interface {
	Classify(resp crawler.FetchResponse) crawler.UI
}

// Discoverer enumerates the volumes of a new-UI journal.
type Discoverer interface {
	Discover(ctx context.Context, url string) (crawler.JournalTask, *crawler.Volumes, error)
}

// Walker crawls an old-UI journal volume by volume.
type Walker interface {
	Crawl(ctx context.Context, url string, visit discover.VisitFunc) (crawler.JournalTask, *crawler.Contacts, error)
}

// Extractor recovers contacts from a single page.
type Extractor interface {
	Extract(src extract.Source) extract.Outcome
}

// Flusher persists one journal's contacts.
type Flusher interface {
	Flush(ctx context.Context, journal string, contacts *crawler.Contacts) (string, error)
}

// Config tunes scheduling.
type Config struct {
	Mode              string
	Concurrency       int
	VolumeConcurrency int
	QueueDepth        int
	// FlushTimeout bounds the flush of the open journal after cancellation.
	FlushTimeout time.Duration
}

// Options carries the collaborators of a Pipeline.
type Options struct {
	Prober     Prober
	Classifier Classifier
	Pages      discover.Pages
	NewUI      Discoverer
	OldUI      Walker
	Extractor  Extractor
	Writer     Flusher
	Progress   progress.Emitter
	Clock      crawler.Clock
	RunID      uuid.UUID
	Logger     *zap.Logger
}

// Outcome reports what happened to one input journal.
type Outcome struct {
	URL     string
	Journal string
	UI      crawler.UI
	Path    string
	Authors int
	Volumes int
	Err     error
}

// Summary is the result of a run, one Outcome per input URL in input order.
type Summary struct {
	RunID    uuid.UUID
	Journals []Outcome
	Elapsed  time.Duration
}

// Failed counts journals that ended with an error.
func (s Summary) Failed() int {
	n := 0
	for _, o := range s.Journals {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Authors totals the records written across journals.
func (s Summary) Authors() int {
	n := 0
	for _, o := range s.Journals {
		n += o.Authors
	}
	return n
}

// Pipeline runs crawls.
type Pipeline struct {
	cfg    Config
	opts   Options
	logger *zap.Logger
}

// New validates cfg and opts and returns a Pipeline.
func New(cfg Config, opts Options) (*Pipeline, error) {
	switch cfg.Mode {
	case "":
		cfg.Mode = ModePool
	case ModePool, ModeStaged:
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", cfg.Mode)
	}
	if opts.Prober == nil || opts.Classifier == nil {
		return nil, errors.New("prober and classifier are required")
	}
	if opts.NewUI == nil || opts.OldUI == nil || opts.Pages == nil {
		return nil, errors.New("pages and both discoverers are required")
	}
	if opts.Writer == nil {
		return nil, errors.New("writer is required")
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New()
	}
	if opts.Progress == nil {
		opts.Progress = progress.Discard
	}
	if opts.Clock == nil {
		opts.Clock = system.Clock{}
	}
	if opts.RunID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		opts.RunID = id
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.VolumeConcurrency < 1 {
		cfg.VolumeConcurrency = 1
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 1
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 10 * time.Second
	}
	return &Pipeline{cfg: cfg, opts: opts, logger: opts.Logger.Named("pipeline")}, nil
}

// Run crawls every URL. Journal failures are reported in the Summary; the
// returned error is non-nil only when ctx ended before the run finished.
func (p *Pipeline) Run(ctx context.Context, urls []string) (Summary, error) {
	start := p.opts.Clock.Now()
	summary := Summary{RunID: p.opts.RunID, Journals: make([]Outcome, len(urls))}
	p.emit(progress.Event{Stage: progress.StageRunStart, Volumes: int64(len(urls))})
	p.logger.Info("run started",
		zap.String("run_id", p.opts.RunID.String()),
		zap.String("mode", p.cfg.Mode),
		zap.Int("journals", len(urls)),
	)

	tasks, err := p.classifyAll(ctx, urls, summary.Journals)
	if err == nil {
		if p.cfg.Mode == ModeStaged {
			err = p.runStaged(ctx, tasks, summary.Journals)
		} else {
			err = p.runPool(ctx, tasks, summary.Journals)
		}
	}
	for i := range summary.Journals {
		if summary.Journals[i].URL == "" {
			summary.Journals[i].URL = urls[i]
		}
		if summary.Journals[i].Err == nil && summary.Journals[i].Path == "" && err != nil {
			summary.Journals[i].Err = err
		}
	}

	summary.Elapsed = p.opts.Clock.Now().Sub(start)
	p.emit(progress.Event{
		Stage:   progress.StageRunDone,
		Authors: int64(summary.Authors()),
		Volumes: int64(len(urls)),
		Dur:     summary.Elapsed,
	})
	p.logger.Info("run finished",
		zap.Int("journals", len(urls)),
		zap.Int("failed", summary.Failed()),
		zap.Int("authors", summary.Authors()),
		zap.Duration("elapsed", summary.Elapsed),
	)
	if err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	return summary, nil
}

// job is a classified input journal, tied to its slot in the Summary.
type job struct {
	index int
	task  crawler.JournalTask
	start time.Time
}

// classifyAll probes every URL and returns the journals that can be crawled.
// Journals whose probe fails are recorded as failures in outcomes.
func (p *Pipeline) classifyAll(ctx context.Context, urls []string, outcomes []Outcome) ([]job, error) {
	indexes := make([]int, len(urls))
	for i := range urls {
		indexes[i] = i
	}
	classified, err := dispatcher.Map(ctx, p.cfg.Concurrency, indexes, func(ctx context.Context, i int) crawler.JournalTask {
		return p.classify(ctx, urls[i], &outcomes[i])
	})
	if err != nil {
		return nil, err
	}
	jobs := make([]job, 0, len(urls))
	for i, task := range classified {
		if outcomes[i].Err != nil {
			continue
		}
		jobs = append(jobs, job{index: i, task: task, start: p.opts.Clock.Now()})
	}
	return jobs, nil
}

func (p *Pipeline) classify(ctx context.Context, raw string, out *Outcome) crawler.JournalTask {
	out.URL = raw
	url, err := crawler.NormalizeURL(raw)
	if err != nil {
		p.journalFailed(out, "", fmt.Errorf("normalize url: %w", err), 0)
		return crawler.JournalTask{}
	}
	out.URL = url
	resp, err := p.opts.Prober.Fetch(ctx, url)
	if err != nil {
		p.journalFailed(out, "", fmt.Errorf("probe: %w", err), 0)
		return crawler.JournalTask{}
	}
	task := crawler.JournalTask{URL: url, UI: p.opts.Classifier.Classify(resp)}
	out.UI = task.UI
	p.logger.Debug("journal classified", zap.String("url", url), zap.String("ui", string(task.UI)))
	return task
}

// runPool maps journals over the worker pool.
func (p *Pipeline) runPool(ctx context.Context, jobs []job, outcomes []Outcome) error {
	_, err := dispatcher.Map(ctx, p.cfg.Concurrency, jobs, func(ctx context.Context, j job) struct{} {
		out := &outcomes[j.index]
		if j.task.UI == crawler.UIOld {
			p.crawlOld(ctx, j, out)
		} else {
			p.crawlNew(ctx, j, out)
		}
		return struct{}{}
	})
	return err
}

// crawlNew discovers a new-UI journal, extracts its volumes in parallel,
// merges them in discovery order, and flushes the result.
func (p *Pipeline) crawlNew(ctx context.Context, j job, out *Outcome) {
	task, volumes, err := p.opts.NewUI.Discover(ctx, j.task.URL)
	if err != nil {
		p.journalFailed(out, task.Name, fmt.Errorf("discover: %w", err), p.since(j.start))
		return
	}
	out.Journal = task.Name
	refs := volumes.Refs(task.Name)
	p.journalStarted(task, len(refs))

	indexes := make([]int, len(refs))
	for i := range refs {
		indexes[i] = i
	}
	parts, err := dispatcher.Map(ctx, p.cfg.VolumeConcurrency, indexes, func(ctx context.Context, i int) *crawler.Contacts {
		return p.parseVolume(ctx, refs[i], i)
	})
	merged := crawler.NewContacts()
	for _, part := range parts {
		merged.Merge(part)
	}
	out.Volumes = len(refs)
	if err != nil {
		p.salvage(ctx, out, task.Name, merged, j.start, err)
		return
	}
	p.flush(ctx, out, task.Name, merged, j.start)
}

// crawlOld walks an old-UI journal and flushes whatever it gathered.
func (p *Pipeline) crawlOld(ctx context.Context, j job, out *Outcome) {
	started := false
	volumes := 0
	task, contacts, err := p.opts.OldUI.Crawl(ctx, j.task.URL, func(ref crawler.VolumeRef, extracted *crawler.Contacts) {
		if !started {
			started = true
			p.journalStarted(crawler.JournalTask{URL: j.task.URL, Name: ref.Journal, UI: crawler.UIOld}, 0)
		}
		p.volumeDone(ref, volumes, extracted.Len())
		volumes++
	})
	out.Volumes = volumes
	if err != nil && ctx.Err() != nil && started {
		p.salvage(ctx, out, task.Name, contacts, j.start, err)
		return
	}
	if err != nil {
		p.journalFailed(out, task.Name, fmt.Errorf("crawl: %w", err), p.since(j.start))
		return
	}
	out.Journal = task.Name
	if !started {
		p.journalStarted(task, 0)
	}
	p.flush(ctx, out, task.Name, contacts, j.start)
}

// parseVolume loads one volume and extracts it. A failed load contributes
// nothing.
func (p *Pipeline) parseVolume(ctx context.Context, ref crawler.VolumeRef, index int) *crawler.Contacts {
	doc, err := p.opts.Pages.Document(ctx, ref.URL)
	if err != nil {
		p.logger.Warn("volume fetch failed",
			zap.String("journal", ref.Journal),
			zap.String("volume", ref.Label),
			zap.String("url", ref.URL),
			zap.Error(err),
		)
		p.volumeDone(ref, index, 0)
		return crawler.NewContacts()
	}
	out := p.opts.Extractor.Extract(doc)
	metrics.ObserveExtraction(string(out.Variant))
	contacts := out.Contacts
	if contacts == nil {
		contacts = crawler.NewContacts()
	}
	p.logger.Debug("volume parsed",
		zap.String("journal", ref.Journal),
		zap.String("volume", ref.Label),
		zap.String("variant", string(out.Variant)),
		zap.Int("authors", contacts.Len()),
	)
	p.volumeDone(ref, index, contacts.Len())
	return contacts
}

func (p *Pipeline) flush(ctx context.Context, out *Outcome, journal string, contacts *crawler.Contacts, start time.Time) {
	path, err := p.opts.Writer.Flush(ctx, journal, contacts)
	if err != nil {
		p.journalFailed(out, journal, err, p.since(start))
		return
	}
	out.Journal = journal
	out.Path = path
	out.Authors = contacts.Len()
	p.logger.Info("journal written",
		zap.String("journal", journal),
		zap.String("path", path),
		zap.Int("authors", out.Authors),
		zap.Int("volumes", out.Volumes),
	)
	p.emit(progress.Event{
		Stage:   progress.StageJournalDone,
		Journal: journal,
		URL:     out.URL,
		UI:      string(out.UI),
		Authors: int64(out.Authors),
		Volumes: int64(out.Volumes),
		Dur:     p.since(start),
	})
}

// salvage writes what an interrupted journal gathered under a fresh context
// bounded by FlushTimeout, then records cause against the journal.
func (p *Pipeline) salvage(ctx context.Context, out *Outcome, journal string, contacts *crawler.Contacts, start time.Time, cause error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FlushTimeout)
	defer cancel()
	path, err := p.opts.Writer.Flush(fctx, journal, contacts)
	if err != nil {
		p.journalFailed(out, journal, errors.Join(cause, err), p.since(start))
		return
	}
	out.Path = path
	out.Authors = contacts.Len()
	p.logger.Info("partial journal written",
		zap.String("journal", journal),
		zap.String("path", path),
		zap.Int("authors", out.Authors),
	)
	p.journalFailed(out, journal, cause, p.since(start))
}

func (p *Pipeline) journalStarted(task crawler.JournalTask, volumes int) {
	p.logger.Info("journal started",
		zap.String("journal", task.Name),
		zap.String("url", task.URL),
		zap.String("ui", string(task.UI)),
		zap.Int("volumes", volumes),
	)
	p.emit(progress.Event{
		Stage:   progress.StageJournalStart,
		Journal: task.Name,
		URL:     task.URL,
		UI:      string(task.UI),
		Volumes: int64(volumes),
	})
}

func (p *Pipeline) volumeDone(ref crawler.VolumeRef, index, authors int) {
	p.logger.Info("volume done",
		zap.String("journal", ref.Journal),
		zap.String("volume", ref.Label),
		zap.Int("authors", authors),
	)
	p.emit(progress.Event{
		Stage:   progress.StageVolumeDone,
		Journal: ref.Journal,
		URL:     ref.URL,
		Authors: int64(authors),
		Volumes: int64(index),
		Note:    ref.Label,
	})
}

// journalFailed records err on out. Until discovery resolves a name the
// journal is identified by its URL.
func (p *Pipeline) journalFailed(out *Outcome, journal string, err error, dur time.Duration) {
	if journal == "" {
		journal = out.URL
	}
	out.Journal = journal
	out.Err = err
	p.logger.Warn("journal failed",
		zap.String("journal", journal),
		zap.String("url", out.URL),
		zap.Error(err),
	)
	p.emit(progress.Event{
		Stage:   progress.StageJournalError,
		Journal: journal,
		URL:     out.URL,
		UI:      string(out.UI),
		Dur:     dur,
		Note:    err.Error(),
	})
}

func (p *Pipeline) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(p.opts.RunID)
	if evt.TS.IsZero() {
		evt.TS = p.opts.Clock.Now()
	}
	p.opts.Progress.Emit(evt)
}

func (p *Pipeline) since(start time.Time) time.Duration {
	d := p.opts.Clock.Now().Sub(start)
	if d < 0 {
		return 0
	}
	return d
}
