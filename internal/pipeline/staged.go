package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/queue/memory"
)

// journalMessage is what the collector hands the parser.
type journalMessage struct {
	index int
	task  crawler.JournalTask
	refs  []crawler.VolumeRef
	start time.Time
}

// authorMessage is one extracted record, or the end-of-journal marker when
// done is set.
type authorMessage struct {
	index   int
	journal string
	volumes int
	start   time.Time
	name    string
	emails  []string
	done    bool
}

// openJournal is the record the writer stage is accumulating.
type openJournal struct {
	index    int
	journal  string
	volumes  int
	start    time.Time
	contacts *crawler.Contacts
}

// runStaged sends new-UI journals through the collector, parser, and writer
// stages while old-UI journals run on the pool alongside them.
func (p *Pipeline) runStaged(ctx context.Context, jobs []job, outcomes []Outcome) error {
	var newJobs, oldJobs []job
	for _, j := range jobs {
		if j.task.UI == crawler.UIOld {
			oldJobs = append(oldJobs, j)
		} else {
			newJobs = append(newJobs, j)
		}
	}

	journals := memory.NewQueue[journalMessage](p.cfg.QueueDepth)
	authors := memory.NewQueue[authorMessage](p.cfg.QueueDepth)

	var g errgroup.Group
	g.Go(func() error { return p.runPool(ctx, oldJobs, outcomes) })
	g.Go(func() error { return p.collect(ctx, newJobs, journals, outcomes) })
	g.Go(func() error { return p.parse(ctx, journals, authors) })
	g.Go(func() error { return p.write(ctx, authors, outcomes) })
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// collect runs discovery for each journal in turn.
func (p *Pipeline) collect(ctx context.Context, jobs []job, out *memory.Queue[journalMessage], outcomes []Outcome) error {
	defer out.Close()
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		task, volumes, err := p.opts.NewUI.Discover(ctx, j.task.URL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.journalFailed(&outcomes[j.index], task.Name, fmt.Errorf("discover: %w", err), p.since(j.start))
			continue
		}
		refs := volumes.Refs(task.Name)
		p.journalStarted(task, len(refs))
		msg := journalMessage{index: j.index, task: task, refs: refs, start: j.start}
		if err := out.Enqueue(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// parse extracts each volume in discovery order and forwards one message
// per record, closing every journal with a done marker.
func (p *Pipeline) parse(ctx context.Context, in *memory.Queue[journalMessage], out *memory.Queue[authorMessage]) error {
	defer out.Close()
	for {
		msg, err := in.Dequeue(ctx)
		if errors.Is(err, memory.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		base := authorMessage{index: msg.index, journal: msg.task.Name, volumes: len(msg.refs), start: msg.start}
		for i, ref := range msg.refs {
			if err := ctx.Err(); err != nil {
				return err
			}
			var sendErr error
			p.parseVolume(ctx, ref, i).Each(func(name string, emails []string) {
				if sendErr != nil {
					return
				}
				rec := base
				rec.name = name
				rec.emails = emails
				sendErr = out.Enqueue(ctx, rec)
			})
			if sendErr != nil {
				return sendErr
			}
		}
		done := base
		done.done = true
		if err := out.Enqueue(ctx, done); err != nil {
			return err
		}
	}
}

// write accumulates records for the open journal and flushes it on its
// done marker, when a different journal shows up, or when input ends. On
// cancellation the open journal is flushed under a fresh context; anything
// still queued is dropped.
func (p *Pipeline) write(ctx context.Context, in *memory.Queue[authorMessage], outcomes []Outcome) error {
	var open *openJournal
	finish := func() {
		if open == nil {
			return
		}
		out := &outcomes[open.index]
		out.Volumes = open.volumes
		p.flush(ctx, out, open.journal, open.contacts, open.start)
		open = nil
	}
	for {
		msg, err := in.Dequeue(ctx)
		if errors.Is(err, memory.ErrClosed) {
			finish()
			return nil
		}
		if err != nil {
			if open != nil {
				p.logger.Info("flushing open journal on shutdown", zap.String("journal", open.journal))
				out := &outcomes[open.index]
				out.Volumes = open.volumes
				p.salvage(ctx, out, open.journal, open.contacts, open.start, err)
			}
			return err
		}
		if open != nil && open.index != msg.index {
			finish()
		}
		if open == nil {
			open = &openJournal{
				index:    msg.index,
				journal:  msg.journal,
				volumes:  msg.volumes,
				start:    msg.start,
				contacts: crawler.NewContacts(),
			}
		}
		if msg.done {
			finish()
			continue
		}
		open.contacts.Put(msg.name, msg.emails...)
	}
}
