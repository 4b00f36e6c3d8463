package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/journal-email-crawler/internal/progress"
)

// PrometheusSink exports run and journal progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted     prometheus.Counter
	journalsRunning prometheus.Gauge
	journalsDone    *prometheus.CounterVec
	journalRuntime  *prometheus.HistogramVec
	volumesDone     prometheus.Counter
	volumeAuthors   prometheus.Histogram
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_crawler_runs_started_total",
			Help: "Crawl runs started.",
		}),
		journalsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_crawler_journals_running",
			Help: "Journals currently being crawled.",
		}),
		journalsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_crawler_journals_completed_total",
			Help: "Journals finished, partitioned by result.",
		}, []string{"result", "ui"}),
		journalRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journal_crawler_journal_runtime_seconds",
			Help:    "Wall time per journal.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"result"}),
		volumesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_crawler_volumes_completed_total",
			Help: "Volumes or issues parsed.",
		}),
		volumeAuthors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "journal_crawler_volume_authors",
			Help:    "Authors extracted per volume.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
	for _, c := range []prometheus.Collector{
		s.runsStarted, s.journalsRunning, s.journalsDone,
		s.journalRuntime, s.volumesDone, s.volumeAuthors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
		case progress.StageJournalStart:
			s.journalsRunning.Inc()
		case progress.StageVolumeDone:
			s.volumesDone.Inc()
			s.volumeAuthors.Observe(float64(evt.Authors))
		case progress.StageJournalDone:
			s.finish(evt, "success")
		case progress.StageJournalError:
			s.finish(evt, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.journalsRunning.Dec()
	ui := evt.UI
	if ui == "" {
		ui = "unknown"
	}
	s.journalsDone.WithLabelValues(result, ui).Inc()
	if evt.Dur > 0 {
		s.journalRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
