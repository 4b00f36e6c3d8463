// Package app is the composition root: it turns a Config into a wired
// crawl pipeline plus the infrastructure around it, and tears it all down
// again.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	googleuuid "github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/journal-email-crawler/internal/api"
	"github.com/JakeFAU/journal-email-crawler/internal/clock/system"
	"github.com/JakeFAU/journal-email-crawler/internal/config"
	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/discover"
	"github.com/JakeFAU/journal-email-crawler/internal/document"
	"github.com/JakeFAU/journal-email-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/journal-email-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/journal-email-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/journal-email-crawler/internal/hash/sha256"
	"github.com/JakeFAU/journal-email-crawler/internal/headless/detector"
	"github.com/JakeFAU/journal-email-crawler/internal/id/uuid"
	"github.com/JakeFAU/journal-email-crawler/internal/logging"
	"github.com/JakeFAU/journal-email-crawler/internal/metrics"
	"github.com/JakeFAU/journal-email-crawler/internal/pipeline"
	"github.com/JakeFAU/journal-email-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/journal-email-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/journal-email-crawler/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/journal-email-crawler/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/journal-email-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/journal-email-crawler/internal/results"
	"github.com/JakeFAU/journal-email-crawler/internal/storage"
	pgstore "github.com/JakeFAU/journal-email-crawler/internal/storage/postgres"
)

// App holds the wired pipeline and everything that must be closed with it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	runID    googleuuid.UUID
	pipeline *pipeline.Pipeline
	writer   *results.Writer
	hub      *progress.Hub
	status   *progresssinks.StatusSink
	server   *api.Server

	publisher    crawler.Publisher
	contactStore crawler.ContactStore
	headless     *headlessfetcher.Fetcher
	blobCloser   storage.Closer
	pubsubClose  func() error
}

// Option adjusts Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger     *zap.Logger
	registerer prometheus.Registerer
	publisher  crawler.Publisher
}

// WithLogger uses logger instead of building one from the config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithRegisterer registers progress collectors against reg instead of the
// default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) { o.registerer = reg }
}

// WithPublisher overrides the notification publisher.
func WithPublisher(p crawler.Publisher) Option {
	return func(o *buildOptions) { o.publisher = p }
}

// Build creates the application's dependencies. On error, anything already
// opened is closed again.
func Build(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	logger := bo.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	metrics.Init()

	runID, err := uuid.New().NewRunID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	a := &App{cfg: cfg, logger: logger, runID: runID, blobCloser: func() error { return nil }}
	a.logger.Info("building application dependencies",
		zap.String("run_id", runID.String()),
		zap.String("mode", cfg.Pipeline.Mode),
		zap.String("storage", cfg.Storage.Backend),
	)

	if err := a.build(ctx, bo); err != nil {
		a.closeInfrastructure(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, bo buildOptions) error {
	blobStore, err := a.setupStorage(ctx)
	if err != nil {
		return err
	}
	if err := a.setupDatabase(ctx); err != nil {
		return err
	}
	if err := a.setupPublisher(ctx, bo.publisher); err != nil {
		return err
	}
	emitter, err := a.setupProgress(bo.registerer)
	if err != nil {
		return err
	}

	a.writer, err = results.New(results.Config{
		Dir:           a.cfg.Results.Dir,
		WorkDir:       a.cfg.Results.WorkDir,
		ArchivePrefix: a.cfg.Storage.Prefix,
		Topic:         a.cfg.PubSub.TopicName,
	}, results.Options{
		BlobStore:    blobStore,
		ContactStore: a.contactStore,
		Publisher:    a.publisher,
		Hasher:       sha256.New(),
		Clock:        system.New(),
		RunID:        a.runID.String(),
		Logger:       a.logger,
	})
	if err != nil {
		return fmt.Errorf("results writer init failed: %w", err)
	}

	loader, err := a.setupLoader()
	if err != nil {
		return err
	}

	chain := extract.New()
	a.pipeline, err = pipeline.New(pipeline.Config{
		Mode:              a.cfg.Pipeline.Mode,
		Concurrency:       a.cfg.Crawler.Concurrency,
		VolumeConcurrency: a.cfg.Crawler.VolumeConcurrency,
		QueueDepth:        a.cfg.Pipeline.QueueDepth,
		FlushTimeout:      a.cfg.Pipeline.FlushTimeout(),
	}, pipeline.Options{
		Prober:     loader,
		Classifier: detector.NewUIClassifier(a.cfg.Crawler.NewUIMarker),
		Pages:      loader,
		NewUI:      discover.NewNewUI(loader, a.cfg.Crawler.BaseURL, a.logger.Named("discover")),
		OldUI:      discover.NewOldUI(loader, chain, a.cfg.Crawler.CutoffYear, a.logger.Named("discover")),
		Extractor:  chain,
		Writer:     a.writer,
		Progress:   emitter,
		Clock:      system.New(),
		RunID:      a.runID,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("pipeline init failed: %w", err)
	}

	if a.cfg.Server.Enabled {
		a.server = api.NewServer(api.Options{
			Status: a.status,
			Ready:  a.ready,
			APIKey: a.cfg.Server.APIKey,
			Logger: a.logger,
		})
	}
	return nil
}

func (a *App) setupStorage(ctx context.Context) (crawler.BlobStore, error) {
	blobStore, closer, err := storage.NewBlobStore(ctx, storage.Config{
		Backend: a.cfg.Storage.Backend,
		Bucket:  a.cfg.Storage.Bucket,
		Prefix:  a.cfg.Storage.Prefix,
		BaseDir: a.cfg.Storage.Local.BaseDir,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store init failed: %w", err)
	}
	a.blobCloser = closer
	if blobStore == nil {
		a.logger.Info("result archiving disabled")
		return nil, nil
	}
	a.logger.Info("result archiving enabled",
		zap.String("backend", a.cfg.Storage.Backend),
		zap.String("bucket", a.cfg.Storage.Bucket),
		zap.String("prefix", a.cfg.Storage.Prefix),
	)
	return blobStore, nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Info("no database DSN configured, skipping contact store")
		return nil
	}
	store, err := pgstore.NewContactStore(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		Table:           a.cfg.Database.Table,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("contact store init failed: %w", err)
	}
	a.contactStore = store
	a.logger.Info("contact store initialized", zap.String("table", a.cfg.Database.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context, override crawler.Publisher) error {
	if override != nil {
		a.publisher = override
		return nil
	}
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		a.logger.Info("no Pub/Sub project configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	pub := gcppublisher.New(client, a.cfg.PubSub.TopicName)
	a.publisher = pub
	a.pubsubClose = pub.Close
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupProgress(reg prometheus.Registerer) (progress.Emitter, error) {
	a.status = progresssinks.NewStatusSink()
	if !a.cfg.Progress.Enabled {
		a.logger.Info("progress tracking disabled")
		return progress.Discard, nil
	}
	sinkList := []progress.Sink{a.status}
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("progress metrics init failed: %w", err)
		}
		a.logger.Warn("progress collectors already registered, skipping metrics sink")
	} else {
		sinkList = append(sinkList, promSink)
	}
	if a.cfg.Progress.LogEnabled {
		sinkList = append(sinkList, progresssinks.NewLogSink(a.logger.Named("progress_log")))
	}
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(a.cfg.Progress.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Progress.SinkTimeoutMs) * time.Millisecond,
		Logger:         a.logger.Named("progress_hub"),
	}
	a.hub = progress.NewHub(hubCfg, sinkList...)
	a.logger.Info("progress hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return a.hub, nil
}

func (a *App) setupLoader() (*document.Loader, error) {
	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Crawler.UserAgent,
		RespectRobots: !a.cfg.Crawler.IgnoreRobots,
		Timeout:       a.cfg.HTTP.Timeout(),
	})
	a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))

	opts := document.Options{
		Fetcher: probe,
		Logger:  a.logger.Named("loader"),
	}
	if a.cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.Crawler.UserAgent,
			NavigationTimeout: a.cfg.Headless.NavTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = headless
		opts.Headless = headless
		opts.Detector = detector.NewHeuristic(a.cfg.Headless.PromotionThreshold)
		a.logger.Info("headless promotion enabled", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	}
	if a.cfg.RateLimit.Enabled {
		opts.Limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   a.cfg.RateLimit.DefaultRPS,
			DefaultBurst: a.cfg.RateLimit.DefaultBurst,
			Hosts:        a.cfg.RateLimit.HostRates(),
		})
		a.logger.Info("rate limiter enabled",
			zap.Float64("default_rps", a.cfg.RateLimit.DefaultRPS),
			zap.Int("default_burst", a.cfg.RateLimit.DefaultBurst),
		)
	}
	loader, err := document.NewLoader(opts)
	if err != nil {
		return nil, fmt.Errorf("loader init failed: %w", err)
	}
	return loader, nil
}

// RunID identifies this process's crawl run.
func (a *App) RunID() googleuuid.UUID {
	return a.runID
}

// Status exposes the per-journal status table.
func (a *App) Status() *progresssinks.StatusSink {
	return a.status
}

// Run crawls urls, serving the status API alongside when it is enabled.
func (a *App) Run(ctx context.Context, urls []string) (pipeline.Summary, error) {
	serverDone := make(chan error, 1)
	serveCtx, stopServer := context.WithCancel(ctx)
	if a.server != nil {
		go func() { serverDone <- a.server.ListenAndServe(serveCtx, a.cfg.Server.Port) }()
	} else {
		serverDone <- nil
	}

	summary, err := a.pipeline.Run(ctx, urls)

	stopServer()
	if serr := <-serverDone; serr != nil {
		a.logger.Warn("status server stopped with error", zap.Error(serr))
	}
	return summary, err
}

func (a *App) ready(context.Context) error {
	if a.pipeline == nil {
		return errors.New("pipeline not built")
	}
	return nil
}

// Close flushes progress and releases every client. It is safe to call once
// after Build succeeded.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pubsubClose != nil {
		if err := a.pubsubClose(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.contactStore != nil {
		a.contactStore.Close()
	}
	if a.blobCloser != nil {
		if err := a.blobCloser(); err != nil {
			a.logger.Warn("blob store close failed", zap.Error(err))
		}
	}
}
