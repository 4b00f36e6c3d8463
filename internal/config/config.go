// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. JOURNALS_CRAWLER_CONCURRENCY.
const EnvPrefix = "JOURNALS"

// DefaultUserAgent is the desktop browser string sent when none is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/61.0.3163.100 Safari/537.36"

// Pipeline modes.
const (
	ModePool   = "pool"
	ModeStaged = "staged"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Results   ResultsConfig   `mapstructure:"results"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig governs discovery and fetch identity.
type CrawlerConfig struct {
	// BaseURL overrides the origin used to build new-layout volume URLs.
	BaseURL           string `mapstructure:"base_url"`
	UserAgent         string `mapstructure:"user_agent"`
	Concurrency       int    `mapstructure:"concurrency"`
	VolumeConcurrency int    `mapstructure:"volume_concurrency"`
	CutoffYear        int    `mapstructure:"cutoff_year"`
	NewUIMarker       string `mapstructure:"new_ui_marker"`
	IgnoreRobots      bool   `mapstructure:"ignore_robots"`
}

// PipelineConfig selects the pipeline shape.
type PipelineConfig struct {
	Mode                string `mapstructure:"mode"`
	QueueDepth          int    `mapstructure:"queue_depth"`
	FlushTimeoutSeconds int    `mapstructure:"flush_timeout_seconds"`
}

// FlushTimeout is the budget for flushing an open record after cancellation.
func (p PipelineConfig) FlushTimeout() time.Duration {
	return time.Duration(p.FlushTimeoutSeconds) * time.Second
}

// HTTPConfig configures the plain fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// RateLimitConfig paces requests per host.
type RateLimitConfig struct {
	Enabled      bool       `mapstructure:"enabled"`
	DefaultRPS   float64    `mapstructure:"default_rps"`
	DefaultBurst int        `mapstructure:"default_burst"`
	Hosts        []HostRate `mapstructure:"hosts"`
}

// HostRate overrides the default rate for one host. Hosts are a list
// because viper splits dotted map keys.
type HostRate struct {
	Host string  `mapstructure:"host"`
	RPS  float64 `mapstructure:"rps"`
}

// HostRates returns the overrides keyed by host.
func (r RateLimitConfig) HostRates() map[string]float64 {
	out := make(map[string]float64, len(r.Hosts))
	for _, h := range r.Hosts {
		out[h.Host] = h.RPS
	}
	return out
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	MaxParallel        int  `mapstructure:"max_parallel"`
	NavTimeoutSeconds  int  `mapstructure:"nav_timeout_seconds"`
	PromotionThreshold int  `mapstructure:"promotion_threshold"`
}

// NavTimeout returns the navigation timeout.
func (h HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(h.NavTimeoutSeconds) * time.Second
}

// ResultsConfig locates result files.
type ResultsConfig struct {
	Dir     string `mapstructure:"dir"`
	WorkDir string `mapstructure:"work_dir"`
}

// StorageConfig selects the archive backend for result files.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Bucket  string             `mapstructure:"bucket"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem archive.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DatabaseConfig controls the Postgres contact mirror. An empty DSN disables it.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds the result announcement topic. An empty project disables it.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig controls the progress hub.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig tunes hub batching.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Pipeline.Mode = strings.ToLower(strings.TrimSpace(cfg.Pipeline.Mode))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "")
	v.SetDefault("crawler.user_agent", DefaultUserAgent)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.volume_concurrency", 4)
	v.SetDefault("crawler.cutoff_year", 2010)
	v.SetDefault("crawler.new_ui_marker", "Find out more")
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("pipeline.mode", ModePool)
	v.SetDefault("pipeline.queue_depth", 64)
	v.SetDefault("pipeline.flush_timeout_seconds", 10)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rps", 2.0)
	v.SetDefault("rate_limit.default_burst", 2)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("results.dir", "results")
	v.SetDefault("results.work_dir", "")
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "journals")
	v.SetDefault("storage.local.base_dir", "archive")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.table", "journal_contacts")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "journal-results")
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch.max_events", 256)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 5000)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Crawler.Concurrency <= 0 {
		errs = append(errs, errors.New("crawler.concurrency must be > 0"))
	}
	if c.Crawler.VolumeConcurrency <= 0 {
		errs = append(errs, errors.New("crawler.volume_concurrency must be > 0"))
	}
	if c.Crawler.CutoffYear <= 0 {
		errs = append(errs, errors.New("crawler.cutoff_year must be > 0"))
	}
	switch c.Pipeline.Mode {
	case ModePool, ModeStaged:
	default:
		errs = append(errs, fmt.Errorf("pipeline.mode must be %q or %q, got %q", ModePool, ModeStaged, c.Pipeline.Mode))
	}
	if c.Pipeline.QueueDepth <= 0 {
		errs = append(errs, errors.New("pipeline.queue_depth must be > 0"))
	}
	if c.Pipeline.FlushTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("pipeline.flush_timeout_seconds must be > 0"))
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http.timeout_seconds must be > 0"))
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultRPS < 0 {
		errs = append(errs, errors.New("rate_limit.default_rps must be >= 0"))
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		errs = append(errs, errors.New("headless.max_parallel must be > 0 when headless is enabled"))
	}
	if strings.TrimSpace(c.Results.Dir) == "" {
		errs = append(errs, errors.New("results.dir is required"))
	}
	switch c.Storage.Backend {
	case "", "none", "memory":
	case "local":
		if c.Storage.Local.BaseDir == "" {
			errs = append(errs, errors.New("storage.local.base_dir is required for the local backend"))
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for the gcs backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.backend %q", c.Storage.Backend))
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		errs = append(errs, errors.New("pubsub.topic_name is required when pubsub.project_id is set"))
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	return errors.Join(errs...)
}
