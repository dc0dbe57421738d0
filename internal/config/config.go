package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/loader"
	"github.com/sells-group/dining-cli/internal/pipeline"
)

// Config holds the full application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	Cluster ClusterConfig `yaml:"cluster" mapstructure:"cluster"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourceConfig locates the inspection dataset.
type SourceConfig struct {
	ArchivePath       string  `yaml:"archive_path" mapstructure:"archive_path"`
	ArchiveEntry      string  `yaml:"archive_entry" mapstructure:"archive_entry"`
	RemoteURL         string  `yaml:"remote_url" mapstructure:"remote_url"`
	PageSize          int     `yaml:"page_size" mapstructure:"page_size"`
	Remote            bool    `yaml:"remote" mapstructure:"remote"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ClusterConfig configures feature scaling and density clustering.
type ClusterConfig struct {
	ScoreWeight         float64  `yaml:"score_weight" mapstructure:"score_weight"`
	RadiusKM            float64  `yaml:"radius_km" mapstructure:"radius_km"`
	MinSamples          int      `yaml:"min_samples" mapstructure:"min_samples"`
	Metrics             []string `yaml:"metrics" mapstructure:"metrics"`
	PlanarEpsScale      float64  `yaml:"planar_eps_scale" mapstructure:"planar_eps_scale"`
	GreatCircleEpsScale float64  `yaml:"great_circle_eps_scale" mapstructure:"great_circle_eps_scale"`
	DropUnknownLocation bool     `yaml:"drop_unknown_location" mapstructure:"drop_unknown_location"`
}

// CacheConfig configures the pipeline result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// StoreConfig configures the run store. An empty driver disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DINING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.archive_path", "data/data.zip")
	v.SetDefault("source.archive_entry", loader.DefaultArchiveEntry)
	v.SetDefault("source.remote_url", "https://data.cityofnewyork.us/resource/43nn-pn8j.json")
	v.SetDefault("source.page_size", loader.DefaultPageSize)
	v.SetDefault("source.remote", false)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.requests_per_second", 5)
	v.SetDefault("cluster.score_weight", 0.1)
	v.SetDefault("cluster.radius_km", 1.0)
	v.SetDefault("cluster.min_samples", dbscan.DefaultMinSamples)
	v.SetDefault("cluster.metrics", []string{string(dbscan.Planar), string(dbscan.GreatCircle)})
	v.SetDefault("cluster.planar_eps_scale", pipeline.DefaultPlanarEpsScale)
	v.SetDefault("cluster.great_circle_eps_scale", pipeline.DefaultGreatCircleEpsScale)
	v.SetDefault("cluster.drop_unknown_location", false)
	v.SetDefault("cache.max_entries", 8)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "load", "cluster", "export", "serve", "runs":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "runs" {
		if c.Source.ArchivePath == "" && !(c.Source.Remote && c.Source.RemoteURL != "") {
			errs = append(errs, "source.archive_path is required unless source.remote is set")
		}
		if c.Source.PageSize < 0 {
			errs = append(errs, "source.page_size must be >= 0")
		}
		if c.Source.RequestsPerSecond < 0 {
			errs = append(errs, "source.requests_per_second must be >= 0")
		}
	}

	if mode == "cluster" || mode == "export" || mode == "serve" {
		if err := c.Pipeline().Validate(); err != nil {
			errs = append(errs, strings.TrimPrefix(err.Error(), "pipeline: "))
		}
	}

	switch c.Store.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	if mode == "runs" && c.Store.Driver == "" {
		errs = append(errs, "store.driver is required to list runs")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoaderSource converts the source settings for the record loader.
func (c *Config) LoaderSource() loader.Source {
	return loader.Source{
		ArchivePath:  c.Source.ArchivePath,
		ArchiveEntry: c.Source.ArchiveEntry,
		RemoteURL:    c.Source.RemoteURL,
		PageSize:     c.Source.PageSize,
		Remote:       c.Source.Remote,
	}
}

// Pipeline converts the cluster settings for the pipeline.
func (c *Config) Pipeline() pipeline.Config {
	metrics := make([]dbscan.Metric, 0, len(c.Cluster.Metrics))
	for _, m := range c.Cluster.Metrics {
		metrics = append(metrics, dbscan.Metric(m))
	}
	return pipeline.Config{
		ScoreWeight:         c.Cluster.ScoreWeight,
		RadiusKM:            c.Cluster.RadiusKM,
		MinSamples:          c.Cluster.MinSamples,
		Metrics:             metrics,
		PlanarEpsScale:      c.Cluster.PlanarEpsScale,
		GreatCircleEpsScale: c.Cluster.GreatCircleEpsScale,
		DropUnknownLocation: c.Cluster.DropUnknownLocation,
	}
}

// CacheTTL returns the cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// FetchTimeout returns the remote request timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSecs) * time.Second
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
