package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/dining-cli/internal/dbscan"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/data.zip", cfg.Source.ArchivePath)
	assert.Equal(t, "data.json", cfg.Source.ArchiveEntry)
	assert.Equal(t, "https://data.cityofnewyork.us/resource/43nn-pn8j.json", cfg.Source.RemoteURL)
	assert.Equal(t, 1000, cfg.Source.PageSize)
	assert.False(t, cfg.Source.Remote)
	assert.Equal(t, 30, cfg.Source.TimeoutSecs)
	assert.InDelta(t, 5.0, cfg.Source.RequestsPerSecond, 0.001)
	assert.InDelta(t, 0.1, cfg.Cluster.ScoreWeight, 0.001)
	assert.InDelta(t, 1.0, cfg.Cluster.RadiusKM, 0.001)
	assert.Equal(t, 5, cfg.Cluster.MinSamples)
	assert.Equal(t, []string{"planar", "great-circle"}, cfg.Cluster.Metrics)
	assert.InDelta(t, 0.5, cfg.Cluster.PlanarEpsScale, 0.001)
	assert.InDelta(t, 0.03, cfg.Cluster.GreatCircleEpsScale, 0.001)
	assert.Equal(t, 8, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Hour, cfg.CacheTTL())
	assert.Equal(t, "", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  archive_path: /srv/inspections.zip
cluster:
  radius_km: 0.5
  metrics: [haversine]
store:
  driver: sqlite
  database_url: runs.db
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/inspections.zip", cfg.Source.ArchivePath)
	assert.InDelta(t, 0.5, cfg.Cluster.RadiusKM, 0.001)
	assert.Equal(t, []string{"haversine"}, cfg.Cluster.Metrics)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Cluster.MinSamples)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DINING_STORE_DRIVER", "postgres")
	t.Setenv("DINING_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("DINING_SERVER_PORT", "3000")
	t.Setenv("DINING_CLUSTER_MIN_SAMPLES", "8")
	t.Setenv("DINING_SOURCE_REMOTE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Cluster.MinSamples)
	assert.True(t, cfg.Source.Remote)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cluster: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Source.ArchivePath = "data/data.zip"
	cfg.Source.PageSize = 1000
	cfg.Cluster.ScoreWeight = 0.1
	cfg.Cluster.RadiusKM = 1
	cfg.Cluster.MinSamples = 5
	cfg.Cluster.Metrics = []string{"planar", "great-circle"}
	cfg.Cluster.PlanarEpsScale = 0.5
	cfg.Cluster.GreatCircleEpsScale = 0.03
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"load", "cluster", "export", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_Source(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.ArchivePath = ""

	err := cfg.Validate("load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "source.archive_path is required")

	cfg.Source.Remote = true
	cfg.Source.RemoteURL = "https://example.com/data.json"
	assert.NoError(t, cfg.Validate("load"))
}

func TestValidate_Cluster(t *testing.T) {
	cfg := validDefaults()
	cfg.Cluster.MinSamples = 0
	err := cfg.Validate("cluster")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min_samples")

	// Load does not depend on cluster settings.
	assert.NoError(t, cfg.Validate("load"))

	cfg = validDefaults()
	cfg.Cluster.Metrics = []string{"manhattan"}
	assert.Error(t, cfg.Validate("export"))
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	assert.Error(t, cfg.Validate("load"))

	cfg.Store.Driver = "postgres"
	err := cfg.Validate("load")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/dining"
	assert.NoError(t, cfg.Validate("runs"))

	cfg.Store.Driver = ""
	err = cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver is required")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
	assert.NoError(t, cfg.Validate("cluster"))
}

func TestPipelineConversion(t *testing.T) {
	cfg := validDefaults()
	pc := cfg.Pipeline()
	assert.Equal(t, []dbscan.Metric{dbscan.Planar, dbscan.GreatCircle}, pc.Metrics)
	assert.Equal(t, 5, pc.MinSamples)
	assert.InDelta(t, 0.03, pc.EpsScale(dbscan.GreatCircle), 1e-12)

	src := cfg.LoaderSource()
	assert.Equal(t, "data/data.zip", src.ArchivePath)
	assert.Equal(t, 1000, src.PageSize)
}
