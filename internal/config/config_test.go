package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/weldalign/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
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

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "weldalign.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(32), cfg.Server.MaxUploadMB)
	assert.True(t, cfg.Server.SaveRuns)
	assert.Equal(t, 3, cfg.Align.Concurrency)
	assert.Empty(t, cfg.Align.Candidates)
	assert.Equal(t, model.DefaultTolerances(), cfg.Align.Tolerances)
	assert.Equal(t, "0", cfg.Ingest.Sheet1)
	assert.Equal(t, "0", cfg.Ingest.Sheet2)
	assert.Empty(t, cfg.Ingest.Charset)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/weldalign
log:
  level: debug
  format: console
align:
  concurrency: 8
  candidates: [10, 12.5]
  tolerances:
    distance: 0.5
    min_confidence: 0.7
ingest:
  sheet1: 缺陷列表
  charset: gbk
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8, cfg.Align.Concurrency)
	assert.Equal(t, []float64{10, 12.5}, cfg.Align.Candidates)
	assert.InDelta(t, 0.5, cfg.Align.Tolerances.Distance, 1e-9)
	assert.InDelta(t, 0.7, cfg.Align.Tolerances.MinConfidence, 1e-9)
	assert.Equal(t, "缺陷列表", cfg.Ingest.Sheet1)
	assert.Equal(t, "gbk", cfg.Ingest.Charset)
	// Defaults still apply for unset values
	assert.InDelta(t, 45, cfg.Align.Tolerances.ClockPosition, 1e-9)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("WELDALIGN_STORE_DRIVER", "sqlite")
	t.Setenv("WELDALIGN_LOG_LEVEL", "warn")
	t.Setenv("WELDALIGN_ALIGN_TOLERANCES_CLOCK_POSITION", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 30, cfg.Align.Tolerances.ClockPosition, 1e-9)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "weldalign.db"
	cfg.Align.Concurrency = 3
	cfg.Align.Tolerances = model.DefaultTolerances()
	cfg.Server.Port = 8080
	cfg.Server.SaveRuns = true
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"align", "serve", "runs"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_Tolerances(t *testing.T) {
	cfg := validDefaults()
	cfg.Align.Tolerances.Depth = 0
	err := cfg.Validate("align")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depth must be positive")

	cfg = validDefaults()
	cfg.Align.Tolerances.MinConfidence = 1.5
	err = cfg.Validate("align")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_confidence")
}

func TestValidate_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Align.Concurrency = 0
	err := cfg.Validate("align")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "align.concurrency must be between 1 and 64")

	cfg.Align.Concurrency = 64
	assert.NoError(t, cfg.Validate("align"))
}

func TestValidate_Candidates(t *testing.T) {
	cfg := validDefaults()
	cfg.Align.Candidates = []float64{10, -1}
	err := cfg.Validate("align")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "align.candidates")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// align does not care about the port
	assert.NoError(t, cfg.Validate("align"))
}

func TestValidate_Store(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")

	cfg = validDefaults()
	cfg.Store.DatabaseURL = ""
	err = cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	// serve without run history does not need a store
	cfg.Server.SaveRuns = false
	assert.NoError(t, cfg.Validate("serve"))
}
