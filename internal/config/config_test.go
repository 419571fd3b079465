package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "regions", cfg.Regions.Dir)
	assert.Equal(t, "knowledge", cfg.Knowledge.Dir)
	assert.Equal(t, "curator.db", cfg.Usage.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://google.serper.dev", cfg.Serper.BaseURL)
	assert.Equal(t, 2500, cfg.Serper.FreeCeiling)
	assert.InDelta(t, 0.001, cfg.Serper.PerCallUSD, 1e-9)
	assert.Equal(t, 2000, cfg.Brave.FreeCeiling)
	assert.Equal(t, 100, cfg.YouTube.FreeCeiling)
	assert.Zero(t, cfg.YouTube.PerCallUSD)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Judge.Model)
	assert.Equal(t, int64(512), cfg.Judge.MaxTokens)
	assert.Equal(t, 20, cfg.Judge.TimeoutSecs)
	assert.InDelta(t, 3.0, cfg.Arbiter.MismatchCeiling, 0.001)
	assert.InDelta(t, 8.5, cfg.Arbiter.MatchFloor, 0.001)
	assert.InDelta(t, 2.0, cfg.Rank.DenyCeiling, 0.001)
	assert.Equal(t, 8, cfg.Rank.InterleaveThreshold)
	assert.Equal(t, 4, cfg.Pipeline.JudgePoolSize)
	assert.Equal(t, 20, cfg.Pipeline.MaxHits)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
regions:
  dir: /etc/curator/regions
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  judge_pool_size: 8
youtube:
  languages: [indonesian, vietnamese]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/curator/regions", cfg.Regions.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Pipeline.JudgePoolSize)
	assert.Equal(t, []string{"indonesian", "vietnamese"}, cfg.YouTube.Languages)
	// Defaults still apply for unset values
	assert.Equal(t, 2500, cfg.Serper.FreeCeiling)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
judge:
  model: claude-sonnet-4-5-20250929
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CURATOR_LOG_LEVEL", "warn")
	t.Setenv("CURATOR_JUDGE_MODEL", "claude-haiku-4-5-20251001")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Judge.Model)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CURATOR_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
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
	cfg.Pipeline.JudgePoolSize = 4
	cfg.Arbiter.MismatchCeiling = 3.0
	cfg.Arbiter.MatchFloor = 8.5
	cfg.Judge.TimeoutSecs = 20
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateCurate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Serper.Key = "serper-key"

	assert.NoError(t, cfg.Validate("curate"))
}

func TestValidateCurate_MissingKeys(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("curate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "at least one provider key")
}

func TestValidateCurate_AnyProviderKeySuffices(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.YouTube.Key = "yt-key"

	assert.NoError(t, cfg.Validate("curate"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Brave.Key = "brave-key"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateAdmin_NoKeysNeeded(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("admin"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidatePoolBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.JudgePoolSize = 0
	err := cfg.Validate("admin")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "judge_pool_size must be between 1 and 32")

	cfg.Pipeline.JudgePoolSize = 33
	err = cfg.Validate("admin")
	assert.Error(t, err)

	cfg.Pipeline.JudgePoolSize = 32
	assert.NoError(t, cfg.Validate("admin"))
}

func TestValidateArbiterBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Arbiter.MismatchCeiling = 9.0

	err := cfg.Validate("admin")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch_ceiling must be below")
}
