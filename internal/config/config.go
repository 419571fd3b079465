package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Regions   RegionsConfig   `yaml:"regions" mapstructure:"regions"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Usage     UsageConfig     `yaml:"usage" mapstructure:"usage"`
	Serper    SerperConfig    `yaml:"serper" mapstructure:"serper"`
	Brave     BraveConfig     `yaml:"brave" mapstructure:"brave"`
	YouTube   YouTubeConfig   `yaml:"youtube" mapstructure:"youtube"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Judge     JudgeConfig     `yaml:"judge" mapstructure:"judge"`
	Arbiter   ArbiterConfig   `yaml:"arbiter" mapstructure:"arbiter"`
	Rank      RankConfig      `yaml:"rank" mapstructure:"rank"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// RegionsConfig points at the region profile directory.
type RegionsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// KnowledgeConfig configures the per-region pattern store files.
type KnowledgeConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// UsageConfig configures the provider usage database.
type UsageConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SerperConfig holds Serper.dev API settings.
type SerperConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	FreeCeiling int     `yaml:"free_ceiling" mapstructure:"free_ceiling"`
	PerCallUSD  float64 `yaml:"per_call_usd" mapstructure:"per_call_usd"`
	QPS         float64 `yaml:"qps" mapstructure:"qps"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	FreeCeiling int     `yaml:"free_ceiling" mapstructure:"free_ceiling"`
	PerCallUSD  float64 `yaml:"per_call_usd" mapstructure:"per_call_usd"`
	QPS         float64 `yaml:"qps" mapstructure:"qps"`
}

// YouTubeConfig holds YouTube Data API settings.
type YouTubeConfig struct {
	Key         string   `yaml:"key" mapstructure:"key"`
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	FreeCeiling int      `yaml:"free_ceiling" mapstructure:"free_ceiling"`
	PerCallUSD  float64  `yaml:"per_call_usd" mapstructure:"per_call_usd"`
	QPS         float64  `yaml:"qps" mapstructure:"qps"`
	Languages   []string `yaml:"languages" mapstructure:"languages"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// JudgeConfig configures the LLM judge.
type JudgeConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// Timeout returns the judge call timeout as a duration.
func (c JudgeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ArbiterConfig configures the override bounds.
type ArbiterConfig struct {
	MismatchCeiling float64 `yaml:"mismatch_ceiling" mapstructure:"mismatch_ceiling"`
	MatchFloor      float64 `yaml:"match_floor" mapstructure:"match_floor"`
	FallbackCap     float64 `yaml:"fallback_cap" mapstructure:"fallback_cap"`
}

// RankConfig configures final ranking.
type RankConfig struct {
	TrustListPath       string  `yaml:"trust_list_path" mapstructure:"trust_list_path"`
	DenyCeiling         float64 `yaml:"deny_ceiling" mapstructure:"deny_ceiling"`
	InterleaveThreshold int     `yaml:"interleave_threshold" mapstructure:"interleave_threshold"`
}

// PipelineConfig configures per-query orchestration.
type PipelineConfig struct {
	JudgePoolSize int `yaml:"judge_pool_size" mapstructure:"judge_pool_size"`
	MaxHits       int `yaml:"max_hits" mapstructure:"max_hits"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields a given run mode needs. Modes: "curate"
// requires judge and provider credentials; "serve" additionally checks the
// listen port; "admin" needs only the local paths.
func (c *Config) Validate(mode string) error {
	var missing []string

	requireKeys := func() {
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.Serper.Key == "" && c.Brave.Key == "" && c.YouTube.Key == "" {
			missing = append(missing, "at least one provider key (serper.key, brave.key, youtube.key) is required")
		}
	}

	switch mode {
	case "curate":
		requireKeys()
	case "serve":
		requireKeys()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "admin":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Pipeline.JudgePoolSize < 1 || c.Pipeline.JudgePoolSize > 32 {
		missing = append(missing, "pipeline.judge_pool_size must be between 1 and 32")
	}
	if c.Arbiter.MismatchCeiling >= c.Arbiter.MatchFloor {
		missing = append(missing, "arbiter.mismatch_ceiling must be below arbiter.match_floor")
	}
	if c.Judge.TimeoutSecs <= 0 {
		missing = append(missing, "judge.timeout_secs must be > 0")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CURATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("regions.dir", "regions")
	v.SetDefault("knowledge.dir", "knowledge")
	v.SetDefault("usage.path", "curator.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.free_ceiling", 2500)
	v.SetDefault("serper.per_call_usd", 0.001)
	v.SetDefault("serper.qps", 5)
	v.SetDefault("brave.base_url", "https://api.search.brave.com/res/v1")
	v.SetDefault("brave.free_ceiling", 2000)
	v.SetDefault("brave.per_call_usd", 0.003)
	v.SetDefault("brave.qps", 1)
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.free_ceiling", 100)
	v.SetDefault("youtube.per_call_usd", 0.0)
	v.SetDefault("youtube.qps", 5)
	v.SetDefault("youtube.languages", []string{})
	v.SetDefault("judge.model", "claude-haiku-4-5-20251001")
	v.SetDefault("judge.max_tokens", 512)
	v.SetDefault("judge.timeout_secs", 20)
	v.SetDefault("judge.temperature", 0.0)
	v.SetDefault("arbiter.mismatch_ceiling", 3.0)
	v.SetDefault("arbiter.match_floor", 8.5)
	v.SetDefault("arbiter.fallback_cap", 8.0)
	v.SetDefault("rank.trust_list_path", "trust.yaml")
	v.SetDefault("rank.deny_ceiling", 2.0)
	v.SetDefault("rank.interleave_threshold", 8)
	v.SetDefault("pipeline.judge_pool_size", 4)
	v.SetDefault("pipeline.max_hits", 20)

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
