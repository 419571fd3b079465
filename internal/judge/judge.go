// Package judge scores candidate results against a localized curriculum
// target with an LLM call per candidate. A failed call is reported, never
// papered over with an invented score.
package judge

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/resilience"
	"github.com/eduseek/curator/pkg/anthropic"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 512
	defaultTimeout   = 20 * time.Second
)

// Config tunes the judging calls.
type Config struct {
	Model       string
	MaxTokens   int64
	Timeout     time.Duration
	Temperature float64
}

// Judge scores search hits with an Anthropic model.
type Judge struct {
	client anthropic.Client
	cfg    Config
	retry  resilience.RetryConfig
}

// New creates a Judge. Zero config fields fall back to defaults.
func New(client anthropic.Client, cfg Config) *Judge {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialBackoff = 500 * time.Millisecond

	return &Judge{client: client, cfg: cfg, retry: retry}
}

// Score judges one hit against the target. The call runs under its own
// timeout derived from ctx. All failures wrap ErrJudge so the caller can
// degrade that single candidate instead of the run.
func (j *Judge) Score(ctx context.Context, hit model.SearchHit, h Hints) (model.Judgment, error) {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	temp := j.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       j.cfg.Model,
		MaxTokens:   j.cfg.MaxTokens,
		System:      systemText,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(hit, h)},
		},
	}

	var resp *anthropic.MessageResponse
	err := resilience.Do(ctx, j.retry, func(ctx context.Context) error {
		var cerr error
		resp, cerr = j.client.CreateMessage(ctx, req)
		return cerr
	})
	if err != nil {
		return model.Judgment{}, eris.Wrapf(model.ErrJudge, "score %q: %v", hit.URL, err)
	}

	resp.Usage.LogCost(j.cfg.Model, "judge")

	jd, err := parseJudgment(resp.Text())
	if err != nil {
		zap.L().Warn("judge: unparseable response",
			zap.String("url", hit.URL),
			zap.String("response", truncate(resp.Text(), 200)),
			zap.Error(err),
		)
		return model.Judgment{}, eris.Wrapf(model.ErrJudge, "score %q: %v", hit.URL, err)
	}
	return jd, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
