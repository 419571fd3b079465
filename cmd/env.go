package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/arbiter"
	"github.com/eduseek/curator/internal/judge"
	"github.com/eduseek/curator/internal/pipeline"
	"github.com/eduseek/curator/internal/rank"
	"github.com/eduseek/curator/internal/region"
	"github.com/eduseek/curator/internal/router"
	"github.com/eduseek/curator/internal/usage"
	"github.com/eduseek/curator/pkg/anthropic"
	"github.com/eduseek/curator/pkg/brave"
	"github.com/eduseek/curator/pkg/serper"
	"github.com/eduseek/curator/pkg/youtube"
)

// env bundles everything a command needs after wiring.
type env struct {
	Curator *pipeline.Curator
	Regions *region.Registry
	Usage   *usage.Store
}

func (e *env) Close() {
	if e.Usage != nil {
		if err := e.Usage.Close(); err != nil {
			zap.L().Warn("close usage store", zap.Error(err))
		}
	}
}

// initEnv wires the full pipeline from config. Providers without an API key
// are left out; the router falls back across whatever remains.
func initEnv(ctx context.Context) (*env, error) {
	regions, err := region.LoadDir(cfg.Regions.Dir)
	if err != nil {
		return nil, eris.Wrap(err, "load region profiles")
	}

	usageStore, err := usage.NewSQLite(cfg.Usage.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open usage store")
	}
	if err := usageStore.Migrate(ctx); err != nil {
		usageStore.Close()
		return nil, err
	}

	var providers []router.Provider
	quotas := make(map[string]router.Quota)

	if cfg.YouTube.Key != "" {
		client := youtube.NewClient(cfg.YouTube.Key, youtube.WithBaseURL(cfg.YouTube.BaseURL))
		providers = append(providers, router.NewYouTubeProvider(client, cfg.YouTube.Languages))
		quotas["youtube"] = router.Quota{
			FreeCeiling: cfg.YouTube.FreeCeiling,
			PerCallUSD:  cfg.YouTube.PerCallUSD,
			QPS:         cfg.YouTube.QPS,
		}
	}
	if cfg.Serper.Key != "" {
		client := serper.NewClient(cfg.Serper.Key, serper.WithBaseURL(cfg.Serper.BaseURL))
		providers = append(providers, router.NewSerperProvider(client))
		quotas["serper"] = router.Quota{
			FreeCeiling: cfg.Serper.FreeCeiling,
			PerCallUSD:  cfg.Serper.PerCallUSD,
			QPS:         cfg.Serper.QPS,
		}
	}
	if cfg.Brave.Key != "" {
		client := brave.NewClient(cfg.Brave.Key, brave.WithBaseURL(cfg.Brave.BaseURL))
		providers = append(providers, router.NewBraveProvider(client))
		quotas["brave"] = router.Quota{
			FreeCeiling: cfg.Brave.FreeCeiling,
			PerCallUSD:  cfg.Brave.PerCallUSD,
			QPS:         cfg.Brave.QPS,
		}
	}

	trust, err := rank.LoadTrustList(cfg.Rank.TrustListPath)
	if err != nil {
		return nil, err
	}

	j := judge.New(anthropic.NewClient(cfg.Anthropic.Key), judge.Config{
		Model:       cfg.Judge.Model,
		MaxTokens:   cfg.Judge.MaxTokens,
		Timeout:     cfg.Judge.Timeout(),
		Temperature: cfg.Judge.Temperature,
	})

	cur := pipeline.New(regions, router.New(providers, quotas, usageStore), j, usageStore, pipeline.Options{
		KnowledgeDir:  cfg.Knowledge.Dir,
		JudgePoolSize: cfg.Pipeline.JudgePoolSize,
		MaxHits:       cfg.Pipeline.MaxHits,
		Trust:         trust,
		DenyCeiling:   cfg.Rank.DenyCeiling,
		Interleave:    cfg.Rank.InterleaveThreshold,
		Arbiter: arbiter.Config{
			MismatchCeiling: cfg.Arbiter.MismatchCeiling,
			MatchFloor:      cfg.Arbiter.MatchFloor,
			FallbackCap:     cfg.Arbiter.FallbackCap,
		},
	})

	return &env{Curator: cur, Regions: regions, Usage: usageStore}, nil
}
