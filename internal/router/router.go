// Package router chooses a search provider per query by language fit and
// remaining free quota, falls back down a fixed priority list, and accounts
// every billable call against the usage store.
package router

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/resilience"
)

// Quota is one provider's billing shape.
type Quota struct {
	FreeCeiling int
	PerCallUSD  float64
	QPS         float64
}

// UsageStore is the counter persistence the router needs. Implemented by
// *usage.Store.
type UsageStore interface {
	RecordCall(ctx context.Context, provider, period string, ceiling int, perCallUSD float64) (model.ProviderUsage, error)
	RecordFailure(ctx context.Context, provider, period string) error
	Get(ctx context.Context, provider, period string) (model.ProviderUsage, error)
}

// Router dispatches queries across registered providers.
type Router struct {
	providers []Provider // fixed priority order
	quotas    map[string]Quota
	usage     UsageStore
	limiters  map[string]*rate.Limiter
	retry     resilience.RetryConfig
	now       func() time.Time
}

// New creates a Router over providers in fallback-priority order.
func New(providers []Provider, quotas map[string]Quota, usageStore UsageStore) *Router {
	limiters := make(map[string]*rate.Limiter, len(providers))
	for _, p := range providers {
		qps := quotas[p.Name()].QPS
		if qps <= 0 {
			qps = 5
		}
		limiters[p.Name()] = rate.NewLimiter(rate.Limit(qps), 1)
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	retry.InitialBackoff = 200 * time.Millisecond

	return &Router{
		providers: providers,
		quotas:    quotas,
		usage:     usageStore,
		limiters:  limiters,
		retry:     retry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithNow sets a fixed clock for testing.
func (r *Router) WithNow(t time.Time) *Router {
	r.now = func() time.Time { return t }
	return r
}

// Dispatch runs the query against the best provider, falling back through
// the priority list. The serving provider's counter is incremented; a
// provider that merely errored before accepting the call records a failure,
// not a billable call. Exhaustion returns a DispatchError wrapping
// ErrProvider.
func (r *Router) Dispatch(ctx context.Context, q model.Query) ([]model.SearchHit, string, error) {
	period := periodOf(r.now())
	order := r.selectionOrder(ctx, q, period)

	var failures []model.ProviderFailure
	for _, p := range order {
		if err := r.limiters[p.Name()].Wait(ctx); err != nil {
			failures = append(failures, model.ProviderFailure{Provider: p.Name(), Reason: "deadline before dispatch"})
			break
		}

		var hits []model.SearchHit
		err := resilience.Do(ctx, r.retry, func(ctx context.Context) error {
			var serr error
			hits, serr = p.Search(ctx, q)
			return serr
		})
		if err != nil {
			zap.L().Warn("router: provider failed",
				zap.String("provider", p.Name()),
				zap.String("query", q.Text),
				zap.String("region", q.Region),
				zap.Error(err),
			)
			if ferr := r.usage.RecordFailure(ctx, p.Name(), period); ferr != nil {
				zap.L().Warn("router: record failure", zap.Error(ferr))
			}
			failures = append(failures, model.ProviderFailure{Provider: p.Name(), Reason: err.Error()})
			continue
		}

		// The provider accepted and answered the call, so it billed us even
		// when the result set is empty.
		quota := r.quotas[p.Name()]
		u, uerr := r.usage.RecordCall(ctx, p.Name(), period, quota.FreeCeiling, quota.PerCallUSD)
		if uerr != nil {
			zap.L().Warn("router: record call", zap.String("provider", p.Name()), zap.Error(uerr))
		} else {
			zap.L().Info("router: dispatched",
				zap.String("provider", p.Name()),
				zap.String("region", q.Region),
				zap.Int("hits", len(hits)),
				zap.Int("calls_this_period", u.CallsMade),
				zap.Float64("cost_usd", u.CostUSD()),
			)
		}

		if len(hits) == 0 {
			failures = append(failures, model.ProviderFailure{Provider: p.Name(), Reason: "zero results"})
			continue
		}
		return hits, p.Name(), nil
	}

	return nil, "", &model.DispatchError{Query: q.Text, Failures: failures}
}

// selectionOrder builds the provider attempt order: a free-tier-remaining
// language specialist first, then general-purpose providers by remaining
// quota, then whatever is left in priority order.
func (r *Router) selectionOrder(ctx context.Context, q model.Query, period string) []Provider {
	remaining := make(map[string]int, len(r.providers))
	for _, p := range r.providers {
		u, err := r.usage.Get(ctx, p.Name(), period)
		if err != nil {
			zap.L().Warn("router: usage lookup", zap.String("provider", p.Name()), zap.Error(err))
			remaining[p.Name()] = 0
			continue
		}
		// An unused provider has the full configured ceiling left.
		ceiling := r.quotas[p.Name()].FreeCeiling
		if u.CallsMade == 0 && u.FreeCeiling == 0 {
			remaining[p.Name()] = ceiling
			continue
		}
		remaining[p.Name()] = u.Remaining()
	}

	var order []Provider
	seen := make(map[string]bool, len(r.providers))
	add := func(p Provider) {
		if !seen[p.Name()] {
			seen[p.Name()] = true
			order = append(order, p)
		}
	}

	// Rule 1: free specialist for the query language.
	for _, p := range r.providers {
		if p.Specializes(q.Language) && remaining[p.Name()] > 0 {
			add(p)
		}
	}

	// Rule 2: general-purpose providers, largest remaining quota first.
	general := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		if !p.Specializes(q.Language) {
			general = append(general, p)
		}
	}
	sort.SliceStable(general, func(i, j int) bool {
		return remaining[general[i].Name()] > remaining[general[j].Name()]
	})
	for _, p := range general {
		add(p)
	}

	// Rule 3: everything else keeps its fixed priority for fallback.
	for _, p := range r.providers {
		add(p)
	}
	return order
}

func periodOf(t time.Time) string {
	return t.Format("2006-01")
}
