package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduseek/curator/internal/model"
)

// fakeProvider implements Provider.
type fakeProvider struct {
	name       string
	specialist []string
	hits       []model.SearchHit
	err        error
	calls      int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Specializes(lang string) bool {
	for _, l := range f.specialist {
		if l == lang {
			return true
		}
	}
	return false
}

func (f *fakeProvider) Search(_ context.Context, _ model.Query) ([]model.SearchHit, error) {
	f.calls++
	return f.hits, f.err
}

// memUsage implements UsageStore in memory.
type memUsage struct {
	mu       sync.Mutex
	counters map[string]*model.ProviderUsage
}

func newMemUsage() *memUsage {
	return &memUsage{counters: make(map[string]*model.ProviderUsage)}
}

func (m *memUsage) key(provider, period string) string { return provider + "|" + period }

func (m *memUsage) RecordCall(_ context.Context, provider, period string, ceiling int, price float64) (model.ProviderUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.counters[m.key(provider, period)]
	if u == nil {
		u = &model.ProviderUsage{Provider: provider, Period: period}
		m.counters[m.key(provider, period)] = u
	}
	u.CallsMade++
	u.FreeCeiling = ceiling
	u.PerCallUSD = price
	return *u, nil
}

func (m *memUsage) RecordFailure(_ context.Context, provider, period string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.counters[m.key(provider, period)]
	if u == nil {
		u = &model.ProviderUsage{Provider: provider, Period: period}
		m.counters[m.key(provider, period)] = u
	}
	u.Failures++
	return nil
}

func (m *memUsage) Get(_ context.Context, provider, period string) (model.ProviderUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.counters[m.key(provider, period)]; u != nil {
		return *u, nil
	}
	return model.ProviderUsage{Provider: provider, Period: period}, nil
}

func (m *memUsage) calls(provider, period string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.counters[m.key(provider, period)]; u != nil {
		return u.CallsMade
	}
	return 0
}

func someHits() []model.SearchHit {
	return []model.SearchHit{{Title: "Matematika Kelas 1", URL: "https://example.com/a", Kind: model.KindVideo}}
}

func quotas() map[string]Quota {
	return map[string]Quota{
		"youtube": {FreeCeiling: 100, PerCallUSD: 0, QPS: 100},
		"serper":  {FreeCeiling: 2500, PerCallUSD: 0.001, QPS: 100},
		"brave":   {FreeCeiling: 2000, PerCallUSD: 0.003, QPS: 100},
	}
}

func query() model.Query {
	return model.Query{Text: "matematika kelas 1", Region: "ID", Language: "id", MaxHits: 10}
}

func TestDispatch_SpecialistFirst(t *testing.T) {
	yt := &fakeProvider{name: "youtube", specialist: []string{"id"}, hits: someHits()}
	sp := &fakeProvider{name: "serper", hits: someHits()}
	store := newMemUsage()

	r := New([]Provider{sp, yt}, quotas(), store)
	hits, served, err := r.Dispatch(context.Background(), query())

	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, "youtube", served)
	assert.Equal(t, 1, yt.calls)
	assert.Zero(t, sp.calls)
}

func TestDispatch_ExhaustedSpecialistSkipped(t *testing.T) {
	yt := &fakeProvider{name: "youtube", specialist: []string{"id"}, hits: someHits()}
	sp := &fakeProvider{name: "serper", hits: someHits()}
	store := newMemUsage()

	// Exhaust youtube's free tier.
	q := quotas()
	for i := 0; i < q["youtube"].FreeCeiling; i++ {
		_, err := store.RecordCall(context.Background(), "youtube", periodNow(t), q["youtube"].FreeCeiling, 0)
		require.NoError(t, err)
	}
	before := store.calls("youtube", periodNow(t))

	r := New([]Provider{yt, sp}, q, store)
	_, served, err := r.Dispatch(context.Background(), query())

	require.NoError(t, err)
	assert.Equal(t, "serper", served)
	// Only the serving provider's counter moved.
	assert.Equal(t, before, store.calls("youtube", periodNow(t)))
	assert.Equal(t, 1, store.calls("serper", periodNow(t)))
}

func periodNow(t *testing.T) string {
	t.Helper()
	return periodOf(time.Now().UTC())
}

func TestDispatch_FallbackOnFailure(t *testing.T) {
	failing := &fakeProvider{name: "serper", err: errors.New("serper: unexpected status 401")}
	healthy := &fakeProvider{name: "brave", hits: someHits()}
	store := newMemUsage()

	r := New([]Provider{failing, healthy}, quotas(), store)
	hits, served, err := r.Dispatch(context.Background(), query())

	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, "brave", served)
	// The failed provider records a failure, not a billable call.
	assert.Zero(t, store.calls("serper", periodNow(t)))
	u, _ := store.Get(context.Background(), "serper", periodNow(t))
	assert.Equal(t, 1, u.Failures)
}

func TestDispatch_ZeroResultsBillsAndFallsThrough(t *testing.T) {
	empty := &fakeProvider{name: "serper", hits: nil}
	healthy := &fakeProvider{name: "brave", hits: someHits()}
	store := newMemUsage()

	r := New([]Provider{empty, healthy}, quotas(), store)
	_, served, err := r.Dispatch(context.Background(), query())

	require.NoError(t, err)
	assert.Equal(t, "brave", served)
	// The empty answer was still a billable call.
	assert.Equal(t, 1, store.calls("serper", periodNow(t)))
}

func TestDispatch_AllExhaustedAggregatesReasons(t *testing.T) {
	a := &fakeProvider{name: "serper", err: errors.New("serper: unexpected status 401")}
	b := &fakeProvider{name: "brave", err: errors.New("brave: unexpected status 401")}
	store := newMemUsage()

	r := New([]Provider{a, b}, quotas(), store)
	_, _, err := r.Dispatch(context.Background(), query())

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProvider)

	var derr *model.DispatchError
	require.ErrorAs(t, err, &derr)
	assert.Len(t, derr.Failures, 2)
}

func TestDispatch_DeadlineSurfacesProviderError(t *testing.T) {
	slow := &fakeProvider{name: "serper", hits: someHits()}
	store := newMemUsage()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New([]Provider{slow}, quotas(), store)
	_, _, err := r.Dispatch(ctx, query())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProvider)
}

func TestClassifyHit(t *testing.T) {
	assert.Equal(t, model.KindPlaylist, classifyHit("https://www.youtube.com/playlist?list=PL1"))
	assert.Equal(t, model.KindVideo, classifyHit("https://www.youtube.com/watch?v=abc"))
	assert.Equal(t, model.KindVideo, classifyHit("https://youtu.be/abc"))
	assert.Equal(t, model.KindOther, classifyHit("https://example.com/page"))
}
