package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduseek/curator/internal/judge"
	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/region"
	"github.com/eduseek/curator/internal/usage"
)

type mockDispatcher struct {
	hits     []model.SearchHit
	provider string
	err      error
	lastQ    model.Query
}

func (m *mockDispatcher) Dispatch(_ context.Context, q model.Query) ([]model.SearchHit, string, error) {
	m.lastQ = q
	return m.hits, m.provider, m.err
}

// mockScorer returns a canned judgment per URL; URLs in slow get delayed
// until the context expires.
type mockScorer struct {
	judgments map[string]model.Judgment
	errs      map[string]error
	slow      map[string]time.Duration
}

func (m *mockScorer) Score(ctx context.Context, hit model.SearchHit, _ judge.Hints) (model.Judgment, error) {
	if d, ok := m.slow[hit.URL]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return model.Judgment{}, ctx.Err()
		}
	}
	if err, ok := m.errs[hit.URL]; ok {
		return model.Judgment{}, err
	}
	if jd, ok := m.judgments[hit.URL]; ok {
		return jd, nil
	}
	return model.Judgment{Score: 5.0, Rationale: "neutral"}, nil
}

type mockAudit struct {
	runs []usage.Run
}

func (m *mockAudit) LogRun(_ context.Context, run usage.Run) error {
	m.runs = append(m.runs, run)
	return nil
}

func indonesiaRegistry() *region.Registry {
	r := &region.Registry{}
	r.Add(&region.Profile{
		Code:     "ID",
		Name:     "Indonesia",
		Language: "indonesian",
		Script:   "Latin",
		Grades: []region.Entry{
			{ID: "grade-1", Display: "Kelas 1", Aliases: []string{"kelas satu", "kls 1", "kelas 1 sd"}},
			{ID: "grade-6", Display: "Kelas 6", Aliases: []string{"kelas enam", "kls 6"}},
		},
		Subjects: []region.Entry{
			{ID: "math", Display: "Matematika", Aliases: []string{"mtk"}},
		},
	})
	return r
}

func newCurator(t *testing.T, d Dispatcher, s Scorer, audit AuditLog) *Curator {
	t.Helper()
	return New(indonesiaRegistry(), d, s, audit, Options{
		KnowledgeDir:  t.TempDir(),
		JudgePoolSize: 2,
		Interleave:    -1,
	})
}

func grade1Query() model.Query {
	return model.Query{
		Text:    "matematika kelas 1",
		Region:  "ID",
		GradeID: "Kelas 1",
		Subject: "Matematika",
	}
}

func TestRun_MismatchOverriddenDespiteHighJudgeScore(t *testing.T) {
	d := &mockDispatcher{
		provider: "youtube",
		hits: []model.SearchHit{
			{Title: "Matematika Kelas 6 vol 1 LENGKAP", URL: "https://youtube.com/watch?v=wrong", Kind: model.KindVideo},
		},
	}
	s := &mockScorer{judgments: map[string]model.Judgment{
		"https://youtube.com/watch?v=wrong": {Score: 9.4, IdentifiedGrade: "Kelas 6", IdentifiedSubject: "Matematika", Rationale: "rich math course"},
	}}

	out, err := newCurator(t, d, s, nil).Run(context.Background(), grade1Query())
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.LessOrEqual(t, out.Results[0].FinalScore, 3.0)
}

func TestRun_MatchRaisedDespiteLowJudgeScore(t *testing.T) {
	d := &mockDispatcher{
		provider: "youtube",
		hits: []model.SearchHit{
			{Title: "Matematika Kelas 1 SD - Bilangan 1-10", URL: "https://youtube.com/watch?v=right", Kind: model.KindVideo},
		},
	}
	s := &mockScorer{judgments: map[string]model.Judgment{
		"https://youtube.com/watch?v=right": {Score: 4.0, IdentifiedGrade: "Kelas 1", IdentifiedSubject: "Matematika", Rationale: "unsure"},
	}}

	out, err := newCurator(t, d, s, nil).Run(context.Background(), grade1Query())
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.GreaterOrEqual(t, out.Results[0].FinalScore, 8.5)
}

func TestRun_RanksAcrossCandidates(t *testing.T) {
	d := &mockDispatcher{
		provider: "youtube",
		hits: []model.SearchHit{
			{Title: "Matematika Kelas 6 vol 1 LENGKAP", URL: "https://youtube.com/watch?v=a", Kind: model.KindVideo},
			{Title: "Matematika Kelas 1 SD - Bilangan 1-10", URL: "https://youtube.com/watch?v=b", Kind: model.KindVideo},
			{Title: "Belajar berhitung untuk anak", URL: "https://youtube.com/watch?v=c", Kind: model.KindVideo},
		},
	}
	s := &mockScorer{judgments: map[string]model.Judgment{
		"https://youtube.com/watch?v=a": {Score: 9.0, IdentifiedGrade: "Kelas 6"},
		"https://youtube.com/watch?v=b": {Score: 9.0, IdentifiedGrade: "Kelas 1"},
		"https://youtube.com/watch?v=c": {Score: 6.0},
	}}

	out, err := newCurator(t, d, s, nil).Run(context.Background(), grade1Query())
	require.NoError(t, err)
	require.Len(t, out.Results, 3)

	assert.Equal(t, "https://youtube.com/watch?v=b", out.Results[0].Hit.URL)
	assert.Equal(t, "https://youtube.com/watch?v=c", out.Results[1].Hit.URL)
	// The wrong-grade result lands last despite the judge loving it.
	assert.Equal(t, "https://youtube.com/watch?v=a", out.Results[2].Hit.URL)
	assert.Equal(t, 1, out.Results[0].Rank)
	assert.Equal(t, 3, out.Results[2].Rank)
}

func TestRun_JudgeErrorDegradesOneResult(t *testing.T) {
	d := &mockDispatcher{
		provider: "serper",
		hits: []model.SearchHit{
			{Title: "Matematika Kelas 1 SD pelajaran lengkap", URL: "https://a.example/1", Kind: model.KindVideo},
			{Title: "Matematika Kelas 1 latihan soal", URL: "https://a.example/2", Kind: model.KindVideo},
		},
	}
	s := &mockScorer{
		judgments: map[string]model.Judgment{
			"https://a.example/2": {Score: 8.8, IdentifiedGrade: "Kelas 1", IdentifiedSubject: "Matematika"},
		},
		errs: map[string]error{
			"https://a.example/1": model.ErrJudge,
		},
	}

	out, err := newCurator(t, d, s, nil).Run(context.Background(), grade1Query())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Judged)
	assert.Equal(t, 1, out.Fallback)

	var failed *model.CandidateResult
	for i := range out.Results {
		if out.Results[i].Hit.URL == "https://a.example/1" {
			failed = &out.Results[i]
		}
	}
	require.NotNil(t, failed)
	assert.True(t, failed.JudgeFailed)
	// Rule-only score exists and respects the fallback cap.
	assert.Greater(t, failed.FinalScore, 0.0)
	assert.LessOrEqual(t, failed.FinalScore, 8.0)
}

func TestRun_DeadlineDegradesSlowJudgeOnly(t *testing.T) {
	d := &mockDispatcher{
		provider: "youtube",
		hits: []model.SearchHit{
			{Title: "Matematika Kelas 1 SD - Bilangan 1-10", URL: "https://a.example/fast", Kind: model.KindVideo},
			{Title: "Matematika Kelas 1 video panjang", URL: "https://a.example/slow", Kind: model.KindVideo},
		},
	}
	s := &mockScorer{
		judgments: map[string]model.Judgment{
			"https://a.example/fast": {Score: 9.0, IdentifiedGrade: "Kelas 1", IdentifiedSubject: "Matematika"},
		},
		slow: map[string]time.Duration{
			"https://a.example/slow": 5 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	started := time.Now()
	out, err := newCurator(t, d, s, nil).Run(ctx, grade1Query())
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)

	byURL := make(map[string]model.CandidateResult)
	for _, r := range out.Results {
		byURL[r.Hit.URL] = r
	}
	assert.False(t, byURL["https://a.example/fast"].JudgeFailed)
	assert.True(t, byURL["https://a.example/slow"].JudgeFailed)
}

func TestRun_ProviderErrorIsFatal(t *testing.T) {
	d := &mockDispatcher{err: &model.DispatchError{Query: "matematika kelas 1"}}
	s := &mockScorer{}

	_, err := newCurator(t, d, s, nil).Run(context.Background(), grade1Query())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrProvider)
}

func TestRun_UnknownRegion(t *testing.T) {
	c := newCurator(t, &mockDispatcher{}, &mockScorer{}, nil)
	_, err := c.Run(context.Background(), model.Query{Region: "XX", GradeID: "1", Subject: "math"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown region")
}

func TestRun_UnresolvableTarget(t *testing.T) {
	c := newCurator(t, &mockDispatcher{}, &mockScorer{}, nil)
	q := grade1Query()
	q.GradeID = "Grado Uno"

	_, err := c.Run(context.Background(), q)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrResolution)
}

func TestRun_AuditAndLanguageDefault(t *testing.T) {
	d := &mockDispatcher{
		provider: "youtube",
		hits: []model.SearchHit{
			{Title: "Matematika Kelas 1 SD", URL: "https://a.example/1", Kind: model.KindVideo},
		},
	}
	audit := &mockAudit{}

	out, err := newCurator(t, d, &mockScorer{}, audit).Run(context.Background(), grade1Query())
	require.NoError(t, err)

	// The profile's language fills an empty query language before dispatch.
	assert.Equal(t, "indonesian", d.lastQ.Language)

	require.Len(t, audit.runs, 1)
	assert.Equal(t, "ID", audit.runs[0].Region)
	assert.Equal(t, "youtube", audit.runs[0].Provider)
	assert.Equal(t, 1, audit.runs[0].Results)
	assert.InDelta(t, out.AvgScore, audit.runs[0].AvgScore, 1e-9)
}

func TestRun_MaxHitsCapsCandidates(t *testing.T) {
	var hits []model.SearchHit
	for i := 0; i < 10; i++ {
		hits = append(hits, model.SearchHit{
			Title: "Matematika Kelas 1",
			URL:   "https://a.example/" + string(rune('a'+i)),
			Kind:  model.KindVideo,
		})
	}
	d := &mockDispatcher{provider: "serper", hits: hits}

	q := grade1Query()
	q.MaxHits = 3

	out, err := newCurator(t, d, &mockScorer{}, nil).Run(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, out.Results, 3)
}

func TestRun_HighScoringJudgmentProposesPattern(t *testing.T) {
	d := &mockDispatcher{
		provider: "youtube",
		hits: []model.SearchHit{
			// No rule-visible grade or subject in this title.
			{Title: "Belajar berhitung seru", URL: "https://a.example/1", Kind: model.KindVideo},
		},
	}
	s := &mockScorer{judgments: map[string]model.Judgment{
		"https://a.example/1": {Score: 9.0, IdentifiedGrade: "kelas rendah", IdentifiedSubject: ""},
	}}

	c := newCurator(t, d, s, nil)
	_, err := c.Run(context.Background(), grade1Query())
	require.NoError(t, err)

	ks, err := c.knowledgeFor("ID")
	require.NoError(t, err)

	var found bool
	for _, p := range ks.Patterns() {
		if p.Expression == "kelas rendah" {
			found = true
			assert.Equal(t, model.PatternPending, p.Status)
			assert.Equal(t, model.SourceLLM, p.Source)
			assert.Equal(t, "grade-1", p.CanonicalID)
		}
	}
	assert.True(t, found)
}
