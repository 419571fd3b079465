// Package pipeline runs one curation pass per query: dispatch, rule
// extraction, bounded-concurrency judging, arbitration, ranking, then a
// knowledge flush and an audit row.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eduseek/curator/internal/arbiter"
	"github.com/eduseek/curator/internal/extract"
	"github.com/eduseek/curator/internal/judge"
	"github.com/eduseek/curator/internal/knowledge"
	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/rank"
	"github.com/eduseek/curator/internal/region"
	"github.com/eduseek/curator/internal/usage"
)

const defaultJudgePool = 4

// Dispatcher runs the provider side of a query. Implemented by
// *router.Router.
type Dispatcher interface {
	Dispatch(ctx context.Context, q model.Query) ([]model.SearchHit, string, error)
}

// Scorer judges one candidate. Implemented by *judge.Judge.
type Scorer interface {
	Score(ctx context.Context, hit model.SearchHit, h judge.Hints) (model.Judgment, error)
}

// AuditLog records completed runs. Implemented by *usage.Store.
type AuditLog interface {
	LogRun(ctx context.Context, run usage.Run) error
}

// Options tunes a Curator.
type Options struct {
	KnowledgeDir  string
	JudgePoolSize int
	Arbiter       arbiter.Config
	Trust         *rank.TrustList
	DenyCeiling   float64
	Interleave    int
	MaxHits       int
}

// Curator owns everything one query needs. Explicit wiring, no package
// globals, so two Curators in one process never share mutable state by
// accident.
type Curator struct {
	regions    *region.Registry
	dispatcher Dispatcher
	scorer     Scorer
	audit      AuditLog
	opts       Options

	mu     sync.Mutex
	stores map[string]*knowledge.Store
}

// New builds a Curator. audit may be nil to skip run logging.
func New(regions *region.Registry, d Dispatcher, s Scorer, audit AuditLog, opts Options) *Curator {
	if opts.JudgePoolSize <= 0 {
		opts.JudgePoolSize = defaultJudgePool
	}
	return &Curator{
		regions:    regions,
		dispatcher: d,
		scorer:     s,
		audit:      audit,
		opts:       opts,
		stores:     make(map[string]*knowledge.Store),
	}
}

// Outcome is the ranked result list plus run diagnostics.
type Outcome struct {
	Results  []model.CandidateResult `json:"results"`
	Provider string                  `json:"provider"`
	Region   string                  `json:"region"`
	Judged   int                     `json:"judged"`
	Fallback int                     `json:"rule_only"`
	AvgScore float64                 `json:"avg_score"`
	Elapsed  time.Duration           `json:"elapsed"`
}

// Run executes one curation pipeline. Provider exhaustion is fatal for the
// query; judge failures degrade single results to rule-only scores.
func (c *Curator) Run(ctx context.Context, q model.Query) (*Outcome, error) {
	started := time.Now()

	profile := c.regions.Get(q.Region)
	if profile == nil {
		return nil, eris.Errorf("pipeline: unknown region %q", q.Region)
	}
	if q.Language == "" {
		q.Language = profile.Language
	}

	target, err := c.resolveTarget(profile, q)
	if err != nil {
		return nil, err
	}

	ks, err := c.knowledgeFor(q.Region)
	if err != nil {
		return nil, err
	}

	hits, provider, err := c.dispatcher.Dispatch(ctx, q)
	if err != nil {
		return nil, err
	}
	if max := c.maxHits(q); len(hits) > max {
		hits = hits[:max]
	}

	results := c.extractAll(profile, ks, target, hits)
	judged, fallback := c.judgeAll(ctx, results, profile, ks, target)

	for i := range results {
		arbiter.Arbitrate(&results[i], ks, c.opts.Arbiter)
		c.proposeFromJudgment(ks, &results[i], target)
	}

	ranked := rank.Rank(results, rank.Options{
		Trust:               c.opts.Trust,
		Script:              profile.Script,
		DenyCeiling:         c.opts.DenyCeiling,
		InterleaveThreshold: c.opts.Interleave,
	})

	avg := averageScore(ranked)
	ks.NoteSearch(avg)
	if err := ks.Save(); err != nil {
		zap.L().Warn("pipeline: knowledge flush", zap.String("region", q.Region), zap.Error(err))
	}

	if c.audit != nil {
		if err := c.audit.LogRun(ctx, usage.Run{
			Region:   q.Region,
			Query:    q.Text,
			Provider: provider,
			Results:  len(ranked),
			AvgScore: avg,
		}); err != nil {
			zap.L().Warn("pipeline: audit log", zap.Error(err))
		}
	}

	elapsed := time.Since(started)
	zap.L().Info("pipeline: run complete",
		zap.String("region", q.Region),
		zap.String("query", q.Text),
		zap.String("provider", provider),
		zap.Int("results", len(ranked)),
		zap.Int("judged", judged),
		zap.Int("rule_only", fallback),
		zap.Float64("avg_score", avg),
		zap.Duration("elapsed", elapsed),
	)

	return &Outcome{
		Results:  ranked,
		Provider: provider,
		Region:   q.Region,
		Judged:   judged,
		Fallback: fallback,
		AvgScore: avg,
		Elapsed:  elapsed,
	}, nil
}

// resolveTarget maps the query's free-text grade and subject onto canonical
// profile identifiers.
func (c *Curator) resolveTarget(profile *region.Profile, q model.Query) (model.Target, error) {
	gradeID, err := profile.ResolveGrade(q.GradeID)
	if err != nil {
		return model.Target{}, eris.Wrapf(err, "pipeline: target grade %q", q.GradeID)
	}
	subjectID, err := profile.ResolveSubject(q.Subject)
	if err != nil {
		return model.Target{}, eris.Wrapf(err, "pipeline: target subject %q", q.Subject)
	}
	return model.Target{Region: q.Region, GradeID: gradeID, SubjectID: subjectID}, nil
}

// knowledgeFor returns the shared per-region store, opening it on first use.
func (c *Curator) knowledgeFor(regionCode string) (*knowledge.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ks, ok := c.stores[regionCode]; ok {
		return ks, nil
	}
	ks, err := knowledge.Open(c.opts.KnowledgeDir, regionCode)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: open knowledge for %s", regionCode)
	}
	c.stores[regionCode] = ks
	return ks, nil
}

func (c *Curator) maxHits(q model.Query) int {
	if q.MaxHits > 0 {
		return q.MaxHits
	}
	if c.opts.MaxHits > 0 {
		return c.opts.MaxHits
	}
	return 20
}

// extractAll builds one candidate per hit with rule extractions and
// verdicts. Input order is preserved.
func (c *Curator) extractAll(profile *region.Profile, ks *knowledge.Store, target model.Target, hits []model.SearchHit) []model.CandidateResult {
	ex := extract.New(profile, ks)
	results := make([]model.CandidateResult, len(hits))
	for i, hit := range hits {
		res := model.CandidateResult{Hit: hit}
		res.Grade = ex.Grade(hit.Title)
		res.Subject = ex.Subject(hit.Title)

		gradeText, subjectText := "", ""
		if res.Grade != nil {
			gradeText = res.Grade.CanonicalID
		}
		if res.Subject != nil {
			subjectText = res.Subject.CanonicalID
		}
		res.GradeVerdict = ex.ValidateGrade(target.GradeID, gradeText)
		res.SubjectVerdict = ex.ValidateSubject(target.SubjectID, subjectText)

		results[i] = res
	}
	return results
}

// judgeAll scores candidates concurrently over a bounded pool. Each call
// carries its own timeout inside the scorer; a slow or failed call marks
// only its own candidate as rule-only.
func (c *Curator) judgeAll(ctx context.Context, results []model.CandidateResult, profile *region.Profile, ks *knowledge.Store, target model.Target) (judged, fallback int) {
	hints := judge.BuildHints(profile, ks, target)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.JudgePoolSize)

	var mu sync.Mutex
	for i := range results {
		res := &results[i]
		g.Go(func() error {
			jd, err := c.scorer.Score(gctx, res.Hit, hints)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.JudgeFailed = true
				fallback++
				zap.L().Warn("pipeline: judge fallback",
					zap.String("url", res.Hit.URL),
					zap.Error(err),
				)
				return nil
			}
			res.Judgment = &jd
			judged++
			return nil
		})
	}
	_ = g.Wait()
	return judged, fallback
}

// proposeMinScore gates LLM pattern proposals: only a confident match makes
// the identified text a plausible local spelling of the target.
const proposeMinScore = 8.0

// proposeFromJudgment feeds the knowledge store when the judge labels a
// candidate with grade or subject text the rules could not see. Proposals
// land pending and only promote after repeated corroboration.
func (c *Curator) proposeFromJudgment(ks *knowledge.Store, res *model.CandidateResult, target model.Target) {
	if res.Judgment == nil || res.Judgment.Score < proposeMinScore {
		return
	}
	if res.Grade == nil && res.Judgment.IdentifiedGrade != "" {
		ks.Propose(model.PatternGrade, res.Judgment.IdentifiedGrade, target.GradeID, 0.5, model.SourceLLM,
			"proposed from judge output: "+res.Hit.Title)
	}
	if res.Subject == nil && res.Judgment.IdentifiedSubject != "" {
		ks.Propose(model.PatternSubject, res.Judgment.IdentifiedSubject, target.SubjectID, 0.5, model.SourceLLM,
			"proposed from judge output: "+res.Hit.Title)
	}
}

func averageScore(results []model.CandidateResult) float64 {
	var sum float64
	var n int
	for _, r := range results {
		if r.Excluded {
			continue
		}
		sum += r.FinalScore
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
