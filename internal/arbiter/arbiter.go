// Package arbiter reconciles deterministic extraction verdicts with LLM
// judgments. When both signals exist and disagree, the deterministic side
// wins: its false-positive rate on canonical numbering is far lower.
package arbiter

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/model"
)

// Default score bounds applied on override and fallback.
const (
	DefaultMismatchCeiling = 3.0
	DefaultMatchFloor      = 8.5
	DefaultFallbackCap     = 8.0
)

// Config tunes the override bounds. Zero values fall back to the defaults.
type Config struct {
	MismatchCeiling float64
	MatchFloor      float64
	FallbackCap     float64
}

func (c Config) withDefaults() Config {
	if c.MismatchCeiling <= 0 {
		c.MismatchCeiling = DefaultMismatchCeiling
	}
	if c.MatchFloor <= 0 {
		c.MatchFloor = DefaultMatchFloor
	}
	if c.FallbackCap <= 0 {
		c.FallbackCap = DefaultFallbackCap
	}
	return c
}

// Learner receives the arbitration outcome as knowledge-store updates.
// Implemented by *knowledge.Store.
type Learner interface {
	RecordUse(id string, success bool)
	AddMistake(title, category, correction string, severity model.MistakeSeverity) model.MistakeRecord
}

// Arbitrate sets FinalScore and FinalRationale on res. Mismatch and
// rule-only outcomes also set ScoreCeiling so downstream ranking bonuses
// cannot lift the score back over the bound. Overrides append a mistake
// record and feed pattern use counters through learner; a nil learner
// skips the side effects.
func Arbitrate(res *model.CandidateResult, learner Learner, cfg Config) {
	cfg = cfg.withDefaults()

	if res.JudgeFailed || res.Judgment == nil {
		res.FinalScore, res.FinalRationale = ruleOnlyScore(res, cfg)
		if confidentMismatch(res) {
			res.ScoreCeiling = cfg.MismatchCeiling
		} else {
			res.ScoreCeiling = cfg.FallbackCap
		}
		return
	}

	score := res.Judgment.Score

	switch {
	case confidentMismatch(res):
		res.ScoreCeiling = cfg.MismatchCeiling
		if score > cfg.MismatchCeiling {
			res.FinalScore = cfg.MismatchCeiling
			res.FinalRationale = fmt.Sprintf("rule mismatch overrides judge score %.1f: %s", score, mismatchReason(res))
			recordOverride(res, learner, "judge-missed-mismatch",
				fmt.Sprintf("judge scored %.1f but %s", score, mismatchReason(res)))
		} else {
			res.FinalScore = score
			res.FinalRationale = res.Judgment.Rationale
			recordAgreement(res, learner)
		}

	case confidentMatch(res):
		if score < cfg.MatchFloor {
			res.FinalScore = cfg.MatchFloor
			res.FinalRationale = fmt.Sprintf("rule match overrides judge score %.1f: grade and subject verified deterministically", score)
			recordOverride(res, learner, "judge-missed-match",
				fmt.Sprintf("judge scored %.1f but grade and subject both resolve to the target", score))
		} else {
			res.FinalScore = score
			res.FinalRationale = res.Judgment.Rationale
			recordAgreement(res, learner)
		}

	default:
		// No confident rule signal: the judge is all we have.
		res.FinalScore = score
		res.FinalRationale = res.Judgment.Rationale
	}
}

// confidentMismatch reports whether any high-confidence extraction
// contradicts the target.
func confidentMismatch(res *model.CandidateResult) bool {
	return (res.GradeVerdict.Kind == model.VerdictMismatch && confident(res.Grade)) ||
		(res.SubjectVerdict.Kind == model.VerdictMismatch && confident(res.Subject))
}

// confidentMatch reports whether both dimensions match on high-confidence
// extractions.
func confidentMatch(res *model.CandidateResult) bool {
	return res.GradeVerdict.Kind == model.VerdictMatch && confident(res.Grade) &&
		res.SubjectVerdict.Kind == model.VerdictMatch && confident(res.Subject)
}

func confident(e *model.Extraction) bool {
	return e != nil && e.Tier == model.TierHigh
}

func mismatchReason(res *model.CandidateResult) string {
	if res.GradeVerdict.Kind == model.VerdictMismatch && confident(res.Grade) {
		return res.GradeVerdict.Reason
	}
	return res.SubjectVerdict.Reason
}

// ruleOnlyScore is the fallback when no judgment exists. A confident
// mismatch stays a hard rejection; otherwise matches lift a neutral base,
// never beyond the cap, so rule-only results cannot outrank judged exact
// matches.
func ruleOnlyScore(res *model.CandidateResult, cfg Config) (float64, string) {
	if confidentMismatch(res) {
		return 2.0, fmt.Sprintf("rule-only: %s", mismatchReason(res))
	}

	score := 5.0
	if res.GradeVerdict.Kind == model.VerdictMatch {
		score += 1.5
	}
	if res.SubjectVerdict.Kind == model.VerdictMatch {
		score += 1.5
	}
	if score > cfg.FallbackCap {
		score = cfg.FallbackCap
	}
	return score, "rule-only: no judgment available"
}

// recordOverride logs the judge's mistake and counts a disputed use against
// the patterns that produced the winning verdict. Disputes drag the success
// rate down so a pattern that keeps contradicting the judge never
// auto-promotes.
func recordOverride(res *model.CandidateResult, learner Learner, category, correction string) {
	zap.L().Info("arbiter: override",
		zap.String("title", res.Hit.Title),
		zap.String("category", category),
		zap.Float64("judge_score", res.Judgment.Score),
		zap.Float64("final_score", res.FinalScore),
	)
	if learner == nil {
		return
	}
	learner.AddMistake(res.Hit.Title, category, correction, model.SeverityMedium)
	recordPatternUse(res, learner, false)
}

func recordAgreement(res *model.CandidateResult, learner Learner) {
	if learner == nil {
		return
	}
	recordPatternUse(res, learner, true)
}

func recordPatternUse(res *model.CandidateResult, learner Learner, success bool) {
	if res.Grade != nil && res.Grade.PatternID != "" {
		learner.RecordUse(res.Grade.PatternID, success)
	}
	if res.Subject != nil && res.Subject.PatternID != "" {
		learner.RecordUse(res.Subject.PatternID, success)
	}
}
