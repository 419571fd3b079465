package model

import "time"

// ResultKind classifies a search hit by resource type.
type ResultKind string

const (
	KindVideo    ResultKind = "video"
	KindPlaylist ResultKind = "playlist"
	KindOther    ResultKind = "other"
)

// ConfidenceTier grades how strongly the rule extractor trusts a signal.
type ConfidenceTier string

const (
	TierNone ConfidenceTier = "none"
	TierLow  ConfidenceTier = "low"
	TierHigh ConfidenceTier = "high"
)

// VerdictKind is the rule extractor's comparison outcome.
type VerdictKind string

const (
	VerdictMatch         VerdictKind = "match"
	VerdictMismatch      VerdictKind = "mismatch"
	VerdictIndeterminate VerdictKind = "indeterminate"
)

// SearchHit is the provider-neutral shape every adapter translates into.
type SearchHit struct {
	Title    string        `json:"title"`
	URL      string        `json:"url"`
	Snippet  string        `json:"snippet,omitempty"`
	Kind     ResultKind    `json:"kind"`
	Items    int           `json:"items,omitempty"`    // playlist item count
	Duration time.Duration `json:"duration,omitempty"` // total playlist duration
}

// Extraction is a single grade or subject signal pulled from a title.
type Extraction struct {
	CanonicalID string         `json:"canonical_id"`
	Tier        ConfidenceTier `json:"tier"`
	MatchedSpan string         `json:"matched_span"`
	PatternID   string         `json:"pattern_id,omitempty"` // knowledge entry that matched, if any
}

// Verdict is the outcome of comparing an extracted signal against the target.
type Verdict struct {
	Kind   VerdictKind `json:"kind"`
	Reason string      `json:"reason,omitempty"`
}

// Judgment is the parsed LLM quality assessment for one candidate.
type Judgment struct {
	Score             float64 `json:"score"`
	IdentifiedGrade   string  `json:"identified_grade"`
	IdentifiedSubject string  `json:"identified_subject"`
	Rationale         string  `json:"rationale"`
}

// CandidateResult carries one search hit through the curation pipeline.
// Owned by a single pipeline run; never shared across concurrent queries.
type CandidateResult struct {
	Hit SearchHit `json:"hit"`

	Grade   *Extraction `json:"grade,omitempty"`
	Subject *Extraction `json:"subject,omitempty"`

	GradeVerdict   Verdict `json:"grade_verdict"`
	SubjectVerdict Verdict `json:"subject_verdict"`

	Judgment    *Judgment `json:"judgment,omitempty"`
	JudgeFailed bool      `json:"judge_failed,omitempty"`

	FinalScore     float64 `json:"final_score"`
	FinalRationale string  `json:"final_rationale"`

	// ScoreCeiling is an upper bound later stages must honor when they
	// adjust FinalScore. Zero means unbounded.
	ScoreCeiling float64 `json:"score_ceiling,omitempty"`

	Excluded      bool   `json:"excluded,omitempty"`
	ExcludeReason string `json:"exclude_reason,omitempty"`
	Rank          int    `json:"rank"`
}

// Query is one curation request.
type Query struct {
	Text     string `json:"text"`
	Region   string `json:"region"`
	Language string `json:"language"`
	GradeID  string `json:"grade_id"`
	Subject  string `json:"subject_id"`
	MaxHits  int    `json:"max_hits"`
}

// Target is the localized goal a candidate is judged against.
type Target struct {
	Region    string `json:"region"`
	GradeID   string `json:"grade_id"`
	SubjectID string `json:"subject_id"`
}
