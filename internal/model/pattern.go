package model

import "time"

// PatternKind distinguishes grade expressions from subject expressions.
type PatternKind string

const (
	PatternGrade   PatternKind = "grade"
	PatternSubject PatternKind = "subject"
)

// PatternStatus is the review state of a learned expression.
type PatternStatus string

const (
	PatternPending  PatternStatus = "pending"
	PatternVerified PatternStatus = "verified"
	PatternRejected PatternStatus = "rejected"
)

// PatternSource records where an expression was first observed.
type PatternSource string

const (
	SourceSeed    PatternSource = "seed"
	SourceLLM     PatternSource = "llm"
	SourceArbiter PatternSource = "arbiter"
	SourceManual  PatternSource = "manual"
)

// PatternEntry is a learned local-language grade or subject expression.
// Entries are never deleted; review moves them between statuses so the
// audit trail survives.
type PatternEntry struct {
	ID           string        `json:"id"`
	Region       string        `json:"region"`
	Kind         PatternKind   `json:"kind"`
	Expression   string        `json:"expression"`
	CanonicalID  string        `json:"canonical_id"`
	Confidence   float64       `json:"confidence"`
	Status       PatternStatus `json:"status"`
	UsageCount   int           `json:"usage_count"`
	SuccessCount int           `json:"success_count"`
	Source       PatternSource `json:"source"`
	CreatedAt    time.Time     `json:"created_at"`
	VerifiedAt   *time.Time    `json:"verified_at,omitempty"`
	Note         string        `json:"note,omitempty"`
}

// SuccessRate returns the observed success ratio, 0 when unused.
func (p PatternEntry) SuccessRate() float64 {
	if p.UsageCount == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.UsageCount)
}

// MistakeSeverity grades how damaging a repeated LLM mistake is.
type MistakeSeverity string

const (
	SeverityLow    MistakeSeverity = "low"
	SeverityMedium MistakeSeverity = "medium"
	SeverityHigh   MistakeSeverity = "high"
)

// MistakeStatus tracks whether a mistake class still needs prompt warnings.
type MistakeStatus string

const (
	MistakeOpen  MistakeStatus = "open"
	MistakeFixed MistakeStatus = "fixed"
)

// MistakeRecord logs one class of disagreement where the rule extractor
// overrode the LLM judge. Open records are replayed into judge prompts.
type MistakeRecord struct {
	ID           string          `json:"id"`
	Region       string          `json:"region"`
	ExampleTitle string          `json:"example_title"`
	Category     string          `json:"category"`
	Correction   string          `json:"correction"`
	Severity     MistakeSeverity `json:"severity"`
	Status       MistakeStatus   `json:"status"`
	FirstSeen    time.Time       `json:"first_seen"`
	FixedAt      *time.Time      `json:"fixed_at,omitempty"`
	Frequency    int             `json:"frequency"`
}
