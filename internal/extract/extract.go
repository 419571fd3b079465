// Package extract pulls grade and subject signals out of noisy titles using
// the region's knowledge patterns and profile vocabulary. Extraction is a
// pure read: absence of a match is a normal outcome, never an error.
package extract

import (
	"fmt"
	"regexp"

	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/normalize"
	"github.com/eduseek/curator/internal/region"
)

// PatternSource supplies the learned expressions to try. Implemented by
// *knowledge.Store.
type PatternSource interface {
	Matchable(kind model.PatternKind) []model.PatternEntry
}

// gradeKeyword catches bare "marker + number" grade spellings that no
// pattern covers yet. The captured span is still resolved through the
// region profile, so the core never invents a canonical grade.
var gradeKeyword = regexp.MustCompile(`(?:kelas|kls|grade|class|lop|std|level|الصف)\s*(\d{1,2})\b`)

// Extractor matches titles for one region.
type Extractor struct {
	profile  *region.Profile
	patterns PatternSource
}

// New creates an Extractor over a region profile and its pattern store.
func New(profile *region.Profile, patterns PatternSource) *Extractor {
	return &Extractor{profile: profile, patterns: patterns}
}

// Grade extracts a grade signal from a title, or nil when no pattern and no
// profile spelling matches. First deterministic hit is authoritative.
func (e *Extractor) Grade(title string) *model.Extraction {
	norm := normalize.Normalize(title)
	if norm == "" {
		return nil
	}

	if ext := e.matchPatterns(norm, model.PatternGrade); ext != nil {
		return ext
	}
	if ext := e.matchProfile(norm, e.profile.Grades, e.profile.ResolveGrade); ext != nil {
		return ext
	}

	// Generic keyword+number fallback, resolved via the profile.
	if m := gradeKeyword.FindStringSubmatch(norm); m != nil {
		if id, err := e.profile.ResolveGrade(m[0]); err == nil {
			return &model.Extraction{CanonicalID: id, Tier: model.TierHigh, MatchedSpan: m[0]}
		}
		if id := e.resolveGradeNumber(m[1]); id != "" {
			return &model.Extraction{CanonicalID: id, Tier: model.TierHigh, MatchedSpan: m[0]}
		}
	}
	return nil
}

// resolveGradeNumber finds the profile grade whose display or alias carries
// the standalone numeral, so "grade 3" resolves against "Kelas 3" without
// the profile listing every marker word.
func (e *Extractor) resolveGradeNumber(num string) string {
	for _, entry := range e.profile.Grades {
		for _, sp := range append([]string{entry.Display}, entry.Aliases...) {
			if containsWord(normalize.Normalize(sp), num) {
				return entry.ID
			}
		}
	}
	return ""
}

// Subject extracts a subject signal from a title, or nil.
func (e *Extractor) Subject(title string) *model.Extraction {
	norm := normalize.Normalize(title)
	if norm == "" {
		return nil
	}

	if ext := e.matchPatterns(norm, model.PatternSubject); ext != nil {
		return ext
	}
	return e.matchProfile(norm, e.profile.Subjects, e.profile.ResolveSubject)
}

// matchPatterns tries the knowledge store's entries, already ordered most
// specific first. Verified entries carry high confidence, pending ones low.
func (e *Extractor) matchPatterns(norm string, kind model.PatternKind) *model.Extraction {
	if e.patterns == nil {
		return nil
	}
	for _, p := range e.patterns.Matchable(kind) {
		expr := normalize.Normalize(p.Expression)
		if expr == "" || !containsWord(norm, expr) {
			continue
		}
		tier := model.TierHigh
		if p.Status == model.PatternPending {
			tier = model.TierLow
		}
		return &model.Extraction{
			CanonicalID: p.CanonicalID,
			Tier:        tier,
			MatchedSpan: expr,
			PatternID:   p.ID,
		}
	}
	return nil
}

// matchProfile tries the profile's display names and aliases, longest first.
func (e *Extractor) matchProfile(norm string, entries []region.Entry, resolve func(string) (string, error)) *model.Extraction {
	best := ""
	for _, entry := range entries {
		spellings := append([]string{entry.Display}, entry.Aliases...)
		for _, sp := range spellings {
			cand := normalize.Normalize(sp)
			if cand == "" || len(cand) <= len(best) {
				continue
			}
			if containsWord(norm, cand) {
				best = cand
			}
		}
	}
	if best == "" {
		return nil
	}

	id, err := resolve(best)
	if err != nil {
		return nil
	}
	return &model.Extraction{CanonicalID: id, Tier: model.TierHigh, MatchedSpan: best}
}

// containsWord reports whether needle occurs in haystack on word boundaries.
func containsWord(haystack, needle string) bool {
	re, err := wordRegexp(needle)
	if err != nil {
		return false
	}
	return re.MatchString(haystack)
}

func wordRegexp(needle string) (*regexp.Regexp, error) {
	return regexp.Compile(fmt.Sprintf(`(^|[\s\p{P}])%s($|[\s\p{P}])`, regexp.QuoteMeta(needle)))
}
