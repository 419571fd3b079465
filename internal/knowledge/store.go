// Package knowledge is the per-region store of learned local-language
// grade/subject expressions and logged judge mistakes. The backing file is
// read wholesale at open and rewritten wholesale (atomic replace) on save;
// mutations are append/status-only so last-writer-wins across pipelines is
// acceptable.
package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/normalize"
)

// Auto-promotion policy: a pending entry becomes verified once it has been
// used at least promoteMinUses times with a success rate of promoteMinRate.
const (
	promoteMinUses = 5
	promoteMinRate = 0.9
)

// RegionFile is the persisted shape: region metadata plus the full pattern
// and mistake sets.
type RegionFile struct {
	Region      string                `json:"region"`
	Name        string                `json:"name,omitempty"`
	SearchCount int                   `json:"search_count"`
	AvgScore    float64               `json:"avg_score"`
	Patterns    []model.PatternEntry  `json:"patterns"`
	Mistakes    []model.MistakeRecord `json:"mistakes"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Store guards one region's knowledge file. Safe for concurrent pipelines.
type Store struct {
	mu   sync.RWMutex
	path string
	file RegionFile
	now  func() time.Time
}

// Open loads the region's knowledge file from dir, or starts empty when the
// file does not exist yet.
func Open(dir, region string) (*Store, error) {
	s := &Store{
		path: filepath.Join(dir, strings.ToLower(region)+".json"),
		file: RegionFile{Region: region},
		now:  func() time.Time { return time.Now().UTC() },
	}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "knowledge: read %s", s.path)
	}
	if err := json.Unmarshal(data, &s.file); err != nil {
		return nil, eris.Wrapf(err, "knowledge: parse %s", s.path)
	}
	return s, nil
}

// WithNow sets a fixed clock for testing.
func (s *Store) WithNow(t time.Time) *Store {
	s.now = func() time.Time { return t }
	return s
}

// Save rewrites the knowledge file via temp file + rename so readers never
// observe a partial write.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.file.UpdatedAt = s.now()
	data, err := json.MarshalIndent(s.file, "", "  ")
	if err != nil {
		return eris.Wrap(err, "knowledge: marshal")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return eris.Wrapf(err, "knowledge: mkdir %s", filepath.Dir(s.path))
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "knowledge: write %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return eris.Wrapf(err, "knowledge: rename %s", s.path)
	}
	return nil
}

// Matchable returns the patterns the extractor may use (verified and
// pending, never rejected), longest expression first so the most specific
// pattern wins.
func (s *Store) Matchable(kind model.PatternKind) []model.PatternEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PatternEntry
	for _, p := range s.file.Patterns {
		if p.Kind != kind || p.Status == model.PatternRejected {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Expression) > len(out[j].Expression)
	})
	return out
}

// Expressions lists the local spellings known for a canonical ID. Used to
// show the judge every variant of the target.
func (s *Store) Expressions(kind model.PatternKind, canonicalID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, p := range s.file.Patterns {
		if p.Kind == kind && p.CanonicalID == canonicalID && p.Status != model.PatternRejected {
			out = append(out, p.Expression)
		}
	}
	return out
}

// Propose records a newly observed local expression. A second proposal for
// the same (kind, normalized expression) merges into the existing entry
// instead of inserting a duplicate pending row.
func (s *Store) Propose(kind model.PatternKind, expr, canonicalID string, confidence float64, source model.PatternSource, note string) model.PatternEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalize.Normalize(expr)
	for i, p := range s.file.Patterns {
		if p.Kind == kind && normalize.Normalize(p.Expression) == key {
			// Merge: keep the higher confidence, append the note once.
			if confidence > p.Confidence {
				s.file.Patterns[i].Confidence = confidence
			}
			if note != "" && p.Note == "" {
				s.file.Patterns[i].Note = note
			}
			return s.file.Patterns[i]
		}
	}

	entry := model.PatternEntry{
		ID:          uuid.New().String(),
		Region:      s.file.Region,
		Kind:        kind,
		Expression:  expr,
		CanonicalID: canonicalID,
		Confidence:  confidence,
		Status:      model.PatternPending,
		Source:      source,
		CreatedAt:   s.now(),
		Note:        note,
	}
	s.file.Patterns = append(s.file.Patterns, entry)

	zap.L().Info("knowledge: proposed pattern",
		zap.String("region", s.file.Region),
		zap.String("kind", string(kind)),
		zap.String("expression", expr),
		zap.String("canonical_id", canonicalID),
		zap.String("source", string(source)),
	)
	return entry
}

// RecordUse updates a pattern's usage counters and promotes a pending entry
// that crosses the auto-verification threshold.
func (s *Store) RecordUse(id string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.file.Patterns {
		p := &s.file.Patterns[i]
		if p.ID != id {
			continue
		}
		p.UsageCount++
		if success {
			p.SuccessCount++
		}
		if p.Status == model.PatternPending &&
			p.UsageCount >= promoteMinUses &&
			p.SuccessRate() >= promoteMinRate {
			now := s.now()
			p.Status = model.PatternVerified
			p.VerifiedAt = &now
			zap.L().Info("knowledge: auto-verified pattern",
				zap.String("region", s.file.Region),
				zap.String("expression", p.Expression),
				zap.Int("uses", p.UsageCount),
				zap.Float64("success_rate", p.SuccessRate()),
			)
		}
		return
	}
}

// Verify manually promotes an entry. Rejected entries stay rejected.
func (s *Store) Verify(id string) error {
	return s.transition(id, model.PatternVerified)
}

// Reject marks an entry unusable. The row is kept for audit history.
func (s *Store) Reject(id string) error {
	return s.transition(id, model.PatternRejected)
}

func (s *Store) transition(id string, status model.PatternStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.file.Patterns {
		p := &s.file.Patterns[i]
		if p.ID != id {
			continue
		}
		if p.Status == model.PatternRejected && status == model.PatternVerified {
			return eris.Errorf("knowledge: pattern %s is rejected", id)
		}
		p.Status = status
		if status == model.PatternVerified {
			now := s.now()
			p.VerifiedAt = &now
		}
		return nil
	}
	return eris.Errorf("knowledge: pattern %s not found", id)
}

// Patterns returns a copy of every entry, for review tooling.
func (s *Store) Patterns() []model.PatternEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PatternEntry, len(s.file.Patterns))
	copy(out, s.file.Patterns)
	return out
}

// AddMistake logs a judge disagreement. Repeats of the same category bump
// the frequency of the existing open record instead of appending.
func (s *Store) AddMistake(title, category, correction string, severity model.MistakeSeverity) model.MistakeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.file.Mistakes {
		if m.Category == category && m.Status == model.MistakeOpen {
			s.file.Mistakes[i].Frequency++
			return s.file.Mistakes[i]
		}
	}

	rec := model.MistakeRecord{
		ID:           uuid.New().String(),
		Region:       s.file.Region,
		ExampleTitle: title,
		Category:     category,
		Correction:   correction,
		Severity:     severity,
		Status:       model.MistakeOpen,
		FirstSeen:    s.now(),
		Frequency:    1,
	}
	s.file.Mistakes = append(s.file.Mistakes, rec)
	return rec
}

// OpenMistakes returns the unresolved records fed into judge prompts.
func (s *Store) OpenMistakes() []model.MistakeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.MistakeRecord
	for _, m := range s.file.Mistakes {
		if m.Status == model.MistakeOpen {
			out = append(out, m)
		}
	}
	return out
}

// FixMistake closes a record so it stops appearing in prompts.
func (s *Store) FixMistake(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.file.Mistakes {
		if s.file.Mistakes[i].ID != id {
			continue
		}
		now := s.now()
		s.file.Mistakes[i].Status = model.MistakeFixed
		s.file.Mistakes[i].FixedAt = &now
		return nil
	}
	return eris.Errorf("knowledge: mistake %s not found", id)
}

// NoteSearch folds one pipeline's outcome into the region metadata.
func (s *Store) NoteSearch(avgScore float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := float64(s.file.SearchCount)
	s.file.AvgScore = (s.file.AvgScore*n + avgScore) / (n + 1)
	s.file.SearchCount++
}

// Meta returns the region metadata snapshot.
func (s *Store) Meta() (region string, searches int, avgScore float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.Region, s.file.SearchCount, s.file.AvgScore
}
