package judge

import (
	"fmt"
	"strings"

	"github.com/eduseek/curator/internal/knowledge"
	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/region"
)

const systemText = `You are an expert curator of localized educational video content. You judge whether a search result teaches the requested subject at the requested grade level for the requested region. Return only a valid JSON object, no prose.`

const scorePrompt = `Target curriculum:
- Region: %s (language: %s)
- Grade: %s
- Subject: %s
%s%s
Search result:
- Title: %s
- URL: %s
- Type: %s
%s
Score how well this result matches the target, from 0 (wrong grade or subject) to 10 (exact match, high teaching value). Identify the grade and subject the result itself advertises, in the local naming above when possible.

Return a valid JSON object:
{"score": <0-10>, "identified_grade": "<grade the result targets, or empty>", "identified_subject": "<subject the result targets, or empty>", "rationale": "<one sentence>"}`

// Hints carries the region-local naming and past-mistake context that keeps
// the judge honest about grade and subject labels it has misread before.
type Hints struct {
	RegionName      string
	Language        string
	GradeDisplay    string
	GradeVariants   []string
	SubjectDisplay  string
	SubjectVariants []string
	Mistakes        []model.MistakeRecord
}

// BuildHints assembles prompt hints for a target from the region profile and
// the knowledge store. A nil store yields profile-only hints.
func BuildHints(p *region.Profile, store *knowledge.Store, target model.Target) Hints {
	h := Hints{}
	if p == nil {
		return h
	}
	h.RegionName = p.Name
	h.Language = p.Language

	h.GradeDisplay, h.GradeVariants = entryVariants(p.Grades, target.GradeID)
	h.SubjectDisplay, h.SubjectVariants = entryVariants(p.Subjects, target.SubjectID)

	if store != nil {
		h.GradeVariants = mergeVariants(h.GradeVariants, store.Expressions(model.PatternGrade, target.GradeID))
		h.SubjectVariants = mergeVariants(h.SubjectVariants, store.Expressions(model.PatternSubject, target.SubjectID))
		h.Mistakes = store.OpenMistakes()
	}
	return h
}

func entryVariants(entries []region.Entry, id string) (string, []string) {
	for _, e := range entries {
		if e.ID == id {
			return e.Display, append([]string(nil), e.Aliases...)
		}
	}
	return id, nil
}

func mergeVariants(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range append(base, extra...) {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// buildPrompt renders the user message for one candidate.
func buildPrompt(hit model.SearchHit, h Hints) string {
	grade := h.GradeDisplay
	if len(h.GradeVariants) > 0 {
		grade = fmt.Sprintf("%s (local spellings: %s)", grade, strings.Join(h.GradeVariants, ", "))
	}
	subject := h.SubjectDisplay
	if len(h.SubjectVariants) > 0 {
		subject = fmt.Sprintf("%s (local spellings: %s)", subject, strings.Join(h.SubjectVariants, ", "))
	}

	var mistakes string
	if len(h.Mistakes) > 0 {
		var b strings.Builder
		b.WriteString("\nPast judging mistakes in this region, do not repeat them:\n")
		for _, m := range h.Mistakes {
			fmt.Fprintf(&b, "- %s (example: %q, correction: %s)\n", m.Category, m.ExampleTitle, m.Correction)
		}
		mistakes = b.String()
	}

	var snippet string
	if hit.Snippet != "" {
		snippet = fmt.Sprintf("- Snippet: %s\n", hit.Snippet)
	}
	if hit.Kind == model.KindPlaylist && hit.Items > 0 {
		snippet += fmt.Sprintf("- Playlist size: %d items\n", hit.Items)
	}

	return fmt.Sprintf(scorePrompt,
		h.RegionName, h.Language,
		grade, subject,
		mistakes, "\n",
		hit.Title, hit.URL, string(hit.Kind), snippet,
	)
}
