package judge

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/eduseek/curator/internal/model"
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// rawJudgment tolerates a score emitted as either a JSON number or a string.
type rawJudgment struct {
	Score             json.Number `json:"score"`
	IdentifiedGrade   string      `json:"identified_grade"`
	IdentifiedSubject string      `json:"identified_subject"`
	Rationale         string      `json:"rationale"`
}

// parseJudgment extracts the judgment object from model output. It strips
// code fences and surrounding prose, then repairs trailing commas and
// single-quoted keys before giving up.
func parseJudgment(text string) (model.Judgment, error) {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return model.Judgment{}, eris.New("judge: empty response")
	}

	raw, err := unmarshalTolerant(cleaned)
	if err != nil {
		return model.Judgment{}, eris.Wrap(err, "judge: parse response")
	}

	score, err := raw.Score.Float64()
	if err != nil {
		// Some models quote the number; strip and retry.
		score, err = strconv.ParseFloat(strings.Trim(raw.Score.String(), `"' `), 64)
		if err != nil {
			return model.Judgment{}, eris.Errorf("judge: non-numeric score %q", raw.Score.String())
		}
	}

	return model.Judgment{
		Score:             clampScore(score),
		IdentifiedGrade:   strings.TrimSpace(raw.IdentifiedGrade),
		IdentifiedSubject: strings.TrimSpace(raw.IdentifiedSubject),
		Rationale:         strings.TrimSpace(raw.Rationale),
	}, nil
}

func unmarshalTolerant(text string) (rawJudgment, error) {
	var raw rawJudgment

	decode := func(s string) error {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		return dec.Decode(&raw)
	}

	if err := decode(text); err == nil {
		return raw, nil
	}

	repaired := trailingComma.ReplaceAllString(text, "$1")
	if err := decode(repaired); err == nil {
		return raw, nil
	}

	// Last resort for single-quoted pseudo-JSON.
	requoted := strings.ReplaceAll(repaired, `'`, `"`)
	err := decode(requoted)
	return raw, err
}

// cleanJSON strips markdown fences and surrounding prose, keeping the first
// balanced-looking object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
