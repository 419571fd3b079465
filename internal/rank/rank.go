// Package rank orders arbitrated candidates: exact-URL dedupe, weighted
// scoring over trust tier, language match and playlist richness, then a
// stable sort with optional type interleaving.
package rank

import (
	"math"
	"sort"
	"unicode"

	"go.uber.org/zap"

	"github.com/eduseek/curator/internal/model"
)

// Score weights. The arbitrated score dominates; soft factors only break
// near-ties between candidates of comparable quality.
const (
	trustedBonus  = 0.5
	languageBonus = 0.3

	richnessItemsMax    = 0.4
	richnessDurationMax = 0.3
	richnessMax         = richnessItemsMax + richnessDurationMax

	// Saturation points past which extra items or hours add almost nothing.
	richnessItemsSaturation = 30
	richnessHoursSaturation = 10.0

	DefaultDenyCeiling         = 2.0
	DefaultInterleaveThreshold = 8
)

// Options tunes one ranking pass.
type Options struct {
	Trust *TrustList

	// Script names a Unicode script ("Latin", "Arabic", ...) for the
	// language-match bonus. Empty disables the bonus.
	Script string

	// DenyCeiling caps the final score of deny-listed domains. Zero uses
	// the default.
	DenyCeiling float64

	// InterleaveThreshold enables type interleaving when more than this
	// many results remain after scoring. Zero uses the default; negative
	// disables.
	InterleaveThreshold int
}

// Rank dedupes, scores and orders results. Input order is preserved for
// exact ties so identical runs are reproducible. Rank fields are assigned
// 1-based on the returned slice.
func Rank(results []model.CandidateResult, opts Options) []model.CandidateResult {
	if opts.DenyCeiling <= 0 {
		opts.DenyCeiling = DefaultDenyCeiling
	}
	if opts.InterleaveThreshold == 0 {
		opts.InterleaveThreshold = DefaultInterleaveThreshold
	}

	out := dedupeByURL(results)

	type keyed struct {
		idx      int
		weighted float64
		richness float64
		tier     Tier
	}
	keys := make([]keyed, len(out))

	for i := range out {
		res := &out[i]
		tier := opts.Trust.Tier(res.Hit.URL)
		rich := richness(res.Hit)
		score := res.FinalScore

		switch tier {
		case TierDenied:
			if score > opts.DenyCeiling {
				score = opts.DenyCeiling
			}
			res.Excluded = true
			res.ExcludeReason = "deny-listed domain"
			zap.L().Debug("rank: deny-listed", zap.String("url", res.Hit.URL))
		case TierTrusted:
			score += trustedBonus
		}

		if tier != TierDenied {
			if opts.Script != "" && matchesScript(res.Hit.Title+" "+res.Hit.Snippet, opts.Script) {
				score += languageBonus
			}
			score += rich
		}

		// Bonuses never undo an arbitration bound.
		if res.ScoreCeiling > 0 && score > res.ScoreCeiling {
			score = res.ScoreCeiling
		}

		res.FinalScore = score
		keys[i] = keyed{idx: i, weighted: score, richness: rich, tier: tier}
	}

	sort.SliceStable(keys, func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if ka.weighted != kb.weighted {
			return ka.weighted > kb.weighted
		}
		if ka.richness != kb.richness {
			return ka.richness > kb.richness
		}
		return ka.tier > kb.tier
	})

	ordered := make([]model.CandidateResult, len(keys))
	for i, k := range keys {
		ordered[i] = out[k.idx]
	}

	if opts.InterleaveThreshold > 0 && len(ordered) > opts.InterleaveThreshold {
		ordered = interleaveKinds(ordered)
	}

	for i := range ordered {
		ordered[i].Rank = i + 1
	}
	return ordered
}

// dedupeByURL keeps the first occurrence of each exact URL.
func dedupeByURL(results []model.CandidateResult) []model.CandidateResult {
	seen := make(map[string]bool, len(results))
	out := make([]model.CandidateResult, 0, len(results))
	for _, r := range results {
		if seen[r.Hit.URL] {
			continue
		}
		seen[r.Hit.URL] = true
		out = append(out, r)
	}
	return out
}

// richness rewards fuller playlists with diminishing returns past the
// saturation points. Item count and total duration contribute separately
// so a ten-minute "playlist" of 30 stub clips does not max out the bonus.
// Non-playlists get zero.
func richness(hit model.SearchHit) float64 {
	if hit.Kind != model.KindPlaylist || hit.Items <= 0 {
		return 0
	}
	bonus := logCurve(float64(hit.Items), richnessItemsSaturation, richnessItemsMax)
	if hit.Duration > 0 {
		bonus += logCurve(hit.Duration.Hours(), richnessHoursSaturation, richnessDurationMax)
	}
	return bonus
}

// logCurve maps v onto [0, max], reaching max at the saturation point.
func logCurve(v, saturation, max float64) float64 {
	b := max * math.Log1p(v) / math.Log1p(saturation)
	if b > max {
		b = max
	}
	return b
}

// matchesScript reports whether most letters in text belong to the named
// Unicode script.
func matchesScript(text, script string) bool {
	table, ok := unicode.Scripts[script]
	if !ok {
		return false
	}
	var letters, inScript int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(table, r) {
			inScript++
		}
	}
	return letters > 0 && inScript*2 > letters
}

// interleaveKinds breaks up same-kind runs with a round-robin over the kind
// queues, preserving score order within each kind. Excluded results keep
// their tail positions.
func interleaveKinds(results []model.CandidateResult) []model.CandidateResult {
	var head, tail []model.CandidateResult
	for _, r := range results {
		if r.Excluded {
			tail = append(tail, r)
		} else {
			head = append(head, r)
		}
	}

	queues := make(map[model.ResultKind][]model.CandidateResult)
	var kindOrder []model.ResultKind
	for _, r := range head {
		if _, ok := queues[r.Hit.Kind]; !ok {
			kindOrder = append(kindOrder, r.Hit.Kind)
		}
		queues[r.Hit.Kind] = append(queues[r.Hit.Kind], r)
	}

	out := make([]model.CandidateResult, 0, len(results))
	for len(out) < len(head) {
		for _, k := range kindOrder {
			if len(queues[k]) > 0 {
				out = append(out, queues[k][0])
				queues[k] = queues[k][1:]
			}
		}
	}
	return append(out, tail...)
}
