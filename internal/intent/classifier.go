package intent

import "strings"

// Classify determines the intent of a query.
//
// Scoring happens in three stages:
//  1. Each non-default label is scored independently: the first matching
//     pattern in its ordered rule list fixes the label's score.
//  2. Derived-label boosts run: a base label scoring above its threshold
//     with a secondary keyword present lifts the derived label above it
//     and discounts the base.
//  3. The highest score wins; ties break by the fixed label priority
//     order. A winning score below the confidence floor falls back to
//     GeneralQuery with a fixed low confidence.
//
// Always returns exactly one label with confidence in [0,1].
func Classify(query string) Result {
	q := strings.ToLower(strings.TrimSpace(query))

	scores := make(map[Label]float64, len(rules))
	for _, label := range labelPriority {
		patterns, ok := rules[label]
		if !ok {
			continue
		}
		for _, p := range patterns {
			if p.Matches(q) {
				scores[label] = p.Score
				break
			}
		}
	}

	applyBoosts(q, scores)

	best := GeneralQuery
	bestScore := 0.0
	for _, label := range labelPriority {
		if s, ok := scores[label]; ok && s > bestScore {
			best = label
			bestScore = s
		}
	}

	if bestScore < minConfidence {
		return Result{Label: GeneralQuery, Confidence: fallbackConfidence}
	}

	if bestScore > 1 {
		bestScore = 1
	}
	return Result{Label: best, Confidence: bestScore}
}

// applyBoosts mutates scores according to the derived-label rules.
func applyBoosts(q string, scores map[Label]float64) {
	for _, b := range boosts {
		base, ok := scores[b.Base]
		if !ok || base <= b.MinBase {
			continue
		}
		if !anyContained(q, b.Secondary) {
			continue
		}

		derived := scores[b.Derived]
		if base > derived {
			derived = base
		}
		derived += b.Boost
		if derived > 1 {
			derived = 1
		}
		scores[b.Derived] = derived

		base -= b.Discount
		if base < 0 {
			base = 0
		}
		scores[b.Base] = base
	}
}

func anyContained(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
