package provider

import (
	"math"
	"regexp"
	"strings"
	"time"
)

var wordPattern = regexp.MustCompile(`\w+`)

// stopWords are skipped during keyword extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true,
	"am": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true,
	"i": true, "you": true, "he": true, "she": true, "it": true,
	"we": true, "they": true, "my": true, "me": true, "our": true,
	"what": true, "which": true, "who": true, "when": true,
	"where": true, "why": true, "how": true, "this": true,
	"that": true, "these": true, "those": true,
	"to": true, "for": true, "of": true, "with": true, "by": true,
	"from": true, "in": true, "on": true, "at": true, "as": true,
	"and": true, "or": true, "about": true, "any": true,
}

// ExtractKeywords extracts meaningful, deduplicated keywords from a
// query. Words shorter than three characters and stop words are skipped.
func ExtractKeywords(query string) []string {
	lower := strings.ToLower(query)
	words := wordPattern.FindAllString(lower, -1)

	var keywords []string
	seen := make(map[string]bool)

	for _, word := range words {
		if len(word) < 3 {
			continue
		}
		if stopWords[word] {
			continue
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}

	return keywords
}

// MatchCount returns how many of the keywords occur in text
// (case-insensitive substring match).
func MatchCount(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// Relevance scores text against the query keywords: keyword overlap
// weighs 0.6, recency 0.2 with a 30-day decay, and a 0.2 base so fresh
// records with no keyword overlap still rank above stale ones.
func Relevance(text string, keywords []string, updatedAt time.Time) float64 {
	keywordScore := 0.0
	if len(keywords) > 0 {
		keywordScore = float64(MatchCount(text, keywords)) / float64(len(keywords))
	}

	ageHours := time.Since(updatedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	recencyScore := math.Exp(-ageHours / (24.0 * 30.0))

	score := keywordScore*0.6 + recencyScore*0.2 + 0.2
	return math.Min(score, 1.0)
}
