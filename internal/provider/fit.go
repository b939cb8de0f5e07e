package provider

import (
	"fmt"
	"strings"
)

// tokens estimates the rendered token cost of one record.
func (r *Record) tokens() int {
	var sb strings.Builder
	sb.WriteString(r.Title)
	for _, f := range r.Fields {
		sb.WriteString(f.Label)
		sb.WriteString(fmt.Sprintf("%v", f.Value))
	}
	sb.WriteString(r.Body)
	return EstimateTokens(sb.String())
}

// FitRecords trims records to the token budget by dropping whole
// records: lowest keyword-match count first, then oldest timestamp.
// Records are never split; the surviving records keep their original
// order. Returns the kept records, their estimated token cost, and how
// many records were dropped.
func FitRecords(records []Record, budget int) ([]Record, int, int) {
	kept := make([]Record, len(records))
	copy(kept, records)

	costs := make([]int, len(kept))
	total := 0
	for i := range kept {
		costs[i] = kept[i].tokens()
		total += costs[i]
	}

	dropped := 0
	for total > budget && len(kept) > 0 {
		victim := 0
		for i := 1; i < len(kept); i++ {
			if kept[i].Matches < kept[victim].Matches ||
				(kept[i].Matches == kept[victim].Matches && kept[i].Timestamp.Before(kept[victim].Timestamp)) {
				victim = i
			}
		}
		total -= costs[victim]
		kept = append(kept[:victim], kept[victim+1:]...)
		costs = append(costs[:victim], costs[victim+1:]...)
		dropped++
	}

	return kept, total, dropped
}
