package provider

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKeywords(t *testing.T) {
	kws := ExtractKeywords("What is the price of Bitcoin today?")

	assert.Equal(t, []string{"price", "bitcoin", "today"}, kws)
}

func TestExtractKeywordsDedupes(t *testing.T) {
	kws := ExtractKeywords("bitcoin bitcoin BITCOIN price")

	assert.Equal(t, []string{"bitcoin", "price"}, kws)
}

func TestExtractKeywordsEmpty(t *testing.T) {
	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("is my the of"))
}

func TestMatchCount(t *testing.T) {
	n := MatchCount("Bitcoin rallies as ETF inflows surge", []string{"bitcoin", "etf", "tax"})

	assert.Equal(t, 2, n)
}

func TestRelevanceFreshBeatsStale(t *testing.T) {
	kws := []string{"bitcoin"}

	fresh := Relevance("bitcoin update", kws, time.Now())
	stale := Relevance("bitcoin update", kws, time.Now().Add(-90*24*time.Hour))

	assert.Greater(t, fresh, stale)
	assert.LessOrEqual(t, fresh, 1.0)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}

func TestFitRecordsDropsLowestMatchesFirst(t *testing.T) {
	now := time.Now()
	big := strings.Repeat("data ", 100) // ~125 tokens each
	records := []Record{
		{Title: "relevant", Body: big, Matches: 3, Timestamp: now},
		{Title: "irrelevant", Body: big, Matches: 0, Timestamp: now},
		{Title: "somewhat", Body: big, Matches: 1, Timestamp: now},
	}

	kept, tokens, dropped := FitRecords(records, 300)

	require.Len(t, kept, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "relevant", kept[0].Title)
	assert.Equal(t, "somewhat", kept[1].Title)
	assert.LessOrEqual(t, tokens, 300)
}

func TestFitRecordsDropsOldestOnTie(t *testing.T) {
	now := time.Now()
	big := strings.Repeat("data ", 100)
	records := []Record{
		{Title: "old", Body: big, Matches: 1, Timestamp: now.Add(-48 * time.Hour)},
		{Title: "new", Body: big, Matches: 1, Timestamp: now},
	}

	kept, _, dropped := FitRecords(records, 200)

	require.Len(t, kept, 1)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "new", kept[0].Title)
}

func TestFitRecordsKeepsOrder(t *testing.T) {
	now := time.Now()
	records := []Record{
		{Title: "a", Body: "short", Matches: 1, Timestamp: now},
		{Title: "b", Body: "short", Matches: 2, Timestamp: now},
		{Title: "c", Body: "short", Matches: 3, Timestamp: now},
	}

	kept, _, dropped := FitRecords(records, 1000)

	assert.Zero(t, dropped)
	require.Len(t, kept, 3)
	assert.Equal(t, "a", kept[0].Title)
	assert.Equal(t, "b", kept[1].Title)
	assert.Equal(t, "c", kept[2].Title)
}

func TestFitRecordsTinyBudgetDropsEverything(t *testing.T) {
	records := []Record{
		{Title: "x", Body: strings.Repeat("y", 400), Matches: 1},
	}

	kept, tokens, dropped := FitRecords(records, 10)

	assert.Empty(t, kept)
	assert.Zero(t, tokens)
	assert.Equal(t, 1, dropped)
}

func TestEmptyEnvelope(t *testing.T) {
	env := Empty("market", "fetch failed", "fallback failed")

	assert.Equal(t, "market", env.ProviderID)
	assert.Equal(t, StatusEmpty, env.Status)
	assert.Len(t, env.Warnings, 2)
	assert.Zero(t, env.TokensUsed)
}
