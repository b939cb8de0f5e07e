package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMarketPrice(t *testing.T) {
	res := Classify("What is the price of Bitcoin?")

	assert.Equal(t, MarketPrice, res.Label)
	assert.InDelta(t, 0.8, res.Confidence, 0.001)
}

func TestClassifyEmptyQuery(t *testing.T) {
	res := Classify("")

	assert.Equal(t, GeneralQuery, res.Label)
	assert.InDelta(t, 0.1, res.Confidence, 0.001)
}

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Label
	}{
		{"price quote", "how much is ethereum trading at", MarketPrice},
		{"analysis terms", "show me a technical analysis of the market", MarketAnalysis},
		{"price with trend boosts to analysis", "bitcoin price trend this month", MarketAnalysis},
		{"price with forecast boosts to analysis", "what is the bitcoin price forecast", MarketAnalysis},
		{"news", "any news about the SEC ruling?", NewsQuery},
		{"latest developments", "latest developments in crypto regulation news", NewsQuery},
		{"portfolio", "how is my portfolio doing", PortfolioAnalysis},
		{"portfolio risk boosts to risk", "how risky is my portfolio", RiskAssessment},
		{"risk direct", "what is my exposure to altcoins", RiskAssessment},
		{"tax", "what are my capital gains this year", TaxAnalysis},
		{"trade history", "show my trade history for March", TradeHistory},
		{"gibberish", "asdf qwerty zxcv", GeneralQuery},
		{"small talk", "hello there", GeneralQuery},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Classify(tc.query)
			assert.Equal(t, tc.want, res.Label, "query: %s", tc.query)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	queries := []string{
		"What is the price of Bitcoin?",
		"",
		"how risky is my portfolio",
		"tax implications of selling ETH",
		"latest crypto news headlines",
	}

	for _, q := range queries {
		first := Classify(q)
		for i := 0; i < 50; i++ {
			assert.Equal(t, first, Classify(q), "query: %s", q)
		}
	}
}

func TestClassifyTotalAndBounded(t *testing.T) {
	queries := []string{
		"", " ", "\n\t", "?", "PRICE PRICE PRICE price news tax risk portfolio trades",
		"ümlaut ünicode 日本語 price", "a", "what",
	}

	for _, q := range queries {
		res := Classify(q)
		require.True(t, Valid(string(res.Label)), "query %q produced unknown label %q", q, res.Label)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

func TestBoostDiscountsBaseLabel(t *testing.T) {
	// The boosted derived label must win over its own base even though
	// both initially score the same.
	res := Classify("analyze the bitcoin price")

	assert.Equal(t, MarketAnalysis, res.Label)
	assert.InDelta(t, 0.95, res.Confidence, 0.001)
}

func TestLabelsPriorityOrderStable(t *testing.T) {
	first := Labels()
	second := Labels()

	require.Equal(t, first, second)
	assert.Equal(t, GeneralQuery, first[len(first)-1])
}
