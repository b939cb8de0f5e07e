// Package intent provides rule-based intent classification for user queries.
//
// Classification is a pure function over a fixed rule table: no I/O, no
// model calls, deterministic for any input including the empty string.
package intent

// Label is a fixed category describing what kind of information a query
// is asking for.
type Label string

const (
	MarketPrice       Label = "MARKET_PRICE"
	MarketAnalysis    Label = "MARKET_ANALYSIS"
	NewsQuery         Label = "NEWS_QUERY"
	PortfolioAnalysis Label = "PORTFOLIO_ANALYSIS"
	RiskAssessment    Label = "RISK_ASSESSMENT"
	TaxAnalysis       Label = "TAX_ANALYSIS"
	TradeHistory      Label = "TRADE_HISTORY"
	GeneralQuery      Label = "GENERAL_QUERY"
)

// labelPriority is the fixed tie-break order: when two labels end up with
// the same score, the earlier label here wins. GeneralQuery is last on
// purpose; it only wins outright as the low-confidence fallback.
var labelPriority = []Label{
	TaxAnalysis,
	TradeHistory,
	RiskAssessment,
	PortfolioAnalysis,
	MarketAnalysis,
	MarketPrice,
	NewsQuery,
	GeneralQuery,
}

// Labels returns all labels in tie-break priority order.
func Labels() []Label {
	out := make([]Label, len(labelPriority))
	copy(out, labelPriority)
	return out
}

// Valid reports whether s names a known label.
func Valid(s string) bool {
	for _, l := range labelPriority {
		if string(l) == s {
			return true
		}
	}
	return false
}

// Result is the outcome of classifying one query.
type Result struct {
	Label      Label
	Confidence float64 // 0-1
}

const (
	// minConfidence is the floor below which classification falls back
	// to GeneralQuery.
	minConfidence = 0.4

	// fallbackConfidence is the confidence reported for the fallback.
	fallbackConfidence = 0.1
)
