package intent

import (
	"regexp"
	"strings"
)

// Pattern is one matching rule for a label. A pattern matches when at
// least one keyword is contained in the lowercased query and, if Regex is
// set, the regex matches too.
type Pattern struct {
	ID       string
	Keywords []string
	Regex    *regexp.Regexp
	Score    float64
}

// Matches checks the pattern against an already-lowercased query.
func (p *Pattern) Matches(query string) bool {
	if len(p.Keywords) > 0 {
		hit := false
		for _, kw := range p.Keywords {
			if strings.Contains(query, kw) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	if p.Regex != nil {
		return p.Regex.MatchString(query)
	}

	return len(p.Keywords) > 0
}

// Boost is a derived-label rule: when the base label scored above MinBase
// and a secondary keyword is present, the derived label is lifted above
// the base and the base is discounted.
type Boost struct {
	Base      Label
	Derived   Label
	Secondary []string
	MinBase   float64
	Boost     float64
	Discount  float64
}

// rules holds the ordered pattern list per non-default label. The first
// matching pattern fixes that label's score; labels are scored
// independently of each other.
var rules = map[Label][]*Pattern{
	MarketPrice: {
		{
			ID:       "market_price_quote",
			Keywords: []string{"price", "worth", "quote", "how much", "trading at", "value of", "exchange rate"},
			Score:    0.8,
		},
	},
	MarketAnalysis: {
		{
			ID: "market_analysis_terms",
			Keywords: []string{
				"market analysis", "technical analysis", "market trend", "price trend",
				"support level", "resistance level", "moving average", "rsi", "macd",
				"bull market", "bear market", "market sentiment",
			},
			Score: 0.8,
		},
	},
	NewsQuery: {
		{
			ID:       "news_terms",
			Keywords: []string{"news", "headline", "headlines", "article", "announcement", "what happened", "press release"},
			Score:    0.8,
		},
		{
			ID:       "news_latest",
			Keywords: []string{"latest", "recent"},
			Regex:    regexp.MustCompile(`(latest|recent).*(news|development|story|stories|event)`),
			Score:    0.75,
		},
	},
	PortfolioAnalysis: {
		{
			ID: "portfolio_terms",
			Keywords: []string{
				"portfolio", "holdings", "allocation", "my assets", "my positions",
				"my balance", "diversification", "net worth",
			},
			Score: 0.8,
		},
	},
	RiskAssessment: {
		{
			ID:       "risk_terms",
			Keywords: []string{"risk", "exposure", "volatility", "drawdown", "hedge", "value at risk", "concentration"},
			Score:    0.8,
		},
	},
	TaxAnalysis: {
		{
			ID: "tax_terms",
			Keywords: []string{
				"tax", "taxes", "taxable", "capital gain", "capital gains",
				"cost basis", "realized gain", "realized loss", "wash sale", "irs", "fifo",
			},
			Score: 0.85,
		},
	},
	TradeHistory: {
		{
			ID: "trade_history_terms",
			Keywords: []string{
				"trade history", "my trades", "transaction history", "transactions",
				"order history", "recent trades", "past trades", "buys and sells",
			},
			Score: 0.8,
		},
		{
			ID:       "trade_history_verbs",
			Keywords: []string{"bought", "sold", "traded"},
			Regex:    regexp.MustCompile(`(when|what|how many|show|list).*(bought|sold|traded)`),
			Score:    0.75,
		},
	},
}

// boosts holds the derived-label rules applied after base scoring.
var boosts = []Boost{
	{
		Base:      MarketPrice,
		Derived:   MarketAnalysis,
		Secondary: []string{"analysis", "analyze", "trend", "forecast", "outlook", "predict", "chart"},
		MinBase:   0.5,
		Boost:     0.15,
		Discount:  0.2,
	},
	{
		Base:      PortfolioAnalysis,
		Derived:   RiskAssessment,
		Secondary: []string{"risk", "risky", "exposure", "volatility", "drawdown", "safe"},
		MinBase:   0.5,
		Boost:     0.15,
		Discount:  0.2,
	},
}
