package portfolio

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

// ProviderID is the registry id of this provider.
const ProviderID = "portfolio"

// recentTradeLimit caps the trade-history view.
const recentTradeLimit = 20

// mode selects which view of the portfolio a query needs.
type mode int

const (
	modeHoldings mode = iota
	modeTrades
	modeTax
)

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// Provider serves portfolio context from the local database.
type Provider struct {
	store  *Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	lastGood *provider.Payload
	cachedAt time.Time
}

// New creates a portfolio provider over an open store.
func New(store *Store, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// ID returns the provider id.
func (p *Provider) ID() string { return ProviderID }

// Fetch queries the view the query asks for: tax lots, trade history,
// or current holdings.
func (p *Provider) Fetch(ctx context.Context, query string, tokenBudget int) (*provider.Envelope, error) {
	m := modeFor(query)

	var (
		payload *provider.Payload
		err     error
	)
	switch m {
	case modeTax:
		payload, err = p.taxPayload(ctx, query)
	case modeTrades:
		payload, err = p.tradesPayload(ctx)
	default:
		payload, err = p.holdingsPayload(ctx)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderFetchFailed, "portfolio fetch failed", apperrors.GetCategory(err)).WithProvider(ProviderID)
	}

	p.mu.Lock()
	p.lastGood = payload
	p.cachedAt = p.now()
	p.mu.Unlock()

	return p.envelope(payload, query, tokenBudget, provider.StatusLive, nil), nil
}

// FetchFallback serves the last successful payload, whatever view it
// held.
func (p *Provider) FetchFallback(_ context.Context, query string, tokenBudget int) (*provider.Envelope, error) {
	p.mu.RLock()
	payload := p.lastGood
	age := time.Since(p.cachedAt)
	p.mu.RUnlock()

	if payload == nil {
		return nil, apperrors.Permanent(apperrors.CodeProviderFallbackFailed, "no cached portfolio snapshot").WithProvider(ProviderID)
	}

	warning := fmt.Sprintf("portfolio data is cached (age %s)", age.Round(time.Second))
	return p.envelope(payload, query, tokenBudget, provider.StatusFallback, []string{warning}), nil
}

// modeFor picks the portfolio view from query keywords.
func modeFor(query string) mode {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "tax") || strings.Contains(q, "capital gain") || strings.Contains(q, "realized"):
		return modeTax
	case strings.Contains(q, "trade") || strings.Contains(q, "bought") || strings.Contains(q, "sold") || strings.Contains(q, "transaction"):
		return modeTrades
	default:
		return modeHoldings
	}
}

// taxYear extracts an explicit year from the query, defaulting to the
// current year.
func (p *Provider) taxYear(query string) int {
	if m := yearPattern.FindString(query); m != "" {
		year, _ := strconv.Atoi(m)
		return year
	}
	return p.now().Year()
}

func (p *Provider) holdingsPayload(ctx context.Context) (*provider.Payload, error) {
	holdings, err := p.store.Holdings(ctx)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeStoreQueryFailed, "portfolio has no holdings")
	}

	total := 0.0
	for _, h := range holdings {
		total += h.Quantity * h.LastPriceUSD
	}

	records := make([]provider.Record, 0, len(holdings))
	for _, h := range holdings {
		value := h.Quantity * h.LastPriceUSD
		pnl := value - h.CostBasisUSD
		concentration := 0.0
		if total > 0 {
			concentration = value / total * 100
		}
		records = append(records, provider.Record{
			Title:     h.Symbol,
			Timestamp: h.UpdatedAt,
			Fields: []provider.Field{
				{Label: "quantity", Value: h.Quantity},
				{Label: "market value", Value: value, Currency: true},
				{Label: "cost basis", Value: h.CostBasisUSD, Currency: true},
				{Label: "unrealized p/l", Value: pnl, Currency: true},
				{Label: "concentration %", Value: concentration},
			},
		})
	}

	return &provider.Payload{Kind: "PORTFOLIO HOLDINGS", Records: records}, nil
}

func (p *Provider) tradesPayload(ctx context.Context) (*provider.Payload, error) {
	trades, err := p.store.RecentTrades(ctx, recentTradeLimit)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeStoreQueryFailed, "portfolio has no trades")
	}

	records := make([]provider.Record, 0, len(trades))
	for _, t := range trades {
		records = append(records, provider.Record{
			Title:     fmt.Sprintf("%s %s", strings.ToUpper(t.Side), t.Symbol),
			Timestamp: t.ExecutedAt,
			Fields: []provider.Field{
				{Label: "quantity", Value: t.Quantity},
				{Label: "price", Value: t.PriceUSD, Currency: true},
				{Label: "fee", Value: t.FeeUSD, Currency: true},
			},
		})
	}

	return &provider.Payload{Kind: "TRADE HISTORY", Records: records}, nil
}

// taxPayload summarizes realized proceeds per symbol for the tax year
// the query names.
func (p *Provider) taxPayload(ctx context.Context, query string) (*provider.Payload, error) {
	year := p.taxYear(query)
	trades, err := p.store.TradesInYear(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeStoreQueryFailed, fmt.Sprintf("no trades recorded for %d", year))
	}

	type bucket struct {
		sells    int
		proceeds float64
		fees     float64
		last     time.Time
	}
	buckets := make(map[string]*bucket)
	order := []string{}
	for _, t := range trades {
		b, ok := buckets[t.Symbol]
		if !ok {
			b = &bucket{}
			buckets[t.Symbol] = b
			order = append(order, t.Symbol)
		}
		if t.Side == "sell" {
			b.sells++
			b.proceeds += t.Quantity * t.PriceUSD
		}
		b.fees += t.FeeUSD
		if t.ExecutedAt.After(b.last) {
			b.last = t.ExecutedAt
		}
	}

	records := make([]provider.Record, 0, len(order))
	for _, sym := range order {
		b := buckets[sym]
		records = append(records, provider.Record{
			Title:     fmt.Sprintf("%s (%d)", sym, year),
			Timestamp: b.last,
			Fields: []provider.Field{
				{Label: "sell trades", Value: b.sells},
				{Label: "gross proceeds", Value: b.proceeds, Currency: true},
				{Label: "total fees", Value: b.fees, Currency: true},
			},
		})
	}

	return &provider.Payload{Kind: "TAX SUMMARY", Records: records}, nil
}

// envelope ranks records against the query and trims to budget.
func (p *Provider) envelope(payload *provider.Payload, query string, tokenBudget int, status provider.Status, warnings []string) *provider.Envelope {
	keywords := provider.ExtractKeywords(query)

	records := make([]provider.Record, len(payload.Records))
	copy(records, payload.Records)
	for i := range records {
		records[i].Matches = provider.MatchCount(records[i].Title, keywords)
	}

	kept, tokens, dropped := provider.FitRecords(records, tokenBudget)
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped %d positions to fit token budget", dropped))
	}

	return &provider.Envelope{
		ProviderID: ProviderID,
		Status:     status,
		TokensUsed: tokens,
		Warnings:   warnings,
		Payload: &provider.Payload{
			Kind:    payload.Kind,
			Records: kept,
		},
	}
}
