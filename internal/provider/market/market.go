// Package market provides live market data context from a REST price
// source, with a last-known-good snapshot as the degraded path.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

// ProviderID is the registry id of this provider.
const ProviderID = "market"

// Quote is one symbol's market snapshot as served by the price source.
type Quote struct {
	Symbol    string    `json:"symbol"`
	PriceUSD  float64   `json:"price_usd"`
	Change24h float64   `json:"change_24h"`
	Volume24h float64   `json:"volume_24h"`
	UpdatedAt time.Time `json:"updated_at"`
}

// symbolAliases maps query words to tracked symbols.
var symbolAliases = map[string]string{
	"bitcoin":  "BTC",
	"btc":      "BTC",
	"ethereum": "ETH",
	"eth":      "ETH",
	"ether":    "ETH",
	"solana":   "SOL",
	"sol":      "SOL",
	"cardano":  "ADA",
	"ada":      "ADA",
	"ripple":   "XRP",
	"xrp":      "XRP",
	"dogecoin": "DOGE",
	"doge":     "DOGE",
}

// Provider fetches quotes from the configured price endpoint.
type Provider struct {
	baseURL string
	symbols []string
	client  *http.Client
	breaker *apperrors.CircuitBreaker
	logger  *zap.Logger

	mu       sync.RWMutex
	lastGood []Quote
	cachedAt time.Time
}

// New creates a market provider. symbols lists the tracked symbols used
// when the query names none.
func New(baseURL string, symbols []string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		symbols: symbols,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: apperrors.NewCircuitBreaker(ProviderID, nil),
		logger:  logger,
	}
}

// ID returns the provider id.
func (p *Provider) ID() string { return ProviderID }

// Fetch retrieves live quotes for the symbols the query names (all
// tracked symbols when it names none), trimmed to the token budget.
func (p *Provider) Fetch(ctx context.Context, query string, tokenBudget int) (*provider.Envelope, error) {
	keywords := provider.ExtractKeywords(query)
	symbols := p.symbolsFor(keywords)

	var quotes []Quote
	err := p.breaker.Execute(func() error {
		return apperrors.Do(ctx, apperrors.SourcePolicy(), func() error {
			var fetchErr error
			quotes, fetchErr = p.fetchQuotes(ctx, symbols)
			return fetchErr
		})
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderFetchFailed, "market fetch failed", apperrors.GetCategory(err)).WithProvider(ProviderID)
	}

	p.mu.Lock()
	p.lastGood = quotes
	p.cachedAt = time.Now()
	p.mu.Unlock()

	return p.envelope(quotes, keywords, symbols, tokenBudget, provider.StatusLive, nil), nil
}

// FetchFallback serves the last-known-good snapshot. Without one there
// is nothing useful to degrade to and the call fails typed.
func (p *Provider) FetchFallback(_ context.Context, query string, tokenBudget int) (*provider.Envelope, error) {
	p.mu.RLock()
	quotes := p.lastGood
	age := time.Since(p.cachedAt)
	p.mu.RUnlock()

	if len(quotes) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeProviderFallbackFailed, "no cached market snapshot").WithProvider(ProviderID)
	}

	keywords := provider.ExtractKeywords(query)
	symbols := p.symbolsFor(keywords)
	warning := fmt.Sprintf("market data is cached (age %s)", age.Round(time.Second))

	return p.envelope(quotes, keywords, symbols, tokenBudget, provider.StatusFallback, []string{warning}), nil
}

// symbolsFor maps query keywords to tracked symbols, defaulting to all
// tracked symbols when no keyword names one.
func (p *Provider) symbolsFor(keywords []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		if sym, ok := symbolAliases[kw]; ok && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	if len(out) == 0 {
		return p.symbols
	}
	return out
}

// fetchQuotes calls the price endpoint.
func (p *Provider) fetchQuotes(ctx context.Context, symbols []string) ([]Quote, error) {
	url := fmt.Sprintf("%s/v1/prices?symbols=%s", p.baseURL, strings.Join(symbols, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Permanent(apperrors.CodeSourceUnavailable, "building price request").WithProvider(ProviderID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSourceUnavailable, "price source unreachable", apperrors.CategoryTemporary)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Temporary(apperrors.CodeSourceUnavailable, fmt.Sprintf("price source returned %d", resp.StatusCode))
	}

	var quotes []Quote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSourceParseError, "decoding price response", apperrors.CategoryPermanent)
	}
	if len(quotes) == 0 {
		return nil, apperrors.Temporary(apperrors.CodeSourceUnavailable, "price source returned no quotes")
	}

	return quotes, nil
}

// envelope builds the provider envelope, trimming records to budget.
func (p *Provider) envelope(quotes []Quote, keywords []string, requested []string, tokenBudget int, status provider.Status, warnings []string) *provider.Envelope {
	wanted := make(map[string]bool, len(requested))
	for _, s := range requested {
		wanted[s] = true
	}

	records := make([]provider.Record, 0, len(quotes))
	for _, q := range quotes {
		matches := provider.MatchCount(q.Symbol, keywords)
		if wanted[q.Symbol] {
			matches++
		}
		records = append(records, provider.Record{
			Title:     q.Symbol + " / USD",
			Timestamp: q.UpdatedAt,
			Matches:   matches,
			Fields: []provider.Field{
				{Label: "price", Value: q.PriceUSD, Currency: true},
				{Label: "24h change %", Value: q.Change24h},
				{Label: "24h volume", Value: q.Volume24h, Currency: true},
			},
		})
	}

	kept, tokens, dropped := provider.FitRecords(records, tokenBudget)
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped %d quotes to fit token budget", dropped))
	}

	return &provider.Envelope{
		ProviderID: ProviderID,
		Status:     status,
		TokensUsed: tokens,
		Warnings:   warnings,
		Payload: &provider.Payload{
			Kind:    "MARKET DATA",
			Records: kept,
		},
	}
}
