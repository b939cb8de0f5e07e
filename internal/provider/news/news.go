// Package news provides market-news context from a set of RSS/Atom
// feeds, ranked against the query and trimmed to the token budget.
package news

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

// ProviderID is the registry id of this provider.
const ProviderID = "news"

// maxHeadlines caps how many ranked headlines enter the envelope
// before budget trimming.
const maxHeadlines = 10

// Feed identifies one news source.
type Feed struct {
	Name string
	URL  string
}

// Provider fetches headlines from all configured feeds concurrently.
type Provider struct {
	feeds  []Feed
	client *http.Client
	logger *zap.Logger

	mu       sync.RWMutex
	lastGood []Headline
	cachedAt time.Time
}

// New creates a news provider.
func New(feeds []Feed, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		feeds:  feeds,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// ID returns the provider id.
func (p *Provider) ID() string { return ProviderID }

// Fetch pulls every configured feed in parallel, keeps whatever
// succeeded, and ranks the headlines against the query. It fails only
// when every feed does.
func (p *Provider) Fetch(ctx context.Context, query string, tokenBudget int) (*provider.Envelope, error) {
	if len(p.feeds) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeSourceUnavailable, "no news feeds configured").WithProvider(ProviderID)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		headlines []Headline
		failures  int
	)

	for _, feed := range p.feeds {
		wg.Add(1)
		go func(feed Feed) {
			defer wg.Done()
			items, err := p.fetchFeed(ctx, feed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				p.logger.Warn("feed fetch failed",
					zap.String("feed", feed.Name),
					zap.Error(err))
				return
			}
			headlines = append(headlines, items...)
		}(feed)
	}
	wg.Wait()

	if len(headlines) == 0 {
		return nil, apperrors.Temporary(apperrors.CodeProviderFetchFailed,
			fmt.Sprintf("all %d news feeds failed", failures)).WithProvider(ProviderID)
	}

	p.mu.Lock()
	p.lastGood = headlines
	p.cachedAt = time.Now()
	p.mu.Unlock()

	var warnings []string
	if failures > 0 {
		warnings = append(warnings, fmt.Sprintf("%d of %d feeds unavailable", failures, len(p.feeds)))
	}

	return p.envelope(headlines, query, tokenBudget, provider.StatusLive, warnings), nil
}

// FetchFallback serves previously fetched headlines.
func (p *Provider) FetchFallback(_ context.Context, query string, tokenBudget int) (*provider.Envelope, error) {
	p.mu.RLock()
	headlines := p.lastGood
	age := time.Since(p.cachedAt)
	p.mu.RUnlock()

	if len(headlines) == 0 {
		return nil, apperrors.Permanent(apperrors.CodeProviderFallbackFailed, "no cached headlines").WithProvider(ProviderID)
	}

	warning := fmt.Sprintf("headlines are cached (age %s)", age.Round(time.Second))
	return p.envelope(headlines, query, tokenBudget, provider.StatusFallback, []string{warning}), nil
}

// fetchFeed retrieves and parses one feed, retrying transient failures
// under the source policy. Retries stay inside the allocator's
// per-provider deadline.
func (p *Provider) fetchFeed(ctx context.Context, feed Feed) ([]Headline, error) {
	var items []Headline
	err := apperrors.Do(ctx, apperrors.SourcePolicy(), func() error {
		var fetchErr error
		items, fetchErr = p.fetchOnce(ctx, feed)
		return fetchErr
	})
	return items, err
}

// fetchOnce performs a single feed request.
func (p *Provider) fetchOnce(ctx context.Context, feed Feed) ([]Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, apperrors.Permanent(apperrors.CodeSourceUnavailable, "building feed request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeSourceUnavailable, "feed unreachable", apperrors.CategoryTemporary)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Temporary(apperrors.CodeSourceUnavailable, fmt.Sprintf("feed returned %d", resp.StatusCode))
	}

	return ParseFeed(resp.Body, feed.Name)
}

// envelope ranks headlines against the query, caps the list and trims
// to the token budget.
func (p *Provider) envelope(headlines []Headline, query string, tokenBudget int, status provider.Status, warnings []string) *provider.Envelope {
	keywords := provider.ExtractKeywords(query)

	ranked := make([]Headline, len(headlines))
	copy(ranked, headlines)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri := provider.Relevance(ranked[i].Title+" "+ranked[i].Summary, keywords, ranked[i].PublishedAt)
		rj := provider.Relevance(ranked[j].Title+" "+ranked[j].Summary, keywords, ranked[j].PublishedAt)
		return ri > rj
	})
	if len(ranked) > maxHeadlines {
		ranked = ranked[:maxHeadlines]
	}

	records := make([]provider.Record, 0, len(ranked))
	for _, h := range ranked {
		records = append(records, provider.Record{
			Title:     h.Title,
			Body:      h.Summary,
			Timestamp: h.PublishedAt,
			Matches:   provider.MatchCount(h.Title+" "+h.Summary, keywords),
			Fields: []provider.Field{
				{Label: "source", Value: h.Source},
			},
		})
	}

	kept, tokens, dropped := provider.FitRecords(records, tokenBudget)
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped %d headlines to fit token budget", dropped))
	}

	return &provider.Envelope{
		ProviderID: ProviderID,
		Status:     status,
		TokensUsed: tokens,
		Warnings:   warnings,
		Payload: &provider.Payload{
			Kind:    "MARKET NEWS",
			Records: kept,
		},
	}
}
