package portfolio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "portfolio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedStore(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.UpsertHolding(ctx, Holding{
		Symbol: "BTC", Quantity: 0.5, CostBasisUSD: 21000, LastPriceUSD: 67234.12,
		UpdatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.UpsertHolding(ctx, Holding{
		Symbol: "ETH", Quantity: 4, CostBasisUSD: 9000, LastPriceUSD: 3412.55,
		UpdatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}))

	require.NoError(t, store.InsertTrade(ctx, Trade{
		ID: "t1", Symbol: "BTC", Side: "buy", Quantity: 0.5, PriceUSD: 42000, FeeUSD: 21,
		ExecutedAt: time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.InsertTrade(ctx, Trade{
		ID: "t2", Symbol: "ETH", Side: "sell", Quantity: 1, PriceUSD: 3500, FeeUSD: 3.5,
		ExecutedAt: time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC),
	}))
	require.NoError(t, store.InsertTrade(ctx, Trade{
		ID: "t3", Symbol: "ETH", Side: "buy", Quantity: 2, PriceUSD: 3100, FeeUSD: 6.2,
		ExecutedAt: time.Date(2026, 5, 1, 16, 0, 0, 0, time.UTC),
	}))
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	store := openTestStore(t)
	seedStore(t, store)
	p := New(store, zap.NewNop())
	p.now = func() time.Time { return time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)
	ctx := context.Background()

	holdings, err := store.Holdings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	// Ordered by market value, largest first.
	assert.Equal(t, "BTC", holdings[0].Symbol)

	trades, err := store.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "t3", trades[0].ID)

	inYear, err := store.TradesInYear(ctx, 2026)
	require.NoError(t, err)
	require.Len(t, inYear, 2)
	assert.Equal(t, "t2", inYear[0].ID)
}

func TestUpsertHoldingReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertHolding(ctx, Holding{Symbol: "BTC", Quantity: 1, LastPriceUSD: 60000, UpdatedAt: time.Now()}))
	require.NoError(t, store.UpsertHolding(ctx, Holding{Symbol: "BTC", Quantity: 2, LastPriceUSD: 61000, UpdatedAt: time.Now()}))

	holdings, err := store.Holdings(ctx)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, 2.0, holdings[0].Quantity)
}

func TestFetchHoldingsView(t *testing.T) {
	p := newTestProvider(t)

	env, err := p.Fetch(context.Background(), "How is my portfolio doing?", 2000)

	require.NoError(t, err)
	assert.Equal(t, provider.StatusLive, env.Status)

	payload := env.Payload.(*provider.Payload)
	assert.Equal(t, "PORTFOLIO HOLDINGS", payload.Kind)
	require.Len(t, payload.Records, 2)
	assert.Equal(t, "BTC", payload.Records[0].Title)

	fields := payload.Records[0].Fields
	assert.Equal(t, "market value", fields[1].Label)
	assert.True(t, fields[1].Currency)
	assert.InDelta(t, 33617.06, fields[1].Value.(float64), 0.01)
}

func TestFetchTradesView(t *testing.T) {
	p := newTestProvider(t)

	env, err := p.Fetch(context.Background(), "Show my recent trades", 2000)

	require.NoError(t, err)
	payload := env.Payload.(*provider.Payload)
	assert.Equal(t, "TRADE HISTORY", payload.Kind)
	require.Len(t, payload.Records, 3)
	assert.Equal(t, "BUY ETH", payload.Records[0].Title)
}

func TestFetchTaxViewDefaultsToCurrentYear(t *testing.T) {
	p := newTestProvider(t)

	env, err := p.Fetch(context.Background(), "What do I owe in taxes on my crypto?", 2000)

	require.NoError(t, err)
	payload := env.Payload.(*provider.Payload)
	assert.Equal(t, "TAX SUMMARY", payload.Kind)
	require.Len(t, payload.Records, 1)
	assert.Equal(t, "ETH (2026)", payload.Records[0].Title)

	fields := payload.Records[0].Fields
	assert.Equal(t, 1, fields[0].Value)
	assert.InDelta(t, 3500.0, fields[1].Value.(float64), 0.01)
}

func TestFetchTaxViewHonorsExplicitYear(t *testing.T) {
	p := newTestProvider(t)

	env, err := p.Fetch(context.Background(), "tax report for 2025", 2000)

	require.NoError(t, err)
	payload := env.Payload.(*provider.Payload)
	require.Len(t, payload.Records, 1)
	assert.Equal(t, "BTC (2025)", payload.Records[0].Title)
}

func TestFetchEmptyPortfolioFails(t *testing.T) {
	store := openTestStore(t)
	p := New(store, zap.NewNop())

	env, err := p.Fetch(context.Background(), "my portfolio", 2000)

	require.Error(t, err)
	assert.Nil(t, env)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderFetchFailed, appErr.Code)
}

func TestFallbackServesLastView(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.Fetch(context.Background(), "my portfolio", 2000)
	require.NoError(t, err)

	env, err := p.FetchFallback(context.Background(), "my portfolio", 2000)

	require.NoError(t, err)
	assert.Equal(t, provider.StatusFallback, env.Status)
	payload := env.Payload.(*provider.Payload)
	assert.Equal(t, "PORTFOLIO HOLDINGS", payload.Kind)
	require.NotEmpty(t, env.Warnings)
	assert.Contains(t, env.Warnings[0], "cached")
}

func TestFallbackWithoutSnapshotFails(t *testing.T) {
	p := New(openTestStore(t), zap.NewNop())

	_, err := p.FetchFallback(context.Background(), "my portfolio", 2000)

	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderFallbackFailed, appErr.Code)
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, modeTax, modeFor("capital gains this year"))
	assert.Equal(t, modeTrades, modeFor("what did I buy? show transactions"))
	assert.Equal(t, modeHoldings, modeFor("how risky is my portfolio"))
}
