package market

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

func testQuotes() []Quote {
	return []Quote{
		{Symbol: "BTC", PriceUSD: 67234.12, Change24h: -2.31, Volume24h: 28123456789, UpdatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)},
		{Symbol: "ETH", PriceUSD: 3412.55, Change24h: 1.04, Volume24h: 9876543210, UpdatedAt: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)},
	}
}

func newTestServer(t *testing.T, quotes []Quote, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(quotes))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetchLiveQuotes(t *testing.T) {
	srv, _ := newTestServer(t, testQuotes(), http.StatusOK)
	p := New(srv.URL, []string{"BTC", "ETH"}, zap.NewNop())

	env, err := p.Fetch(context.Background(), "What is the price of Bitcoin?", 2000)

	require.NoError(t, err)
	assert.Equal(t, provider.StatusLive, env.Status)
	assert.Greater(t, env.TokensUsed, 0)

	payload, ok := env.Payload.(*provider.Payload)
	require.True(t, ok)
	assert.Equal(t, "MARKET DATA", payload.Kind)
	require.NotEmpty(t, payload.Records)
	assert.Equal(t, "BTC / USD", payload.Records[0].Title)
}

func TestFetchFiltersSymbolsByQuery(t *testing.T) {
	srv, _ := newTestServer(t, testQuotes(), http.StatusOK)
	p := New(srv.URL, []string{"BTC", "ETH"}, zap.NewNop())

	_, err := p.Fetch(context.Background(), "ethereum outlook", 2000)
	require.NoError(t, err)

	// The request URL carries only the symbols the query names.
	symbols := p.symbolsFor(provider.ExtractKeywords("ethereum outlook"))
	assert.Equal(t, []string{"ETH"}, symbols)
}

func TestFetchSourceErrorIsTyped(t *testing.T) {
	srv, _ := newTestServer(t, nil, http.StatusInternalServerError)
	p := New(srv.URL, []string{"BTC"}, zap.NewNop())

	env, err := p.Fetch(context.Background(), "btc price", 2000)

	require.Error(t, err)
	assert.Nil(t, env)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderFetchFailed, appErr.Code)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestFallbackWithoutSnapshotFails(t *testing.T) {
	p := New("http://127.0.0.1:0", []string{"BTC"}, zap.NewNop())

	env, err := p.FetchFallback(context.Background(), "btc price", 2000)

	require.Error(t, err)
	assert.Nil(t, env)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeProviderFallbackFailed, appErr.Code)
}

func TestFallbackServesLastKnownGood(t *testing.T) {
	srv, _ := newTestServer(t, testQuotes(), http.StatusOK)
	p := New(srv.URL, []string{"BTC", "ETH"}, zap.NewNop())

	_, err := p.Fetch(context.Background(), "btc price", 2000)
	require.NoError(t, err)

	env, err := p.FetchFallback(context.Background(), "btc price", 2000)

	require.NoError(t, err)
	assert.Equal(t, provider.StatusFallback, env.Status)
	require.NotEmpty(t, env.Warnings)
	assert.True(t, strings.Contains(env.Warnings[0], "cached"))
}

func TestFetchTrimsToBudget(t *testing.T) {
	srv, _ := newTestServer(t, testQuotes(), http.StatusOK)
	p := New(srv.URL, []string{"BTC", "ETH"}, zap.NewNop())

	// Budget fits roughly one record.
	env, err := p.Fetch(context.Background(), "crypto market", 25)

	require.NoError(t, err)
	payload := env.Payload.(*provider.Payload)
	assert.Less(t, len(payload.Records), 2)
	assert.LessOrEqual(t, env.TokensUsed, 25)
	require.NotEmpty(t, env.Warnings)
	assert.Contains(t, env.Warnings[0], "dropped")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv, hits := newTestServer(t, nil, http.StatusInternalServerError)
	p := New(srv.URL, []string{"BTC"}, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := p.Fetch(context.Background(), "btc price", 2000)
		require.Error(t, err)
	}
	// Each failed fetch makes two attempts under the source policy.
	require.Equal(t, int64(10), hits.Load())
	assert.Equal(t, apperrors.StateOpen, p.breaker.State())

	// Breaker is open: the source is no longer hit.
	_, err := p.Fetch(context.Background(), "btc price", 2000)
	require.Error(t, err)
	assert.Equal(t, int64(10), hits.Load())
	assert.Contains(t, err.Error(), "circuit breaker")
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(testQuotes())
	}))
	t.Cleanup(srv.Close)

	p := New(srv.URL, []string{"BTC", "ETH"}, zap.NewNop())

	env, err := p.Fetch(context.Background(), "btc price", 2000)

	require.NoError(t, err)
	assert.Equal(t, provider.StatusLive, env.Status)
	assert.Equal(t, int64(2), hits.Load())
	assert.Equal(t, apperrors.StateClosed, p.breaker.State())
}

func TestSymbolsForDefaultsToTracked(t *testing.T) {
	p := New("http://example.invalid", []string{"BTC", "ETH", "SOL"}, zap.NewNop())

	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, p.symbolsFor(nil))
	assert.Equal(t, []string{"BTC"}, p.symbolsFor([]string{"bitcoin", "btc"}))
}
