package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/intent"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4000, cfg.Budget.TotalTokens)
	assert.Equal(t, 500, cfg.Budget.FallbackCapTokens)
	assert.Len(t, cfg.Providers, 3)

	market, ok := cfg.Provider("market")
	require.True(t, ok)
	assert.Equal(t, "CRITICAL", market.Tier)
	assert.Equal(t, 2000, market.MaxTokens)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Budget, cfg.Budget)
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Budget.TotalTokens = 1000
	cfg.Market.Symbols = []string{"BTC"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1000, loaded.Budget.TotalTokens)
	assert.Equal(t, []string{"BTC"}, loaded.Market.Symbols)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[budget]
total_tokens = 2500
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2500, cfg.Budget.TotalTokens)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3000, cfg.Budget.ProviderTimeoutMS)
	assert.Len(t, cfg.Providers, 3)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConfigInvalid, appErr.Code)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero budget", func(c *Config) { c.Budget.TotalTokens = 0 }},
		{"zero timeout", func(c *Config) { c.Budget.ProviderTimeoutMS = 0 }},
		{"negative fallback cap", func(c *Config) { c.Budget.FallbackCapTokens = -1 }},
		{"empty provider id", func(c *Config) { c.Providers[0].ID = "" }},
		{"duplicate provider id", func(c *Config) { c.Providers[1].ID = c.Providers[0].ID }},
		{"bad tier", func(c *Config) { c.Providers[0].Tier = "EXTREME" }},
		{"zero max tokens", func(c *Config) { c.Providers[0].MaxTokens = 0 }},
		{"unknown intent", func(c *Config) { c.Providers[0].Intents = []string{"WEATHER"} }},
		{"feed missing url", func(c *Config) { c.News.Feeds[0].URL = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.CodeConfigInvalid, appErr.Code)
		})
	}
}

func TestIntentLabels(t *testing.T) {
	p := ProviderConfig{Intents: []string{"market_price", "NEWS_QUERY"}}
	assert.Equal(t, []intent.Label{intent.MarketPrice, intent.NewsQuery}, p.IntentLabels())
}
