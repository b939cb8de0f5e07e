// Package config handles riskctx configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/intent"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/registry"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".riskctx")

	return &Config{
		Budget: BudgetConfig{
			TotalTokens:       4000,
			ProviderTimeoutMS: 3000,
			FallbackCapTokens: 500,
			MinUsableChars:    50,
		},
		Providers: []ProviderConfig{
			{
				ID:        "market",
				Tier:      "CRITICAL",
				MaxTokens: 2000,
				Intents: []string{
					string(intent.MarketPrice),
					string(intent.MarketAnalysis),
					string(intent.RiskAssessment),
				},
			},
			{
				ID:        "portfolio",
				Tier:      "HIGH",
				MaxTokens: 1600,
				Intents: []string{
					string(intent.PortfolioAnalysis),
					string(intent.RiskAssessment),
					string(intent.TradeHistory),
					string(intent.TaxAnalysis),
				},
			},
			{
				ID:        "news",
				Tier:      "MEDIUM",
				MaxTokens: 1200,
				Intents: []string{
					string(intent.NewsQuery),
					string(intent.MarketAnalysis),
					string(intent.GeneralQuery),
				},
			},
		},
		Market: MarketConfig{
			BaseURL: "http://localhost:8780",
			Symbols: []string{"BTC", "ETH", "SOL"},
		},
		News: NewsConfig{
			Feeds: []FeedConfig{
				{Name: "coindesk", URL: "https://www.coindesk.com/arc/outboundfeeds/rss/"},
				{Name: "cointelegraph", URL: "https://cointelegraph.com/rss"},
			},
		},
		Portfolio: PortfolioConfig{
			DBPath: filepath.Join(dataDir, "portfolio.db"),
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, apperrors.Wrap(err, apperrors.CodeConfigNotFound, "reading config file", apperrors.CategorySystem)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "parsing config file", apperrors.CategoryPermanent)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "creating config directory", apperrors.CategorySystem)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "creating config file", apperrors.CategorySystem)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".riskctx", "config.toml")
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Budget.TotalTokens <= 0 {
		return apperrors.Permanent(apperrors.CodeConfigInvalid, "budget.total_tokens must be positive")
	}
	if c.Budget.ProviderTimeoutMS <= 0 {
		return apperrors.Permanent(apperrors.CodeConfigInvalid, "budget.provider_timeout_ms must be positive")
	}
	if c.Budget.FallbackCapTokens < 0 {
		return apperrors.Permanent(apperrors.CodeConfigInvalid, "budget.fallback_cap_tokens must not be negative")
	}

	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if p.ID == "" {
			return apperrors.Permanent(apperrors.CodeConfigInvalid, "provider id must not be empty")
		}
		if seen[p.ID] {
			return apperrors.Permanent(apperrors.CodeConfigInvalid, fmt.Sprintf("duplicate provider id %q", p.ID))
		}
		seen[p.ID] = true

		if _, err := registry.ParseTier(p.Tier); err != nil {
			return apperrors.Permanent(apperrors.CodeConfigInvalid, fmt.Sprintf("provider %q: %v", p.ID, err))
		}
		if p.MaxTokens <= 0 {
			return apperrors.Permanent(apperrors.CodeConfigInvalid, fmt.Sprintf("provider %q: max_tokens must be positive", p.ID))
		}
		for _, label := range p.Intents {
			if !intent.Valid(strings.ToUpper(label)) {
				return apperrors.Permanent(apperrors.CodeConfigInvalid, fmt.Sprintf("provider %q: unknown intent %q", p.ID, label))
			}
		}
	}

	for _, f := range c.News.Feeds {
		if f.Name == "" || f.URL == "" {
			return apperrors.Permanent(apperrors.CodeConfigInvalid, "news feeds need both name and url")
		}
	}

	return nil
}

// Provider returns the configuration block for one provider id.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// IntentLabels converts a provider's intent strings to labels.
func (p ProviderConfig) IntentLabels() []intent.Label {
	labels := make([]intent.Label, 0, len(p.Intents))
	for _, s := range p.Intents {
		labels = append(labels, intent.Label(strings.ToUpper(s)))
	}
	return labels
}
