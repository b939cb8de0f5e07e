package config

// Config is the root configuration.
type Config struct {
	Budget    BudgetConfig     `toml:"budget"`
	Providers []ProviderConfig `toml:"providers"`
	Market    MarketConfig     `toml:"market"`
	News      NewsConfig       `toml:"news"`
	Portfolio PortfolioConfig  `toml:"portfolio"`
	Logging   LoggingConfig    `toml:"logging"`
}

// BudgetConfig controls token allocation across providers.
type BudgetConfig struct {
	// TotalTokens is the context budget for one request.
	TotalTokens int `toml:"total_tokens"`

	// ProviderTimeoutMS bounds each provider call.
	ProviderTimeoutMS int `toml:"provider_timeout_ms"`

	// FallbackCapTokens caps the budget handed to a fallback path.
	FallbackCapTokens int `toml:"fallback_cap_tokens"`

	// MinUsableChars is the shortest rendered context worth returning.
	MinUsableChars int `toml:"min_usable_chars"`
}

// ProviderConfig declares one provider registration.
type ProviderConfig struct {
	ID        string   `toml:"id"`
	Tier      string   `toml:"tier"`
	MaxTokens int      `toml:"max_tokens"`
	Intents   []string `toml:"intents"`
}

// MarketConfig configures the market data provider.
type MarketConfig struct {
	BaseURL string   `toml:"base_url"`
	Symbols []string `toml:"symbols"`
}

// NewsConfig configures the news provider.
type NewsConfig struct {
	Feeds []FeedConfig `toml:"feeds"`
}

// FeedConfig is one news feed endpoint.
type FeedConfig struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// PortfolioConfig configures the portfolio provider.
type PortfolioConfig struct {
	DBPath string `toml:"db_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`

	// Development switches to the human-readable console encoder.
	Development bool `toml:"development"`
}
