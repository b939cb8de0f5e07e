// riskctx prepares grounded context bundles for portfolio questions.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/budget"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/config"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/intent"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/orchestrator"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider/market"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider/news"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider/portfolio"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/registry"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/stats"
)

var (
	// Global flags
	configPath string
	verbose    bool
	tokenFlag  int

	// Logger
	logger *zap.Logger
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	refuseStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "riskctx",
	Short: "riskctx - grounded context preparation for portfolio questions",
	Long: `riskctx classifies a portfolio question, selects the data providers
that can answer it, allocates a token budget across them by tier, and
renders a deterministic context block ready to prepend to an LLM prompt.

When the critical data for a question cannot be fetched, riskctx refuses
instead of returning a context the model would have to guess around.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg = zap.NewDevelopmentConfig()
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// askCmd builds and prints the context bundle for one query
var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Build the context bundle for a query",
	Long: `Runs the full pipeline for one query: classify intent, select
providers, allocate the token budget and render the context block.

Example:
  riskctx ask "What is the price of Bitcoin?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// classifyCmd shows the intent classification for a query
var classifyCmd = &cobra.Command{
	Use:   "classify [query]",
	Short: "Classify a query without fetching any data",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

// providersCmd lists the registered providers per intent
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their tiers",
	RunE:  runProviders,
}

// initCmd writes a default config file
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runInit,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	askCmd.Flags().IntVar(&tokenFlag, "tokens", 0, "override the total token budget")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildOrchestrator wires the registry, providers and allocator from
// the loaded config. The registry and collector are returned alongside
// so commands can inspect them; cleanup closes the portfolio store.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, *registry.Registry, *stats.Collector, func(), error) {
	log := logger
	if log == nil {
		log = zap.NewNop()
	}

	reg := registry.New(log)
	cleanup := func() {}

	for _, pc := range cfg.Providers {
		tier, err := registry.ParseTier(pc.Tier)
		if err != nil {
			return nil, nil, nil, cleanup, err
		}

		switch pc.ID {
		case market.ProviderID:
			p := market.New(cfg.Market.BaseURL, cfg.Market.Symbols, log)
			reg.Register(pc.ID, p, pc.IntentLabels(), tier, pc.MaxTokens)

		case news.ProviderID:
			feeds := make([]news.Feed, 0, len(cfg.News.Feeds))
			for _, f := range cfg.News.Feeds {
				feeds = append(feeds, news.Feed{Name: f.Name, URL: f.URL})
			}
			p := news.New(feeds, log)
			reg.Register(pc.ID, p, pc.IntentLabels(), tier, pc.MaxTokens)

		case portfolio.ProviderID:
			store, err := portfolio.Open(cfg.Portfolio.DBPath)
			if err != nil {
				return nil, nil, nil, cleanup, err
			}
			cleanup = func() { _ = store.Close() }
			p := portfolio.New(store, log)
			reg.Register(pc.ID, p, pc.IntentLabels(), tier, pc.MaxTokens)

		default:
			log.Warn("unknown provider id in config, skipping", zap.String("id", pc.ID))
		}
	}

	alloc := budget.New(log)
	alloc.Timeout = time.Duration(cfg.Budget.ProviderTimeoutMS) * time.Millisecond
	alloc.FallbackCap = cfg.Budget.FallbackCapTokens

	collector := stats.NewCollector()
	o := orchestrator.New(reg, alloc, collector, log)
	if cfg.Budget.MinUsableChars > 0 {
		o.MinUsableChars = cfg.Budget.MinUsableChars
	}
	return o, reg, collector, cleanup, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	totalBudget := cfg.Budget.TotalTokens
	if tokenFlag > 0 {
		totalBudget = tokenFlag
	}

	o, _, _, cleanup, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	bundle, err := o.BuildContext(context.Background(), query, totalBudget)
	if err != nil {
		var insufficient *orchestrator.InsufficientContextError
		if errors.As(err, &insufficient) {
			fmt.Println(refuseStyle.Render("insufficient context"))
			if len(insufficient.MissingCritical) > 0 {
				fmt.Println(dimStyle.Render(fmt.Sprintf("  missing critical providers: %v", insufficient.MissingCritical)))
			} else {
				fmt.Println(dimStyle.Render(fmt.Sprintf("  rendered only %d characters", insufficient.RenderedLength)))
			}
			fmt.Println(dimStyle.Render("  answer the user with \"insufficient information\" instead of guessing"))
			os.Exit(2)
		}
		return err
	}

	fmt.Println(o.Render(bundle))

	fmt.Println(headerStyle.Render("bundle"))
	fmt.Printf("  %s %s\n", dimStyle.Render("request:"), bundle.RequestID)
	fmt.Printf("  %s %s\n", dimStyle.Render("intent:"), bundle.Intent)
	fmt.Printf("  %s %d / %d\n", dimStyle.Render("tokens:"), bundle.TotalTokensUsed, bundle.TokenBudget)
	fmt.Printf("  %s %s\n", dimStyle.Render("elapsed:"), bundle.Elapsed.Round(time.Millisecond))

	for _, id := range bundle.Order {
		env := bundle.Envelopes[id]
		if env == nil {
			continue
		}
		line := fmt.Sprintf("  %s: %s (%d tokens)", id, env.Status, env.TokensUsed)
		switch {
		case len(env.Warnings) > 0:
			fmt.Println(warnStyle.Render(line))
			for _, w := range env.Warnings {
				fmt.Println(dimStyle.Render("    " + w))
			}
		default:
			fmt.Println(successStyle.Render(line))
		}
	}
	for _, id := range bundle.Skipped {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %s: skipped (budget exhausted)", id)))
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	res := intent.Classify(args[0])
	fmt.Printf("%s %s\n", headerStyle.Render("intent:"), res.Label)
	fmt.Printf("%s %.2f\n", headerStyle.Render("confidence:"), res.Confidence)
	return nil
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	_, reg, collector, cleanup, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println(headerStyle.Render("providers"))
	snap := collector.Snapshot()
	for _, desc := range reg.All() {
		fmt.Printf("  %s  %s  max %d tokens\n", desc.ID, desc.Tier, desc.MaxTokens)
		fmt.Println(dimStyle.Render(fmt.Sprintf("    intents: %v", desc.Intents)))
		ps := snap.Providers[desc.ID]
		fmt.Println(dimStyle.Render(fmt.Sprintf("    live %d  fallback %d  empty %d  skipped %d  tokens %d",
			ps.Live, ps.Fallback, ps.Empty, ps.Skipped, ps.Tokens)))
	}

	fmt.Println(headerStyle.Render("totals"))
	fmt.Printf("  requests %d  refusals %d  tokens %d\n", snap.Requests, snap.Refusals, snap.TotalTokens)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}
	if err := config.Default().Save(configPath); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("wrote " + configPath))
	return nil
}
