// Package budget sequences provider calls and apportions the token
// budget across them.
//
// The allocation loop is strictly sequential in priority order: each
// provider's share is a fraction of the budget *remaining* when its turn
// comes, so accounting stays deterministic. The scheme is greedy and can
// starve low-priority providers when an earlier provider overruns its
// token estimate; that behavior is inherited policy and kept as is.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/mogascan/portfolio-risk-tracker-sub000/internal/errors"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/registry"
)

const (
	// DefaultTimeout bounds each fetch and each fallback call.
	DefaultTimeout = 3 * time.Second

	// DefaultFallbackCap caps the budget handed to a fallback call.
	DefaultFallbackCap = 500
)

// tierShares maps a tier to the fraction of the remaining budget its
// providers may claim.
var tierShares = map[registry.Tier]float64{
	registry.TierCritical: 0.50,
	registry.TierHigh:     0.30,
	registry.TierMedium:   0.15,
	registry.TierLow:      0.05,
}

// Share returns the remaining-budget fraction for a tier.
func Share(t registry.Tier) float64 {
	if s, ok := tierShares[t]; ok {
		return s
	}
	return 0.05
}

// AllocationFor computes the token allocation for one provider given the
// remaining budget: min(provider cap, remaining * tier share), with
// fractional tokens truncated.
func AllocationFor(maxTokens, remaining int, tier registry.Tier) int {
	alloc := int(float64(remaining) * Share(tier))
	if maxTokens < alloc {
		alloc = maxTokens
	}
	if alloc < 0 {
		alloc = 0
	}
	return alloc
}

// Allocator runs providers in order and accounts for the token budget.
type Allocator struct {
	// Timeout bounds each fetch and each fallback call. A timed-out
	// call is abandoned and treated as a failure.
	Timeout time.Duration

	// FallbackCap caps fallback allocations.
	FallbackCap int

	logger *zap.Logger
}

// New creates an allocator with default timeouts.
func New(logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{
		Timeout:     DefaultTimeout,
		FallbackCap: DefaultFallbackCap,
		logger:      logger,
	}
}

// Allocate runs the ordered providers against the total budget and
// returns the per-request bundle. Every attempted provider contributes
// exactly one envelope; providers reached after the budget is exhausted
// are recorded as skipped and never invoked.
func (a *Allocator) Allocate(ctx context.Context, providers []*registry.Descriptor, totalBudget int, query string) *provider.Bundle {
	start := time.Now()

	bundle := &provider.Bundle{
		RequestID:   uuid.NewString(),
		TokenBudget: totalBudget,
		Envelopes:   make(map[string]*provider.Envelope, len(providers)),
	}

	remaining := totalBudget
	for _, desc := range providers {
		if remaining <= 0 {
			bundle.Skipped = append(bundle.Skipped, desc.ID)
			a.logger.Debug("budget exhausted, skipping provider",
				zap.String("request_id", bundle.RequestID),
				zap.String("provider", desc.ID))
			continue
		}

		allocation := AllocationFor(desc.MaxTokens, remaining, desc.Tier)
		env := a.invoke(ctx, desc, query, allocation, bundle.RequestID)

		if existing, ok := bundle.Envelopes[env.ProviderID]; ok {
			// Higher-priority providers run earlier, so the envelope
			// already present wins.
			a.logger.Warn("envelope id collision, keeping higher-priority result",
				zap.String("request_id", bundle.RequestID),
				zap.String("provider", env.ProviderID),
				zap.String("kept_status", string(existing.Status)))
			continue
		}

		bundle.Envelopes[env.ProviderID] = env
		bundle.Order = append(bundle.Order, env.ProviderID)
		bundle.TotalTokensUsed += env.TokensUsed

		remaining -= env.TokensUsed
		if remaining < 0 {
			remaining = 0
		}
	}

	bundle.Elapsed = time.Since(start)
	return bundle
}

// invoke runs one provider's fetch, falling back on error or timeout,
// and never returns nil: both paths failing yields an EMPTY envelope
// carrying both failure messages.
func (a *Allocator) invoke(ctx context.Context, desc *registry.Descriptor, query string, allocation int, requestID string) *provider.Envelope {
	env, fetchErr := apperrors.WithTimeoutResult(ctx, a.Timeout, func(callCtx context.Context) (*provider.Envelope, error) {
		return desc.Provider.Fetch(callCtx, query, allocation)
	})
	if fetchErr == nil && env != nil {
		env.ProviderID = desc.ID
		return env
	}
	if fetchErr == nil {
		fetchErr = apperrors.Permanent(apperrors.CodeProviderFetchFailed, "provider returned no envelope").WithProvider(desc.ID)
	}

	a.logger.Warn("provider fetch failed, trying fallback",
		zap.String("request_id", requestID),
		zap.String("provider", desc.ID),
		zap.Bool("timeout", apperrors.IsTimeout(fetchErr)),
		zap.Error(fetchErr))

	fallbackBudget := allocation
	if a.FallbackCap < fallbackBudget {
		fallbackBudget = a.FallbackCap
	}

	env, fallbackErr := apperrors.WithTimeoutResult(ctx, a.Timeout, func(callCtx context.Context) (*provider.Envelope, error) {
		return desc.Provider.FetchFallback(callCtx, query, fallbackBudget)
	})
	if fallbackErr == nil && env != nil {
		env.ProviderID = desc.ID
		if env.Status == "" || env.Status == provider.StatusLive {
			env.Status = provider.StatusFallback
		}
		return env
	}
	if fallbackErr == nil {
		fallbackErr = apperrors.Permanent(apperrors.CodeProviderFallbackFailed, "fallback returned no envelope").WithProvider(desc.ID)
	}

	a.logger.Warn("provider fallback also failed",
		zap.String("request_id", requestID),
		zap.String("provider", desc.ID),
		zap.Error(fallbackErr))

	return provider.Empty(desc.ID,
		fmt.Sprintf("fetch failed: %v", fetchErr),
		fmt.Sprintf("fallback failed: %v", fallbackErr))
}
