// Package orchestrator is the top-level entry point of the context
// subsystem: it classifies the query, selects providers, runs the
// budget allocator and refuses outright when the result is not worth
// sending to a language model.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/budget"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/format"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/intent"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/registry"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/stats"
)

// DefaultMinUsableChars is the minimum rendered length below which a
// bundle is considered unusable.
const DefaultMinUsableChars = 50

// InsufficientContextError signals that the bundle must not be
// forwarded to the LLM: a critical source is missing or the rendered
// text is too short to ground a useful answer. The partial bundle is
// attached for diagnostics.
type InsufficientContextError struct {
	Bundle          *provider.Bundle
	MissingCritical []string
	RenderedLength  int
}

// Error implements the error interface.
func (e *InsufficientContextError) Error() string {
	if len(e.MissingCritical) > 0 {
		return fmt.Sprintf("insufficient context: missing critical providers [%s]",
			strings.Join(e.MissingCritical, ", "))
	}
	return fmt.Sprintf("insufficient context: rendered text too short (%d chars)", e.RenderedLength)
}

// Orchestrator wires the classifier, registry and allocator together.
type Orchestrator struct {
	registry  *registry.Registry
	allocator *budget.Allocator
	collector *stats.Collector
	logger    *zap.Logger

	// MinUsableChars is the shortest rendered text the orchestrator
	// will hand back as usable.
	MinUsableChars int
}

// New creates an orchestrator. collector may be nil.
func New(reg *registry.Registry, alloc *budget.Allocator, collector *stats.Collector, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry:       reg,
		allocator:      alloc,
		collector:      collector,
		logger:         logger,
		MinUsableChars: DefaultMinUsableChars,
	}
}

// BuildContext prepares the context bundle for one query. On success the
// returned bundle renders to usable text; otherwise the error is an
// *InsufficientContextError carrying the partial bundle, and the caller
// must answer "insufficient information" instead of calling the LLM.
func (o *Orchestrator) BuildContext(ctx context.Context, query string, totalBudget int) (*provider.Bundle, error) {
	start := time.Now()

	res := intent.Classify(query)
	providers := o.registry.ProvidersFor(res.Label)

	o.logger.Debug("query classified",
		zap.String("intent", string(res.Label)),
		zap.Float64("confidence", res.Confidence),
		zap.Int("providers", len(providers)))

	bundle := o.allocator.Allocate(ctx, providers, totalBudget, query)
	bundle.Intent = res.Label
	bundle.MissingCritical = missingCritical(providers, bundle)
	bundle.Elapsed = time.Since(start)

	if o.collector != nil {
		o.collector.RecordBundle(bundle)
	}

	rendered := format.Render(bundle)

	if len(bundle.MissingCritical) > 0 || len(rendered) < o.MinUsableChars {
		if o.collector != nil {
			o.collector.RecordRefusal()
		}
		o.logger.Warn("refusing to build usable context",
			zap.String("request_id", bundle.RequestID),
			zap.String("intent", string(res.Label)),
			zap.Strings("missing_critical", bundle.MissingCritical),
			zap.Int("rendered_chars", len(rendered)))
		return nil, &InsufficientContextError{
			Bundle:          bundle,
			MissingCritical: bundle.MissingCritical,
			RenderedLength:  len(rendered),
		}
	}

	o.logger.Info("context bundle ready",
		zap.String("request_id", bundle.RequestID),
		zap.String("intent", string(res.Label)),
		zap.Int("tokens_used", bundle.TotalTokensUsed),
		zap.Int("token_budget", bundle.TokenBudget),
		zap.Duration("elapsed", bundle.Elapsed))

	return bundle, nil
}

// Render renders a bundle; re-exported so callers depend on the
// orchestrator package alone.
func (o *Orchestrator) Render(bundle *provider.Bundle) string {
	return format.Render(bundle)
}

// missingCritical collects CRITICAL-tier providers that produced no
// usable data: an EMPTY envelope after both fetch paths, or never
// attempted because the budget ran out first.
func missingCritical(providers []*registry.Descriptor, bundle *provider.Bundle) []string {
	var missing []string
	for _, desc := range providers {
		if desc.Tier != registry.TierCritical {
			continue
		}
		env, attempted := bundle.Envelopes[desc.ID]
		if !attempted || env == nil || env.Status == provider.StatusEmpty {
			missing = append(missing, desc.ID)
		}
	}
	sort.Strings(missing)
	return missing
}
