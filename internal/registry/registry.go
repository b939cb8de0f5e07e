// Package registry holds the process-wide set of registered context
// providers and answers which providers serve a given intent.
//
// The registry is built once at startup and read by many concurrent
// requests afterward; the read path takes no lock because steady-state
// request handling never mutates it.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/intent"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

// Tier is a provider's priority tier. Higher tiers run first and take a
// larger share of the remaining token budget.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierCritical
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "LOW"
	case TierMedium:
		return "MEDIUM"
	case TierHigh:
		return "HIGH"
	case TierCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseTier parses a tier name (case-insensitive).
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return TierLow, nil
	case "MEDIUM":
		return TierMedium, nil
	case "HIGH":
		return TierHigh, nil
	case "CRITICAL":
		return TierCritical, nil
	default:
		return TierLow, fmt.Errorf("unknown priority tier %q", s)
	}
}

// Descriptor describes one registered provider.
type Descriptor struct {
	ID        string
	Provider  provider.ContextProvider
	Intents   []intent.Label
	Tier      Tier
	MaxTokens int

	// seq is the registration sequence number, used to keep equal-tier
	// ordering stable.
	seq int
}

// SupportsIntent reports whether the descriptor is registered for label.
func (d *Descriptor) SupportsIntent(label intent.Label) bool {
	for _, l := range d.Intents {
		if l == label {
			return true
		}
	}
	return false
}

// Registry is the provider registry. Construct once at process start,
// register all providers, then treat as immutable.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*Descriptor
	order   []*Descriptor
	nextSeq int
	logger  *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byID:   make(map[string]*Descriptor),
		logger: logger,
	}
}

// Register adds a provider. Re-registering an existing id overwrites the
// earlier descriptor in place (keeping its position) and logs a warning.
func (r *Registry) Register(id string, p provider.ContextProvider, intents []intent.Label, tier Tier, maxTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc := &Descriptor{
		ID:        id,
		Provider:  p,
		Intents:   append([]intent.Label(nil), intents...),
		Tier:      tier,
		MaxTokens: maxTokens,
	}

	if existing, ok := r.byID[id]; ok {
		r.logger.Warn("provider re-registered, overwriting",
			zap.String("provider", id),
			zap.String("old_tier", existing.Tier.String()),
			zap.String("new_tier", tier.String()))
		desc.seq = existing.seq
		r.byID[id] = desc
		for i, d := range r.order {
			if d.ID == id {
				r.order[i] = desc
				break
			}
		}
		return
	}

	desc.seq = r.nextSeq
	r.nextSeq++
	r.byID[id] = desc
	r.order = append(r.order, desc)
}

// ProvidersFor returns the providers serving the given intent: those
// explicitly registered for it plus those registered for the default
// GENERAL_QUERY intent, deduplicated by id, sorted by tier descending
// with equal tiers in registration order.
func (r *Registry) ProvidersFor(label intent.Label) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.order {
		if d.SupportsIntent(label) || d.SupportsIntent(intent.GeneralQuery) {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Tier > out[j].Tier
	})

	return out
}

// All returns every registered descriptor in registration order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.byID)
}
