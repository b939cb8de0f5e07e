// Package provider defines the context provider capability interface and
// the data shapes that flow through a request: envelopes, payloads and
// the per-request bundle.
package provider

import (
	"context"
	"time"

	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/intent"
)

// Status describes how an envelope's payload was obtained.
type Status string

const (
	// StatusLive means the primary fetch succeeded.
	StatusLive Status = "LIVE"

	// StatusFallback means the degraded path served the payload.
	StatusFallback Status = "FALLBACK"

	// StatusEmpty means both fetch and fallback failed or timed out.
	StatusEmpty Status = "EMPTY"
)

// ContextProvider is the capability interface every data domain
// implements. Implementations must return typed errors rather than
// panic; any internal failure crosses this boundary as an error value
// the allocator can branch on.
type ContextProvider interface {
	// ID returns the provider's unique identifier.
	ID() string

	// Fetch retrieves domain data relevant to the query, aiming to stay
	// under tokenBudget. May block on network or file I/O; must honor ctx.
	Fetch(ctx context.Context, query string, tokenBudget int) (*Envelope, error)

	// FetchFallback is the cheaper, degraded path (last-known-good cache
	// or placeholder), invoked only when Fetch fails or times out.
	FetchFallback(ctx context.Context, query string, tokenBudget int) (*Envelope, error)
}

// Field is one labeled value in a record. Currency fields render with a
// dollar prefix, two decimals and thousands separators.
type Field struct {
	Label    string
	Value    any
	Currency bool
}

// Record is one retrievable unit of provider data. Truncation drops
// whole records, never parts of one.
type Record struct {
	Title     string
	Fields    []Field
	Body      string
	Timestamp time.Time

	// Matches counts query keyword hits; lower-match records are
	// dropped first when the payload exceeds its budget.
	Matches int
}

// Payload is the structured result of one provider invocation.
type Payload struct {
	// Kind is the fixed section header used when rendering, e.g.
	// "MARKET DATA".
	Kind string

	Records []Record
}

// Envelope is the result of one provider invocation.
type Envelope struct {
	ProviderID string
	Payload    any // usually *Payload; unknown shapes are stringified by the formatter
	Status     Status
	TokensUsed int
	Warnings   []string
}

// Empty returns an EMPTY envelope carrying the given warnings. Used by
// the allocator when both fetch and fallback fail.
func Empty(providerID string, warnings ...string) *Envelope {
	return &Envelope{
		ProviderID: providerID,
		Status:     StatusEmpty,
		Warnings:   warnings,
	}
}

// Bundle is the per-request aggregate of all provider results.
type Bundle struct {
	RequestID string
	Intent    intent.Label

	TokenBudget     int
	TotalTokensUsed int

	// Envelopes holds exactly one envelope per attempted provider.
	Envelopes map[string]*Envelope

	// Order lists attempted provider ids in allocation order; rendering
	// follows it so output is deterministic.
	Order []string

	// Skipped lists providers never attempted because the budget was
	// already exhausted when their turn came.
	Skipped []string

	// MissingCritical lists CRITICAL-tier providers that produced no
	// usable data for this request.
	MissingCritical []string

	Elapsed time.Duration
}

// EstimateTokens approximates the LLM token cost of a string using the
// inherited characters/4 heuristic. Non-empty strings cost at least one
// token.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	n := len(s) / 4
	if n < 1 {
		n = 1
	}
	return n
}
