package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/config"
	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/registry"
)

func TestBuildOrchestratorRegistersConfiguredProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Portfolio.DBPath = filepath.Join(t.TempDir(), "portfolio.db")

	o, reg, collector, cleanup, err := buildOrchestrator(cfg)
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, o)

	require.Equal(t, 3, reg.Len())

	byID := make(map[string]*registry.Descriptor)
	for _, desc := range reg.All() {
		byID[desc.ID] = desc
	}
	require.Contains(t, byID, "market")
	require.Contains(t, byID, "portfolio")
	require.Contains(t, byID, "news")
	assert.Equal(t, registry.TierCritical, byID["market"].Tier)
	assert.Equal(t, registry.TierHigh, byID["portfolio"].Tier)
	assert.Equal(t, registry.TierMedium, byID["news"].Tier)

	assert.Zero(t, collector.Snapshot().Requests)
}
