package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trackside-analytics/railscan-cli/internal/config"
	"github.com/trackside-analytics/railscan-cli/internal/model"
)

func TestFeatureCSVPaths_ConfigAndFlagOverride(t *testing.T) {
	origCfg, origBridges := cfg, featuresBridges
	t.Cleanup(func() {
		cfg, featuresBridges = origCfg, origBridges
	})

	// Viper hands map keys over lower-cased.
	cfg = &config.Config{
		Ingest: config.IngestConfig{
			Features: map[string]string{
				"bridge":  "data/bridges.csv",
				"turnout": "data/turnouts.csv",
			},
		},
	}
	featuresBridges = "override/bridges.csv"

	paths := featureCSVPaths()
	assert.Equal(t, "override/bridges.csv", paths[model.CategoryBridge])
	assert.Equal(t, "data/turnouts.csv", paths[model.CategoryTurnout])
	_, ok := paths[model.CategoryRailJoint]
	assert.False(t, ok)
}

func TestFeatureCSVPaths_Empty(t *testing.T) {
	origCfg := cfg
	t.Cleanup(func() { cfg = origCfg })

	cfg = &config.Config{}
	assert.Empty(t, featureCSVPaths())
}
