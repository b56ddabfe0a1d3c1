package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDomainConfig_Defaults(t *testing.T) {
	for _, env := range []string{"production", "development", "staging"} {
		t.Run(env, func(t *testing.T) {
			cfg := LoadDomainConfig(env)
			assert.NoError(t, cfg.Validate())
			assert.Equal(t, DuplicateReject, cfg.DuplicateConnectionPolicy)
			assert.False(t, cfg.AllowSelfConnections)
		})
	}
}

func TestDomainConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DomainConfig)
	}{
		{"unknown duplicate policy", func(c *DomainConfig) { c.DuplicateConnectionPolicy = "merge" }},
		{"zero title length", func(c *DomainConfig) { c.MaxTitleLength = 0 }},
		{"strength above one", func(c *DomainConfig) { c.DefaultConnectionStrength = 1.5 }},
		{"negative confidence", func(c *DomainConfig) { c.MinSuggestionConfidence = -0.1 }},
		{"default limit over max", func(c *DomainConfig) { c.DefaultSuggestionLimit = c.MaxSuggestionLimit + 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultDomainConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDomainConfig_CloneIsIndependent(t *testing.T) {
	cfg := DefaultDomainConfig()
	cp := cfg.Clone()
	cp.DuplicateConnectionPolicy = DuplicateReturnExisting

	assert.Equal(t, DuplicateReject, cfg.DuplicateConnectionPolicy)
}
