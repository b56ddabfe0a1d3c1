package config

import (
	"fmt"
)

// DuplicatePolicy decides what happens when a connection between the same
// pair of endpoints with the same relationship already exists.
type DuplicatePolicy string

const (
	// DuplicateReject fails the create with a conflict.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateReturnExisting returns the stored connection unchanged.
	DuplicateReturnExisting DuplicatePolicy = "return_existing"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Artifact constraints
	MaxTitleLength         int `yaml:"max_title_length"`
	MaxBodyLength          int `yaml:"max_body_length"`
	MaxConceptsPerArtifact int `yaml:"max_concepts_per_artifact"`

	// Concept constraints
	MaxLabelLength       int `yaml:"max_label_length"`
	MaxDescriptionLength int `yaml:"max_description_length"`

	// Shared constraints
	MaxMetadataEntries int `yaml:"max_metadata_entries"`

	// Connection rules
	AllowSelfConnections      bool            `yaml:"allow_self_connections"`
	DuplicateConnectionPolicy DuplicatePolicy `yaml:"duplicate_connection_policy"`
	DefaultConnectionStrength float64         `yaml:"default_connection_strength"`

	// Conversation constraints
	MaxMessageLength             int `yaml:"max_message_length"`
	MaxMessagesPerConversation   int `yaml:"max_messages_per_conversation"`
	MaxReferencesPerConversation int `yaml:"max_references_per_conversation"`

	// Suggestion tuning
	DefaultSuggestionLimit  int     `yaml:"default_suggestion_limit"`
	MaxSuggestionLimit      int     `yaml:"max_suggestion_limit"`
	MinSuggestionConfidence float64 `yaml:"min_suggestion_confidence"`
	MaxSuggestionCandidates int     `yaml:"max_suggestion_candidates"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxTitleLength:         200,
		MaxBodyLength:          50000,
		MaxConceptsPerArtifact: 100,

		MaxLabelLength:       200,
		MaxDescriptionLength: 2000,

		MaxMetadataEntries: 32,

		AllowSelfConnections:      false,
		DuplicateConnectionPolicy: DuplicateReject,
		DefaultConnectionStrength: 0.5,

		MaxMessageLength:             20000,
		MaxMessagesPerConversation:   1000,
		MaxReferencesPerConversation: 200,

		DefaultSuggestionLimit:  10,
		MaxSuggestionLimit:      50,
		MinSuggestionConfidence: 0.1,
		MaxSuggestionCandidates: 500,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxBodyLength = 20000
	config.MaxSuggestionCandidates = 250

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.MaxSuggestionCandidates = 2000
	config.MinSuggestionConfidence = 0

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Clone returns an independent copy
func (c *DomainConfig) Clone() *DomainConfig {
	cp := *c
	return &cp
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	switch c.DuplicateConnectionPolicy {
	case DuplicateReject, DuplicateReturnExisting:
	default:
		return fmt.Errorf("duplicate_connection_policy must be %q or %q, got %q",
			DuplicateReject, DuplicateReturnExisting, c.DuplicateConnectionPolicy)
	}

	positive := map[string]int{
		"max_title_length":          c.MaxTitleLength,
		"max_body_length":           c.MaxBodyLength,
		"max_concepts_per_artifact": c.MaxConceptsPerArtifact,
		"max_label_length":          c.MaxLabelLength,
		"max_description_length":    c.MaxDescriptionLength,
		"max_message_length":        c.MaxMessageLength,
		"default_suggestion_limit":  c.DefaultSuggestionLimit,
		"max_suggestion_limit":      c.MaxSuggestionLimit,
		"max_suggestion_candidates": c.MaxSuggestionCandidates,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.DefaultSuggestionLimit > c.MaxSuggestionLimit {
		return fmt.Errorf("default_suggestion_limit exceeds max_suggestion_limit")
	}
	if c.DefaultConnectionStrength < 0 || c.DefaultConnectionStrength > 1 {
		return fmt.Errorf("default_connection_strength must be within [0,1]")
	}
	if c.MinSuggestionConfidence < 0 || c.MinSuggestionConfidence > 1 {
		return fmt.Errorf("min_suggestion_confidence must be within [0,1]")
	}

	return nil
}
