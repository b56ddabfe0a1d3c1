package commands

import (
	"bobbin-backend/pkg/utils"
)

// CreateArtifactCommand captures a new artifact. Server-assigned fields
// (id, owner, timestamps, version) are absent by construction.
type CreateArtifactCommand struct {
	Kind       string            `json:"kind"`
	Title      string            `json:"title" validate:"required,notblank"`
	Body       string            `json:"body"`
	SourceURL  string            `json:"source_url" validate:"omitempty,absurl"`
	Metadata   map[string]string `json:"metadata"`
	ConceptIDs []string          `json:"concept_ids" validate:"omitempty,unique,dive,uuid"`
}

// Validate checks the structural rules; domain rules run in the entity
func (c CreateArtifactCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateArtifactCommand changes only the fields that are set
type UpdateArtifactCommand struct {
	Kind            *string            `json:"kind,omitempty"`
	Title           *string            `json:"title,omitempty" validate:"omitempty,notblank"`
	Body            *string            `json:"body,omitempty"`
	SourceURL       *string            `json:"source_url,omitempty"`
	Metadata        *map[string]string `json:"metadata,omitempty"`
	ConceptIDs      *[]string          `json:"concept_ids,omitempty" validate:"omitempty,unique,dive,uuid"`
	ExpectedVersion *int               `json:"expected_version,omitempty" validate:"omitempty,gte=1"`
}

// Validate checks the structural rules of the supplied fields
func (c UpdateArtifactCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// IsEmpty reports whether no mutable field was supplied
func (c UpdateArtifactCommand) IsEmpty() bool {
	return c.Kind == nil && c.Title == nil && c.Body == nil && c.SourceURL == nil &&
		c.Metadata == nil && c.ConceptIDs == nil
}

// TouchesContent reports whether any content field was supplied
func (c UpdateArtifactCommand) TouchesContent() bool {
	return c.Kind != nil || c.Title != nil || c.Body != nil || c.SourceURL != nil
}
