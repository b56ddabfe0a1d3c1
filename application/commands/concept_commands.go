package commands

import (
	"bobbin-backend/pkg/utils"
)

// CreateConceptCommand creates a user-authored concept
type CreateConceptCommand struct {
	Type        string            `json:"type" validate:"required"`
	Label       string            `json:"label" validate:"required,notblank"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

// Validate checks the structural rules
func (c CreateConceptCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateConceptCommand changes only the fields that are set
type UpdateConceptCommand struct {
	Type            *string            `json:"type,omitempty"`
	Label           *string            `json:"label,omitempty" validate:"omitempty,notblank"`
	Description     *string            `json:"description,omitempty"`
	Metadata        *map[string]string `json:"metadata,omitempty"`
	ExpectedVersion *int               `json:"expected_version,omitempty" validate:"omitempty,gte=1"`
}

// Validate checks the structural rules of the supplied fields
func (c UpdateConceptCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// IsEmpty reports whether no mutable field was supplied
func (c UpdateConceptCommand) IsEmpty() bool {
	return c.Type == nil && c.Label == nil && c.Description == nil && c.Metadata == nil
}

// DerivedConceptInput names one concept extracted from an artifact
type DerivedConceptInput struct {
	Type  string `json:"type" validate:"required"`
	Label string `json:"label" validate:"required,notblank"`
}

// DeriveConceptsCommand attaches extracted concepts to an artifact, reusing
// existing concepts with the same type and label
type DeriveConceptsCommand struct {
	Concepts []DerivedConceptInput `json:"concepts" validate:"required,min=1,max=50,dive"`
}

// Validate checks the structural rules
func (c DeriveConceptsCommand) Validate() error {
	return utils.ValidateStruct(c)
}
