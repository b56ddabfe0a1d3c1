package commands

import (
	"bobbin-backend/pkg/utils"
)

// CreateConversationCommand starts a discussion thread
type CreateConversationCommand struct {
	Title       string   `json:"title" validate:"required,notblank"`
	ArtifactIDs []string `json:"artifact_ids" validate:"omitempty,unique,dive,uuid"`
	ConceptIDs  []string `json:"concept_ids" validate:"omitempty,unique,dive,uuid"`
}

// Validate checks the structural rules
func (c CreateConversationCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateConversationCommand changes only the fields that are set
type UpdateConversationCommand struct {
	Title           *string   `json:"title,omitempty" validate:"omitempty,notblank"`
	ArtifactIDs     *[]string `json:"artifact_ids,omitempty" validate:"omitempty,unique,dive,uuid"`
	ConceptIDs      *[]string `json:"concept_ids,omitempty" validate:"omitempty,unique,dive,uuid"`
	ExpectedVersion *int      `json:"expected_version,omitempty" validate:"omitempty,gte=1"`
}

// Validate checks the structural rules of the supplied fields
func (c UpdateConversationCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// IsEmpty reports whether no mutable field was supplied
func (c UpdateConversationCommand) IsEmpty() bool {
	return c.Title == nil && c.ArtifactIDs == nil && c.ConceptIDs == nil
}

// AppendMessageCommand adds a message to a conversation
type AppendMessageCommand struct {
	Role            string `json:"role"`
	Content         string `json:"content" validate:"required,notblank"`
	ExpectedVersion *int   `json:"expected_version,omitempty" validate:"omitempty,gte=1"`
}

// Validate checks the structural rules
func (c AppendMessageCommand) Validate() error {
	return utils.ValidateStruct(c)
}
