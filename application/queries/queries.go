package queries

import (
	"bobbin-backend/application/commands"
	"bobbin-backend/pkg/common"
	"bobbin-backend/pkg/utils"
)

// ListArtifactsQuery pages through the user's feed
type ListArtifactsQuery struct {
	Pagination common.PaginationParams
}

// ListConceptsQuery pages through concepts, optionally filtered
type ListConceptsQuery struct {
	Type       string
	Origin     string
	Pagination common.PaginationParams
}

// ListConnectionsQuery pages through connections, optionally filtered
type ListConnectionsQuery struct {
	EndpointKind string
	EndpointID   string
	Kind         string
	Status       string
	Pagination   common.PaginationParams
}

// ListConversationsQuery pages through conversations
type ListConversationsQuery struct {
	Pagination common.PaginationParams
}

// SuggestionContext describes what to suggest connections for
type SuggestionContext struct {
	Anchor        commands.EndpointInput `json:"anchor" validate:"required"`
	Limit         int                    `json:"limit" validate:"gte=0"`
	MinConfidence *float64               `json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	// CandidateKinds restricts candidates to artifacts or concepts; empty means both
	CandidateKinds []string `json:"candidate_kinds,omitempty" validate:"omitempty,unique,dive,oneof=artifact concept"`
}

// Validate checks the structural rules
func (q SuggestionContext) Validate() error {
	return utils.ValidateStruct(q)
}
