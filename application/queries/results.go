package queries

import (
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/pkg/common"
)

// ArtifactWithRelations is an artifact with its related concepts and every
// connection that has it as an endpoint. Neither list holds duplicates.
type ArtifactWithRelations struct {
	Artifact    entities.ArtifactState     `json:"artifact"`
	Concepts    []entities.ConceptState    `json:"concepts"`
	Connections []entities.ConnectionState `json:"connections"`
}

// EndpointSummary resolves a connection endpoint to something displayable
type EndpointSummary struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ConnectionWithEndpoints is a connection with both endpoints resolved
type ConnectionWithEndpoints struct {
	Connection entities.ConnectionState `json:"connection"`
	Source     EndpointSummary          `json:"source"`
	Target     EndpointSummary          `json:"target"`
}

// ConnectionSuggestion is a proposed, unpersisted connection
type ConnectionSuggestion struct {
	Source     entities.EndpointState `json:"source"`
	Target     EndpointSummary        `json:"target"`
	Kind       string                 `json:"kind"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason,omitempty"`
}

// Page is one page of a listing
type Page[T any] struct {
	Items      []T                    `json:"items"`
	Pagination *common.PaginationInfo `json:"pagination"`
}

// NewPage builds a page with pagination metadata
func NewPage[T any](items []T, params common.PaginationParams, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Pagination: common.BuildPaginationMeta(params.Page, params.PageSize, total),
	}
}
