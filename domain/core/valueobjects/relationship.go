package valueobjects

import (
	"strings"

	pkgerrors "bobbin-backend/pkg/errors"
)

// RelationshipKind is the semantic label of a connection. The set is closed.
type RelationshipKind string

const (
	RelationRelated     RelationshipKind = "related"
	RelationReferences  RelationshipKind = "references"
	RelationPartOf      RelationshipKind = "part_of"
	RelationDerivedFrom RelationshipKind = "derived_from"
	RelationSupports    RelationshipKind = "supports"
	RelationContradicts RelationshipKind = "contradicts"
	RelationSimilar     RelationshipKind = "similar"
)

// RelationshipKinds lists every accepted relationship
func RelationshipKinds() []RelationshipKind {
	return []RelationshipKind{
		RelationRelated,
		RelationReferences,
		RelationPartOf,
		RelationDerivedFrom,
		RelationSupports,
		RelationContradicts,
		RelationSimilar,
	}
}

// IsValid reports membership in the closed set
func (k RelationshipKind) IsValid() bool {
	switch k {
	case RelationRelated, RelationReferences, RelationPartOf, RelationDerivedFrom,
		RelationSupports, RelationContradicts, RelationSimilar:
		return true
	default:
		return false
	}
}

// DirectedByDefault reports whether the relationship reads one way.
func (k RelationshipKind) DirectedByDefault() bool {
	switch k {
	case RelationReferences, RelationPartOf, RelationDerivedFrom, RelationSupports:
		return true
	case RelationRelated, RelationContradicts, RelationSimilar:
		return false
	default:
		return false
	}
}

// ParseRelationshipKind accepts any casing; empty means related.
func ParseRelationshipKind(s string) (RelationshipKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RelationRelated, nil
	}
	k := RelationshipKind(s)
	if !k.IsValid() {
		return "", pkgerrors.NewFieldValidationError("kind", "must be one of: "+joinEnum(RelationshipKinds())).
			WithDetail("value", s)
	}
	return k, nil
}

// ConnectionStatus separates user-confirmed edges from accepted suggestions awaiting review
type ConnectionStatus string

const (
	StatusConfirmed ConnectionStatus = "confirmed"
	StatusSuggested ConnectionStatus = "suggested"
)

// IsValid reports membership in the closed set
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case StatusConfirmed, StatusSuggested:
		return true
	default:
		return false
	}
}

// ParseConnectionStatus parses a status; empty means confirmed.
func ParseConnectionStatus(s string) (ConnectionStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusConfirmed, nil
	}
	st := ConnectionStatus(s)
	if !st.IsValid() {
		return "", pkgerrors.NewFieldValidationError("status", "must be one of: "+
			joinEnum([]ConnectionStatus{StatusConfirmed, StatusSuggested}))
	}
	return st, nil
}
