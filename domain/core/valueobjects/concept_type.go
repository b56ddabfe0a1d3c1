package valueobjects

import (
	"strings"

	pkgerrors "bobbin-backend/pkg/errors"
)

// ConceptType classifies a concept. The set is closed.
type ConceptType string

const (
	ConceptTopic        ConceptType = "topic"
	ConceptPerson       ConceptType = "person"
	ConceptOrganization ConceptType = "organization"
	ConceptPlace        ConceptType = "place"
	ConceptEvent        ConceptType = "event"
	ConceptIdea         ConceptType = "idea"
	ConceptTechnology   ConceptType = "technology"
	ConceptTerm         ConceptType = "term"
)

// ConceptTypes lists every accepted concept type in display order
func ConceptTypes() []ConceptType {
	return []ConceptType{
		ConceptTopic,
		ConceptPerson,
		ConceptOrganization,
		ConceptPlace,
		ConceptEvent,
		ConceptIdea,
		ConceptTechnology,
		ConceptTerm,
	}
}

// IsValid reports membership in the closed set
func (t ConceptType) IsValid() bool {
	switch t {
	case ConceptTopic, ConceptPerson, ConceptOrganization, ConceptPlace,
		ConceptEvent, ConceptIdea, ConceptTechnology, ConceptTerm:
		return true
	default:
		return false
	}
}

// ParseConceptType accepts any casing and surrounding whitespace
func ParseConceptType(s string) (ConceptType, error) {
	t := ConceptType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", pkgerrors.NewFieldValidationError("type", "must be one of: "+joinEnum(ConceptTypes())).
			WithDetail("value", s)
	}
	return t, nil
}

// ConceptOrigin records whether a user created a concept or it was derived from an artifact
type ConceptOrigin string

const (
	OriginUser    ConceptOrigin = "user"
	OriginDerived ConceptOrigin = "derived"
)

// IsValid reports membership in the closed set
func (o ConceptOrigin) IsValid() bool {
	switch o {
	case OriginUser, OriginDerived:
		return true
	default:
		return false
	}
}

// ParseConceptOrigin parses a stored origin
func ParseConceptOrigin(s string) (ConceptOrigin, error) {
	o := ConceptOrigin(s)
	if !o.IsValid() {
		return "", pkgerrors.NewFieldValidationError("origin", "must be one of: "+joinEnum([]ConceptOrigin{OriginUser, OriginDerived}))
	}
	return o, nil
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
