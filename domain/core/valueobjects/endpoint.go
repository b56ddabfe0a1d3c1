package valueobjects

import (
	"fmt"
	"strings"

	pkgerrors "bobbin-backend/pkg/errors"
)

// EndpointKind names the entity family a connection endpoint belongs to
type EndpointKind string

const (
	EndpointArtifact EndpointKind = "artifact"
	EndpointConcept  EndpointKind = "concept"
)

// IsValid reports membership in the closed set
func (k EndpointKind) IsValid() bool {
	switch k {
	case EndpointArtifact, EndpointConcept:
		return true
	default:
		return false
	}
}

// ParseEndpointKind accepts any casing
func ParseEndpointKind(field, s string) (EndpointKind, error) {
	k := EndpointKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", pkgerrors.NewFieldValidationError(field, "must be one of: "+
			joinEnum([]EndpointKind{EndpointArtifact, EndpointConcept}))
	}
	return k, nil
}

// Endpoint is one side of a connection
type Endpoint struct {
	kind EndpointKind
	id   ID
}

// NewEndpoint validates both parts of an endpoint
func NewEndpoint(field, kind, id string) (Endpoint, error) {
	k, err := ParseEndpointKind(field+".kind", kind)
	if err != nil {
		return Endpoint{}, err
	}
	parsed, err := ParseID(field+".id", id)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{kind: k, id: parsed}, nil
}

// ArtifactEndpoint builds an endpoint for an artifact
func ArtifactEndpoint(id ID) Endpoint {
	return Endpoint{kind: EndpointArtifact, id: id}
}

// ConceptEndpoint builds an endpoint for a concept
func ConceptEndpoint(id ID) Endpoint {
	return Endpoint{kind: EndpointConcept, id: id}
}

// Kind returns the endpoint family
func (e Endpoint) Kind() EndpointKind { return e.kind }

// ID returns the referenced entity id
func (e Endpoint) ID() ID { return e.id }

// Equals compares kind and id
func (e Endpoint) Equals(other Endpoint) bool {
	return e.kind == other.kind && e.id.Equals(other.id)
}

// Key is a stable string form, e.g. "concept:<uuid>"
func (e Endpoint) Key() string {
	return fmt.Sprintf("%s:%s", e.kind, e.id)
}

// String implements fmt.Stringer
func (e Endpoint) String() string {
	return e.Key()
}

// Less orders endpoints by key
func (e Endpoint) Less(other Endpoint) bool {
	return e.Key() < other.Key()
}
