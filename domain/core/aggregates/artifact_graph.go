package aggregates

import (
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	pkgerrors "bobbin-backend/pkg/errors"
)

// ArtifactGraph is the consistency boundary around one artifact: the
// artifact itself, the concepts in its relation list and every connection
// that has the artifact as an endpoint.
type ArtifactGraph struct {
	artifact    *entities.Artifact
	concepts    map[string]*entities.Concept
	connections []*entities.Connection
}

// RemovalPlan lists what disappears together with an artifact
type RemovalPlan struct {
	ArtifactID       valueobjects.ID
	Connections      []valueobjects.ID
	OrphanedConcepts []valueobjects.ID
}

// NewArtifactGraph assembles the graph, dropping duplicate concepts and
// connections as well as connections that do not touch the artifact.
func NewArtifactGraph(
	artifact *entities.Artifact,
	concepts []*entities.Concept,
	connections []*entities.Connection,
) (*ArtifactGraph, error) {
	if artifact == nil {
		return nil, pkgerrors.NewInternalError("artifact graph requires an artifact")
	}

	g := &ArtifactGraph{
		artifact: artifact,
		concepts: make(map[string]*entities.Concept, len(concepts)),
	}

	for _, c := range concepts {
		if c == nil || c.OwnerID() != artifact.OwnerID() {
			continue
		}
		g.concepts[c.ID().String()] = c
	}

	anchor := g.Anchor()
	seen := make(map[string]struct{}, len(connections))
	for _, conn := range connections {
		if conn == nil || conn.OwnerID() != artifact.OwnerID() || !conn.Touches(anchor) {
			continue
		}
		if _, dup := seen[conn.ID().String()]; dup {
			continue
		}
		seen[conn.ID().String()] = struct{}{}
		g.connections = append(g.connections, conn)
	}

	return g, nil
}

// Artifact returns the root entity
func (g *ArtifactGraph) Artifact() *entities.Artifact {
	return g.artifact
}

// Anchor returns the artifact as a connection endpoint
func (g *ArtifactGraph) Anchor() valueobjects.Endpoint {
	return valueobjects.ArtifactEndpoint(g.artifact.ID())
}

// Concepts returns the related concepts in the artifact's relation order.
// Ids without a loaded concept are skipped.
func (g *ArtifactGraph) Concepts() []*entities.Concept {
	ids := g.artifact.ConceptIDs()
	out := make([]*entities.Concept, 0, len(ids))
	for _, id := range ids {
		if c, ok := g.concepts[id.String()]; ok {
			out = append(out, c)
		}
	}
	return out
}

// MissingConcepts lists relation ids with no loaded concept
func (g *ArtifactGraph) MissingConcepts() []valueobjects.ID {
	var missing []valueobjects.ID
	for _, id := range g.artifact.ConceptIDs() {
		if _, ok := g.concepts[id.String()]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Connections returns the connections touching the artifact
func (g *ArtifactGraph) Connections() []*entities.Connection {
	return append([]*entities.Connection(nil), g.connections...)
}

// Neighbors returns the endpoints directly connected to the artifact
func (g *ArtifactGraph) Neighbors() []valueobjects.Endpoint {
	anchor := g.Anchor()
	seen := make(map[string]struct{}, len(g.connections))
	out := make([]valueobjects.Endpoint, 0, len(g.connections))
	for _, conn := range g.connections {
		other := conn.Other(anchor)
		if _, dup := seen[other.Key()]; dup {
			continue
		}
		seen[other.Key()] = struct{}{}
		out = append(out, other)
	}
	return out
}

// Validate ensures no connection dangles off the artifact
func (g *ArtifactGraph) Validate() error {
	anchor := g.Anchor()
	for _, conn := range g.connections {
		if !conn.Touches(anchor) {
			return pkgerrors.NewInternalError("connection does not touch artifact").
				WithDetail("connection_id", conn.ID().String())
		}
	}
	return nil
}

// PlanRemoval decides which connections and derived concepts go with the
// artifact. referencedElsewhere reports whether a concept is still used by
// another artifact or by a connection that does not touch this artifact.
func (g *ArtifactGraph) PlanRemoval(referencedElsewhere func(valueobjects.ID) bool) RemovalPlan {
	plan := RemovalPlan{ArtifactID: g.artifact.ID()}
	for _, conn := range g.connections {
		plan.Connections = append(plan.Connections, conn.ID())
	}

	for _, c := range g.Concepts() {
		if c.Origin() != valueobjects.OriginDerived {
			continue
		}
		if referencedElsewhere != nil && referencedElsewhere(c.ID()) {
			continue
		}
		plan.OrphanedConcepts = append(plan.OrphanedConcepts, c.ID())
	}

	return plan
}

// ConnectedEndpoints returns the keys of every endpoint joined to anchor by
// one of conns, anchor included.
func ConnectedEndpoints(anchor valueobjects.Endpoint, conns []*entities.Connection) map[string]struct{} {
	out := map[string]struct{}{anchor.Key(): {}}
	for _, conn := range conns {
		if conn.Touches(anchor) {
			out[conn.Other(anchor).Key()] = struct{}{}
		}
	}
	return out
}
