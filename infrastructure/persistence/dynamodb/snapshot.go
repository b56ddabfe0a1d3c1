package dynamodb

import (
	"context"
	"sort"

	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"golang.org/x/sync/errgroup"
)

// snapshot is an owner's graph as read before a cascading delete. Every
// write planned from it is conditional on the versions it saw, so a
// concurrent change cancels the transaction instead of being overwritten.
type snapshot struct {
	owner         string
	artifacts     []artifactItem
	concepts      map[string]conceptItem
	connections   []connectionItem
	conversations []conversationItem
}

func (s *Store) loadSnapshot(ctx context.Context, owner string) (*snapshot, error) {
	snap := &snapshot{owner: owner}
	var concepts []conceptItem

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.artifacts, err = queryInto[artifactItem](ctx, s, owner, prefixArtifact, nil)
		return err
	})
	g.Go(func() error {
		var err error
		concepts, err = queryInto[conceptItem](ctx, s, owner, prefixConcept, nil)
		return err
	})
	g.Go(func() error {
		var err error
		snap.connections, err = queryInto[connectionItem](ctx, s, owner, prefixConnection, nil)
		return err
	})
	g.Go(func() error {
		var err error
		snap.conversations, err = queryInto[conversationItem](ctx, s, owner, prefixConversation, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.concepts = make(map[string]conceptItem, len(concepts))
	for _, c := range concepts {
		snap.concepts[c.ID] = c
	}
	return snap, nil
}

// planArtifactRemoval decides which connections and derived concepts go
// with the artifact
func (snap *snapshot) planArtifactRemoval(item artifactItem) (*aggregates.RemovalPlan, error) {
	artifact, err := entities.ReconstructArtifact(item.state())
	if err != nil {
		return nil, err
	}
	anchor := endpointRef(string(valueobjects.EndpointArtifact), item.ID)

	concepts := make([]*entities.Concept, 0, len(item.ConceptIDs))
	for _, id := range item.ConceptIDs {
		ci, ok := snap.concepts[id]
		if !ok {
			continue
		}
		c, err := entities.ReconstructConcept(ci.state())
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}

	var connections []*entities.Connection
	for _, ci := range snap.connectionsTouching(anchor) {
		c, err := entities.ReconstructConnection(ci.state())
		if err != nil {
			return nil, err
		}
		connections = append(connections, c)
	}

	graph, err := aggregates.NewArtifactGraph(artifact, concepts, connections)
	if err != nil {
		return nil, err
	}
	plan := graph.PlanRemoval(func(conceptID valueobjects.ID) bool {
		id := conceptID.String()
		for _, a := range snap.artifacts {
			if a.ID != item.ID && containsID(a.ConceptIDs, id) {
				return true
			}
		}
		ref := endpointRef(string(valueobjects.EndpointConcept), id)
		for _, c := range snap.connections {
			if c.touches(ref) && !c.touches(anchor) {
				return true
			}
		}
		return false
	})
	return &plan, nil
}

// connectionsTouching returns the connections with any of refs as an
// endpoint, ordered by id
func (snap *snapshot) connectionsTouching(refs ...string) []connectionItem {
	var out []connectionItem
	for _, c := range snap.connections {
		for _, ref := range refs {
			if c.touches(ref) {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (snap *snapshot) deleteConnections(t *txn, connections []connectionItem) error {
	for _, c := range connections {
		cond := versionIs(c.Version)
		if err := t.del(snap.owner, c.SK, &cond, goneOrChanged("connection", c.ID)); err != nil {
			return err
		}
		if err := t.del(snap.owner, prefixConnKey+c.DuplicateKey, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (snap *snapshot) deleteConcept(t *txn, id string) error {
	c, ok := snap.concepts[id]
	if !ok {
		return nil
	}
	cond := unchangedSince(c.Version, c.RefEpoch)
	if err := t.del(snap.owner, c.SK, &cond, goneOrChanged("concept", c.ID)); err != nil {
		return err
	}
	return t.del(snap.owner, prefixConceptKey+c.UniqueKey, nil, nil)
}

// detachArtifacts drops concept ids from every artifact's relation list.
// Detaching does not bump the artifact version.
func (snap *snapshot) detachArtifacts(t *txn, concepts map[string]struct{}) error {
	for _, a := range snap.artifacts {
		next, changed := without(a.ConceptIDs, concepts)
		if !changed {
			continue
		}
		update := expression.Set(expression.Name("ConceptIDs"), expression.Value(next))
		if err := t.update(snap.owner, a.SK, update, versionIs(a.Version), goneOrChanged("artifact", a.ID)); err != nil {
			return err
		}
	}
	return nil
}

// detachConversations drops artifact and concept ids from every
// conversation's references. Detaching does not bump the version.
func (snap *snapshot) detachConversations(t *txn, artifacts, concepts map[string]struct{}) error {
	for _, c := range snap.conversations {
		nextArtifacts, artifactsChanged := without(c.ArtifactIDs, artifacts)
		nextConcepts, conceptsChanged := without(c.ConceptIDs, concepts)
		if !artifactsChanged && !conceptsChanged {
			continue
		}
		update := expression.Set(expression.Name("ArtifactIDs"), expression.Value(nextArtifacts)).
			Set(expression.Name("ConceptIDs"), expression.Value(nextConcepts))
		if err := t.update(snap.owner, c.SK, update, versionIs(c.Version), goneOrChanged("conversation", c.ID)); err != nil {
			return err
		}
	}
	return nil
}

func refsOf(kind valueobjects.EndpointKind, ids []valueobjects.ID) []string {
	refs := make([]string, len(ids))
	for i, id := range ids {
		refs[i] = endpointRef(string(kind), id.String())
	}
	return refs
}

func connectionIDs(items []connectionItem) []valueobjects.ID {
	ids := make([]valueobjects.ID, 0, len(items))
	for _, c := range items {
		ids = append(ids, valueobjects.MustParseID(c.ID))
	}
	return ids
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
