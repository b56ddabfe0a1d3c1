// Package memory provides an in-process implementation of the graph store.
// It backs local development and the service tests; every method takes one
// lock so each write is atomic.
package memory

import (
	"context"
	"sort"
	"sync"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"
)

// Store keeps entity state per owner. Entities are stored as their flat
// state so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	artifacts     map[string]map[string]entities.ArtifactState
	concepts      map[string]map[string]entities.ConceptState
	connections   map[string]map[string]entities.ConnectionState
	conversations map[string]map[string]entities.ConversationState

	// owner -> unique key -> id
	conceptKeys    map[string]map[string]string
	connectionKeys map[string]map[string]string

	// For testing error scenarios
	shouldFailOn map[string]error
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		artifacts:      make(map[string]map[string]entities.ArtifactState),
		concepts:       make(map[string]map[string]entities.ConceptState),
		connections:    make(map[string]map[string]entities.ConnectionState),
		conversations:  make(map[string]map[string]entities.ConversationState),
		conceptKeys:    make(map[string]map[string]string),
		connectionKeys: make(map[string]map[string]string),
		shouldFailOn:   make(map[string]error),
	}
}

var _ ports.GraphStore = (*Store)(nil)

// SetError makes the named method fail with err until ClearErrors
func (s *Store) SetError(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn[method] = err
}

// ClearErrors removes all configured errors
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shouldFailOn = make(map[string]error)
}

func (s *Store) checkError(method string) error {
	if err, exists := s.shouldFailOn[method]; exists {
		return err
	}
	return nil
}

func (s *Store) Artifacts() ports.ArtifactRepository         { return artifactRepo{s} }
func (s *Store) Concepts() ports.ConceptRepository           { return conceptRepo{s} }
func (s *Store) Connections() ports.ConnectionRepository     { return connectionRepo{s} }
func (s *Store) Conversations() ports.ConversationRepository { return conversationRepo{s} }

// Ping always succeeds unless an error is configured
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkError("Ping"); err != nil {
		return err
	}
	return ctx.Err()
}

func bucket[S any](m map[string]map[string]S, owner string) map[string]S {
	b, ok := m[owner]
	if !ok {
		b = make(map[string]S)
		m[owner] = b
	}
	return b
}

func (s *Store) endpointExists(owner string, kind, id string) bool {
	switch valueobjects.EndpointKind(kind) {
	case valueobjects.EndpointArtifact:
		_, ok := s.artifacts[owner][id]
		return ok
	case valueobjects.EndpointConcept:
		_, ok := s.concepts[owner][id]
		return ok
	default:
		return false
	}
}

func (s *Store) requireConcepts(owner, field string, ids []string) error {
	for _, id := range ids {
		if _, ok := s.concepts[owner][id]; !ok {
			return pkgerrors.NewFieldValidationError(field, "concept "+id+" does not exist")
		}
	}
	return nil
}

func (s *Store) requireArtifacts(owner, field string, ids []string) error {
	for _, id := range ids {
		if _, ok := s.artifacts[owner][id]; !ok {
			return pkgerrors.NewFieldValidationError(field, "artifact "+id+" does not exist")
		}
	}
	return nil
}

// deleteConnection drops a connection and its duplicate key
func (s *Store) deleteConnection(owner, id string) {
	state, ok := s.connections[owner][id]
	if !ok {
		return
	}
	delete(s.connections[owner], id)
	if conn, err := entities.ReconstructConnection(state); err == nil {
		delete(s.connectionKeys[owner], conn.DuplicateKey())
	}
}

// deleteConnectionsTouching removes every connection with ep as an endpoint
func (s *Store) deleteConnectionsTouching(owner string, ep valueobjects.Endpoint) []valueobjects.ID {
	var removed []valueobjects.ID
	for id, state := range s.connections[owner] {
		if touches(state, ep) {
			s.deleteConnection(owner, id)
			removed = append(removed, valueobjects.MustParseID(id))
		}
	}
	sortIDs(removed)
	return removed
}

// detachConcept removes a concept id from artifacts and conversations
func (s *Store) detachConcept(owner, id string) {
	for aid, a := range s.artifacts[owner] {
		if next, found := without(a.ConceptIDs, id); found {
			a.ConceptIDs = next
			s.artifacts[owner][aid] = a
		}
	}
	for cid, c := range s.conversations[owner] {
		if next, found := without(c.ConceptIDs, id); found {
			c.ConceptIDs = next
			s.conversations[owner][cid] = c
		}
	}
}

func touches(state entities.ConnectionState, ep valueobjects.Endpoint) bool {
	match := func(e entities.EndpointState) bool {
		return e.Kind == string(ep.Kind()) && e.ID == ep.ID().String()
	}
	return match(state.Source) || match(state.Target)
}

func without(ids []string, id string) ([]string, bool) {
	for i, v := range ids {
		if v == id {
			out := make([]string, 0, len(ids)-1)
			out = append(out, ids[:i]...)
			return append(out, ids[i+1:]...), true
		}
	}
	return ids, false
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortIDs(ids []valueobjects.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}

// paginate slices an ordered listing
func paginate[T any](items []T, params common.PaginationParams) []T {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		return items
	}
	start := (params.Page - 1) * params.PageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + params.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// orphanCheck reports whether a derived concept is still used outside the
// artifact being removed
func (s *Store) orphanCheck(owner string, artifact valueobjects.ID) func(valueobjects.ID) bool {
	anchor := valueobjects.ArtifactEndpoint(artifact)
	return func(conceptID valueobjects.ID) bool {
		id := conceptID.String()
		for aid, a := range s.artifacts[owner] {
			if aid != artifact.String() && contains(a.ConceptIDs, id) {
				return true
			}
		}
		concept := valueobjects.ConceptEndpoint(conceptID)
		for _, c := range s.connections[owner] {
			if touches(c, concept) && !touches(c, anchor) {
				return true
			}
		}
		return false
	}
}

// versionConflict is returned when a conditional write loses
func versionConflict(resource, id string, expected, actual int) error {
	return pkgerrors.NewVersionConflictError(resource, id, expected).
		WithDetail("actual_version", actual)
}

// planRemoval builds the cascade for an artifact delete
func (s *Store) planRemoval(owner string, state entities.ArtifactState) (*aggregates.RemovalPlan, error) {
	artifact, err := entities.ReconstructArtifact(state)
	if err != nil {
		return nil, err
	}
	var concepts []*entities.Concept
	for _, id := range state.ConceptIDs {
		if cs, ok := s.concepts[owner][id]; ok {
			c, err := entities.ReconstructConcept(cs)
			if err != nil {
				return nil, err
			}
			concepts = append(concepts, c)
		}
	}
	var connections []*entities.Connection
	anchor := valueobjects.ArtifactEndpoint(artifact.ID())
	for _, cs := range s.connections[owner] {
		if touches(cs, anchor) {
			c, err := entities.ReconstructConnection(cs)
			if err != nil {
				return nil, err
			}
			connections = append(connections, c)
		}
	}

	graph, err := aggregates.NewArtifactGraph(artifact, concepts, connections)
	if err != nil {
		return nil, err
	}
	plan := graph.PlanRemoval(s.orphanCheck(owner, artifact.ID()))
	return &plan, nil
}
