package memory

import (
	"context"
	"sort"

	"bobbin-backend/domain/core/aggregates"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"
)

type artifactRepo struct{ s *Store }

func (r artifactRepo) Create(ctx context.Context, artifact *entities.Artifact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Artifacts.Create"); err != nil {
		return err
	}

	state := artifact.State()
	if err := r.s.requireConcepts(state.OwnerID, "concept_ids", state.ConceptIDs); err != nil {
		return err
	}
	b := bucket(r.s.artifacts, state.OwnerID)
	if _, exists := b[state.ID]; exists {
		return pkgerrors.NewConflictError("artifact already exists")
	}
	b[state.ID] = state
	return nil
}

func (r artifactRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Artifact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Artifacts.GetByID"); err != nil {
		return nil, err
	}

	state, ok := r.s.artifacts[ownerID][id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("artifact", id.String())
	}
	return entities.ReconstructArtifact(state)
}

func (r artifactRepo) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Artifact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.Artifact, 0, len(ids))
	for _, id := range ids {
		state, ok := r.s.artifacts[ownerID][id.String()]
		if !ok {
			continue
		}
		a, err := entities.ReconstructArtifact(state)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r artifactRepo) Update(ctx context.Context, artifact *entities.Artifact, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Artifacts.Update"); err != nil {
		return err
	}

	state := artifact.State()
	stored, ok := r.s.artifacts[state.OwnerID][state.ID]
	if !ok {
		return pkgerrors.NewNotFoundError("artifact", state.ID)
	}
	if stored.Version != expectedVersion {
		return versionConflict("artifact", state.ID, expectedVersion, stored.Version)
	}
	if err := r.s.requireConcepts(state.OwnerID, "concept_ids", state.ConceptIDs); err != nil {
		return err
	}
	r.s.artifacts[state.OwnerID][state.ID] = state
	return nil
}

func (r artifactRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) (*aggregates.RemovalPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Artifacts.Delete"); err != nil {
		return nil, err
	}

	state, ok := r.s.artifacts[ownerID][id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("artifact", id.String())
	}
	plan, err := r.s.planRemoval(ownerID, state)
	if err != nil {
		return nil, err
	}

	for _, connID := range plan.Connections {
		r.s.deleteConnection(ownerID, connID.String())
	}
	delete(r.s.artifacts[ownerID], id.String())
	for cid, c := range r.s.conversations[ownerID] {
		if next, found := without(c.ArtifactIDs, id.String()); found {
			c.ArtifactIDs = next
			r.s.conversations[ownerID][cid] = c
		}
	}
	for _, conceptID := range plan.OrphanedConcepts {
		plan.Connections = append(plan.Connections,
			r.s.deleteConnectionsTouching(ownerID, valueobjects.ConceptEndpoint(conceptID))...)
		r.s.deleteConcept(ownerID, conceptID.String())
	}
	return plan, nil
}

func (r artifactRepo) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Artifact, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Artifacts.List"); err != nil {
		return nil, 0, err
	}

	states := make([]entities.ArtifactState, 0, len(r.s.artifacts[ownerID]))
	for _, a := range r.s.artifacts[ownerID] {
		states = append(states, a)
	}
	sort.Slice(states, func(i, j int) bool {
		a, b := states[i], states[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if params.Order == "asc" {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	page := paginate(states, params)
	out := make([]*entities.Artifact, 0, len(page))
	for _, state := range page {
		a, err := entities.ReconstructArtifact(state)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, len(states), nil
}
