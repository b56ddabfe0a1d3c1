package memory

import (
	"context"
	"sort"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"
)

type conceptRepo struct{ s *Store }

func conceptKey(state entities.ConceptState) string {
	return entities.ConceptUniqueKey(valueobjects.ConceptType(state.Type), state.Label)
}

func (r conceptRepo) Create(ctx context.Context, concept *entities.Concept) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Concepts.Create"); err != nil {
		return err
	}

	state := concept.State()
	keys := bucket(r.s.conceptKeys, state.OwnerID)
	key := conceptKey(state)
	if existing, taken := keys[key]; taken {
		return pkgerrors.NewConflictError("a concept with this type and label already exists").
			WithDetail("existing_id", existing)
	}
	bucket(r.s.concepts, state.OwnerID)[state.ID] = state
	keys[key] = state.ID
	return nil
}

func (r conceptRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Concept, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Concepts.GetByID"); err != nil {
		return nil, err
	}

	state, ok := r.s.concepts[ownerID][id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("concept", id.String())
	}
	return entities.ReconstructConcept(state)
}

func (r conceptRepo) GetByIDs(ctx context.Context, ownerID string, ids []valueobjects.ID) ([]*entities.Concept, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*entities.Concept, 0, len(ids))
	for _, id := range ids {
		state, ok := r.s.concepts[ownerID][id.String()]
		if !ok {
			continue
		}
		c, err := entities.ReconstructConcept(state)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r conceptRepo) FindByLabel(ctx context.Context, ownerID string, conceptType valueobjects.ConceptType, label string) (*entities.Concept, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.conceptKeys[ownerID][entities.ConceptUniqueKey(conceptType, label)]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("concept", label)
	}
	return entities.ReconstructConcept(r.s.concepts[ownerID][id])
}

func (r conceptRepo) Update(ctx context.Context, concept *entities.Concept, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Concepts.Update"); err != nil {
		return err
	}

	state := concept.State()
	stored, ok := r.s.concepts[state.OwnerID][state.ID]
	if !ok {
		return pkgerrors.NewNotFoundError("concept", state.ID)
	}
	if stored.Version != expectedVersion {
		return versionConflict("concept", state.ID, expectedVersion, stored.Version)
	}

	keys := bucket(r.s.conceptKeys, state.OwnerID)
	oldKey, newKey := conceptKey(stored), conceptKey(state)
	if oldKey != newKey {
		if existing, taken := keys[newKey]; taken {
			return pkgerrors.NewConflictError("a concept with this type and label already exists").
				WithDetail("existing_id", existing)
		}
		delete(keys, oldKey)
		keys[newKey] = state.ID
	}
	r.s.concepts[state.OwnerID][state.ID] = state
	return nil
}

func (r conceptRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) ([]valueobjects.ID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Concepts.Delete"); err != nil {
		return nil, err
	}

	if _, ok := r.s.concepts[ownerID][id.String()]; !ok {
		return nil, pkgerrors.NewNotFoundError("concept", id.String())
	}
	removed := r.s.deleteConnectionsTouching(ownerID, valueobjects.ConceptEndpoint(id))
	r.s.deleteConcept(ownerID, id.String())
	return removed, nil
}

// deleteConcept drops the concept, its unique key and every reference to it
func (s *Store) deleteConcept(owner, id string) {
	state, ok := s.concepts[owner][id]
	if !ok {
		return
	}
	delete(s.concepts[owner], id)
	delete(s.conceptKeys[owner], conceptKey(state))
	s.detachConcept(owner, id)
}

func (r conceptRepo) List(ctx context.Context, ownerID string, filter ports.ConceptFilter, params common.PaginationParams) ([]*entities.Concept, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Concepts.List"); err != nil {
		return nil, 0, err
	}

	states := make([]entities.ConceptState, 0, len(r.s.concepts[ownerID]))
	for _, c := range r.s.concepts[ownerID] {
		if filter.Type != nil && c.Type != string(*filter.Type) {
			continue
		}
		if filter.Origin != nil && c.Origin != string(*filter.Origin) {
			continue
		}
		states = append(states, c)
	}
	sort.Slice(states, func(i, j int) bool {
		a, b := valueobjects.LabelKey(states[i].Label), valueobjects.LabelKey(states[j].Label)
		if a != b {
			return a < b
		}
		return states[i].ID < states[j].ID
	})

	page := paginate(states, params)
	out := make([]*entities.Concept, 0, len(page))
	for _, state := range page {
		c, err := entities.ReconstructConcept(state)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, len(states), nil
}
