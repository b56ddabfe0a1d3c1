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

type connectionRepo struct{ s *Store }

func (r connectionRepo) Create(ctx context.Context, connection *entities.Connection) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Connections.Create"); err != nil {
		return err
	}

	state := connection.State()
	if !r.s.endpointExists(state.OwnerID, state.Source.Kind, state.Source.ID) {
		return pkgerrors.NewFieldValidationError("source", state.Source.Kind+" "+state.Source.ID+" does not exist")
	}
	if !r.s.endpointExists(state.OwnerID, state.Target.Kind, state.Target.ID) {
		return pkgerrors.NewFieldValidationError("target", state.Target.Kind+" "+state.Target.ID+" does not exist")
	}

	keys := bucket(r.s.connectionKeys, state.OwnerID)
	key := connection.DuplicateKey()
	if existing, taken := keys[key]; taken {
		return pkgerrors.NewConflictError("connection already exists").
			WithCode("DUPLICATE_CONNECTION").
			WithDetail("existing_id", existing)
	}
	bucket(r.s.connections, state.OwnerID)[state.ID] = state
	keys[key] = state.ID
	return nil
}

func (r connectionRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Connections.GetByID"); err != nil {
		return nil, err
	}

	state, ok := r.s.connections[ownerID][id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("connection", id.String())
	}
	return entities.ReconstructConnection(state)
}

func (r connectionRepo) FindDuplicate(ctx context.Context, ownerID, duplicateKey string) (*entities.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Connections.FindDuplicate"); err != nil {
		return nil, err
	}

	id, ok := r.s.connectionKeys[ownerID][duplicateKey]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("connection", duplicateKey)
	}
	return entities.ReconstructConnection(r.s.connections[ownerID][id])
}

func (r connectionRepo) ListByEndpoint(ctx context.Context, ownerID string, endpoint valueobjects.Endpoint) ([]*entities.Connection, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Connections.ListByEndpoint"); err != nil {
		return nil, err
	}

	states := make([]entities.ConnectionState, 0)
	for _, c := range r.s.connections[ownerID] {
		if touches(c, endpoint) {
			states = append(states, c)
		}
	}
	sortConnections(states, "desc")
	return reconstructConnections(states)
}

func (r connectionRepo) Update(ctx context.Context, connection *entities.Connection, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Connections.Update"); err != nil {
		return err
	}

	state := connection.State()
	stored, ok := r.s.connections[state.OwnerID][state.ID]
	if !ok {
		return pkgerrors.NewNotFoundError("connection", state.ID)
	}
	if stored.Version != expectedVersion {
		return versionConflict("connection", state.ID, expectedVersion, stored.Version)
	}

	previous, err := entities.ReconstructConnection(stored)
	if err != nil {
		return err
	}
	keys := bucket(r.s.connectionKeys, state.OwnerID)
	oldKey, newKey := previous.DuplicateKey(), connection.DuplicateKey()
	if oldKey != newKey {
		if existing, taken := keys[newKey]; taken {
			return pkgerrors.NewConflictError("connection already exists").
				WithCode("DUPLICATE_CONNECTION").
				WithDetail("existing_id", existing)
		}
		delete(keys, oldKey)
		keys[newKey] = state.ID
	}
	r.s.connections[state.OwnerID][state.ID] = state
	return nil
}

func (r connectionRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Connections.Delete"); err != nil {
		return err
	}

	if _, ok := r.s.connections[ownerID][id.String()]; !ok {
		return pkgerrors.NewNotFoundError("connection", id.String())
	}
	r.s.deleteConnection(ownerID, id.String())
	return nil
}

func (r connectionRepo) List(ctx context.Context, ownerID string, filter ports.ConnectionFilter, params common.PaginationParams) ([]*entities.Connection, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Connections.List"); err != nil {
		return nil, 0, err
	}

	states := make([]entities.ConnectionState, 0)
	for _, c := range r.s.connections[ownerID] {
		if filter.Endpoint != nil && !touches(c, *filter.Endpoint) {
			continue
		}
		if filter.Kind != nil && c.Kind != string(*filter.Kind) {
			continue
		}
		if filter.Status != nil && c.Status != string(*filter.Status) {
			continue
		}
		states = append(states, c)
	}
	sortConnections(states, params.Order)

	out, err := reconstructConnections(paginate(states, params))
	if err != nil {
		return nil, 0, err
	}
	return out, len(states), nil
}

func sortConnections(states []entities.ConnectionState, order string) {
	sort.Slice(states, func(i, j int) bool {
		a, b := states[i], states[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if order == "asc" {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func reconstructConnections(states []entities.ConnectionState) ([]*entities.Connection, error) {
	out := make([]*entities.Connection, 0, len(states))
	for _, state := range states {
		c, err := entities.ReconstructConnection(state)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
