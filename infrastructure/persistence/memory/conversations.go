package memory

import (
	"context"
	"sort"

	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"
	pkgerrors "bobbin-backend/pkg/errors"
)

type conversationRepo struct{ s *Store }

func (r conversationRepo) Create(ctx context.Context, conversation *entities.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Conversations.Create"); err != nil {
		return err
	}

	state := conversation.State()
	if err := r.s.requireArtifacts(state.OwnerID, "artifact_ids", state.ArtifactIDs); err != nil {
		return err
	}
	if err := r.s.requireConcepts(state.OwnerID, "concept_ids", state.ConceptIDs); err != nil {
		return err
	}
	bucket(r.s.conversations, state.OwnerID)[state.ID] = state
	return nil
}

func (r conversationRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Conversations.GetByID"); err != nil {
		return nil, err
	}

	state, ok := r.s.conversations[ownerID][id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("conversation", id.String())
	}
	return entities.ReconstructConversation(state)
}

func (r conversationRepo) Update(ctx context.Context, conversation *entities.Conversation, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Conversations.Update"); err != nil {
		return err
	}

	state := conversation.State()
	stored, ok := r.s.conversations[state.OwnerID][state.ID]
	if !ok {
		return pkgerrors.NewNotFoundError("conversation", state.ID)
	}
	if stored.Version != expectedVersion {
		return versionConflict("conversation", state.ID, expectedVersion, stored.Version)
	}
	if err := r.s.requireArtifacts(state.OwnerID, "artifact_ids", state.ArtifactIDs); err != nil {
		return err
	}
	if err := r.s.requireConcepts(state.OwnerID, "concept_ids", state.ConceptIDs); err != nil {
		return err
	}
	r.s.conversations[state.OwnerID][state.ID] = state
	return nil
}

func (r conversationRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkError("Conversations.Delete"); err != nil {
		return err
	}

	if _, ok := r.s.conversations[ownerID][id.String()]; !ok {
		return pkgerrors.NewNotFoundError("conversation", id.String())
	}
	delete(r.s.conversations[ownerID], id.String())
	return nil
}

func (r conversationRepo) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Conversation, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if err := r.s.checkError("Conversations.List"); err != nil {
		return nil, 0, err
	}

	states := make([]entities.ConversationState, 0, len(r.s.conversations[ownerID]))
	for _, c := range r.s.conversations[ownerID] {
		states = append(states, c)
	}
	sort.Slice(states, func(i, j int) bool {
		a, b := states[i], states[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	page := paginate(states, params)
	out := make([]*entities.Conversation, 0, len(page))
	for _, state := range page {
		c, err := entities.ReconstructConversation(state)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, len(states), nil
}
