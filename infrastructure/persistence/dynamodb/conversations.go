package dynamodb

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
	state := conversation.State()
	t := r.s.txn()
	if err := t.put(newConversationItem(state), &notExists, alreadyExists("conversation")); err != nil {
		return err
	}
	if err := requireReferences(t, state); err != nil {
		return err
	}
	return t.commit(ctx, "create conversation")
}

func (r conversationRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Conversation, error) {
	var item conversationItem
	found, err := r.s.getItem(ctx, ownerID, prefixConversation+id.String(), &item)
	if err != nil {
		return nil, classify("get conversation", err)
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("conversation", id.String())
	}
	return entities.ReconstructConversation(item.state())
}

func (r conversationRepo) Update(ctx context.Context, conversation *entities.Conversation, expectedVersion int) error {
	state := conversation.State()
	t := r.s.txn()
	cond := exists.And(versionIs(expectedVersion))
	if err := t.put(newConversationItem(state), &cond, versionFailure("conversation", state.ID, expectedVersion)); err != nil {
		return err
	}
	if err := requireReferences(t, state); err != nil {
		return err
	}
	return t.commit(ctx, "update conversation")
}

func (r conversationRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	t := r.s.txn()
	if err := t.del(ownerID, prefixConversation+id.String(), &exists, goneOrChanged("conversation", id.String())); err != nil {
		return err
	}
	return t.commit(ctx, "delete conversation")
}

func (r conversationRepo) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Conversation, int, error) {
	items, err := queryInto[conversationItem](ctx, r.s, ownerID, prefixConversation, nil)
	if err != nil {
		return nil, 0, classify("list conversations", err)
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	pageItems := paginate(items, params)
	out := make([]*entities.Conversation, 0, len(pageItems))
	for _, item := range pageItems {
		c, err := entities.ReconstructConversation(item.state())
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, len(items), nil
}

func requireReferences(t *txn, state entities.ConversationState) error {
	if err := t.requireAll(state.OwnerID, prefixArtifact, "artifact_ids", "artifact", state.ArtifactIDs); err != nil {
		return err
	}
	return t.requireAll(state.OwnerID, prefixConcept, "concept_ids", "concept", state.ConceptIDs)
}
