package postgres

import (
	"context"

	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/pkg/common"

	"gorm.io/gorm"
)

type conversationRepo struct{ s *Store }

func (r conversationRepo) Create(ctx context.Context, conversation *entities.Conversation) error {
	state := conversation.State()
	return r.s.transaction(ctx, "create conversation", func(tx *gorm.DB) error {
		if err := requireReferences(tx, state); err != nil {
			return err
		}
		row := newConversationRow(state)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := writeReferences(tx, state); err != nil {
			return err
		}
		return appendMessages(tx, state, 0)
	})
}

func (r conversationRepo) GetByID(ctx context.Context, ownerID string, id valueobjects.ID) (*entities.Conversation, error) {
	var row conversationRow
	if err := r.s.conn(ctx).Where("id = ? AND owner_id = ?", id.String(), ownerID).Take(&row).Error; err != nil {
		return nil, translateError("get conversation", notFound(err, "conversation", id.String()))
	}

	var refs []conversationRefRow
	if err := r.s.conn(ctx).Where("conversation_id = ?", row.ID).
		Order("ref_kind, position").
		Find(&refs).Error; err != nil {
		return nil, translateError("load conversation references", err)
	}
	var messages []messageRow
	if err := r.s.conn(ctx).Where("conversation_id = ?", row.ID).
		Order("seq ASC").
		Find(&messages).Error; err != nil {
		return nil, translateError("load messages", err)
	}
	return entities.ReconstructConversation(row.state(refs, messages))
}

func (r conversationRepo) Update(ctx context.Context, conversation *entities.Conversation, expectedVersion int) error {
	state := conversation.State()
	return r.s.transaction(ctx, "update conversation", func(tx *gorm.DB) error {
		row := newConversationRow(state)
		err := conditionalUpdate(tx, &conversationRow{}, "conversation", state.OwnerID, state.ID, expectedVersion, map[string]interface{}{
			"title":      row.Title,
			"updated_at": row.UpdatedAt,
			"version":    row.Version,
		})
		if err != nil {
			return err
		}
		if err := requireReferences(tx, state); err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", state.ID).Delete(&conversationRefRow{}).Error; err != nil {
			return err
		}
		if err := writeReferences(tx, state); err != nil {
			return err
		}

		// messages are append-only; store the ones past the stored tail
		var stored int64
		if err := tx.Model(&messageRow{}).Where("conversation_id = ?", state.ID).Count(&stored).Error; err != nil {
			return err
		}
		return appendMessages(tx, state, int(stored))
	})
}

func (r conversationRepo) Delete(ctx context.Context, ownerID string, id valueobjects.ID) error {
	return r.s.transaction(ctx, "delete conversation", func(tx *gorm.DB) error {
		var row conversationRow
		if err := tx.Where("id = ? AND owner_id = ?", id.String(), ownerID).Take(&row).Error; err != nil {
			return notFound(err, "conversation", id.String())
		}
		if err := tx.Where("conversation_id = ?", row.ID).Delete(&messageRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", row.ID).Delete(&conversationRefRow{}).Error; err != nil {
			return err
		}
		return tx.Delete(&row).Error
	})
}

func (r conversationRepo) List(ctx context.Context, ownerID string, params common.PaginationParams) ([]*entities.Conversation, int, error) {
	query := r.s.conn(ctx).Model(&conversationRow{}).Where("owner_id = ?", ownerID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError("count conversations", err)
	}

	var rows []conversationRow
	if err := page(query.Order("updated_at DESC").Order("id ASC"), params).Find(&rows).Error; err != nil {
		return nil, 0, translateError("list conversations", err)
	}
	if len(rows) == 0 {
		return []*entities.Conversation{}, int(total), nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	var refs []conversationRefRow
	if err := r.s.conn(ctx).Where("conversation_id IN ?", ids).
		Order("conversation_id, ref_kind, position").
		Find(&refs).Error; err != nil {
		return nil, 0, translateError("load conversation references", err)
	}
	var messages []messageRow
	if err := r.s.conn(ctx).Where("conversation_id IN ?", ids).
		Order("conversation_id, seq").
		Find(&messages).Error; err != nil {
		return nil, 0, translateError("load messages", err)
	}

	refsBy := make(map[string][]conversationRefRow, len(rows))
	for _, ref := range refs {
		refsBy[ref.ConversationID] = append(refsBy[ref.ConversationID], ref)
	}
	messagesBy := make(map[string][]messageRow, len(rows))
	for _, m := range messages {
		messagesBy[m.ConversationID] = append(messagesBy[m.ConversationID], m)
	}

	out := make([]*entities.Conversation, 0, len(rows))
	for _, row := range rows {
		c, err := entities.ReconstructConversation(row.state(refsBy[row.ID], messagesBy[row.ID]))
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, int(total), nil
}

func requireReferences(tx *gorm.DB, state entities.ConversationState) error {
	if err := requireArtifacts(tx, state.OwnerID, "artifact_ids", state.ArtifactIDs); err != nil {
		return err
	}
	return requireConcepts(tx, state.OwnerID, "concept_ids", state.ConceptIDs)
}

func writeReferences(tx *gorm.DB, state entities.ConversationState) error {
	if refs := conversationRefRows(state); len(refs) > 0 {
		return tx.Create(&refs).Error
	}
	return nil
}

// appendMessages stores state's messages from index from onwards
func appendMessages(tx *gorm.DB, state entities.ConversationState, from int) error {
	if from >= len(state.Messages) {
		return nil
	}
	rows := make([]messageRow, 0, len(state.Messages)-from)
	for seq := from; seq < len(state.Messages); seq++ {
		rows = append(rows, newMessageRow(state, seq))
	}
	return tx.Create(&rows).Error
}
