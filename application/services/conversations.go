package services

import (
	"context"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/queries"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/domain/core/valueobjects"
	"bobbin-backend/domain/events"
	"bobbin-backend/pkg/utils"

	"go.uber.org/zap"
)

// CreateConversation starts a discussion thread. Every referenced artifact
// and concept must belong to the user.
func (s *KnowledgeGraph) CreateConversation(ctx context.Context, cmd commands.CreateConversationCommand) (*entities.Conversation, error) {
	var conversation *entities.Conversation

	err := s.observe(ctx, "CreateConversation", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}

		artifactIDs, conceptIDs, err := s.resolveReferences(ctx, owner, cmd.ArtifactIDs, cmd.ConceptIDs)
		if err != nil {
			return err
		}

		conversation, err = entities.NewConversation(owner, cmd.Title, artifactIDs, conceptIDs, s.DomainConfig())
		if err != nil {
			return err
		}
		if err := s.store.Conversations().Create(ctx, conversation); err != nil {
			return err
		}

		s.logger.Info("conversation created",
			zap.String("conversation_id", conversation.ID().String()),
			zap.Int("artifacts", len(artifactIDs)),
			zap.Int("concepts", len(conceptIDs)))
		s.publish(ctx, conversation)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// resolveReferences parses reference ids and checks they exist. A nil input
// yields a nil slice so partial updates can leave a list untouched.
func (s *KnowledgeGraph) resolveReferences(ctx context.Context, owner string, rawArtifacts, rawConcepts []string) ([]valueobjects.ID, []valueobjects.ID, error) {
	var artifactIDs, conceptIDs []valueobjects.ID
	var err error

	if rawArtifacts != nil {
		artifactIDs, err = valueobjects.ParseIDs("artifact_ids", rawArtifacts)
		if err != nil {
			return nil, nil, err
		}
		if err := s.requireArtifacts(ctx, owner, "artifact_ids", artifactIDs); err != nil {
			return nil, nil, err
		}
	}
	if rawConcepts != nil {
		conceptIDs, err = valueobjects.ParseIDs("concept_ids", rawConcepts)
		if err != nil {
			return nil, nil, err
		}
		if err := s.requireConcepts(ctx, owner, "concept_ids", conceptIDs); err != nil {
			return nil, nil, err
		}
	}
	return artifactIDs, conceptIDs, nil
}

// GetConversation returns a conversation with its messages
func (s *KnowledgeGraph) GetConversation(ctx context.Context, id string) (*entities.Conversation, error) {
	var conversation *entities.Conversation

	err := s.observe(ctx, "GetConversation", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		conversationID, err := resolveID("conversation", id)
		if err != nil {
			return err
		}
		conversation, err = s.store.Conversations().GetByID(ctx, owner, conversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// UpdateConversation applies a partial update
func (s *KnowledgeGraph) UpdateConversation(ctx context.Context, id string, cmd commands.UpdateConversationCommand) (*entities.Conversation, error) {
	var conversation *entities.Conversation

	err := s.observe(ctx, "UpdateConversation", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
		conversationID, err := resolveID("conversation", id)
		if err != nil {
			return err
		}

		conversation, err = s.store.Conversations().GetByID(ctx, owner, conversationID)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion("conversation", id, cmd.ExpectedVersion, conversation.Version()); err != nil {
			return err
		}
		previous := conversation.Version()

		if cmd.Title != nil {
			if err := conversation.Rename(*cmd.Title); err != nil {
				return err
			}
		}
		if cmd.ArtifactIDs != nil || cmd.ConceptIDs != nil {
			var rawArtifacts, rawConcepts []string
			if cmd.ArtifactIDs != nil {
				rawArtifacts = nonNil(*cmd.ArtifactIDs)
			}
			if cmd.ConceptIDs != nil {
				rawConcepts = nonNil(*cmd.ConceptIDs)
			}
			artifactIDs, conceptIDs, err := s.resolveReferences(ctx, owner, rawArtifacts, rawConcepts)
			if err != nil {
				return err
			}
			if err := conversation.SetReferences(artifactIDs, conceptIDs, s.DomainConfig()); err != nil {
				return err
			}
		}

		if !conversation.CommitUpdate() {
			return nil
		}
		if err := s.store.Conversations().Update(ctx, conversation, previous); err != nil {
			return err
		}

		s.publish(ctx, conversation)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// nonNil turns an explicitly supplied empty list into a non-nil slice so it
// clears the references instead of leaving them untouched
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// AppendMessage adds a message to a conversation
func (s *KnowledgeGraph) AppendMessage(ctx context.Context, id string, cmd commands.AppendMessageCommand) (*entities.Conversation, error) {
	var conversation *entities.Conversation

	err := s.observe(ctx, "AppendMessage", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		if err := cmd.Validate(); err != nil {
			return err
		}
		role, err := valueobjects.ParseMessageRole(cmd.Role)
		if err != nil {
			return err
		}
		conversationID, err := resolveID("conversation", id)
		if err != nil {
			return err
		}

		conversation, err = s.store.Conversations().GetByID(ctx, owner, conversationID)
		if err != nil {
			return err
		}
		if err := checkExpectedVersion("conversation", id, cmd.ExpectedVersion, conversation.Version()); err != nil {
			return err
		}
		previous := conversation.Version()

		msg, err := conversation.AppendMessage(role, cmd.Content, s.DomainConfig())
		if err != nil {
			return err
		}
		if err := s.store.Conversations().Update(ctx, conversation, previous); err != nil {
			return err
		}

		s.logger.Debug("message appended",
			zap.String("conversation_id", id),
			zap.String("message_id", msg.ID.String()),
			zap.String("role", string(role)))
		s.publish(ctx, conversation)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// DeleteConversation removes a conversation and its messages
func (s *KnowledgeGraph) DeleteConversation(ctx context.Context, id string) error {
	return s.observe(ctx, "DeleteConversation", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		conversationID, err := resolveID("conversation", id)
		if err != nil {
			return err
		}
		if err := s.store.Conversations().Delete(ctx, owner, conversationID); err != nil {
			return err
		}

		s.publishEvents(ctx, events.NewEntityDeleted(events.TypeConversationDeleted, id, owner, nil, nil, utils.Now()))
		return nil
	})
}

// ListConversations returns the user's conversations, most recently updated first
func (s *KnowledgeGraph) ListConversations(ctx context.Context, q queries.ListConversationsQuery) (queries.Page[*entities.Conversation], error) {
	var page queries.Page[*entities.Conversation]

	err := s.observe(ctx, "ListConversations", func(ctx context.Context) error {
		owner, err := s.currentOwner(ctx)
		if err != nil {
			return err
		}
		params := normalizePage(q.Pagination)
		items, total, err := s.store.Conversations().List(ctx, owner, params)
		if err != nil {
			return err
		}
		page = queries.NewPage(items, params, total)
		return nil
	})
	return page, err
}
