package services

import (
	"strings"
	"testing"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/queries"
	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/valueobjects"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConversation(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)

	a := mustCreateArtifact(t, g, ctx, "Source", "Body")
	c := mustCreateConcept(t, g, ctx, "idea", "Thread")

	t.Run("WithReferences", func(t *testing.T) {
		conv, err := g.CreateConversation(ctx, commands.CreateConversationCommand{
			Title:       "Discuss",
			ArtifactIDs: []string{a.ID().String()},
			ConceptIDs:  []string{c.ID().String()},
		})
		require.NoError(t, err)

		assert.Equal(t, "Discuss", conv.Title())
		assert.Equal(t, []valueobjects.ID{a.ID()}, conv.ArtifactIDs())
		assert.Empty(t, conv.Messages())
		assert.Equal(t, 1, conv.Version())
	})

	t.Run("MissingTitle", func(t *testing.T) {
		_, err := g.CreateConversation(ctx, commands.CreateConversationCommand{Title: "  "})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("UnknownReference", func(t *testing.T) {
		_, err := g.CreateConversation(ctx, commands.CreateConversationCommand{
			Title:      "Broken",
			ConceptIDs: []string{"9b2f0c1e-3c4d-4a5b-8c6d-7e8f9a0b1c2d"},
		})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("OtherOwnersReference", func(t *testing.T) {
		_, err := g.CreateConversation(asUser(bob), commands.CreateConversationCommand{
			Title:       "Snooping",
			ArtifactIDs: []string{a.ID().String()},
		})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestUpdateConversation(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)

	a := mustCreateArtifact(t, g, ctx, "Source", "Body")
	c := mustCreateConcept(t, g, ctx, "idea", "Thread")
	conv, err := g.CreateConversation(ctx, commands.CreateConversationCommand{
		Title:       "Before",
		ArtifactIDs: []string{a.ID().String()},
		ConceptIDs:  []string{c.ID().String()},
	})
	require.NoError(t, err)

	t.Run("TitleOnly", func(t *testing.T) {
		updated, err := g.UpdateConversation(ctx, conv.ID().String(), commands.UpdateConversationCommand{Title: strPtr("After")})
		require.NoError(t, err)

		assert.Equal(t, "After", updated.Title())
		assert.Len(t, updated.ArtifactIDs(), 1)
		assert.Len(t, updated.ConceptIDs(), 1)
		assert.Equal(t, 2, updated.Version())
	})

	t.Run("ClearArtifactsKeepsConcepts", func(t *testing.T) {
		updated, err := g.UpdateConversation(ctx, conv.ID().String(), commands.UpdateConversationCommand{ArtifactIDs: &[]string{}})
		require.NoError(t, err)

		assert.Empty(t, updated.ArtifactIDs())
		assert.Len(t, updated.ConceptIDs(), 1)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		_, err := g.UpdateConversation(ctx, conv.ID().String(), commands.UpdateConversationCommand{
			Title:           strPtr("Late"),
			ExpectedVersion: intPtr(1),
		})
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("OtherOwner", func(t *testing.T) {
		_, err := g.UpdateConversation(asUser(bob), conv.ID().String(), commands.UpdateConversationCommand{Title: strPtr("Mine")})
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestAppendMessage(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)

	conv, err := g.CreateConversation(ctx, commands.CreateConversationCommand{Title: "Chat"})
	require.NoError(t, err)

	updated, err := g.AppendMessage(ctx, conv.ID().String(), commands.AppendMessageCommand{Content: "hello"})
	require.NoError(t, err)
	updated, err = g.AppendMessage(ctx, conv.ID().String(), commands.AppendMessageCommand{Role: "assistant", Content: "hi there"})
	require.NoError(t, err)

	messages := updated.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, valueobjects.RoleUser, messages[0].Role)
	assert.Equal(t, valueobjects.RoleAssistant, messages[1].Role)
	assert.Equal(t, 3, updated.Version())

	reloaded, err := g.GetConversation(ctx, conv.ID().String())
	require.NoError(t, err)
	assert.Len(t, reloaded.Messages(), 2)

	t.Run("UnknownRole", func(t *testing.T) {
		_, err := g.AppendMessage(ctx, conv.ID().String(), commands.AppendMessageCommand{Role: "narrator", Content: "x"})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("MessageLimit", func(t *testing.T) {
		cfg := config.DefaultDomainConfig()
		cfg.MaxMessagesPerConversation = 2
		g.SetDomainConfig(cfg)
		defer g.SetDomainConfig(config.DefaultDomainConfig())

		_, err := g.AppendMessage(ctx, conv.ID().String(), commands.AppendMessageCommand{Content: "third"})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("TooLong", func(t *testing.T) {
		_, err := g.AppendMessage(ctx, conv.ID().String(), commands.AppendMessageCommand{
			Content: strings.Repeat("x", g.DomainConfig().MaxMessageLength+1),
		})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestDeleteAndListConversations(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)

	first, err := g.CreateConversation(ctx, commands.CreateConversationCommand{Title: "First"})
	require.NoError(t, err)
	_, err = g.CreateConversation(ctx, commands.CreateConversationCommand{Title: "Second"})
	require.NoError(t, err)

	assert.True(t, pkgerrors.IsNotFound(g.DeleteConversation(asUser(bob), first.ID().String())))
	require.NoError(t, g.DeleteConversation(ctx, first.ID().String()))

	page, err := g.ListConversations(ctx, queries.ListConversationsQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Second", page.Items[0].Title())
}
