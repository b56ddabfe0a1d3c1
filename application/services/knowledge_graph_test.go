package services

import (
	"context"
	"errors"
	"testing"

	"bobbin-backend/application/commands"
	"bobbin-backend/application/ports"
	"bobbin-backend/application/ports/mocks"
	"bobbin-backend/application/queries"
	"bobbin-backend/domain/config"
	"bobbin-backend/domain/core/entities"
	"bobbin-backend/infrastructure/auth"
	"bobbin-backend/infrastructure/persistence/memory"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
)

func newTestGraph(t *testing.T) (*KnowledgeGraph, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	g := NewKnowledgeGraph(store, auth.NewContextSession(), nil, nil, config.DefaultDomainConfig(), zaptest.NewLogger(t), nil, nil)
	return g, store
}

func asUser(id string) context.Context {
	return auth.WithUser(context.Background(), &ports.User{ID: id})
}

func mustCreateArtifact(t *testing.T, g *KnowledgeGraph, ctx context.Context, title, body string, conceptIDs ...string) *entities.Artifact {
	t.Helper()
	a, err := g.CreateArtifact(ctx, commands.CreateArtifactCommand{Title: title, Body: body, ConceptIDs: conceptIDs})
	require.NoError(t, err)
	return a
}

func mustCreateConcept(t *testing.T, g *KnowledgeGraph, ctx context.Context, conceptType, label string) *entities.Concept {
	t.Helper()
	c, err := g.CreateConcept(ctx, commands.CreateConceptCommand{Type: conceptType, Label: label})
	require.NoError(t, err)
	return c
}

func artifactEndpoint(a *entities.Artifact) commands.EndpointInput {
	return commands.EndpointInput{Kind: "artifact", ID: a.ID().String()}
}

func conceptEndpoint(c *entities.Concept) commands.EndpointInput {
	return commands.EndpointInput{Kind: "concept", ID: c.ID().String()}
}

func TestOperationsRequireSession(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := context.Background()

	_, err := g.CreateArtifact(ctx, commands.CreateArtifactCommand{Title: "t", Body: "b"})
	assert.True(t, pkgerrors.IsUnauthorized(err))

	_, err = g.CreateConcept(ctx, commands.CreateConceptCommand{Type: "topic", Label: "x"})
	assert.True(t, pkgerrors.IsUnauthorized(err))

	_, err = g.GetArtifactWithRelations(ctx, "9b2f0c1e-3c4d-4a5b-8c6d-7e8f9a0b1c2d")
	assert.True(t, pkgerrors.IsUnauthorized(err))

	_, err = g.GetConnectionSuggestions(ctx, queries.SuggestionContext{
		Anchor: commands.EndpointInput{Kind: "artifact", ID: "9b2f0c1e-3c4d-4a5b-8c6d-7e8f9a0b1c2d"},
	})
	assert.True(t, pkgerrors.IsUnauthorized(err))
}

func TestPathIDsThatCannotParseAreNotFound(t *testing.T) {
	g, _ := newTestGraph(t)
	ctx := asUser(alice)
	const id = "missing-1"

	ops := map[string]func() error{
		"GetArtifactWithRelations": func() error { _, err := g.GetArtifactWithRelations(ctx, id); return err },
		"UpdateArtifact": func() error {
			_, err := g.UpdateArtifact(ctx, id, commands.UpdateArtifactCommand{Title: strPtr("t")})
			return err
		},
		"DeleteArtifact": func() error { return g.DeleteArtifact(ctx, id) },
		"DeriveConcepts": func() error {
			_, err := g.DeriveConcepts(ctx, id, commands.DeriveConceptsCommand{
				Concepts: []commands.DerivedConceptInput{{Type: "topic", Label: "x"}},
			})
			return err
		},
		"GetConcept": func() error { _, err := g.GetConcept(ctx, id); return err },
		"UpdateConcept": func() error {
			_, err := g.UpdateConcept(ctx, id, commands.UpdateConceptCommand{Label: strPtr("x")})
			return err
		},
		"DeleteConcept": func() error { return g.DeleteConcept(ctx, id) },
		"GetConnection": func() error { _, err := g.GetConnection(ctx, id); return err },
		"UpdateConnection": func() error {
			_, err := g.UpdateConnection(ctx, id, commands.UpdateConnectionCommand{Label: strPtr("x")})
			return err
		},
		"ConfirmConnection": func() error { _, err := g.ConfirmConnection(ctx, id); return err },
		"DeleteConnection":  func() error { return g.DeleteConnection(ctx, id) },
		"GetConversation":   func() error { _, err := g.GetConversation(ctx, id); return err },
		"UpdateConversation": func() error {
			_, err := g.UpdateConversation(ctx, id, commands.UpdateConversationCommand{Title: strPtr("x")})
			return err
		},
		"AppendMessage": func() error {
			_, err := g.AppendMessage(ctx, id, commands.AppendMessageCommand{Content: "hi"})
			return err
		},
		"DeleteConversation": func() error { return g.DeleteConversation(ctx, id) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			require.Error(t, err)
			assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)
		})
	}
}

func TestSessionErrorsBecomeUnauthorized(t *testing.T) {
	session := new(mocks.MockSessionResolver)
	session.On("CurrentUser", mock.Anything).Return(nil, errors.New("token store offline"))

	g := NewKnowledgeGraph(memory.NewStore(), session, nil, nil, nil, nil, nil, nil)
	_, err := g.CreateArtifact(context.Background(), commands.CreateArtifactCommand{Title: "t", Body: "b"})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnauthorized(err))
	assert.ErrorContains(t, err, "token store offline")
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	publisher := new(mocks.MockEventPublisher)
	publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(errors.New("bus unavailable"))

	store := memory.NewStore()
	g := NewKnowledgeGraph(store, auth.NewContextSession(), nil, publisher, nil, zaptest.NewLogger(t), nil, nil)

	a, err := g.CreateArtifact(asUser(alice), commands.CreateArtifactCommand{Title: "Kept", Body: "still stored"})
	require.NoError(t, err)

	_, err = store.Artifacts().GetByID(context.Background(), alice, a.ID())
	assert.NoError(t, err)
	publisher.AssertExpectations(t)
	assert.Empty(t, a.GetUncommittedEvents())
}

func TestStoreFailureSurfaces(t *testing.T) {
	g, store := newTestGraph(t)
	store.SetError("Artifacts.Create", pkgerrors.NewDatabaseError("insert", errors.New("disk full")))

	a, err := g.CreateArtifact(asUser(alice), commands.CreateArtifactCommand{Title: "t", Body: "b"})

	require.Error(t, err)
	assert.Nil(t, a)
	assert.ErrorContains(t, err, "disk full")
}

func TestSetDomainConfig(t *testing.T) {
	g, _ := newTestGraph(t)

	cfg := config.DefaultDomainConfig()
	cfg.DuplicateConnectionPolicy = config.DuplicateReturnExisting
	g.SetDomainConfig(cfg)
	g.SetDomainConfig(nil)

	assert.Equal(t, config.DuplicateReturnExisting, g.DomainConfig().DuplicateConnectionPolicy)
}
