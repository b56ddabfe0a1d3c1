package suggestions

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/valueobjects"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(kind valueobjects.EndpointKind, title, text string) ports.SuggestionCandidate {
	id := valueobjects.NewID()
	ep := valueobjects.ArtifactEndpoint(id)
	if kind == valueobjects.EndpointConcept {
		ep = valueobjects.ConceptEndpoint(id)
	}
	return ports.SuggestionCandidate{Endpoint: ep, Title: title, Text: text}
}

func TestKeywords(t *testing.T) {
	got := Keywords("The Quick brown fox, the QUICK dog!")

	assert.Equal(t, []string{"quick", "brown"}, got)
}

func TestKeywordScorer_Score(t *testing.T) {
	anchor := candidate(valueobjects.EndpointArtifact, "Distributed systems reading", "Notes on consensus and raft")
	raft := candidate(valueobjects.EndpointConcept, "Raft", "")
	paper := candidate(valueobjects.EndpointArtifact, "Consensus paper", "raft and paxos compared")
	unrelated := candidate(valueobjects.EndpointArtifact, "Banana bread", "recipe")

	scored, err := NewKeywordScorer().Score(context.Background(), anchor,
		[]ports.SuggestionCandidate{raft, paper, unrelated})
	require.NoError(t, err)

	byKey := map[string]ports.ScoredCandidate{}
	for _, sc := range scored {
		byKey[sc.Candidate.Endpoint.Key()] = sc
	}

	require.Contains(t, byKey, raft.Endpoint.Key())
	assert.Equal(t, mentionScore, byKey[raft.Endpoint.Key()].Score)
	assert.Equal(t, valueobjects.RelationReferences, byKey[raft.Endpoint.Key()].Kind)

	require.Contains(t, byKey, paper.Endpoint.Key())
	assert.Equal(t, valueobjects.RelationSimilar, byKey[paper.Endpoint.Key()].Kind)
	assert.Contains(t, byKey[paper.Endpoint.Key()].Reason, "consensus")

	assert.NotContains(t, byKey, unrelated.Endpoint.Key())
}

func TestKeywordScorer_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewKeywordScorer().Score(ctx, candidate(valueobjects.EndpointArtifact, "a", "b"),
		[]ports.SuggestionCandidate{candidate(valueobjects.EndpointArtifact, "c", "d")})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRanked_OrderClampAndLimit(t *testing.T) {
	mk := func(score float64) ports.ScoredCandidate {
		return ports.ScoredCandidate{Candidate: candidate(valueobjects.EndpointConcept, "x", ""), Score: score}
	}
	input := []ports.ScoredCandidate{mk(0.3), mk(math.NaN()), mk(1.7), mk(-0.5), mk(0.8), mk(0.3)}

	got := slices.Collect(Ranked(input, 0, 0))

	require.Len(t, got, 5)
	scores := make([]float64, len(got))
	for i, sc := range got {
		scores[i] = sc.Score
		assert.GreaterOrEqual(t, sc.Score, 0.0)
		assert.LessOrEqual(t, sc.Score, 1.0)
	}
	assert.True(t, slices.IsSortedFunc(scores, func(a, b float64) int {
		switch {
		case a > b:
			return -1
		case a < b:
			return 1
		default:
			return 0
		}
	}))
	assert.Equal(t, 1.0, scores[0])

	limited := slices.Collect(Ranked(input, 0.25, 2))
	require.Len(t, limited, 2)
	assert.Equal(t, 1.0, limited[0].Score)
	assert.Equal(t, 0.8, limited[1].Score)
}

func TestRanked_StopsWhenConsumerStops(t *testing.T) {
	input := []ports.ScoredCandidate{{Score: 0.9}, {Score: 0.5}, {Score: 0.1}}

	n := 0
	for range Ranked(input, 0, 0) {
		n++
		break
	}

	assert.Equal(t, 1, n)
}

type fakeEmbeddings struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEmbeddings) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	if f.err != nil {
		return openai.EmbeddingResponse{}, f.err
	}
	req := conv.Convert()
	inputs := req.Input.([]string)
	resp := openai.EmbeddingResponse{}
	for i, in := range inputs {
		resp.Data = append(resp.Data, openai.Embedding{Index: i, Embedding: f.vectors[in]})
	}
	return resp, nil
}

func TestEmbeddingScorer_Score(t *testing.T) {
	anchor := candidate(valueobjects.EndpointArtifact, "anchor", "")
	near := candidate(valueobjects.EndpointConcept, "near", "")
	opposite := candidate(valueobjects.EndpointConcept, "opposite", "")

	client := &fakeEmbeddings{vectors: map[string][]float32{
		"anchor":   {1, 0},
		"near":     {0.9, 0.1},
		"opposite": {-1, 0},
	}}
	scorer := NewEmbeddingScorerWithClient(client, "", nil)

	scored, err := scorer.Score(context.Background(), anchor, []ports.SuggestionCandidate{near, opposite})

	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, near.Endpoint.Key(), scored[0].Candidate.Endpoint.Key())
	assert.InDelta(t, 0.9939, scored[0].Score, 1e-3)
}

func TestEmbeddingScorer_ClientErrorIsExternal(t *testing.T) {
	upstream := errors.New("rate limited")
	scorer := NewEmbeddingScorerWithClient(&fakeEmbeddings{err: upstream}, "", nil)

	_, err := scorer.Score(context.Background(), candidate(valueobjects.EndpointArtifact, "a", ""),
		[]ports.SuggestionCandidate{candidate(valueobjects.EndpointConcept, "b", "")})

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	assert.ErrorIs(t, err, upstream)
}
