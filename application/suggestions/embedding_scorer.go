package suggestions

import (
	"context"
	"fmt"
	"math"

	"bobbin-backend/application/ports"
	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const embeddingScorerName = "embedding"

// EmbeddingClient is the subset of the OpenAI client used for embeddings
type EmbeddingClient interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// EmbeddingScorer rates candidates by cosine similarity of text embeddings.
// The anchor and all candidates are embedded in one request.
type EmbeddingScorer struct {
	client   EmbeddingClient
	model    openai.EmbeddingModel
	maxInput int
	logger   *zap.Logger
}

// NewEmbeddingScorer creates a scorer backed by an OpenAI-compatible API
func NewEmbeddingScorer(apiKey, baseURL, model string, logger *zap.Logger) *EmbeddingScorer {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return NewEmbeddingScorerWithClient(openai.NewClientWithConfig(config), model, logger)
}

// NewEmbeddingScorerWithClient creates a scorer around an existing client
func NewEmbeddingScorerWithClient(client EmbeddingClient, model string, logger *zap.Logger) *EmbeddingScorer {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingScorer{
		client:   client,
		model:    openai.EmbeddingModel(model),
		maxInput: 2000,
		logger:   logger,
	}
}

// Name identifies the scorer in logs
func (s *EmbeddingScorer) Name() string {
	return embeddingScorerName
}

// Score implements ports.SuggestionScorer
func (s *EmbeddingScorer) Score(ctx context.Context, anchor ports.SuggestionCandidate, candidates []ports.SuggestionCandidate) ([]ports.ScoredCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, s.input(anchor))
	for _, c := range candidates {
		inputs = append(inputs, s.input(c))
	}

	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: s.model,
	})
	if err != nil {
		return nil, pkgerrors.NewExternalError("embeddings", err)
	}

	vectors := make([][]float32, len(inputs))
	for _, e := range resp.Data {
		if e.Index >= 0 && e.Index < len(vectors) {
			vectors[e.Index] = e.Embedding
		}
	}
	if vectors[0] == nil {
		return nil, pkgerrors.NewExternalError("embeddings", fmt.Errorf("no embedding returned for anchor"))
	}

	scored := make([]ports.ScoredCandidate, 0, len(candidates))
	for i, c := range candidates {
		vec := vectors[i+1]
		if vec == nil {
			s.logger.Debug("missing embedding for candidate", zap.String("endpoint", c.Endpoint.Key()))
			continue
		}
		similarity := cosine(vectors[0], vec)
		if similarity <= 0 {
			continue
		}
		scored = append(scored, ports.ScoredCandidate{
			Candidate: c,
			Score:     similarity,
			Kind:      relationFor(anchor.Endpoint, c.Endpoint),
			Reason:    fmt.Sprintf("semantic similarity %.2f", similarity),
		})
	}

	return scored, nil
}

func (s *EmbeddingScorer) input(c ports.SuggestionCandidate) string {
	text := c.Title
	if c.Text != "" {
		text += "\n" + c.Text
	}
	runes := []rune(text)
	if len(runes) > s.maxInput {
		text = string(runes[:s.maxInput])
	}
	if text == "" {
		text = c.Endpoint.Key()
	}
	return text
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
