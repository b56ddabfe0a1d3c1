package ports

import (
	"context"

	"bobbin-backend/domain/core/valueobjects"
)

// SuggestionCandidate is an endpoint considered for a suggested connection
type SuggestionCandidate struct {
	Endpoint valueobjects.Endpoint
	Title    string
	Text     string
	Keywords []string
}

// ScoredCandidate is a candidate with the scorer's verdict
type ScoredCandidate struct {
	Candidate SuggestionCandidate
	Score     float64
	Kind      valueobjects.RelationshipKind
	Reason    string
}

// SuggestionScorer rates how related each candidate is to the anchor. Scores
// are expected in [0,1]; callers clamp anything outside and drop NaN.
type SuggestionScorer interface {
	Name() string
	Score(ctx context.Context, anchor SuggestionCandidate, candidates []SuggestionCandidate) ([]ScoredCandidate, error)
}
