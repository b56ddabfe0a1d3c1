package suggestions

import (
	"context"
	"fmt"
	"strings"

	"bobbin-backend/application/ports"
	"bobbin-backend/domain/core/valueobjects"
)

const (
	mentionScore      = 0.9
	maxReasonKeywords = 3
	keywordScorerName = "keyword"
)

// KeywordScorer rates candidates by how many of the anchor's keywords they
// contain. A concept whose label appears verbatim in the anchor text scores
// at least mentionScore.
type KeywordScorer struct{}

// NewKeywordScorer creates the default scorer
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

// Name identifies the scorer in logs
func (s *KeywordScorer) Name() string {
	return keywordScorerName
}

// Score implements ports.SuggestionScorer
func (s *KeywordScorer) Score(ctx context.Context, anchor ports.SuggestionCandidate, candidates []ports.SuggestionCandidate) ([]ports.ScoredCandidate, error) {
	anchorKeywords := anchor.Keywords
	if len(anchorKeywords) == 0 {
		anchorKeywords = Keywords(anchor.Title + " " + anchor.Text)
	}
	anchorText := " " + strings.ToLower(anchor.Title+" "+anchor.Text) + " "

	scored := make([]ports.ScoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		targetWords := wordSet(candidate.Title + " " + candidate.Text)
		for _, k := range candidate.Keywords {
			targetWords[k] = true
		}

		var matched []string
		for _, keyword := range anchorKeywords {
			if targetWords[keyword] {
				matched = append(matched, keyword)
			}
		}

		score := 0.0
		if len(anchorKeywords) > 0 {
			score = float64(len(matched)) / float64(len(anchorKeywords))
		}
		reason := sharedKeywordsReason(matched)

		if candidate.Endpoint.Kind() == valueobjects.EndpointConcept && candidate.Title != "" &&
			strings.Contains(anchorText, " "+strings.ToLower(candidate.Title)+" ") && score < mentionScore {
			score = mentionScore
			reason = fmt.Sprintf("mentions %q", candidate.Title)
		}

		if score == 0 {
			continue
		}

		scored = append(scored, ports.ScoredCandidate{
			Candidate: candidate,
			Score:     score,
			Kind:      relationFor(anchor.Endpoint, candidate.Endpoint),
			Reason:    reason,
		})
	}

	return scored, nil
}

func sharedKeywordsReason(matched []string) string {
	if len(matched) == 0 {
		return ""
	}
	if len(matched) > maxReasonKeywords {
		matched = matched[:maxReasonKeywords]
	}
	return "shared keywords: " + strings.Join(matched, ", ")
}

// relationFor picks the relationship a suggestion proposes
func relationFor(anchor, candidate valueobjects.Endpoint) valueobjects.RelationshipKind {
	switch {
	case anchor.Kind() == valueobjects.EndpointArtifact && candidate.Kind() == valueobjects.EndpointConcept:
		return valueobjects.RelationReferences
	case anchor.Kind() == candidate.Kind():
		return valueobjects.RelationSimilar
	default:
		return valueobjects.RelationRelated
	}
}
