package intent

import (
	"strings"

	"analytics-agent/internal/domain"
)

const (
	// PatternConfidence is returned for an exact phrase hit.
	PatternConfidence = 0.95
	// FuzzyConfidence is returned for a partial word-coverage hit.
	FuzzyConfidence = 0.7

	fuzzyMinCoverage = 0.6
)

// PatternMatcher classifies questions against the fixed phrase table.
type PatternMatcher struct{}

func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{}
}

// Match returns the first intent whose phrase occurs in the question, falling
// back to the best fuzzy word-coverage score. No hit yields (unknown, 0).
func (m *PatternMatcher) Match(question string) (domain.Intent, float64) {
	lower := strings.ToLower(question)

	if isEmotionTopic(lower) {
		return domain.IntentTopicsByEmotion, PatternConfidence
	}

	for _, row := range phraseTable {
		for _, phrase := range row.phrases {
			if strings.Contains(lower, phrase) {
				return row.intent, PatternConfidence
			}
		}
	}

	best, bestScore := domain.IntentUnknown, 0.0
	for _, row := range phraseTable {
		for _, phrase := range row.phrases {
			words := strings.Fields(phrase)
			hits := 0
			for _, w := range words {
				if strings.Contains(lower, w) {
					hits++
				}
			}
			score := float64(hits) / float64(len(words))
			if score > bestScore && score >= fuzzyMinCoverage {
				best, bestScore = row.intent, score
			}
		}
	}
	if best != domain.IntentUnknown {
		return best, FuzzyConfidence
	}
	return domain.IntentUnknown, 0
}

func isEmotionTopic(lower string) bool {
	return strings.Contains(lower, "topic") && containsAny(lower, priorityEmotionWords...)
}
