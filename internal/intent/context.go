package intent

import "analytics-agent/internal/domain"

const maxRecentQuestions = 3

var (
	refinementRe  = wordsRe([]string{"what about", "how about", "only", "just", "instead", "filter", "exclude", "without"}, true)
	comparisonQRe = wordsRe([]string{"compare", "compared to", "vs", "versus", "difference", "than"}, true)
)

// ExtractContext derives the per-turn view over history (oldest first). It
// returns nil unless the most recent assistant message records an intent.
func ExtractContext(history []domain.Message) *domain.ConversationContext {
	if len(history) == 0 {
		return nil
	}

	var last *domain.Message
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleAssistant {
			last = &history[i]
			break
		}
	}
	if last == nil || !last.Metadata.HasDetection() {
		return nil
	}

	cctx := &domain.ConversationContext{
		LastIntent:         last.Metadata.Intent,
		LastDataType:       last.Metadata.DataType,
		LastDataSummary:    last.Metadata.DataSummary,
		ConversationLength: len(history),
	}
	if last.Metadata.Params != nil {
		cctx.LastParams = domain.Overlay(domain.Params{}, *last.Metadata.Params)
	}

	for i := len(history) - 1; i >= 0 && len(cctx.RecentQuestions) < maxRecentQuestions; i-- {
		if history[i].Role == domain.RoleUser {
			cctx.RecentQuestions = append(cctx.RecentQuestions, history[i].Content)
		}
	}
	if len(cctx.RecentQuestions) > 0 {
		latest := cctx.RecentQuestions[0]
		cctx.IsRefinement = refinementRe.MatchString(latest)
		cctx.IsComparison = comparisonQRe.MatchString(latest)
	}
	return cctx
}
