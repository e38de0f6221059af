package intent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"analytics-agent/internal/domain"
)

func user(content string) domain.Message {
	return domain.NewMessage(domain.RoleUser, content, domain.Metadata{})
}

func assistant(content string, meta domain.Metadata) domain.Message {
	return domain.NewMessage(domain.RoleAssistant, content, meta)
}

func TestExtractContext_NilWithoutDetection(t *testing.T) {
	require.Nil(t, ExtractContext(nil))
	require.Nil(t, ExtractContext([]domain.Message{user("hi")}))
	require.Nil(t, ExtractContext([]domain.Message{
		user("revenue?"),
		assistant("...", domain.Metadata{Agentic: true, ToolsCalled: []string{"get_revenue_trends"}}),
	}))
	require.Nil(t, ExtractContext([]domain.Message{
		user("hmm"),
		assistant("...", domain.Metadata{Intent: domain.IntentUnknown}),
	}))
}

func TestExtractContext_UsesMostRecentAssistant(t *testing.T) {
	p := domain.Params{PeriodDays: domain.Float(7), EmotionFilter: domain.EmotionFilter{"anxious"}}
	history := []domain.Message{
		user("q1"),
		assistant("a1", domain.Metadata{Intent: domain.IntentRevenueTrends}),
		user("q2"),
		assistant("a2", domain.Metadata{Intent: domain.IntentTrendingTopics, Params: &p, DataType: "list", DataSummary: "10 records"}),
		user("q3"),
		assistant("a3", domain.Metadata{Intent: domain.IntentEmotions}),
		user("what about only happy customers"),
		assistant("a4", domain.Metadata{Intent: domain.IntentTopicsByEmotion, Params: &p, DataType: "list", DataSummary: "3 records"}),
	}

	cctx := ExtractContext(history)
	require.NotNil(t, cctx)
	require.Equal(t, domain.IntentTopicsByEmotion, cctx.LastIntent)
	require.Equal(t, 7.0, *cctx.LastParams.PeriodDays)
	require.Equal(t, "3 records", cctx.LastDataSummary)
	require.Equal(t, "list", cctx.LastDataType)
	require.Equal(t, []string{"what about only happy customers", "q3", "q2"}, cctx.RecentQuestions)
	require.Equal(t, 8, cctx.ConversationLength)
	require.True(t, cctx.IsRefinement)
	require.False(t, cctx.IsComparison)

	// LastParams is a copy
	*cctx.LastParams.PeriodDays = 1
	require.Equal(t, 7.0, *p.PeriodDays)
}

func TestExtractContext_AgenticTurnClearsContext(t *testing.T) {
	history := []domain.Message{
		user("top products"),
		assistant("a1", domain.Metadata{Intent: domain.IntentProductPerformance}),
		user("something odd"),
		assistant("a2", domain.Metadata{Agentic: true}),
	}
	require.Nil(t, ExtractContext(history))
}

func TestExtractContext_Comparison(t *testing.T) {
	cctx := ExtractContext([]domain.Message{
		user("revenue this month vs last month"),
		assistant("a", domain.Metadata{Intent: domain.IntentRevenueTrends}),
	})
	require.NotNil(t, cctx)
	require.True(t, cctx.IsComparison)
	require.False(t, cctx.IsRefinement)
	require.Empty(t, cctx.LastParams.Keys())
}
