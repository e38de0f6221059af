package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"analytics-agent/internal/domain"
	"analytics-agent/internal/usecase"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"serve"}, {"lambda"}, {"ask"}, {"explain"}, {"embeddings", "rebuild"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"ask"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	require.ErrorContains(t, root.Execute(), "requires at least 1 arg")
}

func TestPrintAnswer(t *testing.T) {
	out := usecase.AskOutput{
		Answer:         "Sleep leads.",
		ConversationID: "c-1",
		Status:         usecase.StatusSuccess,
		Metadata:       domain.Metadata{Intent: domain.IntentTrendingTopics},
	}

	var buf bytes.Buffer
	require.NoError(t, printAnswer(&buf, out, false))
	require.Equal(t, "Sleep leads.\n\nconversation: c-1 (success)\n", buf.String())

	buf.Reset()
	require.NoError(t, printAnswer(&buf, out, true))
	require.Contains(t, buf.String(), `"intent": "trending_topics"`)
}
