package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"analytics-agent/internal/usecase"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		conversationID string
		useAgentic     bool
		showMetadata   bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the narrative",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				out, err := a.service.Ask(ctx, usecase.AskInput{
					Question:       strings.Join(args, " "),
					ConversationID: conversationID,
					UseAgentic:     useAgentic,
				})
				if err != nil {
					return err
				}
				return printAnswer(cmd.OutOrStdout(), out, showMetadata)
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation-id", "", "continue an existing conversation")
	cmd.Flags().BoolVar(&useAgentic, "agentic", false, "answer with the tool-calling agent")
	cmd.Flags().BoolVar(&showMetadata, "metadata", false, "print the answer metadata as JSON")
	return cmd
}

func printAnswer(w io.Writer, out usecase.AskOutput, withMeta bool) error {
	fmt.Fprintln(w, out.Answer)
	fmt.Fprintf(w, "\nconversation: %s (%s)\n", out.ConversationID, out.Status)
	if !withMeta {
		return nil
	}
	return writeIndented(w, out.Metadata)
}

func newExplainCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <question>",
		Short: "Show how a question would be classified",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				out, err := a.service.Explain(ctx, usecase.ExplainInput{Question: strings.Join(args, " ")})
				if err != nil {
					return err
				}
				return writeIndented(cmd.OutOrStdout(), out)
			})
		},
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
