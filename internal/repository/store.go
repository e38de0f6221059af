// Package repository persists conversation history. Every backend keeps a
// sliding window of the most recent messages and forgets conversations that
// have been idle longer than their TTL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"analytics-agent/internal/domain"
)

const (
	// MaxMessages is the per-conversation window kept by every backend.
	MaxMessages = 20
	DefaultTTL  = 24 * time.Hour
)

// Store is the conversation state consumed by the ask use case.
type Store interface {
	// AddMessages appends msgs in order and refreshes the conversation TTL.
	AddMessages(ctx context.Context, conversationID string, msgs []domain.Message) error
	// GetHistory returns up to lastN of the most recent messages, oldest
	// first. lastN <= 0 means the whole window.
	GetHistory(ctx context.Context, conversationID string, lastN int) ([]domain.Message, error)
	Close() error
}

var errEmptyID = errors.New("conversation id must not be empty")

func checkID(op, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("repository: %s: %w", op, errEmptyID)
	}
	return nil
}

func window(lastN int) int {
	if lastN <= 0 || lastN > MaxMessages {
		return MaxMessages
	}
	return lastN
}

func tail(msgs []domain.Message, n int) []domain.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
