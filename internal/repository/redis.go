package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"analytics-agent/internal/domain"
)

// RedisStore keeps each conversation as a capped list under
// <prefix>conv:<id>.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

// DialRedis opens a client and checks the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("repository: redis ping: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(conversationID string) string {
	return s.prefix + "conv:" + conversationID
}

func (s *RedisStore) AddMessages(ctx context.Context, conversationID string, msgs []domain.Message) error {
	if err := checkID("AddMessages", conversationID); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("repository: AddMessages encode: %w", err)
		}
		values = append(values, b)
	}

	key := s.key(conversationID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		p.LTrim(ctx, key, -MaxMessages, -1)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("repository: AddMessages: %w", err)
	}
	return nil
}

func (s *RedisStore) GetHistory(ctx context.Context, conversationID string, lastN int) ([]domain.Message, error) {
	if err := checkID("GetHistory", conversationID); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, s.key(conversationID), int64(-window(lastN)), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.Message, 0, len(raw))
	for _, r := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("repository: GetHistory decode: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
