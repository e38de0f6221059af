// Package embedstore persists intent description embeddings in an embedded
// BadgerDB so a restart does not re-embed the whole corpus.
//
// Layout:
//
//	intent/emb/v1/{corpusKey}  ->  gob-encoded map[string][]float32, with TTL
package embedstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"analytics-agent/internal/domain"
	"analytics-agent/internal/intent"
)

const (
	keyPrefix  = "intent/emb/v1/"
	DefaultTTL = 30 * 24 * time.Hour
)

// Store implements intent.EmbeddingCache. It owns the underlying DB.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *zap.Logger
}

// Open opens (or creates) the store at path. An empty path keeps the data in
// memory, which is what tests and single-shot CLI runs use.
func Open(path string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("embedstore: open %q: %w", path, err)
	}
	return New(db, ttl, logger)
}

// New wraps an already opened DB.
func New(db *badger.DB, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("embedstore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, ttl: ttl, logger: logger}, nil
}

// Load returns intent.ErrCacheMiss when the key is absent or expired.
func (s *Store) Load(ctx context.Context, key string) (map[domain.Intent][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		s.logger.Debug("embedding cache miss", zap.String("key", key))
		return nil, intent.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("embedstore: load %s: %w", key, err)
	}

	var decoded map[string][]float32
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("embedstore: decode %s: %w", key, err)
	}
	out := make(map[domain.Intent][]float32, len(decoded))
	for k, v := range decoded {
		out[domain.Intent(k)] = v
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, key string, vectors map[domain.Intent][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	plain := make(map[string][]float32, len(vectors))
	for k, v := range vectors {
		plain[string(k)] = v
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(plain); err != nil {
		return fmt.Errorf("embedstore: encode: %w", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(keyPrefix+key), buf.Bytes()).WithTTL(s.ttl))
	})
	if err != nil {
		return fmt.Errorf("embedstore: save %s: %w", key, err)
	}
	s.logger.Debug("embedding cache saved", zap.String("key", key), zap.Int("intents", len(vectors)), zap.Duration("ttl", s.ttl))
	return nil
}

// Purge removes every persisted embedding set.
func (s *Store) Purge() error {
	if err := s.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("embedstore: purge: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
