package intent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"analytics-agent/internal/domain"
)

// SemanticThreshold is the minimum similarity for a semantic match to name
// an intent.
const SemanticThreshold = 0.65

// reloadInterval spaces out embedding retries after a failed Init.
const reloadInterval = 30 * time.Second

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache persists the intent vectors under a corpus key. Load returns
// ErrCacheMiss when nothing usable is stored.
type EmbeddingCache interface {
	Load(ctx context.Context, key string) (map[domain.Intent][]float32, error)
	Save(ctx context.Context, key string, vectors map[domain.Intent][]float32) error
}

var ErrCacheMiss = errors.New("intent: embedding cache miss")

// SemanticMatcher classifies questions by cosine similarity against the
// embedded intent descriptions.
type SemanticMatcher struct {
	embedder Embedder
	cache    EmbeddingCache
	key      string
	logger   *zap.Logger

	mu      sync.RWMutex
	vectors map[domain.Intent][]float32

	loadMu   sync.Mutex
	lastLoad time.Time
	now      func() time.Time
}

// NewSemanticMatcher returns a matcher with an empty vector set; call Init
// before serving traffic. cache may be nil, in which case every Init embeds.
func NewSemanticMatcher(embedder Embedder, cache EmbeddingCache, model string, logger *zap.Logger) (*SemanticMatcher, error) {
	if embedder == nil {
		return nil, errors.New("intent: embedder must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticMatcher{
		embedder: embedder,
		cache:    cache,
		key:      CorpusKey(model, descriptions),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// CorpusKey identifies an embedding set by model and description text, so a
// changed description invalidates the persisted vectors.
func CorpusKey(model string, corpus map[domain.Intent]string) string {
	intents := make([]string, 0, len(corpus))
	for in := range corpus {
		intents = append(intents, string(in))
	}
	sort.Strings(intents)

	h := sha256.New()
	h.Write([]byte(model))
	for _, in := range intents {
		h.Write([]byte{0})
		h.Write([]byte(in))
		h.Write([]byte{0})
		h.Write([]byte(corpus[domain.Intent(in)]))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Init loads the persisted vectors, rebuilding them when the cache is absent,
// unreadable or does not cover every intent. After a failed Init, scoring
// retries the rebuild at most once per reloadInterval.
func (m *SemanticMatcher) Init(ctx context.Context) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.lastLoad = m.now()
	return m.load(ctx)
}

func (m *SemanticMatcher) load(ctx context.Context) error {
	if m.cache != nil {
		vectors, err := m.cache.Load(ctx, m.key)
		switch {
		case err == nil && complete(vectors):
			m.swap(vectors)
			m.logger.Info("intent embeddings loaded from cache", zap.String("key", m.key), zap.Int("intents", len(vectors)))
			return nil
		case err == nil:
			m.logger.Warn("intent embedding cache incomplete, rebuilding", zap.Int("intents", len(vectors)))
		case errors.Is(err, ErrCacheMiss):
			m.logger.Info("intent embedding cache empty, building", zap.String("key", m.key))
		default:
			m.logger.Warn("intent embedding cache unreadable, rebuilding", zap.Error(err))
		}
	}
	return m.Rebuild(ctx)
}

// Rebuild embeds every description in one batch and replaces the vector set
// wholesale. Readers see either the old or the new set, never a mix.
func (m *SemanticMatcher) Rebuild(ctx context.Context) error {
	intents := domain.AnalyticIntents()
	texts := make([]string, len(intents))
	for i, in := range intents {
		texts[i] = descriptions[in]
	}

	embs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("intent: embed descriptions: %w", err)
	}
	if len(embs) != len(intents) {
		return fmt.Errorf("intent: embed descriptions: got %d vectors for %d intents", len(embs), len(intents))
	}

	vectors := make(map[domain.Intent][]float32, len(intents))
	for i, in := range intents {
		vectors[in] = embs[i]
	}
	m.swap(vectors)

	if m.cache != nil {
		if err := m.cache.Save(ctx, m.key, vectors); err != nil {
			m.logger.Warn("persist intent embeddings", zap.Error(err))
		}
	}
	m.logger.Info("intent embeddings rebuilt", zap.Int("intents", len(vectors)))
	return nil
}

// Match returns the most similar intent. Below SemanticThreshold the intent
// is unknown but the similarity is still reported; embedding failures yield
// (unknown, 0).
func (m *SemanticMatcher) Match(ctx context.Context, question string) (domain.Intent, float64) {
	scored := m.score(ctx, question)
	if len(scored) == 0 {
		return domain.IntentUnknown, 0
	}
	best := scored[0]
	if best.Confidence < SemanticThreshold {
		return domain.IntentUnknown, best.Confidence
	}
	return best.Intent, best.Confidence
}

// TopMatches returns up to n intents ordered by similarity.
func (m *SemanticMatcher) TopMatches(ctx context.Context, question string, n int) []domain.ScoredIntent {
	scored := m.score(ctx, question)
	if n < len(scored) {
		scored = scored[:n]
	}
	return scored
}

func (m *SemanticMatcher) score(ctx context.Context, question string) []domain.ScoredIntent {
	vectors := m.current()
	if len(vectors) == 0 {
		m.reload(ctx)
		if vectors = m.current(); len(vectors) == 0 {
			return nil
		}
	}

	embs, err := m.embedder.Embed(ctx, []string{question})
	if err != nil || len(embs) == 0 {
		m.logger.Warn("embed question", zap.Error(err))
		return nil
	}
	q := embs[0]

	out := make([]domain.ScoredIntent, 0, len(vectors))
	for in, v := range vectors {
		out = append(out, domain.ScoredIntent{Intent: in, Confidence: clamp01(cosine(q, v))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Intent < out[j].Intent
	})
	return out
}

func (m *SemanticMatcher) current() map[domain.Intent][]float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vectors
}

// reload retries a failed Init. Callers that find a load in flight return
// at once and score without vectors.
func (m *SemanticMatcher) reload(ctx context.Context) {
	if !m.loadMu.TryLock() {
		return
	}
	defer m.loadMu.Unlock()
	if m.lastLoad.IsZero() || len(m.current()) > 0 || m.now().Sub(m.lastLoad) < reloadInterval {
		return
	}
	m.lastLoad = m.now()
	if err := m.load(ctx); err != nil {
		m.logger.Warn("reload intent embeddings", zap.Error(err))
	}
}

func (m *SemanticMatcher) swap(vectors map[domain.Intent][]float32) {
	m.mu.Lock()
	m.vectors = vectors
	m.mu.Unlock()
}

func complete(vectors map[domain.Intent][]float32) bool {
	for _, in := range domain.AnalyticIntents() {
		if len(vectors[in]) == 0 {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
