package scorer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/alvmarrod/wiki-pathfinder/internal/extractor"
)

// ErrEmbeddingUnavailable marks an embedding backend failure.
// There is no fallback ranking signal, so callers must abort the traversal
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// tieEpsilon is the score distance under which two candidates count as tied
const tieEpsilon = 1e-9

// ScoredCandidate pairs a link candidate with its similarity to the target
type ScoredCandidate struct {
	extractor.LinkCandidate
	Score float64
}

// Options bounds the scorer's batching and context-vector memoization
type Options struct {
	BatchSize int
	CacheSize int
}

// Scorer embeds candidate contexts and ranks them against a target vector.
// Context vectors are memoized for the run since the same snippet tends to
// reappear across neighboring pages
type Scorer struct {
	engine    Engine
	batchSize int
	cacheSize int
	cache     map[string][]float32
	order     []string
	hits      int64
	computed  int64
}

// New creates a scorer, falling back to defaults for zero option values
func New(engine Engine, opts Options) *Scorer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 128
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	return &Scorer{
		engine:    engine,
		batchSize: opts.BatchSize,
		cacheSize: opts.CacheSize,
		cache:     make(map[string][]float32),
	}
}

// EngineName reports which embedding backend is in use
func (s *Scorer) EngineName() string {
	return s.engine.Name()
}

// CacheStats returns how many context vectors were served from memory vs computed
func (s *Scorer) CacheStats() (hits, computed int64) {
	return s.hits, s.computed
}

// EncodeTarget embeds the traversal target's description, once per run
func (s *Scorer) EncodeTarget(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.engine.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// Rank scores every candidate's context against the target vector and returns
// them sorted best first. Ties within floating tolerance keep page order
func (s *Scorer) Rank(ctx context.Context, target []float32, candidates []extractor.LinkCandidate) ([]ScoredCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	// Vectors for this call are held locally so memo eviction cannot drop one
	// between embedding and scoring
	vectors, err := s.embedAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		vec, ok := vectors[cand.Context]
		if !ok {
			return nil, fmt.Errorf("%w: no vector for candidate %s", ErrEmbeddingUnavailable, cand.Article)
		}
		score, err := Cosine(vec, target)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
		scored = append(scored, ScoredCandidate{LinkCandidate: cand, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		diff := scored[i].Score - scored[j].Score
		if diff > tieEpsilon || diff < -tieEpsilon {
			return diff > 0
		}
		return scored[i].Position < scored[j].Position
	})

	return scored, nil
}

// embedAll returns a context-to-vector map covering every candidate, serving
// memoized vectors and embedding the rest in bounded batches
func (s *Scorer) embedAll(ctx context.Context, candidates []extractor.LinkCandidate) (map[string][]float32, error) {
	vectors := make(map[string][]float32, len(candidates))

	var uncached []string
	for _, cand := range candidates {
		if _, ok := vectors[cand.Context]; ok {
			continue
		}
		if vec, ok := s.cache[cand.Context]; ok {
			vectors[cand.Context] = vec
			s.hits++
			continue
		}
		vectors[cand.Context] = nil // placeholder so duplicates queue once
		uncached = append(uncached, cand.Context)
	}

	for start := 0; start < len(uncached); start += s.batchSize {
		end := start + s.batchSize
		if end > len(uncached) {
			end = len(uncached)
		}

		batch := uncached[start:end]
		embedded, err := s.engine.EmbedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
		if len(embedded) != len(batch) {
			return nil, fmt.Errorf("%w: engine returned %d vectors for %d texts", ErrEmbeddingUnavailable, len(embedded), len(batch))
		}

		for i, vec := range embedded {
			vectors[batch[i]] = vec
			s.remember(batch[i], vec)
		}
		s.computed += int64(len(batch))
	}

	return vectors, nil
}

// remember memoizes one context vector, evicting the oldest entry at capacity
func (s *Scorer) remember(text string, vec []float32) {
	if _, ok := s.cache[text]; ok {
		return
	}
	if len(s.order) >= s.cacheSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
	s.cache[text] = vec
	s.order = append(s.order, text)
}
