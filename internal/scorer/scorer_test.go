package scorer_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-pathfinder/internal/extractor"
	"github.com/alvmarrod/wiki-pathfinder/internal/scorer"
)

// fakeEngine serves canned vectors keyed by text and records every batch it sees
type fakeEngine struct {
	vectors map[string][]float32
	batches [][]string
	err     error
}

func (e *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 1}, nil
}

func (e *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, texts)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *fakeEngine) Dimensions() int { return 2 }
func (e *fakeEngine) Name() string    { return "fake" }

// vecFor builds a unit vector whose cosine similarity to [1,0] equals score
func vecFor(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func candidatesFor(contexts ...string) []extractor.LinkCandidate {
	candidates := make([]extractor.LinkCandidate, len(contexts))
	for i, context := range contexts {
		candidates[i] = extractor.LinkCandidate{
			Article:  fmt.Sprintf("Article_%d", i),
			Context:  context,
			Position: i,
		}
	}
	return candidates
}

func TestCosine(t *testing.T) {
	t.Parallel()

	t.Run("identical vectors score 1", func(t *testing.T) {
		t.Parallel()
		got, err := scorer.Cosine([]float32{0.3, 0.4, 0.5}, []float32{0.3, 0.4, 0.5})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("opposite vectors score -1", func(t *testing.T) {
		t.Parallel()
		got, err := scorer.Cosine([]float32{1, 0}, []float32{-1, 0})
		require.NoError(t, err)
		assert.InDelta(t, -1.0, got, 1e-9)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		t.Parallel()
		got, err := scorer.Cosine([]float32{1, 0}, []float32{0, 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, got, 1e-9)
	})

	t.Run("zero magnitude scores 0", func(t *testing.T) {
		t.Parallel()
		got, err := scorer.Cosine([]float32{0, 0}, []float32{1, 0})
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("length mismatch errors", func(t *testing.T) {
		t.Parallel()
		_, err := scorer.Cosine([]float32{1, 0}, []float32{1, 0, 0})
		assert.Error(t, err)
	})

	t.Run("scores stay in bounds", func(t *testing.T) {
		t.Parallel()
		vectors := [][]float32{{1, 0}, {0.6, 0.8}, {-0.7, 0.2}, {0.001, -0.999}}
		for _, a := range vectors {
			for _, b := range vectors {
				got, err := scorer.Cosine(a, b)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, -1.0-1e-9)
				assert.LessOrEqual(t, got, 1.0+1e-9)
			}
		}
	})
}

func TestRankOrdersByScore(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{vectors: map[string][]float32{
		"low":  vecFor(0.2),
		"high": vecFor(0.9),
		"mid":  vecFor(0.5),
	}}
	s := scorer.New(engine, scorer.Options{})

	ranked, err := s.Rank(context.Background(), vecFor(1), candidatesFor("low", "high", "mid"))
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, "high", ranked[0].Context)
	assert.Equal(t, "mid", ranked[1].Context)
	assert.Equal(t, "low", ranked[2].Context)

	assert.InDelta(t, 0.9, ranked[0].Score, 1e-6)
	assert.InDelta(t, 0.5, ranked[1].Score, 1e-6)
	assert.InDelta(t, 0.2, ranked[2].Score, 1e-6)
}

func TestRankTieBreakKeepsPageOrder(t *testing.T) {
	t.Parallel()

	// Both contexts map to the same vector, so their scores tie exactly
	engine := &fakeEngine{vectors: map[string][]float32{
		"twin a": vecFor(0.7),
		"twin b": vecFor(0.7),
	}}
	s := scorer.New(engine, scorer.Options{})

	ranked, err := s.Rank(context.Background(), vecFor(1), candidatesFor("twin b", "twin a"))
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, 0, ranked[0].Position)
	assert.Equal(t, 1, ranked[1].Position)
}

func TestRankEmptyCandidates(t *testing.T) {
	t.Parallel()

	s := scorer.New(&fakeEngine{}, scorer.Options{})
	ranked, err := s.Rank(context.Background(), vecFor(1), nil)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRankBatchesEmbeddings(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	s := scorer.New(engine, scorer.Options{BatchSize: 2})

	_, err := s.Rank(context.Background(), vecFor(1), candidatesFor("a", "b", "c", "d", "e"))
	require.NoError(t, err)

	require.Len(t, engine.batches, 3)
	assert.Len(t, engine.batches[0], 2)
	assert.Len(t, engine.batches[1], 2)
	assert.Len(t, engine.batches[2], 1)
}

func TestRankMemoizesContexts(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	s := scorer.New(engine, scorer.Options{})
	candidates := candidatesFor("a", "b", "c")

	_, err := s.Rank(context.Background(), vecFor(1), candidates)
	require.NoError(t, err)
	_, err = s.Rank(context.Background(), vecFor(1), candidates)
	require.NoError(t, err)

	// Second Rank is served entirely from the memo
	assert.Len(t, engine.batches, 1)

	hits, computed := s.CacheStats()
	assert.Equal(t, int64(3), hits)
	assert.Equal(t, int64(3), computed)
}

func TestRankEvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	s := scorer.New(engine, scorer.Options{CacheSize: 2})

	_, err := s.Rank(context.Background(), vecFor(1), candidatesFor("a", "b", "c"))
	require.NoError(t, err)

	// "a" fell out of the memo, so ranking it again recomputes
	_, err = s.Rank(context.Background(), vecFor(1), candidatesFor("a"))
	require.NoError(t, err)

	_, computed := s.CacheStats()
	assert.Equal(t, int64(4), computed)
}

func TestRankEngineFailureIsEmbeddingUnavailable(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{err: errors.New("connection refused")}
	s := scorer.New(engine, scorer.Options{})

	_, err := s.Rank(context.Background(), vecFor(1), candidatesFor("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scorer.ErrEmbeddingUnavailable))
}

func TestEncodeTargetFailureIsEmbeddingUnavailable(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{err: errors.New("connection refused")}
	s := scorer.New(engine, scorer.Options{})

	_, err := s.EncodeTarget(context.Background(), "YouTube")
	require.Error(t, err)
	assert.True(t, errors.Is(err, scorer.ErrEmbeddingUnavailable))
}
