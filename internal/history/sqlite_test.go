package history_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/wiki-pathfinder/internal/history"
)

func newTestStore(t *testing.T) *history.Store {
	t.Helper()

	store, err := history.NewStore(filepath.Join(t.TempDir(), "pathfinder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveRunRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	runID, err := store.SaveRun(history.Run{
		Start:     "GitHub",
		Target:    "YouTube",
		Status:    "FOUND",
		Steps:     3,
		ElapsedMs: 4210,
		Path:      []string{"GitHub", "Google", "Alphabet_Inc.", "YouTube"},
	})
	require.NoError(t, err)
	assert.Greater(t, runID, 0)

	best, err := store.BestRun("GitHub", "YouTube")
	require.NoError(t, err)
	require.NotNil(t, best)

	assert.Equal(t, runID, best.RunID)
	assert.Equal(t, "GitHub", best.Start)
	assert.Equal(t, "YouTube", best.Target)
	assert.Equal(t, "FOUND", best.Status)
	assert.Equal(t, 3, best.Steps)
	assert.Equal(t, int64(4210), best.ElapsedMs)
	assert.Equal(t, []string{"GitHub", "Google", "Alphabet_Inc.", "YouTube"}, best.Path)
	assert.False(t, best.CreatedAt.IsZero())
}

func TestBestRunPrefersFewestSteps(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.SaveRun(history.Run{
		Start: "GitHub", Target: "YouTube", Status: "FOUND",
		Steps: 5, ElapsedMs: 9000, Path: []string{"GitHub", "a", "b", "c", "d", "YouTube"},
	})
	require.NoError(t, err)

	shortID, err := store.SaveRun(history.Run{
		Start: "GitHub", Target: "YouTube", Status: "FOUND",
		Steps: 3, ElapsedMs: 4000, Path: []string{"GitHub", "Google", "Alphabet_Inc.", "YouTube"},
	})
	require.NoError(t, err)

	best, err := store.BestRun("GitHub", "YouTube")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, shortID, best.RunID)
	assert.Equal(t, 3, best.Steps)
}

func TestBestRunIgnoresFailedRuns(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.SaveRun(history.Run{
		Start: "GitHub", Target: "YouTube", Status: "DEAD_END",
		Steps: 2, ElapsedMs: 1500, Path: []string{"GitHub", "Git"},
		Reason: "no eligible links on Git",
	})
	require.NoError(t, err)

	best, err := store.BestRun("GitHub", "YouTube")
	require.NoError(t, err)
	assert.Nil(t, best, "only FOUND runs count as best")
}

func TestBestRunUnknownPair(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	best, err := store.BestRun("Never", "Ran")
	require.NoError(t, err)
	assert.Nil(t, best)
}
