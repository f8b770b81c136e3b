package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Snapshot is the exportable view of one traversal's metrics
type Snapshot struct {
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	StepsTaken           int       `json:"steps_taken"`
	PagesFetched         int       `json:"pages_fetched"`
	PagesFailed          int       `json:"pages_failed"`
	CandidatesConsidered int       `json:"candidates_considered"`
	CandidatesSkipped    int       `json:"candidates_skipped"`
	PrefetchHits         int64     `json:"prefetch_hits"`
	PrefetchJoins        int64     `json:"prefetch_joins"`
	PrefetchMisses       int64     `json:"prefetch_misses"`
	PrefetchEvicted      int64     `json:"prefetch_evicted"`
	EmbeddingsComputed   int64     `json:"embeddings_computed"`
	EmbeddingCacheHits   int64     `json:"embedding_cache_hits"`
	TotalStepTimeMs      int64     `json:"total_step_time_ms"`
	AvgStepTimeMs        int64     `json:"avg_step_time_ms"`
	TerminationReason    string    `json:"termination_reason"`
}

// Tracker holds and manages traversal metrics
type Tracker struct {
	mu              sync.Mutex
	data            Snapshot
	totalStepTimeMs int64
	stepCount       int
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: Snapshot{
			StartTime: time.Now(),
		},
	}
}

// IncrementSteps increments the committed-step counter
func (t *Tracker) IncrementSteps() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.StepsTaken++
}

// IncrementPagesFetched increments the successful fetch counter
func (t *Tracker) IncrementPagesFetched() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFetched++
}

// IncrementPagesFailed increments the failed fetch counter
func (t *Tracker) IncrementPagesFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PagesFailed++
}

// AddCandidatesConsidered adds one step's eligible candidate count
func (t *Tracker) AddCandidatesConsidered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.CandidatesConsidered += n
}

// SetCandidatesSkipped records the final unreachable-candidate count
func (t *Tracker) SetCandidatesSkipped(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.CandidatesSkipped = n
}

// SetPrefetchCounts records the prefetch cache's lifetime counters
func (t *Tracker) SetPrefetchCounts(hits, joins, misses, evicted int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PrefetchHits = hits
	t.data.PrefetchJoins = joins
	t.data.PrefetchMisses = misses
	t.data.PrefetchEvicted = evicted
}

// SetEmbeddingCounts records how many context vectors were computed vs memoized
func (t *Tracker) SetEmbeddingCounts(computed, cacheHits int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.EmbeddingsComputed = computed
	t.data.EmbeddingCacheHits = cacheHits
}

// RecordStepTime records one step's wall time
func (t *Tracker) RecordStepTime(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalStepTimeMs += duration.Milliseconds()
	t.stepCount++
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.data
	snapshot.TotalStepTimeMs = t.totalStepTimeMs
	if t.stepCount > 0 {
		snapshot.AvgStepTimeMs = t.totalStepTimeMs / int64(t.stepCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	t.data.TotalStepTimeMs = t.totalStepTimeMs
	if t.stepCount > 0 {
		t.data.AvgStepTimeMs = t.totalStepTimeMs / int64(t.stepCount)
	}

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress renders current metrics as a one-line summary (for periodic updates)
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Steps: %d | Pages: %d fetched, %d failed | Candidates: %d considered, %d skipped | Prefetch: %d hits, %d joins",
		t.data.StepsTaken,
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.CandidatesConsidered,
		t.data.CandidatesSkipped,
		t.data.PrefetchHits,
		t.data.PrefetchJoins,
	)
}
