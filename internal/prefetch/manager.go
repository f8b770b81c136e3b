package prefetch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-pathfinder/internal/extractor"
	"github.com/alvmarrod/wiki-pathfinder/internal/wiki"
)

// Fetcher downloads one article page
type Fetcher interface {
	FetchPage(ctx context.Context, article string) (*wiki.Page, error)
}

// Extractor derives link candidates from a fetched page
type Extractor interface {
	Extract(page *wiki.Page) []extractor.LinkCandidate
}

// Result is a warmed page with its candidates already extracted
type Result struct {
	Page       *wiki.Page
	Candidates []extractor.LinkCandidate
}

// Stats counts what the manager did over its lifetime
type Stats struct {
	Warmed    int64 `json:"warmed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Hits      int64 `json:"hits"`
	Joined    int64 `json:"joined"`
	Misses    int64 `json:"misses"`
	Evicted   int64 `json:"evicted"`
	Dropped   int64 `json:"dropped"`
}

// entry tracks one article through the warm/fetch/consume cycle.
// done is closed exactly once when page/candidates/err are final
type entry struct {
	article    string
	done       chan struct{}
	page       *wiki.Page
	candidates []extractor.LinkCandidate
	err        error
	generation uint64
}

// Options configures the prefetch pool and cache bounds
type Options struct {
	Workers     int
	CacheSize   int
	JoinTimeout time.Duration
}

// Manager warms upcoming candidate pages in the background so the traversal
// rarely waits on the network. The entry cache is bounded: entries that drop
// out of the latest warmed set are evicted once resolved, and successful
// lookups consume their entry
type Manager struct {
	fetcher     Fetcher
	extractor   Extractor
	workers     int
	cacheSize   int
	joinTimeout time.Duration

	mu         sync.Mutex
	entries    map[string]*entry
	generation uint64
	stats      Stats

	jobs     chan *entry
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewManager creates a prefetch manager, falling back to defaults for zero option values
func NewManager(fetcher Fetcher, ex Extractor, opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 16
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 15 * time.Second
	}
	return &Manager{
		fetcher:     fetcher,
		extractor:   ex,
		workers:     opts.Workers,
		cacheSize:   opts.CacheSize,
		joinTimeout: opts.JoinTimeout,
		entries:     make(map[string]*entry),
		jobs:        make(chan *entry, opts.CacheSize),
		stopChan:    make(chan struct{}),
	}
}

// Start launches the worker pool. The context bounds every prefetch fetch
func (m *Manager) Start(ctx context.Context) {
	logrus.Infof("Starting %d prefetch workers", m.workers)
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i+1)
	}
}

// worker consumes warm jobs until stopped
func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()
	logrus.Debugf("Prefetch worker %d started", id)

	for {
		select {
		case <-m.stopChan:
			logrus.Debugf("Prefetch worker %d received stop signal", id)
			return
		case <-ctx.Done():
			return
		case e := <-m.jobs:
			m.process(ctx, e)
		}
	}
}

// process fetches and extracts one warmed article. A single attempt only:
// retries belong to the traversal's direct-fetch path, where they matter
func (m *Manager) process(ctx context.Context, e *entry) {
	page, err := m.fetcher.FetchPage(ctx, e.article)
	if err != nil {
		e.err = err
		logrus.Debugf("Prefetch failed for %s: %v", e.article, err)
	} else {
		e.page = page
		e.candidates = m.extractor.Extract(page)
	}

	m.mu.Lock()
	if err != nil {
		m.stats.Failed++
	} else {
		m.stats.Completed++
	}
	m.mu.Unlock()

	close(e.done)
}

// Warm enqueues unseen articles for background fetching and refreshes the
// generation of articles still worth keeping. Resolved entries that fell out
// of the warmed set are evicted
func (m *Manager) Warm(articles []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	gen := m.generation

	for _, article := range articles {
		if e, ok := m.entries[article]; ok {
			e.generation = gen
			continue
		}

		e := &entry{
			article:    article,
			done:       make(chan struct{}),
			generation: gen,
		}
		select {
		case m.jobs <- e:
			m.entries[article] = e
			m.stats.Warmed++
		default:
			// Workers are saturated; skipping is cheaper than blocking the traversal
			m.stats.Dropped++
			logrus.Debugf("Prefetch queue full, dropping %s", article)
		}
	}

	m.evictStale(gen)
}

// evictStale removes resolved entries from older generations, then enforces
// the cache size cap oldest-generation first. Caller holds mu
func (m *Manager) evictStale(current uint64) {
	for article, e := range m.entries {
		if e.generation < current && isResolved(e) {
			delete(m.entries, article)
			m.stats.Evicted++
		}
	}

	if len(m.entries) <= m.cacheSize {
		return
	}

	resolved := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		if isResolved(e) {
			resolved = append(resolved, e)
		}
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].generation < resolved[j].generation
	})

	for _, e := range resolved {
		if len(m.entries) <= m.cacheSize {
			break
		}
		delete(m.entries, e.article)
		m.stats.Evicted++
	}
}

// Get returns a warmed result without blocking. A successful lookup consumes
// the entry; pending or failed entries report a miss
func (m *Manager) Get(article string) (*Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[article]
	if !ok || !isResolved(e) {
		m.stats.Misses++
		return nil, false
	}

	delete(m.entries, article)
	if e.err != nil {
		m.stats.Misses++
		return nil, false
	}

	m.stats.Hits++
	return &Result{Page: e.page, Candidates: e.candidates}, true
}

// Join waits for an in-flight prefetch of the article rather than duplicating
// the fetch. Reports a miss immediately when nothing is in flight, and gives
// up after the join timeout so the caller can fall back to a direct fetch
func (m *Manager) Join(ctx context.Context, article string) (*Result, bool) {
	m.mu.Lock()
	e, ok := m.entries[article]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	select {
	case <-e.done:
	case <-time.After(m.joinTimeout):
		logrus.Warnf("Join timeout waiting for prefetch of %s", article)
		return nil, false
	case <-ctx.Done():
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Consume only if the entry is still ours to take
	if cur, ok := m.entries[article]; !ok || cur != e {
		return nil, false
	}
	delete(m.entries, article)

	if e.err != nil {
		m.stats.Misses++
		return nil, false
	}

	m.stats.Joined++
	return &Result{Page: e.page, Candidates: e.candidates}, true
}

// Stats returns a snapshot of the manager's counters
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Stop drains the pool, abandoning any in-flight fetches after a grace period.
// Safe to call multiple times
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		logrus.Debug("Stopping prefetch workers...")
		close(m.stopChan)

		workersDone := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(workersDone)
		}()

		select {
		case <-workersDone:
			logrus.Debug("All prefetch workers stopped")
		case <-time.After(5 * time.Second):
			logrus.Warn("Prefetch workers timeout (5s) - abandoning in-flight fetches")
		}
	})
}

// isResolved reports whether an entry's fetch has finished, without blocking
func isResolved(e *entry) bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
