package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/wiki-pathfinder/internal/extractor"
	"github.com/alvmarrod/wiki-pathfinder/internal/prefetch"
	"github.com/alvmarrod/wiki-pathfinder/internal/retry"
	"github.com/alvmarrod/wiki-pathfinder/internal/scorer"
	"github.com/alvmarrod/wiki-pathfinder/internal/wiki"
)

// Status is the terminal outcome of a traversal
type Status int

const (
	StatusFound Status = iota
	StatusDeadEnd
	StatusStepLimitExceeded
)

// String returns the terminal status label
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "FOUND"
	case StatusDeadEnd:
		return "DEAD_END"
	case StatusStepLimitExceeded:
		return "STEP_LIMIT_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// Fetcher downloads one article page
type Fetcher interface {
	FetchPage(ctx context.Context, article string) (*wiki.Page, error)
}

// Extractor derives link candidates from a fetched page
type Extractor interface {
	Extract(page *wiki.Page) []extractor.LinkCandidate
}

// Ranker embeds text and orders candidates by closeness to the target
type Ranker interface {
	EncodeTarget(ctx context.Context, text string) ([]float32, error)
	Rank(ctx context.Context, target []float32, candidates []extractor.LinkCandidate) ([]scorer.ScoredCandidate, error)
}

// Prefetcher warms upcoming candidates and serves them back when chosen
type Prefetcher interface {
	Warm(articles []string)
	Get(article string) (*prefetch.Result, bool)
	Join(ctx context.Context, article string) (*prefetch.Result, bool)
}

// StepEvent describes one committed transition of the traversal
type StepEvent struct {
	Step        int
	Article     string
	Title       string
	Score       float64
	Found       bool
	PrefetchHit bool
	Candidates  int
	Elapsed     time.Duration
}

// Result summarizes a finished traversal
type Result struct {
	Start   string
	Target  string
	Status  Status
	Path    []string
	Steps   int
	Skipped int
	Elapsed time.Duration
	Reason  string
}

// Options configures one traversal
type Options struct {
	Start           string
	Target          string
	MaxSteps        int
	TopK            int
	MaxLinksPerPage int
	StepDelay       time.Duration
	RetryPolicy     retry.Policy
	OnStep          func(StepEvent)
}

// Navigator walks the article graph greedily toward the target, never
// revisiting a page. One instance runs one traversal
type Navigator struct {
	fetcher    Fetcher
	extractor  Extractor
	ranker     Ranker
	prefetcher Prefetcher
	opts       Options
}

// New creates a navigator, falling back to defaults for zero option values
func New(fetcher Fetcher, ex Extractor, ranker Ranker, pre Prefetcher, opts Options) *Navigator {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 50
	}
	if opts.TopK <= 0 {
		opts.TopK = 8
	}
	if opts.MaxLinksPerPage <= 0 {
		opts.MaxLinksPerPage = 150
	}
	if opts.StepDelay < 0 {
		opts.StepDelay = 0
	}
	return &Navigator{
		fetcher:    fetcher,
		extractor:  ex,
		ranker:     ranker,
		prefetcher: pre,
		opts:       opts,
	}
}

// Run executes the traversal until the target is found, the walk dead-ends,
// or the step budget is spent. Fatal conditions (unresolvable endpoints, an
// unreachable start page, embedding failures, cancellation) return an error
// instead of a result
func (n *Navigator) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	start := wiki.Normalize(n.opts.Start)
	target := wiki.Normalize(n.opts.Target)
	if !wiki.IsArticle(start) {
		return nil, fmt.Errorf("start %q does not name a content article", start)
	}
	if !wiki.IsArticle(target) {
		return nil, fmt.Errorf("target %q does not name a content article", target)
	}

	state := NewTraversalState(start)

	if start == target {
		return n.finish(state, StatusFound, started, "start equals target"), nil
	}

	targetVec, err := n.ranker.EncodeTarget(ctx, wiki.DisplayTitle(target))
	if err != nil {
		return nil, fmt.Errorf("failed to encode target: %w", err)
	}

	// The start page gets no prefetch help and its failure is fatal
	var page *wiki.Page
	err = retry.Do(ctx, n.opts.RetryPolicy, "fetch "+start, func(ctx context.Context) error {
		p, fetchErr := n.fetcher.FetchPage(ctx, start)
		if fetchErr != nil {
			return fetchErr
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start article unreachable: %w", err)
	}
	candidates := n.extractor.Extract(page)

	for {
		stepStart := time.Now()

		eligible := state.Eligible(candidates, n.opts.MaxLinksPerPage)
		if len(eligible) == 0 {
			return n.finish(state, StatusDeadEnd, started, "no eligible links on "+state.Current), nil
		}

		// Target linked directly: terminal step, nothing to score
		if containsArticle(eligible, target) {
			state.Advance(target)
			n.emit(StepEvent{
				Step:       state.Steps,
				Article:    target,
				Title:      wiki.DisplayTitle(target),
				Found:      true,
				Candidates: len(eligible),
				Elapsed:    time.Since(stepStart),
			})
			return n.finish(state, StatusFound, started, ""), nil
		}

		ranked, err := n.ranker.Rank(ctx, targetVec, eligible)
		if err != nil {
			return nil, err
		}

		n.prefetcher.Warm(topArticles(ranked, n.opts.TopK))

		chosen, res, hit, err := n.advance(ctx, state, ranked)
		if err != nil {
			return nil, err
		}
		if chosen == nil {
			return n.finish(state, StatusDeadEnd, started, "every remaining candidate is unreachable"), nil
		}

		state.Advance(chosen.Article)
		n.emit(StepEvent{
			Step:        state.Steps,
			Article:     chosen.Article,
			Title:       wiki.DisplayTitle(chosen.Article),
			Score:       chosen.Score,
			PrefetchHit: hit,
			Candidates:  len(eligible),
			Elapsed:     time.Since(stepStart),
		})

		if state.Steps >= n.opts.MaxSteps {
			return n.finish(state, StatusStepLimitExceeded, started,
				fmt.Sprintf("step limit of %d reached", n.opts.MaxSteps)), nil
		}

		candidates = res.Candidates

		if n.opts.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(n.opts.StepDelay):
			}
		}
	}
}

// advance resolves the best reachable candidate's page, walking down the
// ranking when fetches exhaust their retries. A nil candidate with nil error
// means every candidate was unreachable
func (n *Navigator) advance(ctx context.Context, state *TraversalState, ranked []scorer.ScoredCandidate) (*scorer.ScoredCandidate, *prefetch.Result, bool, error) {
	for i := range ranked {
		cand := &ranked[i]

		res, hit, err := n.resolvePage(ctx, cand.Article)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, false, ctx.Err()
			}
			state.MarkUnreachable(cand.Article)
			logrus.Warnf("Skipping unreachable candidate %s: %v", cand.Article, err)
			continue
		}
		return cand, res, hit, nil
	}
	return nil, nil, false, nil
}

// resolvePage obtains a candidate's page and pre-extracted links: warmed
// cache first, then an in-flight prefetch, then a direct fetch under the
// retry policy
func (n *Navigator) resolvePage(ctx context.Context, article string) (*prefetch.Result, bool, error) {
	if res, ok := n.prefetcher.Get(article); ok {
		return res, true, nil
	}
	if res, ok := n.prefetcher.Join(ctx, article); ok {
		return res, true, nil
	}

	var page *wiki.Page
	err := retry.Do(ctx, n.opts.RetryPolicy, "fetch "+article, func(ctx context.Context) error {
		p, fetchErr := n.fetcher.FetchPage(ctx, article)
		if fetchErr != nil {
			return fetchErr
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &prefetch.Result{Page: page, Candidates: n.extractor.Extract(page)}, false, nil
}

// finish builds the terminal result
func (n *Navigator) finish(state *TraversalState, status Status, started time.Time, reason string) *Result {
	path := make([]string, len(state.Path))
	copy(path, state.Path)

	return &Result{
		Start:   state.Path[0],
		Target:  wiki.Normalize(n.opts.Target),
		Status:  status,
		Path:    path,
		Steps:   state.Steps,
		Skipped: state.SkippedCount(),
		Elapsed: time.Since(started),
		Reason:  reason,
	}
}

// emit delivers a step event to the configured callback
func (n *Navigator) emit(event StepEvent) {
	if n.opts.OnStep != nil {
		n.opts.OnStep(event)
	}
}

// containsArticle reports whether the candidate list links the given article
func containsArticle(candidates []extractor.LinkCandidate, article string) bool {
	for _, cand := range candidates {
		if cand.Article == article {
			return true
		}
	}
	return false
}

// topArticles lists the first k ranked candidates' article names
func topArticles(ranked []scorer.ScoredCandidate, k int) []string {
	if k > len(ranked) {
		k = len(ranked)
	}
	articles := make([]string, 0, k)
	for _, cand := range ranked[:k] {
		articles = append(articles, cand.Article)
	}
	return articles
}
