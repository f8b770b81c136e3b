package navigator

import (
	"github.com/alvmarrod/wiki-pathfinder/internal/extractor"
)

// TraversalState is the single mutable record of one traversal: the current
// article, the path in visit order, and the sets that keep the walk from
// revisiting or retrying hopeless pages
type TraversalState struct {
	Current     string
	Path        []string
	Steps       int
	visited     map[string]bool
	unreachable map[string]bool
}

// NewTraversalState seeds the state at the start article
func NewTraversalState(start string) *TraversalState {
	return &TraversalState{
		Current:     start,
		Path:        []string{start},
		visited:     map[string]bool{start: true},
		unreachable: make(map[string]bool),
	}
}

// Visited reports whether an article is already part of the path
func (s *TraversalState) Visited(article string) bool {
	return s.visited[article]
}

// MarkUnreachable records an article whose fetch failed after retries.
// Unreachable articles are skipped in later selections but never join the path
func (s *TraversalState) MarkUnreachable(article string) {
	s.unreachable[article] = true
}

// Unreachable reports whether an article was marked unreachable
func (s *TraversalState) Unreachable(article string) bool {
	return s.unreachable[article]
}

// SkippedCount returns how many candidates were marked unreachable so far
func (s *TraversalState) SkippedCount() int {
	return len(s.unreachable)
}

// Advance commits the transition to the next article: it joins the visited
// set and the path, becomes current, and the step counter moves
func (s *TraversalState) Advance(next string) {
	s.visited[next] = true
	s.Path = append(s.Path, next)
	s.Current = next
	s.Steps++
}

// Eligible filters candidates down to those the traversal may still choose,
// preserving page order and capping the result to maxLinks. A zero or
// negative cap means unlimited
func (s *TraversalState) Eligible(candidates []extractor.LinkCandidate, maxLinks int) []extractor.LinkCandidate {
	eligible := make([]extractor.LinkCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if s.visited[cand.Article] || s.unreachable[cand.Article] {
			continue
		}
		eligible = append(eligible, cand)
		if maxLinks > 0 && len(eligible) >= maxLinks {
			break
		}
	}
	return eligible
}
