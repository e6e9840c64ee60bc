package search

import "github.com/mfederowicz/bookrec/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimension int)
	AfterIndexSearch(hitCount int)
	SkippedHit(pointID, reason string)
	Finish(hits []*core.RankedHit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)             {}
func (n *noopMonitor) AfterEmbedding(_ int)       {}
func (n *noopMonitor) AfterIndexSearch(_ int)     {}
func (n *noopMonitor) SkippedHit(_, _ string)     {}
func (n *noopMonitor) Finish(_ []*core.RankedHit) {}
