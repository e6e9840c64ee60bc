package main

import (
	"fmt"
	"os"

	"github.com/mfederowicz/bookrec/core"
)

// stderrMonitor prints each search stage to stderr for the --verbose flag.
type stderrMonitor struct{}

func (m *stderrMonitor) Start(query string) {
	fmt.Fprintf(os.Stderr, "searching: %q\n", query)
}

func (m *stderrMonitor) AfterEmbedding(dimension int) {
	fmt.Fprintf(os.Stderr, "query embedded (%d dimensions)\n", dimension)
}

func (m *stderrMonitor) AfterIndexSearch(hitCount int) {
	fmt.Fprintf(os.Stderr, "index returned %d hits\n", hitCount)
}

func (m *stderrMonitor) SkippedHit(pointID, reason string) {
	fmt.Fprintf(os.Stderr, "skipped point %s: %s\n", pointID, reason)
}

func (m *stderrMonitor) Finish(hits []*core.RankedHit) {
	fmt.Fprintf(os.Stderr, "resolved %d catalog books\n", len(hits))
}
