package mups

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// PerformanceLog accumulates timings and counters of a search. The zero
// value is ready to use and safe for concurrent updates.
type PerformanceLog struct {
	findMUPS  atomic.Int64
	satChecks atomic.Int64
	expand    atomic.Int64
	shrink    atomic.Int64

	satCalls   atomic.Int64
	finderRuns atomic.Int64
	cacheHits  atomic.Int64
	nodes      atomic.Int64
	earlyTerms atomic.Int64
}

// Snapshot is a point-in-time copy of a PerformanceLog.
type Snapshot struct {
	FindMUPSTime      time.Duration
	SatCheckTime      time.Duration
	ExpandTime        time.Duration
	ShrinkTime        time.Duration
	SatChecks         int64
	FinderRuns        int64
	CacheHits         int64
	Nodes             int64
	EarlyTerminations int64
}

func (l *PerformanceLog) AddFindMUPS(d time.Duration) { l.findMUPS.Add(int64(d)) }
func (l *PerformanceLog) AddExpand(d time.Duration)   { l.expand.Add(int64(d)) }
func (l *PerformanceLog) AddShrink(d time.Duration)   { l.shrink.Add(int64(d)) }

// AddSatChecks records n satisfiability checks that took d in total.
func (l *PerformanceLog) AddSatChecks(n int64, d time.Duration) {
	l.satCalls.Add(n)
	l.satChecks.Add(int64(d))
}

func (l *PerformanceLog) IncFinderRuns()        { l.finderRuns.Add(1) }
func (l *PerformanceLog) IncCacheHits()         { l.cacheHits.Add(1) }
func (l *PerformanceLog) IncNodes()             { l.nodes.Add(1) }
func (l *PerformanceLog) IncEarlyTerminations() { l.earlyTerms.Add(1) }

// Snapshot copies the current values.
func (l *PerformanceLog) Snapshot() Snapshot {
	return Snapshot{
		FindMUPSTime:      time.Duration(l.findMUPS.Load()),
		SatCheckTime:      time.Duration(l.satChecks.Load()),
		ExpandTime:        time.Duration(l.expand.Load()),
		ShrinkTime:        time.Duration(l.shrink.Load()),
		SatChecks:         l.satCalls.Load(),
		FinderRuns:        l.finderRuns.Load(),
		CacheHits:         l.cacheHits.Load(),
		Nodes:             l.nodes.Load(),
		EarlyTerminations: l.earlyTerms.Load(),
	}
}

// LogValue implements slog.LogValuer.
func (l *PerformanceLog) LogValue() slog.Value {
	s := l.Snapshot()
	return slog.GroupValue(
		slog.Duration("find_mups", s.FindMUPSTime),
		slog.Duration("sat_checks", s.SatCheckTime),
		slog.Duration("expand", s.ExpandTime),
		slog.Duration("shrink", s.ShrinkTime),
		slog.Int64("sat_calls", s.SatChecks),
		slog.Int64("finder_runs", s.FinderRuns),
		slog.Int64("cache_hits", s.CacheHits),
		slog.Int64("nodes", s.Nodes),
		slog.Int64("early_terminations", s.EarlyTerminations),
	)
}
