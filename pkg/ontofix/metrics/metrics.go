// Package metrics exports search statistics to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/detect"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

const namespace = "ontofix"

// Recorder implements hstree.Observer and records repair outcomes.
type Recorder struct {
	bugs       *prometheus.CounterVec
	mups       *prometheus.CounterVec
	diagnoses  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	entityTime *prometheus.HistogramVec
	phaseTime  *prometheus.CounterVec
	searchOps  *prometheus.CounterVec
	oracleOps  *prometheus.CounterVec

	repairs    *prometheus.CounterVec
	repairSize *prometheus.GaugeVec
	repairCost *prometheus.GaugeVec
	repairTime *prometheus.HistogramVec
}

// NewRecorder registers the collectors with reg. A nil reg uses a private
// registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Recorder{
		bugs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bugs",
			Name:      "found_total",
			Help:      "Unsatisfiable entities debugged",
		}, []string{"method"}),
		mups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bugs",
			Name:      "mups_total",
			Help:      "MUPS attached to debugged entities, by type",
		}, []string{"method", "type"}),
		diagnoses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bugs",
			Name:      "diagnoses_total",
			Help:      "Minimal diagnoses found",
		}, []string{"method"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bugs",
			Name:      "failures_total",
			Help:      "Entities whose search failed",
		}, []string{"method", "reason"}),
		entityTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bugs",
			Name:      "entity_duration_seconds",
			Help:      "Wall time of one entity search",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"method"}),
		phaseTime: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "phase_seconds_total",
			Help:      "Time spent per search phase",
		}, []string{"method", "phase"}),
		searchOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "operations_total",
			Help:      "Search counters: nodes, early terminations, cache hits, finder runs, sat checks",
		}, []string{"method", "op"}),
		oracleOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "operations_total",
			Help:      "Reasoners created and queries answered",
		}, []string{"op"}),

		repairs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repair",
			Name:      "runs_total",
			Help:      "Repairs computed",
		}, []string{"ranker", "mode"}),
		repairSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "repair",
			Name:      "axioms",
			Help:      "Axioms in the last repair",
		}, []string{"ranker", "mode"}),
		repairCost: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "repair",
			Name:      "cost",
			Help:      "Total cost of the last repair",
		}, []string{"ranker", "mode"}),
		repairTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repair",
			Name:      "duration_seconds",
			Help:      "Wall time of error detection",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"ranker", "mode"}),
	}
}

// ObserveBug records a debugged entity and its search statistics.
func (r *Recorder) ObserveBug(method string, b *bug.Bug, elapsed time.Duration, perf mups.Snapshot) {
	r.bugs.WithLabelValues(method).Inc()
	for t, n := range b.CountByType() {
		r.mups.WithLabelValues(method, t.String()).Add(float64(n))
	}
	r.diagnoses.WithLabelValues(method).Add(float64(len(b.Diagnoses())))
	r.entityTime.WithLabelValues(method).Observe(elapsed.Seconds())

	r.phaseTime.WithLabelValues(method, "find_mups").Add(perf.FindMUPSTime.Seconds())
	r.phaseTime.WithLabelValues(method, "sat_check").Add(perf.SatCheckTime.Seconds())
	r.phaseTime.WithLabelValues(method, "expand").Add(perf.ExpandTime.Seconds())
	r.phaseTime.WithLabelValues(method, "shrink").Add(perf.ShrinkTime.Seconds())

	r.searchOps.WithLabelValues(method, "node").Add(float64(perf.Nodes))
	r.searchOps.WithLabelValues(method, "early_termination").Add(float64(perf.EarlyTerminations))
	r.searchOps.WithLabelValues(method, "cache_hit").Add(float64(perf.CacheHits))
	r.searchOps.WithLabelValues(method, "finder_run").Add(float64(perf.FinderRuns))
	r.searchOps.WithLabelValues(method, "sat_check").Add(float64(perf.SatChecks))
}

// ObserveFailure counts an entity whose search failed.
func (r *Recorder) ObserveFailure(method string, _ axiom.Entity, err error) {
	r.failures.WithLabelValues(method, reason(err)).Inc()
}

// ObserveOracle adds the reasoner usage of one pass.
func (r *Recorder) ObserveOracle(u oracle.Usage) {
	r.oracleOps.WithLabelValues("reasoner").Add(float64(u.Reasoners))
	r.oracleOps.WithLabelValues("sat_check").Add(float64(u.SatChecks))
	r.oracleOps.WithLabelValues("entailment_check").Add(float64(u.EntailmentChecks))
}

// ObserveRepair records one detector result.
func (r *Recorder) ObserveRepair(res *detect.Result) {
	mode := "exact"
	if res.Greedy {
		mode = "greedy"
	}
	r.repairs.WithLabelValues(res.Ranker, mode).Inc()
	r.repairSize.WithLabelValues(res.Ranker, mode).Set(float64(res.Errors.Len()))
	r.repairCost.WithLabelValues(res.Ranker, mode).Set(res.TotalCost)
	r.repairTime.WithLabelValues(res.Ranker, mode).Observe(res.Elapsed.Seconds())
}

func reason(err error) string {
	switch {
	case errors.Is(err, internalerr.ErrNoConflict):
		return "no_conflict"
	case errors.Is(err, internalerr.ErrUndecided):
		return "undecided"
	case errors.Is(err, internalerr.ErrOracle):
		return "oracle"
	case errors.Is(err, internalerr.ErrNotFlushed):
		return "not_flushed"
	default:
		return "other"
	}
}
