package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/detect"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

func TestObserveBug(t *testing.T) {
	r := NewRecorder(nil)
	a, err := axiom.Parse("subclass(X, Y)")
	require.NoError(t, err)
	b, err := axiom.Parse("subclass(Y, not(X))")
	require.NoError(t, err)
	x := axiom.NewClass("X")
	found := bug.New(x, []mups.MUPS{mups.New(x, mups.TypeLocal, axiom.NewSet(a, b))},
		[]axiom.Set{axiom.NewSet(a), axiom.NewSet(b)})

	perf := mups.Snapshot{Nodes: 3, CacheHits: 1, ExpandTime: 2 * time.Second}
	r.ObserveBug("hst", found, 10*time.Millisecond, perf)
	r.ObserveBug("hst", found, 10*time.Millisecond, perf)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.bugs.WithLabelValues("hst")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.mups.WithLabelValues("hst", "local")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.diagnoses.WithLabelValues("hst")))
	assert.Equal(t, 6.0, testutil.ToFloat64(r.searchOps.WithLabelValues("hst", "node")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.phaseTime.WithLabelValues("hst", "expand")))
}

func TestObserveFailure(t *testing.T) {
	r := NewRecorder(nil)
	x := axiom.NewClass("X")
	r.ObserveFailure("df", x, fmt.Errorf("entity X: %w", internalerr.ErrNoConflict))
	r.ObserveFailure("df", x, fmt.Errorf("sat: %w", internalerr.ErrOracle))
	r.ObserveFailure("df", x, fmt.Errorf("boom"))

	for _, reason := range []string{"no_conflict", "oracle", "other"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(r.failures.WithLabelValues("df", reason)), reason)
	}
}

func TestObserveOracle(t *testing.T) {
	r := NewRecorder(nil)
	r.ObserveOracle(oracle.Usage{Reasoners: 2, SatChecks: 10, EntailmentChecks: 3})
	r.ObserveOracle(oracle.Usage{Reasoners: 1, SatChecks: 5})

	assert.Equal(t, 3.0, testutil.ToFloat64(r.oracleOps.WithLabelValues("reasoner")))
	assert.Equal(t, 15.0, testutil.ToFloat64(r.oracleOps.WithLabelValues("sat_check")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.oracleOps.WithLabelValues("entailment_check")))
}

func TestObserveRepair(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	a, err := axiom.Parse("subclass(X, Y)")
	require.NoError(t, err)

	r.ObserveRepair(&detect.Result{Ranker: "swoop", Greedy: true, Errors: axiom.NewSet(a), TotalCost: 1.5})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.repairs.WithLabelValues("swoop", "greedy")))
	assert.Equal(t, 1.5, testutil.ToFloat64(r.repairCost.WithLabelValues("swoop", "greedy")))

	n, err := testutil.GatherAndCount(reg, "ontofix_repair_axioms")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a second recorder on the same registry is a programming error
	assert.Panics(t, func() { NewRecorder(reg) })
}
