package ontofix

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/config"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/metrics"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle/simple"
	"github.com/cognicore/ontofix/pkg/ontofix/profile"
	"github.com/cognicore/ontofix/pkg/ontofix/report"
	"github.com/cognicore/ontofix/pkg/ontofix/store/memstore"
)

const toy = `
subclass(X, Y)
subclass(Y, not(X))
subclass(X, Z)
subclass(Z, not(X))
subclass(W, X)
subclass(Q, R)
`

func load(t *testing.T, text string) *ontology.Ontology {
	t.Helper()
	ont, err := ontology.Load(strings.NewReader(text))
	require.NoError(t, err)
	return ont
}

func mustParse(t *testing.T, line string) axiom.Axiom {
	t.Helper()
	a, err := axiom.Parse(line)
	require.NoError(t, err)
	return a
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.BugFinder.Workers = 2
	return cfg
}

func TestDebugStandalone(t *testing.T) {
	reg := prometheus.NewRegistry()
	st := memstore.New()
	d, err := New(Options{Config: testConfig(), Store: st, Metrics: metrics.NewRecorder(reg)})
	require.NoError(t, err)
	defer d.Close()

	res, err := d.Debug(context.Background(), "toy", load(t, toy))
	require.NoError(t, err)
	require.Len(t, res.Passes, 1)

	pass := res.Passes[0]
	assert.Equal(t, "toy", pass.Name)
	assert.Equal(t, 2, pass.Bugs.Len(), "X and W are unsatisfiable")
	assert.Len(t, pass.Bugs.MUPS(), 4)
	assert.Equal(t, 5, pass.Bugs.Suspected().Len())

	require.Len(t, pass.Repairs, 1)
	rep := pass.Repairs[0]
	assert.Equal(t, "shapley-mi", rep.Ranker)
	assert.Equal(t, []string{"subclass(X, Y)", "subclass(X, Z)"}, rep.Errors())
	assert.InDelta(t, 2.4, rep.TotalCost, 1e-9)

	stored, err := st.GetReports(context.Background(), "toy", 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	back, err := report.FromRecord(stored[0])
	require.NoError(t, err)
	assert.Equal(t, rep.Repairs, back.Repairs)

	n, err := testutil.GatherAndCount(reg, "ontofix_bugs_found_total", "ontofix_repair_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Positive(t, pass.Oracle.Reasoners)
	assert.Positive(t, pass.Oracle.SatChecks)
	n, err = testutil.GatherAndCount(reg, "ontofix_oracle_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func assertHitsEveryMUPS(t *testing.T, p Pass, rep report.Report) {
	t.Helper()
	errs := axiom.NewSet()
	for _, line := range rep.Errors() {
		errs.Add(mustParse(t, line))
	}
	for _, m := range p.Bugs.MUPS() {
		assert.True(t, m.Intersects(errs), "%s leaves %s unrepaired", rep.Ranker, m)
	}
}

func TestDebugWeightedRanker(t *testing.T) {
	cfg := testConfig()
	cfg.ErrorSearch.Weighted = []config.WeightedPart{
		{Ranker: "ShapleyMI", Weight: 1},
		{Ranker: "swoop", Weight: 0.5},
	}
	d, err := New(Options{Config: cfg})
	require.NoError(t, err)
	defer d.Close()

	res, err := d.Debug(context.Background(), "toy", load(t, toy))
	require.NoError(t, err)
	pass := res.Passes[0]
	require.Len(t, pass.Repairs, 2)
	assert.Equal(t, "shapley-mi", pass.Repairs[0].Ranker)
	assert.Equal(t, "1*shapley-mi+0.5*swoop", pass.Repairs[1].Ranker)
	for _, rep := range pass.Repairs {
		assertHitsEveryMUPS(t, pass, rep)
	}
}

func TestDebugInconsistentMergedPass(t *testing.T) {
	upper := load(t, "subclass(Thing, A)\nsubclass(Thing, B)\n")
	prof := profile.New(profile.Member{Name: "upper", Ontology: upper})

	cfg := testConfig()
	cfg.Debug.MergeProfile = true
	cfg.Paths.Profile = []string{"upper.ax"}
	for _, workers := range []int{1, 2} {
		cfg.BugFinder.Workers = workers
		d, err := New(Options{Config: cfg, Profile: prof})
		require.NoError(t, err)

		res, err := d.Debug(context.Background(), "local", load(t, "subclass(A, not(B))\nsubclass(C, D)\n"))
		require.NoError(t, err)
		require.Len(t, res.Passes, 2)
		assert.True(t, res.Passes[0].Bugs.IsEmpty(), "the ontology alone is consistent")

		merged := res.Passes[1]
		assert.Equal(t, 4, merged.Bugs.Len(), "every class is empty in the union")
		require.Len(t, merged.Repairs, 1)
		assert.Equal(t, []string{"subclass(A, not(B))"}, merged.Repairs[0].Errors())
		assertHitsEveryMUPS(t, merged, merged.Repairs[0])
		require.NoError(t, d.Close())
	}
}

func TestCachedBugListSeedsNextPass(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	cfg := testConfig()
	cfg.Store.Path = "memory"
	cfg.Store.SaveCache = true
	cfg.ErrorSearch.FindRootErrors = false

	first := oracle.NewCounter(simple.Factory())
	d, err := New(Options{Config: cfg, Store: st, Factory: first})
	require.NoError(t, err)
	res, err := d.Debug(ctx, "toy", load(t, toy))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Passes[0].Ontology.Len())

	suspected, ok, err := st.LoadSuspected(ctx, "toy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, suspected, 5)

	cfg.Store.UseCache = true
	second := oracle.NewCounter(simple.Factory())
	d2, err := New(Options{Config: cfg, Store: st, Factory: second})
	require.NoError(t, err)
	res2, err := d2.Debug(ctx, "toy", load(t, toy))
	require.NoError(t, err)

	pass := res2.Passes[0]
	assert.Equal(t, 5, pass.Ontology.Len(), "only the cached suspected axioms are debugged")
	assert.Equal(t, 2, pass.Bugs.Len())
	assert.Equal(t, 4, d2.Cache().Len())
	assert.Less(t, second.Calls(), first.Calls())
}

func TestDebugWithProfile(t *testing.T) {
	upper := load(t, "subclass(Z, not(X))\n")
	prof := profile.New(profile.Member{Name: "upper", Ontology: upper})

	cfg := testConfig()
	cfg.Debug.MergeProfile = true
	cfg.ErrorSearch.Preprocess = true
	cfg.ErrorSearch.Rankers = []string{"profile-support", "shapley-mi"}
	cfg.Paths.Profile = []string{"upper.ax"}

	d, err := New(Options{Config: cfg, Profile: prof})
	require.NoError(t, err)
	defer d.Close()

	res, err := d.Debug(context.Background(), "toy", load(t, toy))
	require.NoError(t, err)

	contradicted := mustParse(t, "subclass(X, Z)")
	trusted := mustParse(t, "subclass(Z, not(X))")
	assert.True(t, res.InitialErrors.Equal(axiom.NewSet(contradicted)))
	assert.True(t, res.WhiteList.Contains(trusted))

	require.Len(t, res.Passes, 2)
	assert.Equal(t, "toy-merged", res.Passes[1].Name)
	assert.Equal(t, 0, res.Passes[1].Missing.Len())

	for _, pass := range res.Passes {
		assert.False(t, pass.Ontology.Contains(contradicted), "initial errors are not debugged")
		assert.True(t, pass.Bugs.IsBlack(contradicted))
		require.Len(t, pass.Repairs, 2)
		for _, rep := range pass.Repairs {
			assert.Contains(t, rep.Errors(), contradicted.String(), rep.Ranker)
			assert.Contains(t, rep.Errors(), "subclass(X, Y)", rep.Ranker)
		}
	}
}

func TestFindBug(t *testing.T) {
	d, err := New(Options{Config: testConfig()})
	require.NoError(t, err)
	ont := load(t, toy)

	b, err := d.FindBug(context.Background(), ont, axiom.NewClass("X"))
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Len(t, b.MUPS(), 2)
	assert.Len(t, b.Diagnoses(), 4)

	b, err = d.FindBug(context.Background(), ont, axiom.NewClass("Q"))
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestNewValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Path = "x.db"
	cfg.Store.UseCache = true
	_, err := New(Options{Config: cfg})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	cfg = testConfig()
	cfg.ErrorSearch.Rankers = []string{"shapley-support"}
	cfg.Paths.Profile = []string{"upper.ax"}
	_, err = New(Options{Config: cfg})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	cfg = testConfig()
	cfg.BugFinder.Method = "coin-flip"
	_, err = New(Options{Config: cfg})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}
