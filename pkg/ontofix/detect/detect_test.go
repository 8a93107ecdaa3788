package detect

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
)

func parse(t *testing.T, lines ...string) []axiom.Axiom {
	t.Helper()
	axs, err := axiom.ParseAll(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return axs
}

// fixed prices axioms from a table; unknown axioms cost 1.
type fixed struct {
	costs map[string]float64
	fail  map[string]bool
	inits int
	finis int
}

func (f *fixed) Name() string { return "fixed" }

func (f *fixed) Init(*ontology.Ontology, *bug.List) error {
	f.inits++
	return nil
}

func (f *fixed) Cost(a axiom.Axiom) (float64, error) {
	if f.fail[a.Key()] {
		return 0, errors.New("ranker broke")
	}
	if c, ok := f.costs[a.Key()]; ok {
		return c, nil
	}
	return 1, nil
}

func (f *fixed) Fini() error {
	f.finis++
	return nil
}

func scenario(t *testing.T) ([]axiom.Axiom, []mups.MUPS) {
	axs := parse(t,
		"subclass(X, Y)",
		"subclass(Y, not(X))",
		"subclass(X, Z)",
		"subclass(Z, not(X))",
	)
	x := axiom.NewClass("X")
	return axs, []mups.MUPS{
		mups.New(x, mups.TypeLocal, axiom.NewSet(axs[0], axs[1])),
		mups.New(x, mups.TypeLocal, axiom.NewSet(axs[2], axs[3])),
	}
}

func listOf(ms []mups.MUPS, opts ...bug.Option) *bug.List {
	byEntity := make(map[axiom.Entity][]mups.MUPS)
	for _, m := range ms {
		byEntity[m.Entity()] = append(byEntity[m.Entity()], m)
	}
	var bugs []*bug.Bug
	for e, group := range byEntity {
		bugs = append(bugs, bug.New(e, group, nil))
	}
	return bug.NewList(bugs, opts...)
}

func assertHits(t *testing.T, errs axiom.Set, ms []mups.MUPS) {
	t.Helper()
	for _, m := range ms {
		assert.True(t, m.Intersects(errs), "%s is not hit by %v", m, errs.Sorted())
	}
}

func find(t *testing.T, r *fixed, greedy bool, list *bug.List) *Result {
	t.Helper()
	d, err := New(r, Options{Greedy: greedy})
	require.NoError(t, err)
	res, err := d.FindErrors(context.Background(), ontology.New(), list)
	require.NoError(t, err)
	return res
}

func TestScenarioUniformCost(t *testing.T) {
	axs, ms := scenario(t)
	for _, greedy := range []bool{true, false} {
		t.Run(fmt.Sprintf("greedy=%v", greedy), func(t *testing.T) {
			r := &fixed{}
			res := find(t, r, greedy, listOf(ms))

			assert.Equal(t, 2, res.Errors.Len())
			assertHits(t, res.Errors, ms)
			assert.InDelta(t, 2.0, res.TotalCost, 1e-9)
			assert.Equal(t, 4, res.Summary.Count)
			assert.InDelta(t, 1.0, res.Summary.Mean, 1e-9)
			assert.Equal(t, 1, r.inits)
			assert.Equal(t, 1, r.finis)
			// ties go to the first axiom in canonical order
			assert.True(t, res.Errors.Equal(axiom.NewSet(axs[0], axs[2])))
		})
	}
}

func TestExactBeatsGreedy(t *testing.T) {
	axs := parse(t, "subclass(P, Y)", "subclass(P, Z)", "subclass(P, W)")
	y, z, w := axs[0], axs[1], axs[2]
	p := axiom.NewClass("P")
	ms := []mups.MUPS{
		mups.New(p, mups.TypeLocal, axiom.NewSet(y, w)),
		mups.New(p, mups.TypeLocal, axiom.NewSet(z, w)),
	}
	r := &fixed{costs: map[string]float64{y.Key(): 1, z.Key(): 1, w.Key(): 1.5}}

	greedy := find(t, r, true, listOf(ms))
	assert.True(t, greedy.Errors.Equal(axiom.NewSet(y, z)))
	assert.InDelta(t, 2.0, greedy.TotalCost, 1e-9)

	exact := find(t, r, false, listOf(ms))
	assert.True(t, exact.Errors.Equal(axiom.NewSet(w)))
	assert.InDelta(t, 1.5, exact.TotalCost, 1e-9)
}

func TestBlackAndWhiteLists(t *testing.T) {
	axs, ms := scenario(t)
	a, b, c := axs[0], axs[1], axs[2]
	r := &fixed{costs: map[string]float64{a.Key(): 0, b.Key(): 5}}

	for _, greedy := range []bool{true, false} {
		list := listOf(ms, bug.WithBlackList(c), bug.WithWhiteList(a))
		res := find(t, r, greedy, list)

		assert.True(t, res.Errors.Contains(c), "black-listed axioms are always errors")
		assert.False(t, res.Errors.Contains(a), "white-listed axioms lose to any alternative")
		assert.True(t, res.Errors.Equal(axiom.NewSet(b, c)))
		assert.InDelta(t, 5.0, res.TotalCost, 1e-9)

		// a conflict made only of trusted axioms still gets hit
		all := listOf(ms, bug.WithWhiteList(axs...))
		res = find(t, r, greedy, all)
		assertHits(t, res.Errors, ms)
		assert.True(t, res.Errors.Contains(a))
	}
}

func TestCostFailureExcludesAxiom(t *testing.T) {
	axs, ms := scenario(t)
	r := &fixed{
		costs: map[string]float64{axs[0].Key(): 0.5},
		fail:  map[string]bool{axs[0].Key(): true},
	}
	res := find(t, r, false, listOf(ms))
	assert.False(t, res.Errors.Contains(axs[0]))
	assert.Equal(t, 1, res.Summary.Excluded)
	assertHits(t, res.Errors, ms)
}

func TestNegativeCosts(t *testing.T) {
	axs, ms := scenario(t)
	r := &fixed{costs: map[string]float64{axs[1].Key(): -10}}

	res := find(t, r, false, listOf(ms))
	assert.True(t, res.Errors.Equal(axiom.NewSet(axs[1], axs[2])))
	assert.InDelta(t, -9.0, res.TotalCost, 1e-9)
}

func TestProfileMUPSTrusted(t *testing.T) {
	axs, ms := scenario(t)
	x := axiom.NewClass("X")
	prof := mups.New(x, mups.TypeProfile, ms[1].Set())
	list := listOf([]mups.MUPS{ms[0], prof}, bug.WithProfileAssumedCorrect(true))

	res := find(t, &fixed{}, false, list)
	assert.True(t, res.Errors.Equal(axiom.NewSet(axs[0])))
}

func TestCanceled(t *testing.T) {
	_, ms := scenario(t)
	d, err := New(&fixed{}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.FindErrors(ctx, ontology.New(), listOf(ms))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = New(nil, Options{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestExactNeverWorseThanGreedy(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	var lines []string
	for i := 0; i < 9; i++ {
		lines = append(lines, fmt.Sprintf("subclass(A%d, B%d)", i, i))
	}
	axs := parse(t, lines...)
	e := axiom.NewClass("E")

	for round := 0; round < 25; round++ {
		var ms []mups.MUPS
		conflicts := 2 + rng.IntN(4)
		for j := 0; j < conflicts; j++ {
			set := axiom.NewSet()
			size := 1 + rng.IntN(3)
			for set.Len() < size {
				set.Add(axs[rng.IntN(len(axs))])
			}
			ms = append(ms, mups.New(e, mups.TypeLocal, set))
		}
		costs := make(map[string]float64)
		for _, a := range axs {
			costs[a.Key()] = float64(1 + rng.IntN(9))
		}
		r := &fixed{costs: costs}

		greedy := find(t, r, true, listOf(ms))
		exact := find(t, r, false, listOf(ms))
		assertHits(t, greedy.Errors, ms)
		assertHits(t, exact.Errors, ms)
		assert.LessOrEqual(t, exact.TotalCost, greedy.TotalCost, "round %d", round)
	}
}
