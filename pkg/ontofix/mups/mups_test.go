package mups

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle/simple"
)

func parse(t *testing.T, lines ...string) []axiom.Axiom {
	t.Helper()
	axs, err := axiom.ParseAll(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return axs
}

func assertMinimal(t *testing.T, e axiom.Entity, m axiom.Set) {
	t.Helper()
	require.NotEmpty(t, m)

	r, err := simple.New(m)
	require.NoError(t, err)
	sat, err := r.IsSatisfiable(e)
	require.NoError(t, err)
	assert.False(t, sat, "conflict set must keep %s unsatisfiable", e)

	for _, a := range m.Sorted() {
		r, err := simple.New(m.Minus(axiom.NewSet(a)))
		require.NoError(t, err)
		sat, err := r.IsSatisfiable(e)
		require.NoError(t, err)
		assert.True(t, sat, "removing %s must restore satisfiability", a)
	}
}

func TestFindMUPSScenario(t *testing.T) {
	axs := parse(t,
		"subclass(X, Y)",
		"subclass(Y, not(X))",
		"subclass(X, Z)",
		"subclass(Z, not(X))",
		"subclass(W, Y)",
	)
	f, err := NewFinder(simple.Factory(), Options{})
	require.NoError(t, err)

	x := axiom.NewClass("X")
	m, err := f.FindMUPS(ontology.New(axs...), x)
	require.NoError(t, err)
	assertMinimal(t, x, m)
	assert.Equal(t, 2, m.Len())

	got := m.Key()
	assert.Contains(t, []string{
		axiom.NewSet(axs[0], axs[1]).Key(),
		axiom.NewSet(axs[2], axs[3]).Key(),
	}, got)
}

func TestFindMUPSGrowsWindow(t *testing.T) {
	lines := []string{
		"subclass(X, A1)",
		"subclass(A1, A2)",
		"subclass(A2, not(X))",
	}
	for i := 0; i < 60; i++ {
		lines = append(lines,
			fmt.Sprintf("subclass(X, N%02d)", i),
			fmt.Sprintf("subclass(N%02d, M%02d)", i, i),
		)
	}
	axs := parse(t, lines...)

	for _, strategy := range []string{StrategyExpandShrink, StrategyShrink, StrategySwoop} {
		t.Run(strategy, func(t *testing.T) {
			f, err := NewFinder(simple.Factory(), Options{Strategy: strategy})
			require.NoError(t, err)

			x := axiom.NewClass("X")
			m, err := f.FindMUPS(ontology.New(axs...), x)
			require.NoError(t, err)
			assertMinimal(t, x, m)
			assert.Equal(t, axiom.NewSet(axs[0], axs[1], axs[2]).Key(), m.Key())

			snap := f.Log().Snapshot()
			assert.Equal(t, int64(1), snap.FinderRuns)
			assert.Positive(t, snap.SatChecks)
		})
	}
}

func TestFindMUPSThroughThing(t *testing.T) {
	axs := parse(t,
		"subclass(Thing, A)",
		"subclass(A, not(B))",
		"subclass(Thing, B)",
		"subclass(C, D)",
		"subclass(E, F)",
	)
	working := ontology.New(axs...)
	c := axiom.NewClass("C")

	for _, strategy := range []string{StrategyExpandShrink, StrategyShrink, StrategySwoop} {
		t.Run(strategy, func(t *testing.T) {
			f, err := NewFinder(simple.Factory(), Options{Strategy: strategy})
			require.NoError(t, err)

			m, err := f.FindMUPS(working, c)
			require.NoError(t, err)
			assertMinimal(t, c, m)
			assert.Equal(t, axiom.NewSet(axs[0], axs[1], axs[2]).Key(), m.Key())
		})
	}
}

func TestSwoopFollowsDefinitions(t *testing.T) {
	axs := parse(t,
		"subclass(X, Y)",
		"subclass(Y, Z)",
		"subclass(Z, not(X))",
		"subclass(Q, X)",
		"subclass(Q, not(Y))",
	)
	f, err := NewFinder(simple.Factory(), Options{Strategy: StrategySwoop})
	require.NoError(t, err)

	x := axiom.NewClass("X")
	m, err := f.FindMUPS(ontology.New(axs...), x)
	require.NoError(t, err)
	assertMinimal(t, x, m)
	assert.Equal(t, axiom.NewSet(axs[0], axs[1], axs[2]).Key(), m.Key())

	_, err = NewFinder(simple.Factory(), Options{Strategy: "guess"})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestFindMUPSSatisfiable(t *testing.T) {
	f, err := NewFinder(simple.Factory(), Options{})
	require.NoError(t, err)

	m, err := f.FindMUPS(ontology.New(parse(t, "subclass(X, Y)")...), axiom.NewClass("X"))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestFindMUPSUsesCache(t *testing.T) {
	axs := parse(t,
		"subclass(X, Y)",
		"subclass(Y, not(X))",
		"subclass(V, W)",
	)
	x := axiom.NewClass("X")
	working := ontology.New(axs...)

	cache := NewCache()
	counter := oracle.NewCounter(simple.Factory())
	f, err := NewFinder(counter, Options{Cache: cache})
	require.NoError(t, err)

	first, err := f.FindMUPS(working, x)
	require.NoError(t, err)
	assert.Positive(t, counter.Calls())
	cache.Add(Build(x, first, Classifier{Local: working}))

	counter.Reset()
	second, err := f.FindMUPS(working, x)
	require.NoError(t, err)
	assert.Zero(t, counter.Calls())
	assert.Zero(t, counter.Reasoners())
	assert.True(t, first.Equal(second))
	assert.Equal(t, int64(1), f.Log().Snapshot().CacheHits)

	// a cached conflict that is no longer contained is ignored
	reduced := working.Without(axiom.NewSet(axs[1]))
	m, err := f.FindMUPS(reduced, x)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Positive(t, counter.Calls())
}

type failingReasoner struct {
	oracle.Reasoner
}

func (failingReasoner) IsSatisfiable(axiom.Entity) (bool, error) {
	return false, errors.New("solver crashed")
}

func TestFindMUPSOracleFailure(t *testing.T) {
	failing := oracle.FactoryFunc(func(axs axiom.Set) (oracle.Reasoner, error) {
		r, err := simple.New(axs)
		if err != nil {
			return nil, err
		}
		return failingReasoner{Reasoner: r}, nil
	})
	f, err := NewFinder(failing, Options{})
	require.NoError(t, err)

	_, err = f.FindMUPS(ontology.New(parse(t, "subclass(X, Y)")...), axiom.NewClass("X"))
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerr.ErrOracle)
}

func TestNewFinderValidation(t *testing.T) {
	_, err := NewFinder(nil, Options{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	_, err = NewFinder(simple.Factory(), Options{Strategy: "magic"})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestClassify(t *testing.T) {
	local := parse(t, "subclass(A, B)", "subclass(B, C)")
	prof := parse(t, "subclass(C, not(A))", "subclass(B, C)")
	alignment := parse(t, "subclass(A, D)")

	c := Classifier{Local: ontology.New(local...), Profile: ontology.New(prof...)}
	tests := []struct {
		name string
		axs  []axiom.Axiom
		want Type
	}{
		{"local", local, TypeLocal},
		{"shared axiom counts as local", []axiom.Axiom{local[1]}, TypeLocal},
		{"profile", []axiom.Axiom{prof[0]}, TypeProfile},
		{"mixed", []axiom.Axiom{local[0], prof[0]}, TypeMixed},
		{"unknown", []axiom.Axiom{local[0], alignment[0]}, TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(axiom.NewSet(tt.axs...)))
		})
	}

	assert.Equal(t, TypeUnknown, Classifier{}.Classify(axiom.NewSet(local...)))
	assert.Equal(t, TypeMixed, ParseType(TypeMixed.String()))
}

func TestMUPSOrdering(t *testing.T) {
	axs := parse(t, "subclass(A, B)", "subclass(B, C)", "subclass(C, D)")
	a, b := axiom.NewClass("A"), axiom.NewClass("B")

	small := New(a, TypeLocal, axiom.NewSet(axs[0]))
	large := New(a, TypeLocal, axiom.NewSet(axs[0], axs[1]))
	other := New(a, TypeLocal, axiom.NewSet(axs[2]))
	mixed := New(a, TypeMixed, axiom.NewSet(axs[0]))
	forB := New(b, TypeLocal, axiom.NewSet(axs[0]))

	assert.Negative(t, small.Compare(large))
	assert.Negative(t, small.Compare(other))
	assert.Negative(t, small.Compare(mixed))
	assert.Negative(t, mixed.Compare(forB))
	assert.Zero(t, small.Compare(New(a, TypeLocal, axiom.NewSet(axs[0]))))

	assert.True(t, small.SameAxioms(forB))
	assert.NotEqual(t, small.Key(), forB.Key())
	assert.NotEqual(t, small.Key(), mixed.Key())
}

func TestCache(t *testing.T) {
	axs := parse(t, "subclass(A, B)", "subclass(B, not(A))", "subclass(A, C)", "subclass(C, not(A))")
	a := axiom.NewClass("A")
	m1 := New(a, TypeLocal, axiom.NewSet(axs[0], axs[1]))
	m2 := New(a, TypeLocal, axiom.NewSet(axs[2], axs[3]))

	c := NewCache()
	assert.True(t, c.Add(m1))
	assert.False(t, c.Add(m1))
	assert.True(t, c.Add(m2))
	assert.Equal(t, 2, c.Len())

	got, ok := c.Lookup(a, axiom.NewSet(axs[1], axs[2], axs[3]))
	require.True(t, ok)
	assert.Equal(t, m2.Key(), got.Key())

	_, ok = c.Lookup(a, axiom.NewSet(axs[0], axs[2]))
	assert.False(t, ok)
	_, ok = c.Lookup(axiom.NewClass("B"), axiom.NewSet(axs...))
	assert.False(t, ok)

	assert.Equal(t, []MUPS{m1, m2}, c.ForEntity(a))
	assert.Len(t, c.All(), 2)
}
