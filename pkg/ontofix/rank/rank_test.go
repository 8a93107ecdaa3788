package rank

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle/simple"
	"github.com/cognicore/ontofix/pkg/ontofix/profile"
)

func parse(t *testing.T, lines ...string) []axiom.Axiom {
	t.Helper()
	axs, err := axiom.ParseAll(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return axs
}

// fixture: X has conflicts {A,B} and {C,D}; W has {E,A,B}.
func fixture(t *testing.T) ([]axiom.Axiom, *bug.List) {
	axs := parse(t,
		"subclass(X, Y)",
		"subclass(Y, not(X))",
		"subclass(X, Z)",
		"subclass(Z, not(X))",
		"subclass(W, X)",
	)
	a, b, c, d, e := axs[0], axs[1], axs[2], axs[3], axs[4]
	x, w := axiom.NewClass("X"), axiom.NewClass("W")
	list := bug.NewList([]*bug.Bug{
		bug.New(x, []mups.MUPS{
			mups.New(x, mups.TypeLocal, axiom.NewSet(a, b)),
			mups.New(x, mups.TypeLocal, axiom.NewSet(c, d)),
		}, nil),
		bug.New(w, []mups.MUPS{
			mups.New(w, mups.TypeLocal, axiom.NewSet(e, a, b)),
		}, nil),
	})
	return axs, list
}

func TestShapleyMI(t *testing.T) {
	axs, list := fixture(t)
	r := &ShapleyMI{}
	_, err := r.Cost(axs[0])
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	require.NoError(t, r.Init(ontology.New(axs...), list))
	defer r.Fini()

	tests := []struct {
		axiom axiom.Axiom
		want  float64
	}{
		{axs[0], 1.2},
		{axs[2], 2},
		{axs[4], 3},
	}
	for _, tt := range tests {
		got, err := r.Cost(tt.axiom)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, tt.axiom.String())
	}

	got, err := r.Cost(parse(t, "subclass(Q, R)")[0])
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, 1))
}

type votes map[string][]profile.Status

func (v votes) Status(a axiom.Axiom) ([]profile.Status, error) {
	st, ok := v[a.Key()]
	if !ok {
		return nil, errors.New("no reasoner")
	}
	return st, nil
}

func TestSupportRankers(t *testing.T) {
	axs, list := fixture(t)
	a, c, e := axs[0], axs[2], axs[4]
	src := votes{
		a.Key(): {profile.StatusEntailed, profile.StatusUnknown},
		c.Key(): {profile.StatusNegationEntailed, profile.StatusUnknown},
		e.Key(): {profile.StatusUnknown, profile.StatusUnknown},
	}
	ont := ontology.New(axs...)

	type want struct {
		axiom axiom.Axiom
		cost  float64
	}
	tests := []struct {
		name   string
		ranker Ranker
		want   []want
	}{
		{"support", NewProfileSupport(src, 1000), []want{{a, 1000}, {c, -1000}, {e, 0}}},
		{"support-shapley", NewProfileSupportShapley(src, 1000), []want{{a, 1000}, {c, -1000}, {e, 3}}},
		{"shapley-support", NewShapleySupport(src, 1000), []want{{a, 1200}, {c, -500}, {e, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.ranker.Init(ont, list))
			defer tt.ranker.Fini()

			for _, w := range tt.want {
				got, err := tt.ranker.Cost(w.axiom)
				require.NoError(t, err)
				assert.InDelta(t, w.cost, got, 1e-9, w.axiom.String())
			}

			_, err := tt.ranker.Cost(axs[1])
			assert.Error(t, err)
		})
	}
}

func TestInformationContent(t *testing.T) {
	axs := parse(t,
		"subclass(B, A)",
		"subclass(C, A)",
		"subclass(D, B)",
	)
	r := NewInformationContent(simple.Factory())
	require.NoError(t, r.Init(ontology.New(axs...), bug.NewList(nil)))
	defer r.Fini()

	// D loses its superclass B: its IC drops from -log(1.25/3) to -log(1.5/3)
	got, err := r.Cost(axs[2])
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.2), got, 1e-9)

	// the session is restored after each cost
	again, err := r.Cost(axs[2])
	require.NoError(t, err)
	assert.InDelta(t, got, again, 1e-12)
}

func TestSwoop(t *testing.T) {
	axs := parse(t,
		"subclass(B, A)",
		"subclass(C, B)",
		"disjoint(A, D)",
	)
	x := axiom.NewClass("X")
	list := bug.NewList([]*bug.Bug{
		bug.New(x, []mups.MUPS{mups.New(x, mups.TypeLocal, axiom.NewSet(axs[0], axs[2]))}, nil),
	})

	r := NewSwoop(simple.Factory())
	require.NoError(t, r.Init(ontology.New(axs...), list))
	defer r.Fini()

	got, err := r.Cost(axs[0])
	require.NoError(t, err)
	assert.InDelta(t, 0.9+0.7*0.5+0.1*1, got, 1e-9)

	got, err = r.Cost(axs[2])
	require.NoError(t, err)
	assert.InDelta(t, 0.9+0.7*1+0.1*2.0/3.0, got, 1e-9)

	got, err = r.Cost(axs[1])
	require.NoError(t, err)
	assert.True(t, math.IsInf(got, 1), "axioms outside every conflict are never preferred")
}

func TestWeighted(t *testing.T) {
	axs, list := fixture(t)
	_, err := NewWeighted([]Ranker{&ShapleyMI{}}, nil)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	r, err := NewWeighted([]Ranker{&ShapleyMI{}, &ShapleyMI{}}, []float64{1, 0.5})
	require.NoError(t, err)
	assert.Equal(t, "1*shapley-mi+0.5*shapley-mi", r.Name())

	require.NoError(t, r.Init(ontology.New(axs...), list))
	got, err := r.Cost(axs[2])
	require.NoError(t, err)
	assert.InDelta(t, 3.0, got, 1e-9)
	assert.NoError(t, r.Fini())
}

type stub struct {
	name    string
	initErr error
	finiErr error
	finis   int
}

func (s *stub) Name() string                             { return s.name }
func (s *stub) Init(*ontology.Ontology, *bug.List) error { return s.initErr }
func (s *stub) Cost(axiom.Axiom) (float64, error)        { return 1, nil }
func (s *stub) Fini() error {
	s.finis++
	return s.finiErr
}

func TestWeightedInitFailure(t *testing.T) {
	axs, list := fixture(t)
	cleanupErr := errors.New("release failed")
	first := &stub{name: "first", finiErr: cleanupErr}
	second := &stub{name: "second", initErr: errors.New("no model")}

	r, err := NewWeighted([]Ranker{first, second}, []float64{1, 1})
	require.NoError(t, err)

	err = r.Init(ontology.New(axs...), list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init second")
	assert.ErrorIs(t, err, cleanupErr, "cleanup failures are reported too")
	assert.Equal(t, 1, first.finis)
	assert.Zero(t, second.finis)

	_, err = NewWeighted([]Ranker{first}, []float64{math.NaN()})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestByWeights(t *testing.T) {
	axs, list := fixture(t)
	r, err := ByWeights([]Part{
		{Ranker: "ShapleyMI", Weight: 2},
		{Ranker: "swoop", Weight: 0.5},
	}, Deps{Factory: simple.Factory()})
	require.NoError(t, err)
	assert.Equal(t, "2*shapley-mi+0.5*swoop", r.Name())

	require.NoError(t, r.Init(ontology.New(axs...), list))
	got, err := r.Cost(axs[2])
	require.NoError(t, err)
	assert.False(t, math.IsInf(got, 0))
	require.NoError(t, r.Fini())

	_, err = ByWeights([]Part{{Ranker: "coin-flip", Weight: 1}}, Deps{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	_, err = ByWeights(nil, Deps{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"ShapleyMI":              NameShapley,
		"shapley_mi":             NameShapley,
		"shapley":                NameShapley,
		"ProfileSupport":         NameProfileSupport,
		"ProfileSupport+Shapley": NameProfileSupportShapley,
		"ShapleySupport":         NameShapleySupport,
		"InformationContent":     NameInformationContent,
		"IC":                     NameInformationContent,
		"Swoop":                  NameSwoop,
		" swoop ":                NameSwoop,
	}
	for in, want := range tests {
		got, ok := Canonical(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := Canonical("coin-flip")
	assert.False(t, ok)
	assert.True(t, NeedsProfile("ProfileSupport+Shapley"))
}

func TestByName(t *testing.T) {
	deps := Deps{Factory: simple.Factory(), Support: votes{}}
	for _, name := range Names() {
		r, err := ByName(name, deps)
		require.NoError(t, err, name)
		assert.Equal(t, name, r.Name())
	}

	_, err := ByName("profile-support", Deps{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	_, err = ByName("swoop", Deps{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	_, err = ByName("coin-flip", deps)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}
