package bug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
)

func parse(t *testing.T, lines ...string) []axiom.Axiom {
	t.Helper()
	axs, err := axiom.ParseAll(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return axs
}

// fixture returns axioms A..D of the two-conflict scenario.
func fixture(t *testing.T) (a, b, c, d axiom.Axiom) {
	axs := parse(t,
		"subclass(X, Y)",
		"subclass(Y, not(X))",
		"subclass(X, Z)",
		"subclass(Z, not(X))",
	)
	return axs[0], axs[1], axs[2], axs[3]
}

func TestNewMinimizesDiagnoses(t *testing.T) {
	a, b, c, d := fixture(t)
	x := axiom.NewClass("X")
	m1 := mups.New(x, mups.TypeLocal, axiom.NewSet(a, b))
	m2 := mups.New(x, mups.TypeLocal, axiom.NewSet(c, d))

	bg := New(x, []mups.MUPS{m2, m1, m1}, []axiom.Set{
		axiom.NewSet(a, c),
		axiom.NewSet(a, c, d),
		axiom.NewSet(b, d),
		axiom.NewSet(c, a),
	})

	require.Len(t, bg.MUPS(), 2)
	assert.Equal(t, m1.Key(), bg.MUPS()[0].Key())

	diags := bg.Diagnoses()
	require.Len(t, diags, 2)
	assert.True(t, diags[0].Equal(axiom.NewSet(a, c)))
	assert.True(t, diags[1].Equal(axiom.NewSet(b, d)))

	assert.Equal(t, 4, bg.Axioms().Len())
	assert.Equal(t, 2, bg.CountByType()[mups.TypeLocal])
	assert.False(t, bg.IsEmpty())
	assert.True(t, Empty(x).IsEmpty())
	assert.Contains(t, bg.String(), "mups=2")
}

func TestListIndex(t *testing.T) {
	a, b, c, d := fixture(t)
	x, w := axiom.NewClass("X"), axiom.NewClass("W")
	mx1 := mups.New(x, mups.TypeLocal, axiom.NewSet(a, b))
	mx2 := mups.New(x, mups.TypeLocal, axiom.NewSet(c, d))
	mw := mups.New(w, mups.TypeLocal, axiom.NewSet(a, b))

	l := NewList([]*Bug{
		New(x, []mups.MUPS{mx1, mx2}, nil),
		New(w, []mups.MUPS{mw}, nil),
	})

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []axiom.Entity{w, x}, l.Entities())
	assert.Len(t, l.MUPS(), 3)
	assert.Len(t, l.Containing(a), 2)
	assert.Len(t, l.Containing(c), 1)
	assert.Empty(t, l.Containing(parse(t, "subclass(Q, R)")[0]))
	assert.True(t, l.Suspected().Equal(axiom.NewSet(a, b, c, d)))

	// the index is the exact inverse of MUPS membership
	for _, m := range l.MUPS() {
		for _, ax := range m.Axioms() {
			found := false
			for _, owner := range l.Containing(ax) {
				if owner.Key() == m.Key() {
					found = true
				}
			}
			assert.True(t, found)
		}
	}
}

func TestListUncovered(t *testing.T) {
	a, b, c, d := fixture(t)
	x := axiom.NewClass("X")
	local := mups.New(x, mups.TypeLocal, axiom.NewSet(a, b))
	prof := mups.New(x, mups.TypeProfile, axiom.NewSet(c, d))
	bugs := []*Bug{New(x, []mups.MUPS{local, prof}, nil)}

	l := NewList(bugs)
	assert.Len(t, l.Considered(), 2)
	assert.True(t, l.Uncovered(axiom.NewSet(a)).Equal(axiom.NewSet(c, d)))
	assert.Empty(t, l.UncoveredMUPS(axiom.NewSet(a, d)))

	trusting := NewList(bugs, WithProfileAssumedCorrect(true))
	assert.True(t, trusting.ProfileAssumedCorrect())
	assert.Len(t, trusting.Considered(), 1)
	assert.Empty(t, trusting.Uncovered(axiom.NewSet(b)))
}

func TestListWhiteBlack(t *testing.T) {
	a, b, c, _ := fixture(t)
	l := NewList(nil, WithWhiteList(a), WithBlackList(b))

	assert.True(t, l.IsEmpty())
	assert.True(t, l.IsWhite(a))
	assert.True(t, l.IsBlack(b))
	assert.False(t, l.IsWhite(c))

	l.AddWhite(c)
	assert.True(t, l.IsWhite(c))
	l.AddBlack(c)
	assert.Equal(t, 2, l.BlackList().Len())

	wl := l.WhiteList()
	wl.Remove(a)
	assert.True(t, l.IsWhite(a), "returned lists are copies")
}

func TestMinimize(t *testing.T) {
	a, b, c, _ := fixture(t)
	got := Minimize([]axiom.Set{
		axiom.NewSet(a, b, c),
		axiom.NewSet(b),
		axiom.NewSet(a, c),
		axiom.NewSet(b, c),
	})
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(axiom.NewSet(b)))
	assert.True(t, got[1].Equal(axiom.NewSet(a, c)))
}
