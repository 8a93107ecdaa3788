package bug

import (
	"log/slog"
	"slices"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
)

// List indexes the bugs of one ontology pass: every distinct MUPS, the
// axiom to containing-MUPS map, and the suspected axioms. The index is
// immutable; the white and black lists may be extended before an error
// search starts. A List is not safe for concurrent mutation.
type List struct {
	bugs      []*Bug
	mups      []mups.MUPS
	index     map[string][]int
	suspected axiom.Set
	entities  []axiom.Entity

	white, black axiom.Set
	trustProfile bool
}

// Option configures a List.
type Option func(*List)

// WithWhiteList marks axioms as trusted.
func WithWhiteList(axs ...axiom.Axiom) Option {
	return func(l *List) { l.white.AddAll(axs...) }
}

// WithBlackList marks axioms as known errors.
func WithBlackList(axs ...axiom.Axiom) Option {
	return func(l *List) { l.black.AddAll(axs...) }
}

// WithProfileAssumedCorrect excludes profile-only MUPS from coverage checks.
func WithProfileAssumedCorrect(v bool) Option {
	return func(l *List) { l.trustProfile = v }
}

// NewList indexes bugs.
func NewList(bugs []*Bug, opts ...Option) *List {
	l := &List{
		bugs:      slices.Clone(bugs),
		index:     make(map[string][]int),
		suspected: make(axiom.Set),
		white:     make(axiom.Set),
		black:     make(axiom.Set),
	}
	for _, opt := range opts {
		opt(l)
	}
	slices.SortFunc(l.bugs, (*Bug).Compare)

	var all []mups.MUPS
	for _, b := range l.bugs {
		l.entities = append(l.entities, b.Entity())
		all = append(all, b.mups...)
	}
	l.mups = dedupMUPS(all)

	for i, m := range l.mups {
		for _, a := range m.Axioms() {
			l.suspected.Add(a)
			l.index[a.Key()] = append(l.index[a.Key()], i)
		}
	}
	return l
}

// Bugs returns the bugs ordered by entity.
func (l *List) Bugs() []*Bug { return slices.Clone(l.bugs) }

// Entities returns the unsatisfiable entities covered by the list.
func (l *List) Entities() []axiom.Entity { return slices.Clone(l.entities) }

// MUPS returns every distinct MUPS.
func (l *List) MUPS() []mups.MUPS { return slices.Clone(l.mups) }

// Len returns the number of bugs.
func (l *List) Len() int { return len(l.bugs) }

// IsEmpty reports whether no bugs were found.
func (l *List) IsEmpty() bool { return len(l.bugs) == 0 }

// Containing returns the MUPS that contain a.
func (l *List) Containing(a axiom.Axiom) []mups.MUPS {
	idx := l.index[a.Key()]
	out := make([]mups.MUPS, len(idx))
	for i, j := range idx {
		out[i] = l.mups[j]
	}
	return out
}

// Suspected returns the union of all MUPS.
func (l *List) Suspected() axiom.Set { return l.suspected.Clone() }

// WhiteList returns the trusted axioms.
func (l *List) WhiteList() axiom.Set { return l.white.Clone() }

// BlackList returns the known erroneous axioms.
func (l *List) BlackList() axiom.Set { return l.black.Clone() }

func (l *List) IsWhite(a axiom.Axiom) bool { return l.white.Contains(a) }
func (l *List) IsBlack(a axiom.Axiom) bool { return l.black.Contains(a) }

// AddWhite marks axioms as trusted.
func (l *List) AddWhite(axs ...axiom.Axiom) { l.white.AddAll(axs...) }

// AddBlack marks axioms as known errors.
func (l *List) AddBlack(axs ...axiom.Axiom) { l.black.AddAll(axs...) }

// ProfileAssumedCorrect reports whether profile-only MUPS are ignored.
func (l *List) ProfileAssumedCorrect() bool { return l.trustProfile }

// Considered returns the MUPS a repair has to hit.
func (l *List) Considered() []mups.MUPS {
	return l.UncoveredMUPS(nil)
}

// UncoveredMUPS returns the considered MUPS sharing no axiom with removed.
func (l *List) UncoveredMUPS(removed axiom.Set) []mups.MUPS {
	var out []mups.MUPS
	for _, m := range l.mups {
		if l.trustProfile && m.Type() == mups.TypeProfile {
			continue
		}
		if !m.Intersects(removed) {
			out = append(out, m)
		}
	}
	return out
}

// Uncovered returns the axioms of the MUPS not hit by removed.
func (l *List) Uncovered(removed axiom.Set) axiom.Set {
	out := make(axiom.Set)
	for _, m := range l.UncoveredMUPS(removed) {
		out.AddAll(m.Axioms()...)
	}
	return out
}

// LogValue implements slog.LogValuer.
func (l *List) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("entities", len(l.bugs)),
		slog.Int("mups", len(l.mups)),
		slog.Int("suspected", l.suspected.Len()),
		slog.Int("white", l.white.Len()),
		slog.Int("black", l.black.Len()),
	)
}
