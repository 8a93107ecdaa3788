// Package bug aggregates the conflicts and repairs found for unsatisfiable
// entities.
package bug

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
)

// Bug is the complete set of MUPS and diagnoses of one entity. It is
// read-only once built.
type Bug struct {
	entity    axiom.Entity
	mups      []mups.MUPS
	diagnoses []axiom.Set
}

// New builds a Bug. Duplicate MUPS are dropped, and diagnoses are reduced to
// the minimal ones: a diagnosis that strictly contains another is removed.
func New(entity axiom.Entity, ms []mups.MUPS, diagnoses []axiom.Set) *Bug {
	return &Bug{
		entity:    entity,
		mups:      dedupMUPS(ms),
		diagnoses: Minimize(diagnoses),
	}
}

// Empty returns a Bug without conflicts.
func Empty(entity axiom.Entity) *Bug {
	return &Bug{entity: entity}
}

func (b *Bug) Entity() axiom.Entity { return b.entity }

// MUPS returns the conflicts in canonical order.
func (b *Bug) MUPS() []mups.MUPS { return slices.Clone(b.mups) }

// Diagnoses returns the minimal repairs ordered by size, then content.
func (b *Bug) Diagnoses() []axiom.Set {
	out := make([]axiom.Set, len(b.diagnoses))
	for i, d := range b.diagnoses {
		out[i] = d.Clone()
	}
	return out
}

// IsEmpty reports whether the bug has no conflicts.
func (b *Bug) IsEmpty() bool { return len(b.mups) == 0 }

// Axioms returns the union of all conflicts.
func (b *Bug) Axioms() axiom.Set {
	out := make(axiom.Set)
	for _, m := range b.mups {
		out.AddAll(m.Axioms()...)
	}
	return out
}

// CountByType counts conflicts per MUPS type.
func (b *Bug) CountByType() map[mups.Type]int {
	out := make(map[mups.Type]int)
	for _, m := range b.mups {
		out[m.Type()]++
	}
	return out
}

// Compare orders bugs by entity.
func (b *Bug) Compare(o *Bug) int {
	return b.entity.Compare(o.entity)
}

func (b *Bug) String() string {
	counts := b.CountByType()
	return fmt.Sprintf("Bug{%s: %s, mups=%d local=%d mixed=%d profile=%d unknown=%d, diagnoses=%d}",
		b.entity.Kind, b.entity, len(b.mups),
		counts[mups.TypeLocal], counts[mups.TypeMixed], counts[mups.TypeProfile], counts[mups.TypeUnknown],
		len(b.diagnoses))
}

// LogValue implements slog.LogValuer.
func (b *Bug) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("entity", b.entity.Name),
		slog.Int("mups", len(b.mups)),
		slog.Int("diagnoses", len(b.diagnoses)),
	)
}

// Minimize removes duplicates and strict supersets from sets and orders the
// rest by size, then content.
func Minimize(sets []axiom.Set) []axiom.Set {
	sorted := slices.Clone(sets)
	slices.SortFunc(sorted, compareSets)

	var out []axiom.Set
	for _, s := range sorted {
		minimal := true
		for _, kept := range out {
			if s.ContainsAll(kept) {
				minimal = false
				break
			}
		}
		if minimal {
			out = append(out, s.Clone())
		}
	}
	return out
}

func compareSets(a, b axiom.Set) int {
	if a.Len() != b.Len() {
		return a.Len() - b.Len()
	}
	ka, kb := a.Key(), b.Key()
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

func dedupMUPS(ms []mups.MUPS) []mups.MUPS {
	out := slices.Clone(ms)
	slices.SortFunc(out, mups.MUPS.Compare)
	return slices.CompactFunc(out, func(a, b mups.MUPS) bool { return a.Key() == b.Key() })
}
