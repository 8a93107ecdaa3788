// Package mups finds minimal unsatisfiability-preserving sub-ontologies: the
// smallest axiom sets that keep an entity unsatisfiable.
package mups

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
)

// Type classifies a MUPS by where its axioms come from.
type Type uint8

const (
	// TypeUnknown: some axioms belong to neither the ontology under test
	// nor the profile, e.g. alignment axioms.
	TypeUnknown Type = iota
	// TypeLocal: every axiom belongs to the ontology under test.
	TypeLocal
	// TypeMixed: axioms come from both the ontology and the profile.
	TypeMixed
	// TypeProfile: every axiom belongs to the trusted profile.
	TypeProfile
)

func (t Type) String() string {
	switch t {
	case TypeLocal:
		return "local"
	case TypeMixed:
		return "mixed"
	case TypeProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// ParseType is the inverse of Type.String.
func ParseType(s string) Type {
	switch s {
	case "local":
		return TypeLocal
	case "mixed":
		return TypeMixed
	case "profile":
		return TypeProfile
	default:
		return TypeUnknown
	}
}

// Container reports axiom membership.
type Container interface {
	Contains(a axiom.Axiom) bool
}

// Classifier assigns MUPS types from the ontology under test and the
// trusted profile. Either side may be nil.
type Classifier struct {
	Local   Container
	Profile Container
}

// Classify returns the type of a conflict set made of axs.
func (c Classifier) Classify(axs axiom.Set) Type {
	all := func(src Container) bool {
		if src == nil || len(axs) == 0 {
			return false
		}
		for _, a := range axs {
			if !src.Contains(a) {
				return false
			}
		}
		return true
	}
	some := func(src Container) bool {
		if src == nil {
			return false
		}
		for _, a := range axs {
			if src.Contains(a) {
				return true
			}
		}
		return false
	}

	switch {
	case all(c.Local):
		return TypeLocal
	case all(c.Profile):
		return TypeProfile
	case some(c.Local) && some(c.Profile):
		return TypeMixed
	default:
		return TypeUnknown
	}
}

// MUPS is an immutable minimal conflict set for one entity.
type MUPS struct {
	entity axiom.Entity
	t      Type
	axioms []axiom.Axiom
	set    axiom.Set
	key    string
}

// New creates a MUPS with an explicit type.
func New(entity axiom.Entity, t Type, axs axiom.Set) MUPS {
	sorted := axs.Sorted()
	set := axiom.NewSet(sorted...)
	return MUPS{
		entity: entity,
		t:      t,
		axioms: sorted,
		set:    set,
		key:    fmt.Sprintf("%d:%s|%s|%s", entity.Kind, entity.Name, t, set.Key()),
	}
}

// Build creates a MUPS classified by c.
func Build(entity axiom.Entity, axs axiom.Set, c Classifier) MUPS {
	return New(entity, c.Classify(axs), axs)
}

func (m MUPS) Entity() axiom.Entity { return m.entity }
func (m MUPS) Type() Type           { return m.t }
func (m MUPS) Len() int             { return len(m.axioms) }

// Key identifies the MUPS by entity, type and axioms.
func (m MUPS) Key() string { return m.key }

// Axioms returns the members in canonical order.
func (m MUPS) Axioms() []axiom.Axiom {
	out := make([]axiom.Axiom, len(m.axioms))
	copy(out, m.axioms)
	return out
}

// Set returns a copy of the members as a set.
func (m MUPS) Set() axiom.Set { return m.set.Clone() }

// Contains reports whether a is a member.
func (m MUPS) Contains(a axiom.Axiom) bool { return m.set.Contains(a) }

// Intersects reports whether some member is in s.
func (m MUPS) Intersects(s axiom.Set) bool { return m.set.Intersects(s) }

// ContainedIn reports whether every member is in c.
func (m MUPS) ContainedIn(c Container) bool {
	for _, a := range m.axioms {
		if !c.Contains(a) {
			return false
		}
	}
	return true
}

// SameAxioms reports whether both MUPS have identical members, regardless
// of entity or type.
func (m MUPS) SameAxioms(o MUPS) bool {
	return m.set.Equal(o.set)
}

// Compare orders by entity, type, size, then member order.
func (m MUPS) Compare(o MUPS) int {
	if c := m.entity.Compare(o.entity); c != 0 {
		return c
	}
	if c := cmp.Compare(m.t, o.t); c != 0 {
		return c
	}
	if c := cmp.Compare(len(m.axioms), len(o.axioms)); c != 0 {
		return c
	}
	for i := range m.axioms {
		if c := m.axioms[i].Compare(o.axioms[i]); c != 0 {
			return c
		}
	}
	return 0
}

func (m MUPS) String() string {
	parts := make([]string, len(m.axioms))
	for i, a := range m.axioms {
		parts[i] = a.String()
	}
	return fmt.Sprintf("MUPS{entity=%s, type=%s, size=%d} %s", m.entity, m.t, len(m.axioms), strings.Join(parts, ", "))
}
