package oracle

import (
	"slices"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
)

// Hierarchy is the inferred subsumption order over a fixed set of named
// classes, computed by pairwise entailment checks.
type Hierarchy struct {
	classes []axiom.Entity
	unsat   map[axiom.Entity]bool
	// supers[c][d] holds when c is subsumed by d (c != d)
	supers map[axiom.Entity]map[axiom.Entity]bool
}

// NewHierarchy classifies classes using r.
func NewHierarchy(r Reasoner, classes []axiom.Entity) (*Hierarchy, error) {
	h := &Hierarchy{
		classes: slices.Clone(classes),
		unsat:   make(map[axiom.Entity]bool),
		supers:  make(map[axiom.Entity]map[axiom.Entity]bool, len(classes)),
	}
	slices.SortFunc(h.classes, axiom.Entity.Compare)

	for _, c := range h.classes {
		sat, err := r.IsSatisfiable(c)
		if err != nil {
			return nil, err
		}
		if !sat {
			h.unsat[c] = true
		}
		h.supers[c] = make(map[axiom.Entity]bool)
	}

	for _, c := range h.classes {
		for _, d := range h.classes {
			if c == d {
				continue
			}
			if h.unsat[c] {
				h.supers[c][d] = true
				continue
			}
			if h.unsat[d] {
				continue
			}
			ok, err := r.IsEntailed(axiom.SubClassOf(axiom.Atom(c), axiom.Atom(d)))
			if err != nil {
				return nil, err
			}
			if ok {
				h.supers[c][d] = true
			}
		}
	}
	return h, nil
}

// Classes returns the classified classes.
func (h *Hierarchy) Classes() []axiom.Entity {
	return slices.Clone(h.classes)
}

// IsSatisfiable reports whether c was found satisfiable.
func (h *Hierarchy) IsSatisfiable(c axiom.Entity) bool {
	return !h.unsat[c]
}

// Subsumes reports whether sub is subsumed by sup. Every class subsumes itself.
func (h *Hierarchy) Subsumes(sup, sub axiom.Entity) bool {
	return sup == sub || h.supers[sub][sup]
}

// Superclasses returns the strict named superclasses of c, excluding classes
// equivalent to c.
func (h *Hierarchy) Superclasses(c axiom.Entity) []axiom.Entity {
	var out []axiom.Entity
	for _, d := range h.classes {
		if h.supers[c][d] && !h.supers[d][c] {
			out = append(out, d)
		}
	}
	return out
}

// Subclasses returns the strict named subclasses of c, excluding classes
// equivalent to c and unsatisfiable classes.
func (h *Hierarchy) Subclasses(c axiom.Entity) []axiom.Entity {
	var out []axiom.Entity
	for _, d := range h.classes {
		if h.unsat[d] {
			continue
		}
		if h.supers[d][c] && !h.supers[c][d] {
			out = append(out, d)
		}
	}
	return out
}

// IsLeaf reports whether c is satisfiable and has no strict subclass.
func (h *Hierarchy) IsLeaf(c axiom.Entity) bool {
	return !h.unsat[c] && len(h.Subclasses(c)) == 0
}

// Leaves returns the leaf classes subsumed by c, c included.
func (h *Hierarchy) Leaves(c axiom.Entity) []axiom.Entity {
	var out []axiom.Entity
	for _, d := range h.classes {
		if h.Subsumes(c, d) && h.IsLeaf(d) {
			out = append(out, d)
		}
	}
	return out
}

// LeafCount returns the number of leaf classes in the hierarchy.
func (h *Hierarchy) LeafCount() int {
	n := 0
	for _, c := range h.classes {
		if h.IsLeaf(c) {
			n++
		}
	}
	return n
}

// Subsumers counts the classes subsuming c: its strict superclasses, c itself
// and Thing.
func (h *Hierarchy) Subsumers(c axiom.Entity) int {
	return len(h.Superclasses(c)) + 2
}
