// Package axiom defines the logical statements an ontology is made of and a
// small line-oriented text syntax for reading and writing them.
package axiom

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Kind is the axiom constructor.
type Kind uint8

const (
	KindSubClassOf Kind = iota + 1
	KindEquivalentClasses
	KindDisjointClasses
	KindSubPropertyOf
	KindDisjointProperties
	KindPropertyDomain
	KindPropertyRange
)

var kindNames = map[Kind]string{
	KindSubClassOf:         "subclass",
	KindEquivalentClasses:  "equivalent",
	KindDisjointClasses:    "disjoint",
	KindSubPropertyOf:      "subproperty",
	KindDisjointProperties: "disjointproperties",
	KindPropertyDomain:     "domain",
	KindPropertyRange:      "range",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Axiom is an immutable logical statement. Two axioms are identical when
// their keys are equal.
type Axiom struct {
	kind Kind
	args []Expr
	key  string
}

func newAxiom(kind Kind, args []Expr) Axiom {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.text
	}
	return Axiom{
		kind: kind,
		args: args,
		key:  kind.String() + "(" + strings.Join(parts, ", ") + ")",
	}
}

// SubClassOf states that every instance of sub is an instance of sup.
func SubClassOf(sub, sup Expr) Axiom {
	return newAxiom(KindSubClassOf, []Expr{sub, sup})
}

// EquivalentClasses states that all operands denote the same set.
func EquivalentClasses(xs ...Expr) Axiom {
	return newAxiom(KindEquivalentClasses, sortExprs(xs))
}

// DisjointClasses states that the operands are pairwise disjoint.
func DisjointClasses(xs ...Expr) Axiom {
	return newAxiom(KindDisjointClasses, sortExprs(xs))
}

// SubPropertyOf states that every pair related by sub is related by sup.
func SubPropertyOf(sub, sup Entity) Axiom {
	return newAxiom(KindSubPropertyOf, []Expr{Atom(sub), Atom(sup)})
}

// DisjointProperties states that no pair is related by two of the properties.
func DisjointProperties(ps ...Entity) Axiom {
	xs := make([]Expr, len(ps))
	for i, p := range ps {
		xs[i] = Atom(p)
	}
	return newAxiom(KindDisjointProperties, sortExprs(xs))
}

// Domain states that every subject of p is an instance of c.
func Domain(p Entity, c Expr) Axiom {
	return newAxiom(KindPropertyDomain, []Expr{Atom(p), c})
}

// Range states that every object of p is an instance of c.
func Range(p Entity, c Expr) Axiom {
	return newAxiom(KindPropertyRange, []Expr{Atom(p), c})
}

// Kind returns the axiom constructor.
func (a Axiom) Kind() Kind { return a.kind }

// Args returns the operands in canonical order.
func (a Axiom) Args() []Expr { return slices.Clone(a.args) }

// Key is the canonical identity of the axiom.
func (a Axiom) Key() string { return a.key }

// IsZero reports whether a is the zero Axiom.
func (a Axiom) IsZero() bool { return a.key == "" }

// String renders the axiom in the text syntax accepted by Parse.
func (a Axiom) String() string { return a.key }

// Signature returns the named entities mentioned by the axiom, sorted.
func (a Axiom) Signature() []Entity {
	seen := make(map[Entity]struct{})
	for _, x := range a.args {
		x.collect(seen)
	}
	out := make([]Entity, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	slices.SortFunc(out, Entity.Compare)
	return out
}

// References reports whether e occurs in the axiom.
func (a Axiom) References(e Entity) bool {
	return slices.Contains(a.Signature(), e)
}

// Defines reports whether the axiom is a defining axiom of e: a subclass or
// equivalence with e on the left, a disjointness naming e, or a property
// axiom whose subject is e.
func (a Axiom) Defines(e Entity) bool {
	if len(a.args) == 0 {
		return false
	}
	switch a.kind {
	case KindSubClassOf, KindSubPropertyOf, KindPropertyDomain, KindPropertyRange:
		return a.args[0].IsAtom() && a.args[0].atom == e
	case KindEquivalentClasses, KindDisjointClasses, KindDisjointProperties:
		for _, x := range a.args {
			if x.IsAtom() && x.atom == e {
				return true
			}
		}
	}
	return false
}

// Compare orders axioms by kind, then by key.
func (a Axiom) Compare(b Axiom) int {
	if c := cmp.Compare(a.kind, b.kind); c != 0 {
		return c
	}
	return strings.Compare(a.key, b.key)
}

// Sort orders axs in place using Compare.
func Sort(axs []Axiom) {
	slices.SortFunc(axs, Axiom.Compare)
}
