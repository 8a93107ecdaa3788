package axiom

import (
	"slices"
	"strings"
)

// Op is the constructor of a class expression.
type Op uint8

const (
	OpAtom Op = iota
	OpNot
	OpAnd
	OpOr
)

// Expr is an immutable class expression built from named classes with
// negation, conjunction and disjunction. Operands of And/Or are kept sorted
// and deduplicated so that structurally equal expressions render equally.
type Expr struct {
	op   Op
	atom Entity
	args []Expr
	text string
}

// Atom wraps a named entity as an expression.
func Atom(e Entity) Expr {
	return Expr{op: OpAtom, atom: e, text: e.Name}
}

// Class is shorthand for Atom(NewClass(name)).
func Class(name string) Expr {
	return Atom(NewClass(name))
}

// Not returns the complement of x. Double negation is removed.
func Not(x Expr) Expr {
	if x.op == OpNot {
		return x.args[0]
	}
	return Expr{op: OpNot, args: []Expr{x}, text: "not(" + x.text + ")"}
}

// And returns the intersection of the operands.
func And(xs ...Expr) Expr {
	return nary(OpAnd, "and", xs)
}

// Or returns the union of the operands.
func Or(xs ...Expr) Expr {
	return nary(OpOr, "or", xs)
}

func nary(op Op, name string, xs []Expr) Expr {
	var flat []Expr
	for _, x := range xs {
		if x.op == op {
			flat = append(flat, x.args...)
			continue
		}
		flat = append(flat, x)
	}
	flat = sortExprs(flat)
	if len(flat) == 1 {
		return flat[0]
	}
	parts := make([]string, len(flat))
	for i, x := range flat {
		parts[i] = x.text
	}
	return Expr{op: op, args: flat, text: name + "(" + strings.Join(parts, ", ") + ")"}
}

func sortExprs(xs []Expr) []Expr {
	out := slices.Clone(xs)
	slices.SortFunc(out, func(a, b Expr) int { return strings.Compare(a.text, b.text) })
	return slices.CompactFunc(out, func(a, b Expr) bool { return a.text == b.text })
}

// Op returns the expression constructor.
func (x Expr) Op() Op { return x.op }

// Entity returns the named entity of an atomic expression.
func (x Expr) Entity() Entity { return x.atom }

// IsAtom reports whether x is a named entity.
func (x Expr) IsAtom() bool { return x.op == OpAtom && x.text != "" }

// Args returns the operands of a compound expression.
func (x Expr) Args() []Expr { return slices.Clone(x.args) }

func (x Expr) String() string { return x.text }

func (x Expr) collect(dst map[Entity]struct{}) {
	if x.op == OpAtom {
		if x.text != "" {
			dst[x.atom] = struct{}{}
		}
		return
	}
	for _, a := range x.args {
		a.collect(dst)
	}
}
