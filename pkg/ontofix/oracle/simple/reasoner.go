// Package simple provides a complete reasoner for the Boolean fragment the
// axiom package can express: class expressions built with not/and/or, class
// inclusion, equivalence and disjointness, property inclusion and
// disjointness, and property domain and range.
//
// Without existential restrictions any model can be reduced to two
// individuals a and b connected by at most one edge, so the working set is
// compiled to a propositional circuit over class@a, class@b and one variable
// per property for the pair (a, b), and decided with gini.
package simple

import (
	"fmt"
	"sync"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

type individual uint8

const (
	subject individual = iota
	object
)

type classKey struct {
	name string
	at   individual
}

type exprKey struct {
	text string
	at   individual
}

// Reasoner implements oracle.Reasoner. Queries are serialized internally.
type Reasoner struct {
	mu      sync.Mutex
	axioms  axiom.Set
	pending bool
	closed  bool

	// inconsistent is set when the working set has no model at all; gini
	// must not be asked again once its clause database is refuted.
	inconsistent bool

	c     *logic.C
	g     *gini.Gini
	mark  []int8
	class map[classKey]z.Lit
	prop  map[string]z.Lit
	expr  map[exprKey]z.Lit
}

// New builds a flushed reasoner over axs.
func New(axs axiom.Set) (*Reasoner, error) {
	r := &Reasoner{axioms: axs.Clone()}
	r.compile()
	return r, nil
}

// Factory creates simple reasoners.
func Factory() oracle.Factory {
	return oracle.FactoryFunc(func(axs axiom.Set) (oracle.Reasoner, error) {
		return New(axs)
	})
}

func (r *Reasoner) Add(axs ...axiom.Axiom) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range axs {
		if r.axioms.Add(a) {
			r.pending = true
		}
	}
}

func (r *Reasoner) Remove(axs ...axiom.Axiom) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range axs {
		if r.axioms.Remove(a) {
			r.pending = true
		}
	}
}

func (r *Reasoner) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("%w: reasoner closed", internalerr.ErrOracle)
	}
	if r.pending {
		r.compile()
		r.pending = false
	}
	return nil
}

func (r *Reasoner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.g = nil
	r.c = nil
	return nil
}

func (r *Reasoner) IsConsistent() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}
	return r.solve()
}

func (r *Reasoner) IsSatisfiable(e axiom.Entity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}
	if e.Kind == axiom.PropertyKind {
		return r.solve(r.propLit(e.Name))
	}
	return r.solve(r.classLit(e.Name, subject))
}

func (r *Reasoner) IsEntailed(a axiom.Axiom) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return false, err
	}

	// a is entailed when every way of violating it is unsatisfiable
	for _, violation := range r.violations(a) {
		sat, err := r.solve(violation...)
		if err != nil {
			return false, err
		}
		if sat {
			return false, nil
		}
	}
	return true, nil
}

func (r *Reasoner) ready() error {
	if r.closed {
		return fmt.Errorf("%w: reasoner closed", internalerr.ErrOracle)
	}
	if r.pending {
		return internalerr.ErrNotFlushed
	}
	return nil
}

func (r *Reasoner) solve(assumptions ...z.Lit) (bool, error) {
	if r.inconsistent {
		return false, nil
	}
	r.mark, _ = r.c.CnfSince(r.g, r.mark, assumptions...)
	r.g.Assume(assumptions...)
	switch r.g.Solve() {
	case 1:
		return true, nil
	case -1:
		return false, nil
	default:
		return false, internalerr.ErrUndecided
	}
}

// compile rebuilds the circuit and solver from the working set.
func (r *Reasoner) compile() {
	r.c = logic.NewC()
	r.g = gini.New()
	r.mark = nil
	r.class = make(map[classKey]z.Lit)
	r.prop = make(map[string]z.Lit)
	r.expr = make(map[exprKey]z.Lit)

	var constraints []z.Lit
	for _, a := range r.axioms.Sorted() {
		constraints = append(constraints, r.constraint(a)...)
	}
	tbox := r.c.Ands(constraints...)
	r.mark, _ = r.c.CnfSince(r.g, r.mark, tbox)
	r.g.Add(tbox)
	r.g.Add(z.LitNull)
	r.inconsistent = r.g.Solve() == -1
}

// constraint returns literals that must all hold for a to be satisfied.
func (r *Reasoner) constraint(a axiom.Axiom) []z.Lit {
	args := a.Args()
	c := r.c
	var out []z.Lit

	switch a.Kind() {
	case axiom.KindSubClassOf:
		for _, at := range []individual{subject, object} {
			out = append(out, c.Implies(r.exprLit(args[0], at), r.exprLit(args[1], at)))
		}
	case axiom.KindEquivalentClasses:
		for i := 1; i < len(args); i++ {
			for _, at := range []individual{subject, object} {
				x, y := r.exprLit(args[0], at), r.exprLit(args[i], at)
				out = append(out, c.Implies(x, y), c.Implies(y, x))
			}
		}
	case axiom.KindDisjointClasses:
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				for _, at := range []individual{subject, object} {
					out = append(out, c.And(r.exprLit(args[i], at), r.exprLit(args[j], at)).Not())
				}
			}
		}
	case axiom.KindSubPropertyOf:
		out = append(out, c.Implies(r.propLit(args[0].Entity().Name), r.propLit(args[1].Entity().Name)))
	case axiom.KindDisjointProperties:
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				out = append(out, c.And(r.propLit(args[i].Entity().Name), r.propLit(args[j].Entity().Name)).Not())
			}
		}
	case axiom.KindPropertyDomain:
		out = append(out, c.Implies(r.propLit(args[0].Entity().Name), r.exprLit(args[1], subject)))
	case axiom.KindPropertyRange:
		out = append(out, c.Implies(r.propLit(args[0].Entity().Name), r.exprLit(args[1], object)))
	}
	return out
}

// violations returns the alternative assumption sets under which a fails.
func (r *Reasoner) violations(a axiom.Axiom) [][]z.Lit {
	args := a.Args()
	var out [][]z.Lit

	switch a.Kind() {
	case axiom.KindSubClassOf:
		out = append(out, []z.Lit{r.exprLit(args[0], subject), r.exprLit(args[1], subject).Not()})
	case axiom.KindEquivalentClasses:
		for i := range args {
			for j := range args {
				if i != j {
					out = append(out, []z.Lit{r.exprLit(args[i], subject), r.exprLit(args[j], subject).Not()})
				}
			}
		}
	case axiom.KindDisjointClasses:
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				out = append(out, []z.Lit{r.exprLit(args[i], subject), r.exprLit(args[j], subject)})
			}
		}
	case axiom.KindSubPropertyOf:
		out = append(out, []z.Lit{r.propLit(args[0].Entity().Name), r.propLit(args[1].Entity().Name).Not()})
	case axiom.KindDisjointProperties:
		for i := range args {
			for j := i + 1; j < len(args); j++ {
				out = append(out, []z.Lit{r.propLit(args[i].Entity().Name), r.propLit(args[j].Entity().Name)})
			}
		}
	case axiom.KindPropertyDomain:
		out = append(out, []z.Lit{r.propLit(args[0].Entity().Name), r.exprLit(args[1], subject).Not()})
	case axiom.KindPropertyRange:
		out = append(out, []z.Lit{r.propLit(args[0].Entity().Name), r.exprLit(args[1], object).Not()})
	}
	return out
}

func (r *Reasoner) classLit(name string, at individual) z.Lit {
	switch name {
	case axiom.Thing.Name:
		return r.c.T
	case axiom.Nothing.Name:
		return r.c.F
	}
	k := classKey{name: name, at: at}
	if m, ok := r.class[k]; ok {
		return m
	}
	m := r.c.Lit()
	r.class[k] = m
	return m
}

func (r *Reasoner) propLit(name string) z.Lit {
	switch name {
	case axiom.TopProperty.Name:
		return r.c.T
	case axiom.BottomProperty.Name:
		return r.c.F
	}
	if m, ok := r.prop[name]; ok {
		return m
	}
	m := r.c.Lit()
	r.prop[name] = m
	return m
}

func (r *Reasoner) exprLit(x axiom.Expr, at individual) z.Lit {
	if x.IsAtom() {
		return r.classLit(x.Entity().Name, at)
	}
	k := exprKey{text: x.String(), at: at}
	if m, ok := r.expr[k]; ok {
		return m
	}

	args := x.Args()
	lits := make([]z.Lit, len(args))
	for i, a := range args {
		lits[i] = r.exprLit(a, at)
	}

	var m z.Lit
	switch x.Op() {
	case axiom.OpNot:
		m = lits[0].Not()
	case axiom.OpAnd:
		m = r.c.Ands(lits...)
	case axiom.OpOr:
		m = r.c.Ors(lits...)
	}
	r.expr[k] = m
	return m
}
