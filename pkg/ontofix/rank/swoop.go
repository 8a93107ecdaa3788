package rank

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

// Swoop weights.
const (
	SwoopFrequencyWeight = 0.9
	SwoopImpactWeight    = 0.7
	SwoopUsageWeight     = 0.1
)

// Swoop combines three signals: how often the axiom occurs in conflicts
// (frequent is cheap), how many entailments its removal may lose (many is
// expensive) and how widely its vocabulary is used (wide is expensive).
type Swoop struct {
	factory oracle.Factory
	wFreq   float64
	wImpact float64
	wUsage  float64

	mu        sync.Mutex
	ont       *ontology.Ontology
	bugs      *bug.List
	sess      *oracle.Session
	hier      *oracle.Hierarchy
	disjoint  map[axiom.Entity][]axiom.Entity
	maxImpact float64
}

// NewSwoop creates a Swoop ranker with the default weights.
func NewSwoop(f oracle.Factory) *Swoop {
	return &Swoop{
		factory: f,
		wFreq:   SwoopFrequencyWeight,
		wImpact: SwoopImpactWeight,
		wUsage:  SwoopUsageWeight,
	}
}

func (r *Swoop) Name() string { return NameSwoop }

// Init classifies the ontology and normalizes impact by the largest impact
// among the suspected axioms.
func (r *Swoop) Init(ont *ontology.Ontology, bugs *bug.List) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := oracle.Open(r.factory, ont.Axioms())
	if err != nil {
		return err
	}
	h, err := oracle.NewHierarchy(sess.Reasoner(), ont.Classes())
	if err != nil {
		sess.Close()
		return fmt.Errorf("classify: %w", err)
	}
	r.ont, r.bugs, r.sess, r.hier = ont, bugs, sess, h
	r.disjoint = make(map[axiom.Entity][]axiom.Entity)

	r.maxImpact = 0
	for _, a := range bugs.Suspected().Sorted() {
		impact, err := r.impact(a)
		if err != nil {
			return err
		}
		r.maxImpact = math.Max(r.maxImpact, float64(len(impact)))
	}
	if r.maxImpact == 0 {
		r.maxImpact = 1
	}
	return nil
}

func (r *Swoop) Cost(a axiom.Axiom) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return 0, fmt.Errorf("%w: ranker not initialized", internalerr.ErrInvalidInput)
	}

	freq := float64(len(r.bugs.Containing(a)))
	impactSet, err := r.impact(a)
	if err != nil {
		return 0, err
	}
	impact := float64(len(impactSet)) / r.maxImpact
	usage := r.usage(a)

	slog.Debug("swoop cost", "axiom", a, "freq", freq, "impact", impact, "usage", usage)
	return r.wFreq/freq + r.wImpact*impact + r.wUsage*usage, nil
}

func (r *Swoop) Fini() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return nil
	}
	err := r.sess.Close()
	r.sess, r.hier, r.disjoint = nil, nil, nil
	return err
}

// usage is the share of axioms mentioning any entity of a's signature.
func (r *Swoop) usage(a axiom.Axiom) float64 {
	if r.ont.Len() == 0 {
		return 0
	}
	seen := axiom.NewSet()
	for _, e := range a.Signature() {
		seen.AddAll(r.ont.Referencing(e)...)
	}
	return float64(seen.Len()) / float64(r.ont.Len())
}

// impact returns the entailments that may be lost by removing a.
func (r *Swoop) impact(a axiom.Axiom) (axiom.Set, error) {
	out := axiom.NewSet()
	args := a.Args()
	var err error
	switch a.Kind() {
	case axiom.KindSubClassOf:
		err = r.subClassEntailments(out, args[0], args[1])
	case axiom.KindEquivalentClasses:
	pairs:
		for _, c1 := range args {
			for _, c2 := range args {
				if c1.String() == c2.String() {
					continue
				}
				if err = r.subClassEntailments(out, c1, c2); err != nil {
					break pairs
				}
			}
		}
	case axiom.KindDisjointClasses:
		var members []axiom.Entity
		for _, x := range args {
			if x.IsAtom() {
				members = append(members, x.Entity())
			}
		}
		r.disjointEntailments(out, members)
	case axiom.KindPropertyDomain, axiom.KindPropertyRange:
		if args[1].IsAtom() {
			build := axiom.Domain
			if a.Kind() == axiom.KindPropertyRange {
				build = axiom.Range
			}
			for _, sup := range r.hier.Superclasses(args[1].Entity()) {
				if r.valid(sup) {
					out.Add(build(args[0].Entity(), axiom.Atom(sup)))
				}
			}
		}
	}
	return out, err
}

func (r *Swoop) subClassEntailments(out axiom.Set, sub, sup axiom.Expr) error {
	if !sub.IsAtom() || !sup.IsAtom() {
		return nil
	}
	if err := r.disjointBySubsumption(out, sub.Entity(), sup.Entity()); err != nil {
		return err
	}
	for _, sc := range r.hier.Subclasses(sub.Entity()) {
		if !r.valid(sc) {
			continue
		}
		for _, sp := range r.hier.Superclasses(sup.Entity()) {
			if !r.valid(sp) {
				continue
			}
			out.Add(axiom.SubClassOf(axiom.Atom(sc), axiom.Atom(sp)))
			if err := r.disjointBySubsumption(out, sc, sp); err != nil {
				return err
			}
		}
	}
	return nil
}

// disjointBySubsumption adds what follows from sub inheriting every
// disjointness of sup.
func (r *Swoop) disjointBySubsumption(out axiom.Set, sub, sup axiom.Entity) error {
	dis, err := r.disjointWith(sup)
	if err != nil {
		return err
	}
	members := append([]axiom.Entity{sub}, dis...)
	r.disjointEntailments(out, members)
	return nil
}

// disjointEntailments adds, for every member, the disjointness of its
// subclasses with the other members.
func (r *Swoop) disjointEntailments(out axiom.Set, members []axiom.Entity) {
	for _, ce := range members {
		if ce == axiom.Nothing {
			continue
		}
		for _, sc := range r.hier.Subclasses(ce) {
			if !r.valid(sc) {
				continue
			}
			for _, d := range members {
				if d == ce || d == sc {
					continue
				}
				out.Add(axiom.DisjointClasses(axiom.Atom(sc), axiom.Atom(d)))
			}
		}
	}
}

// disjointWith returns the satisfiable classes entailed to be disjoint with c.
func (r *Swoop) disjointWith(c axiom.Entity) ([]axiom.Entity, error) {
	if dis, ok := r.disjoint[c]; ok {
		return dis, nil
	}
	var dis []axiom.Entity
	if r.valid(c) {
		for _, d := range r.hier.Classes() {
			if d == c || !r.valid(d) {
				continue
			}
			ok, err := r.sess.IsEntailed(axiom.DisjointClasses(axiom.Atom(c), axiom.Atom(d)))
			if err != nil {
				return nil, err
			}
			if ok {
				dis = append(dis, d)
			}
		}
	}
	r.disjoint[c] = dis
	return dis, nil
}

// valid reports whether c is a satisfiable named class other than Thing and
// Nothing.
func (r *Swoop) valid(c axiom.Entity) bool {
	return !c.IsTopOrBottom() && r.hier.IsSatisfiable(c)
}
