package rank

import (
	"fmt"
	"math"
	"sync"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

// InformationContent ranks an axiom by the information content its
// signature loses when the axiom is removed. Removing an axiom that makes
// its classes more specific is expensive.
type InformationContent struct {
	factory oracle.Factory

	mu        sync.Mutex
	sess      *oracle.Session
	classes   []axiom.Entity
	full      *oracle.Hierarchy
	maxLeaves int
	cached    map[axiom.Entity]float64
}

// NewInformationContent creates an information-content ranker.
func NewInformationContent(f oracle.Factory) *InformationContent {
	return &InformationContent{factory: f}
}

func (r *InformationContent) Name() string { return NameInformationContent }

func (r *InformationContent) Init(ont *ontology.Ontology, _ *bug.List) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := oracle.Open(r.factory, ont.Axioms())
	if err != nil {
		return err
	}
	classes := ont.Classes()
	h, err := oracle.NewHierarchy(sess.Reasoner(), classes)
	if err != nil {
		sess.Close()
		return fmt.Errorf("classify: %w", err)
	}
	r.sess = sess
	r.classes = classes
	r.full = h
	r.maxLeaves = h.LeafCount()
	r.cached = make(map[axiom.Entity]float64)
	return nil
}

func (r *InformationContent) Cost(a axiom.Axiom) (cost float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return 0, fmt.Errorf("%w: ranker not initialized", internalerr.ErrInvalidInput)
	}

	var before float64
	for _, e := range a.Signature() {
		ic, ok := r.cached[e]
		if !ok {
			ic = r.ic(r.full, e)
			r.cached[e] = ic
		}
		before += ic
	}

	r.sess.Remove(a)
	defer func() {
		r.sess.Add(a)
		if ferr := r.sess.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()
	if err := r.sess.Flush(); err != nil {
		return 0, err
	}
	h, err := oracle.NewHierarchy(r.sess.Reasoner(), r.classes)
	if err != nil {
		return 0, fmt.Errorf("classify without %s: %w", a, err)
	}

	var after float64
	for _, e := range a.Signature() {
		after += r.ic(h, e)
	}
	return before - after, nil
}

// ic is -log((leaves/subsumers + 1) / (maxLeaves + 1)) for named classes
// and 0 for everything else.
func (r *InformationContent) ic(h *oracle.Hierarchy, e axiom.Entity) float64 {
	if e.Kind != axiom.ClassKind || e.IsTopOrBottom() {
		return 0
	}
	leaves := float64(len(h.Leaves(e)))
	subsumers := float64(h.Subsumers(e))
	return -math.Log((leaves/subsumers + 1) / float64(r.maxLeaves+1))
}

func (r *InformationContent) Fini() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return nil
	}
	err := r.sess.Close()
	r.sess, r.full, r.cached = nil, nil, nil
	return err
}
