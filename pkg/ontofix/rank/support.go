package rank

import (
	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/profile"
)

// ProfileSupport ranks an axiom by the votes of a trusted profile: each
// entailing voter adds the entailed cost, each contradicting voter
// subtracts it. Axioms without a decisive vote total get the neutral cost.
type ProfileSupport struct {
	src      profile.StatusSource
	entailed float64
	name     string
	neutral  func(a axiom.Axiom) (float64, error)
	shapley  ShapleyMI
}

// NewProfileSupport creates a support ranker with neutral cost 0.
func NewProfileSupport(src profile.StatusSource, entailedCost float64) *ProfileSupport {
	return &ProfileSupport{
		src:      src,
		entailed: entailedCost,
		name:     NameProfileSupport,
		neutral:  func(axiom.Axiom) (float64, error) { return 0, nil },
	}
}

// NewProfileSupportShapley creates a support ranker that falls back to the
// Shapley cost for axioms the profile has no opinion on.
func NewProfileSupportShapley(src profile.StatusSource, entailedCost float64) *ProfileSupport {
	r := NewProfileSupport(src, entailedCost)
	r.name = NameProfileSupportShapley
	r.neutral = r.shapley.Cost
	return r
}

func (r *ProfileSupport) Name() string { return r.name }

func (r *ProfileSupport) Init(ont *ontology.Ontology, bugs *bug.List) error {
	return r.shapley.Init(ont, bugs)
}

func (r *ProfileSupport) Cost(a axiom.Axiom) (float64, error) {
	return r.support(a)
}

func (r *ProfileSupport) support(a axiom.Axiom) (float64, error) {
	votes, err := r.src.Status(a)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, st := range votes {
		switch st {
		case profile.StatusEntailed:
			sum += r.entailed
		case profile.StatusNegationEntailed:
			sum -= r.entailed
		}
	}
	if sum != 0 {
		return sum, nil
	}
	return r.neutral(a)
}

func (r *ProfileSupport) Fini() error {
	return r.shapley.Fini()
}

// ShapleySupport scales the profile support of an axiom by its Shapley
// cost: supported axioms get more expensive the fewer conflicts they take
// part in, contradicted axioms get cheaper.
type ShapleySupport struct {
	ProfileSupport
}

// NewShapleySupport creates a ShapleySupport ranker with neutral support 1.
func NewShapleySupport(src profile.StatusSource, entailedCost float64) *ShapleySupport {
	r := &ShapleySupport{ProfileSupport: *NewProfileSupport(src, entailedCost)}
	r.name = NameShapleySupport
	r.neutral = func(axiom.Axiom) (float64, error) { return 1, nil }
	return r
}

func (r *ShapleySupport) Cost(a axiom.Axiom) (float64, error) {
	support, err := r.support(a)
	if err != nil {
		return 0, err
	}
	shapley, err := r.shapley.Cost(a)
	if err != nil {
		return 0, err
	}
	if support >= 0 {
		return support * shapley, nil
	}
	return support / shapley, nil
}
