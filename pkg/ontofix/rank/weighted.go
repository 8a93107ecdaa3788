package rank

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
)

// Weighted is a linear combination of other rankers.
type Weighted struct {
	parts   []Ranker
	weights []float64
}

// Part names one component of a weighted ranker.
type Part struct {
	Ranker string
	Weight float64
}

// NewWeighted combines parts with one weight each.
func NewWeighted(parts []Ranker, weights []float64) (*Weighted, error) {
	if len(parts) == 0 || len(parts) != len(weights) {
		return nil, fmt.Errorf("%w: %d rankers with %d weights", internalerr.ErrInvalidConfig, len(parts), len(weights))
	}
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %g is not finite", internalerr.ErrInvalidConfig, w)
		}
	}
	return &Weighted{parts: parts, weights: weights}, nil
}

// ByWeights builds each named part with ByName and combines them.
func ByWeights(parts []Part, deps Deps) (*Weighted, error) {
	rankers := make([]Ranker, len(parts))
	weights := make([]float64, len(parts))
	for i, p := range parts {
		r, err := ByName(p.Ranker, deps)
		if err != nil {
			return nil, err
		}
		rankers[i] = r
		weights[i] = p.Weight
	}
	return NewWeighted(rankers, weights)
}

func (r *Weighted) Name() string {
	names := make([]string, len(r.parts))
	for i, p := range r.parts {
		names[i] = fmt.Sprintf("%g*%s", r.weights[i], p.Name())
	}
	return strings.Join(names, "+")
}

func (r *Weighted) Init(ont *ontology.Ontology, bugs *bug.List) error {
	for i, p := range r.parts {
		if err := p.Init(ont, bugs); err != nil {
			errs := []error{fmt.Errorf("init %s: %w", p.Name(), err)}
			for _, done := range r.parts[:i] {
				if err := done.Fini(); err != nil {
					errs = append(errs, fmt.Errorf("fini %s: %w", done.Name(), err))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

func (r *Weighted) Cost(a axiom.Axiom) (float64, error) {
	costs := make([]float64, len(r.parts))
	for i, p := range r.parts {
		c, err := p.Cost(a)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", p.Name(), err)
		}
		costs[i] = c
	}
	return floats.Dot(r.weights, costs), nil
}

func (r *Weighted) Fini() error {
	var errs []error
	for _, p := range r.parts {
		errs = append(errs, p.Fini())
	}
	return errors.Join(errs...)
}
