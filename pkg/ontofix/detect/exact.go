package detect

import (
	"context"
	"math"
	"slices"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
)

// exact is the state of one branch-and-bound search for a minimum-cost
// hitting set.
type exact struct {
	bugs *bug.List
	res  *Result

	best     axiom.Set
	bestCost float64
	found    bool

	// negRest sums the negative costs of axioms not on the path, a lower
	// bound on what the rest of any branch can still subtract.
	negRest  float64
	negative bool

	hitting  []axiom.Set
	examined map[string]struct{}
}

func (d *Detector) exactSearch(ctx context.Context, bugs *bug.List, seed axiom.Set, res *Result) (axiom.Set, error) {
	s := &exact{
		bugs:     bugs,
		res:      res,
		best:     seed.Clone(),
		bestCost: math.Inf(1),
		examined: make(map[string]struct{}),
	}
	for _, c := range res.Costs {
		if c < 0 {
			s.negRest += c
			s.negative = true
		}
	}

	if err := s.search(ctx, seed.Clone(), 0); err != nil {
		return nil, err
	}
	if !s.found {
		// unreachable while every considered MUPS is non-empty
		return seed, nil
	}
	d.logger.Debug("exact search finished", "nodes", res.Nodes, "hitting_sets", len(s.hitting), "cost", s.bestCost)
	return s.best, nil
}

func (s *exact) search(ctx context.Context, path axiom.Set, cost float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.res.Nodes++

	uncovered := s.bugs.UncoveredMUPS(path)
	if len(uncovered) == 0 {
		s.hitting = append(s.hitting, path.Clone())
		if !s.found || cost < s.bestCost {
			s.best, s.bestCost, s.found = path.Clone(), cost, true
		}
		return nil
	}

	for _, a := range s.branches(uncovered[0], path) {
		c := s.res.Cost(a)
		next := cost + c
		neg := math.Min(c, 0)
		if s.found && next+s.negRest-neg >= s.bestCost {
			continue
		}

		path.Add(a)
		if s.skip(path) {
			path.Remove(a)
			continue
		}
		s.negRest -= neg
		err := s.search(ctx, path, next)
		s.negRest += neg
		path.Remove(a)
		if err != nil {
			return err
		}
	}
	return nil
}

// branches returns the members of m the search may add, cheapest first.
// White-listed members are tried only when m has no other member.
func (s *exact) branches(m mups.MUPS, path axiom.Set) []axiom.Axiom {
	var out, white []axiom.Axiom
	for _, a := range m.Axioms() {
		if path.Contains(a) {
			continue
		}
		if s.bugs.IsWhite(a) {
			white = append(white, a)
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		out = white
	}
	return order(out, s.res)
}

// skip reports whether path was examined before or contains a hitting set
// already found. The containment rule only holds while no cost is negative.
func (s *exact) skip(path axiom.Set) bool {
	key := path.Key()
	if _, ok := s.examined[key]; ok {
		return true
	}
	s.examined[key] = struct{}{}

	if s.negative {
		return false
	}
	return slices.ContainsFunc(s.hitting, path.ContainsAll)
}
