// Package detect picks one repair for a whole bug list: a set of axioms that
// hits every conflict at the lowest total cost a ranker assigns.
package detect

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/rank"
)

// Options configure a Detector.
type Options struct {
	// Greedy selects the greedy approximation instead of the exact
	// branch-and-bound search.
	Greedy bool
	Logger *slog.Logger
}

// Summary describes the distribution of finite axiom costs.
type Summary struct {
	Count    int
	Excluded int
	Min      float64
	Max      float64
	Mean     float64
	StdDev   float64
}

// Result is one repair.
type Result struct {
	Ranker    string
	Greedy    bool
	Errors    axiom.Set
	Costs     map[string]float64
	TotalCost float64
	Nodes     int64
	Elapsed   time.Duration
	Summary   Summary
}

// Cost returns the cost assigned to a, +Inf when a was not ranked.
func (r *Result) Cost(a axiom.Axiom) float64 {
	if c, ok := r.Costs[a.Key()]; ok {
		return c
	}
	return math.Inf(1)
}

// Detector computes repairs with one ranker.
type Detector struct {
	ranker rank.Ranker
	greedy bool
	logger *slog.Logger
}

// New creates a Detector.
func New(r rank.Ranker, opts Options) (*Detector, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil ranker", internalerr.ErrInvalidConfig)
	}
	d := &Detector{ranker: r, greedy: opts.Greedy, logger: opts.Logger}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d, nil
}

// FindErrors returns a hitting set over every considered MUPS of bugs. The
// black list is always part of it; white-listed axioms are chosen only when
// nothing else can hit a conflict.
func (d *Detector) FindErrors(ctx context.Context, ont *ontology.Ontology, bugs *bug.List) (*Result, error) {
	start := time.Now()
	if err := d.ranker.Init(ont, bugs); err != nil {
		return nil, fmt.Errorf("init ranker %s: %w", d.ranker.Name(), err)
	}
	defer func() {
		if err := d.ranker.Fini(); err != nil {
			d.logger.Warn("ranker cleanup failed", "ranker", d.ranker.Name(), "error", err)
		}
	}()

	seed := bugs.BlackList()
	res := &Result{
		Ranker: d.ranker.Name(),
		Greedy: d.greedy,
		Costs:  d.costs(bugs.Suspected().Minus(seed)),
	}
	for _, a := range seed {
		res.Costs[a.Key()] = 0
	}
	res.Summary = summarize(res.Costs)

	var err error
	if d.greedy {
		res.Errors, err = d.greedySearch(ctx, bugs, seed, res)
	} else {
		res.Errors, err = d.exactSearch(ctx, bugs, seed, res)
	}
	if err != nil {
		return nil, err
	}

	for _, a := range res.Errors {
		res.TotalCost += res.Cost(a)
	}
	res.Elapsed = time.Since(start)
	d.logger.Info("errors detected",
		"ranker", res.Ranker,
		"greedy", res.Greedy,
		"errors", res.Errors.Len(),
		"cost", res.TotalCost,
		"nodes", res.Nodes,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// costs ranks every axiom. A failing cost excludes the axiom by pricing it
// at +Inf.
func (d *Detector) costs(axs axiom.Set) map[string]float64 {
	out := make(map[string]float64, len(axs))
	for _, a := range axs.Sorted() {
		c, err := d.ranker.Cost(a)
		if err != nil {
			d.logger.Warn("axiom cost failed", "axiom", a, "ranker", d.ranker.Name(), "error", err)
			c = math.Inf(1)
		}
		if math.IsNaN(c) {
			c = math.Inf(1)
		}
		out[a.Key()] = c
		d.logger.Debug("axiom cost", "ranker", d.ranker.Name(), "axiom", a, "cost", c)
	}
	return out
}

func (d *Detector) greedySearch(ctx context.Context, bugs *bug.List, seed axiom.Set, res *Result) (axiom.Set, error) {
	path := seed.Clone()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		uncovered := bugs.Uncovered(path).Sorted()
		if len(uncovered) == 0 {
			return path, nil
		}
		res.Nodes++

		candidates := slices.DeleteFunc(slices.Clone(uncovered), bugs.IsWhite)
		if len(candidates) == 0 {
			candidates = uncovered
		}
		pick := order(candidates, res)[0]
		d.logger.Debug("greedy pick", "axiom", pick, "cost", res.Cost(pick), "uncovered", len(uncovered))
		path.Add(pick)
	}
}

// order sorts axs by ascending cost, ties by axiom order.
func order(axs []axiom.Axiom, res *Result) []axiom.Axiom {
	slices.SortStableFunc(axs, func(a, b axiom.Axiom) int {
		if c := cmp.Compare(res.Cost(a), res.Cost(b)); c != 0 {
			return c
		}
		return a.Compare(b)
	})
	return axs
}

func summarize(costs map[string]float64) Summary {
	finite := make([]float64, 0, len(costs))
	for _, c := range costs {
		if !math.IsInf(c, 0) {
			finite = append(finite, c)
		}
	}
	s := Summary{Count: len(finite), Excluded: len(costs) - len(finite)}
	if len(finite) == 0 {
		return s
	}
	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)
	s.Mean = stat.Mean(finite, nil)
	if len(finite) > 1 {
		s.StdDev = stat.StdDev(finite, nil)
	}
	return s
}
