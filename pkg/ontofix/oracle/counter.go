package oracle

import (
	"sync/atomic"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
)

// Counter wraps a Factory and counts queries across every reasoner it
// creates. It is safe for concurrent use.
type Counter struct {
	base Factory

	created atomic.Int64
	sat     atomic.Int64
	ent     atomic.Int64
}

// NewCounter wraps base.
func NewCounter(base Factory) *Counter {
	return &Counter{base: base}
}

// New implements Factory.
func (c *Counter) New(axs axiom.Set) (Reasoner, error) {
	r, err := c.base.New(axs)
	if err != nil {
		return nil, err
	}
	c.created.Add(1)
	return &counted{Reasoner: r, c: c}, nil
}

// Reasoners returns the number of reasoners created.
func (c *Counter) Reasoners() int64 { return c.created.Load() }

// SatChecks returns the number of satisfiability queries.
func (c *Counter) SatChecks() int64 { return c.sat.Load() }

// EntailmentChecks returns the number of entailment queries.
func (c *Counter) EntailmentChecks() int64 { return c.ent.Load() }

// Calls returns all queries, satisfiability and entailment.
func (c *Counter) Calls() int64 { return c.sat.Load() + c.ent.Load() }

// Usage is a point-in-time copy of a Counter.
type Usage struct {
	Reasoners        int64
	SatChecks        int64
	EntailmentChecks int64
}

// Sub returns the queries made between o and u.
func (u Usage) Sub(o Usage) Usage {
	return Usage{
		Reasoners:        u.Reasoners - o.Reasoners,
		SatChecks:        u.SatChecks - o.SatChecks,
		EntailmentChecks: u.EntailmentChecks - o.EntailmentChecks,
	}
}

// Usage returns the current counts.
func (c *Counter) Usage() Usage {
	return Usage{
		Reasoners:        c.created.Load(),
		SatChecks:        c.sat.Load(),
		EntailmentChecks: c.ent.Load(),
	}
}

// Reset zeroes the counters.
func (c *Counter) Reset() {
	c.created.Store(0)
	c.sat.Store(0)
	c.ent.Store(0)
}

type counted struct {
	Reasoner
	c *Counter
}

func (r *counted) IsSatisfiable(e axiom.Entity) (bool, error) {
	r.c.sat.Add(1)
	return r.Reasoner.IsSatisfiable(e)
}

func (r *counted) IsEntailed(a axiom.Axiom) (bool, error) {
	r.c.ent.Add(1)
	return r.Reasoner.IsEntailed(a)
}
