package oracle

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
)

// Stats counts oracle calls and the time spent in them.
type Stats struct {
	SatChecks        int64
	EntailmentChecks int64
	SatTime          time.Duration
	EntailmentTime   time.Duration
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.SatChecks += o.SatChecks
	s.EntailmentChecks += o.EntailmentChecks
	s.SatTime += o.SatTime
	s.EntailmentTime += o.EntailmentTime
}

// Session owns one reasoner bound to one working axiom set for the duration
// of a single search. Every mutation must be followed by Flush before the
// next query.
type Session struct {
	r       Reasoner
	pending bool

	sat, ent     atomic.Int64
	satNS, entNS atomic.Int64
}

// Open creates a session over a fresh reasoner for axs.
func Open(f Factory, axs axiom.Set) (*Session, error) {
	r, err := f.New(axs)
	if err != nil {
		return nil, wrap("create reasoner", err)
	}
	return &Session{r: r}, nil
}

// Add stages axioms for inclusion.
func (s *Session) Add(axs ...axiom.Axiom) {
	if len(axs) == 0 {
		return
	}
	s.r.Add(axs...)
	s.pending = true
}

// Remove stages axioms for removal.
func (s *Session) Remove(axs ...axiom.Axiom) {
	if len(axs) == 0 {
		return
	}
	s.r.Remove(axs...)
	s.pending = true
}

// Flush applies staged changes.
func (s *Session) Flush() error {
	if err := s.r.Flush(); err != nil {
		return wrap("flush", err)
	}
	s.pending = false
	return nil
}

// IsSatisfiable reports whether e can have an instance.
func (s *Session) IsSatisfiable(e axiom.Entity) (bool, error) {
	if s.pending {
		return false, internalerr.ErrNotFlushed
	}
	start := time.Now()
	ok, err := s.r.IsSatisfiable(e)
	s.sat.Add(1)
	s.satNS.Add(int64(time.Since(start)))
	if err != nil {
		return false, wrap(fmt.Sprintf("satisfiability of %s", e), err)
	}
	return ok, nil
}

// IsEntailed reports whether a follows from the working set.
func (s *Session) IsEntailed(a axiom.Axiom) (bool, error) {
	if s.pending {
		return false, internalerr.ErrNotFlushed
	}
	start := time.Now()
	ok, err := s.r.IsEntailed(a)
	s.ent.Add(1)
	s.entNS.Add(int64(time.Since(start)))
	if err != nil {
		return false, wrap(fmt.Sprintf("entailment of %s", a), err)
	}
	return ok, nil
}

// IsConsistent reports whether the working set has a model.
func (s *Session) IsConsistent() (bool, error) {
	if s.pending {
		return false, internalerr.ErrNotFlushed
	}
	ok, err := s.r.IsConsistent()
	if err != nil {
		return false, wrap("consistency", err)
	}
	return ok, nil
}

// Reasoner exposes the underlying reasoner.
func (s *Session) Reasoner() Reasoner {
	return s.r
}

// Stats returns the call counters accumulated so far.
func (s *Session) Stats() Stats {
	return Stats{
		SatChecks:        s.sat.Load(),
		EntailmentChecks: s.ent.Load(),
		SatTime:          time.Duration(s.satNS.Load()),
		EntailmentTime:   time.Duration(s.entNS.Load()),
	}
}

// Close releases the reasoner.
func (s *Session) Close() error {
	return s.r.Close()
}

func wrap(op string, err error) error {
	if errors.Is(err, internalerr.ErrOracle) || errors.Is(err, internalerr.ErrNotFlushed) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, internalerr.ErrOracle, err)
}
