package hstree

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

// search is the state of one entity's hitting-set tree.
type search struct {
	f      *Finder
	entity axiom.Entity
	cand   *ontology.Ontology
	finder mups.Finder
	log    *mups.PerformanceLog

	mu        sync.Mutex
	found     []mups.MUPS
	foundKey  map[string]struct{}
	diagnoses []axiom.Set
	examined  map[string]struct{}

	findMu sync.Mutex
}

type node struct {
	m    mups.MUPS
	path axiom.Set
}

func (s *search) run(ctx context.Context) (*bug.Bug, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		root mups.MUPS
		ok   bool
		err  error
	)
	switch s.f.opts.Method {
	case DepthFirst:
		working := s.cand.Clone()
		sess, oerr := oracle.Open(s.f.factory, working.Axioms())
		if oerr != nil {
			return nil, oerr
		}
		defer s.closeSession(sess)

		root, ok, err = s.evaluate(working, sess)
		if err != nil || !ok {
			return nil, err
		}
		err = s.depthFirst(ctx, sess, working, root, axiom.NewSet())
	case ParallelDepthFirst:
		root, ok, err = s.evaluate(s.cand, nil)
		if err != nil || !ok {
			return nil, err
		}
		err = s.parallelDepthFirst(ctx, s.cand, root, axiom.NewSet())
	default:
		root, ok, err = s.evaluate(s.cand, nil)
		if err != nil || !ok {
			return nil, err
		}
		err = s.breadthFirst(ctx, root)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.f.logger.Info("hitting set tree finished",
		"entity", s.entity,
		"method", s.f.opts.Method,
		"mups", len(s.found),
		"diagnoses", len(s.diagnoses),
	)
	return bug.New(s.entity, s.found, s.diagnoses), nil
}

// depthFirst removes each axiom of current from the shared working ontology,
// recurses on the conflict that remains and restores the axiom afterwards.
func (s *search) depthFirst(ctx context.Context, sess *oracle.Session, working *ontology.Ontology, current mups.MUPS, path axiom.Set) error {
	s.log.IncNodes()
	for _, a := range current.Axioms() {
		if err := ctx.Err(); err != nil {
			return err
		}
		path.Add(a)
		if s.terminated(path, false) {
			s.log.IncEarlyTerminations()
			path.Remove(a)
			continue
		}

		working.Remove(a)
		sess.Remove(a)
		m, ok, err := s.evaluate(working, sess)
		if err != nil {
			return err
		}
		if !ok {
			s.addDiagnosis(path.Clone())
		} else if err := s.depthFirst(ctx, sess, working, m, path); err != nil {
			return err
		}
		working.Add(a)
		sess.Add(a)
		path.Remove(a)
	}
	return nil
}

// parallelDepthFirst expands the children of a node concurrently. Each child
// works on its own copy of the ontology.
func (s *search) parallelDepthFirst(ctx context.Context, working *ontology.Ontology, current mups.MUPS, path axiom.Set) error {
	s.log.IncNodes()
	g, _ := s.f.pool.Group(ctx)
	for _, a := range current.Axioms() {
		g.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			child := path.Clone()
			child.Add(a)
			if s.terminated(child, true) {
				s.log.IncEarlyTerminations()
				return nil
			}

			next := working.Without(axiom.NewSet(a))
			m, ok, err := s.evaluate(next, nil)
			if err != nil {
				return err
			}
			if !ok {
				s.addDiagnosis(child)
				return nil
			}
			return s.parallelDepthFirst(ctx, next, m, child)
		})
	}
	return g.Wait()
}

// breadthFirst expands the tree one generation at a time.
func (s *search) breadthFirst(ctx context.Context, root mups.MUPS) error {
	frontier := []node{{m: root, path: axiom.NewSet()}}
	parallel := s.f.opts.Method.parallel()

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.f.logger.Debug("expanding generation", "entity", s.entity, "nodes", len(frontier), "parallel", parallel)

		var (
			mu   sync.Mutex
			next []node
		)
		push := func(n *node) {
			if n == nil {
				return
			}
			mu.Lock()
			next = append(next, *n)
			mu.Unlock()
		}

		if parallel {
			g, _ := s.f.pool.Group(ctx)
			for _, n := range frontier {
				g.Go(func(ctx context.Context) error {
					s.log.IncNodes()
					inner, _ := s.f.pool.Group(ctx)
					for _, a := range n.m.Axioms() {
						inner.Go(func(ctx context.Context) error {
							child, err := s.expand(ctx, n, a)
							if err != nil {
								return err
							}
							push(child)
							return nil
						})
					}
					return inner.Wait()
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
		} else {
			for _, n := range frontier {
				s.log.IncNodes()
				for _, a := range n.m.Axioms() {
					child, err := s.expand(ctx, n, a)
					if err != nil {
						return err
					}
					push(child)
				}
			}
		}

		slices.SortFunc(next, func(a, b node) int {
			return strings.Compare(a.path.Key(), b.path.Key())
		})
		frontier = next
	}
	return nil
}

// expand builds the child of n reached by removing a. It returns nil when
// the path is pruned or turns out to be a diagnosis.
func (s *search) expand(ctx context.Context, n node, a axiom.Axiom) (*node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := n.path.Clone()
	path.Add(a)
	if s.terminated(path, true) {
		s.log.IncEarlyTerminations()
		return nil, nil
	}

	m, ok, err := s.evaluate(s.cand.Without(path), nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.addDiagnosis(path)
		return nil, nil
	}
	return &node{m: m, path: path}, nil
}

// terminated reports whether path can be skipped: it contains a known
// diagnosis or, with guard set, it was examined before. A path that is not
// skipped is marked as examined.
func (s *search) terminated(path axiom.Set, guard bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.diagnoses {
		if path.ContainsAll(d) {
			return true
		}
	}
	if !guard {
		return false
	}
	key := path.Key()
	if _, ok := s.examined[key]; ok {
		return true
	}
	s.examined[key] = struct{}{}
	return false
}

// evaluate returns a MUPS of the entity within working, or false when the
// entity is satisfiable there. sess, when given, must mirror working.
func (s *search) evaluate(working *ontology.Ontology, sess *oracle.Session) (mups.MUPS, bool, error) {
	if m, ok := s.lookup(working); ok {
		return m, true, nil
	}
	if s.f.opts.SyncFindMUPS {
		s.findMu.Lock()
		defer s.findMu.Unlock()
		if m, ok := s.lookup(working); ok {
			return m, true, nil
		}
	}

	sat, err := s.satisfiable(working, sess)
	if err != nil {
		return mups.MUPS{}, false, err
	}
	if sat {
		return mups.MUPS{}, false, nil
	}

	set, err := s.finder.FindMUPS(working, s.entity)
	if err != nil {
		return mups.MUPS{}, false, err
	}
	if set == nil || set.Len() == 0 {
		return mups.MUPS{}, false, fmt.Errorf("%w: %s is unsatisfiable but no conflict was extracted", internalerr.ErrNoConflict, s.entity)
	}

	m := mups.Build(s.entity, set, s.f.opts.Classifier)
	if s.f.cache.Add(m) {
		s.f.logger.Debug("new MUPS", "entity", s.entity, "type", m.Type(), "axioms", m.Len())
	}
	s.record(m)
	return m, true, nil
}

func (s *search) lookup(working *ontology.Ontology) (mups.MUPS, bool) {
	m, ok := s.f.cache.Lookup(s.entity, working)
	if !ok {
		return mups.MUPS{}, false
	}
	s.log.IncCacheHits()
	s.record(m)
	return m, true
}

func (s *search) satisfiable(working *ontology.Ontology, sess *oracle.Session) (bool, error) {
	if sess == nil {
		var err error
		if sess, err = oracle.Open(s.f.factory, working.Axioms()); err != nil {
			return false, err
		}
		defer s.closeSession(sess)
	} else if err := sess.Flush(); err != nil {
		return false, err
	}
	return sess.IsSatisfiable(s.entity)
}

func (s *search) closeSession(sess *oracle.Session) {
	st := sess.Stats()
	s.log.AddSatChecks(st.SatChecks, st.SatTime)
	if err := sess.Close(); err != nil {
		s.f.logger.Warn("closing reasoner", "entity", s.entity, "error", err)
	}
}

func (s *search) record(m mups.MUPS) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.foundKey[m.Key()]; ok {
		return
	}
	s.foundKey[m.Key()] = struct{}{}
	s.found = append(s.found, m)
}

func (s *search) addDiagnosis(path axiom.Set) {
	s.mu.Lock()
	s.diagnoses = append(s.diagnoses, path)
	n := len(s.diagnoses)
	s.mu.Unlock()
	s.f.logger.Debug("new diagnosis", "entity", s.entity, "size", path.Len(), "found", n)
}
