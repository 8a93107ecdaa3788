package mups

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

// Source is the candidate axiom set a finder extracts a conflict from.
type Source interface {
	Container
	Len() int
	Sorted() []axiom.Axiom
	Defining(e axiom.Entity) []axiom.Axiom
	Intersecting(sig []axiom.Entity) axiom.Set
}

// Finder extracts one minimal conflict set for an unsatisfiable entity. A
// nil set with a nil error means the entity is satisfiable w.r.t. working.
type Finder interface {
	FindMUPS(working Source, e axiom.Entity) (axiom.Set, error)
}

// Strategy names.
const (
	StrategyExpandShrink = "expand-shrink"
	StrategyShrink       = "shrink"
	StrategySwoop        = "swoop"
)

// Defaults for the expand and shrink windows.
const (
	DefaultExpandWindow = 40
	DefaultExpandGrowth = 1.25
	DefaultPruneWindow  = 10
)

// Options configure a finder.
type Options struct {
	Strategy     string
	ExpandWindow int
	ExpandGrowth float64
	PruneWindow  int
	Cache        *Cache
	Log          *PerformanceLog
	Logger       *slog.Logger
}

// ExpandShrink grows a working ontology around the entity until it becomes
// unsatisfiable, then prunes it to a minimal conflict. With the shrink
// strategy the expansion is skipped and the whole candidate set is pruned.
// The swoop strategy expands only through the defining axioms of entities
// already in the working ontology.
type ExpandShrink struct {
	factory      oracle.Factory
	skipExpand   bool
	definitions  bool
	expandWindow int
	expandGrowth float64
	pruneWindow  int
	cache        *Cache
	log          *PerformanceLog
	logger       *slog.Logger
}

// NewFinder creates a finder for the strategy named in opts.
func NewFinder(f oracle.Factory, opts Options) (*ExpandShrink, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil reasoner factory", internalerr.ErrInvalidConfig)
	}
	es := &ExpandShrink{
		factory:      f,
		expandWindow: opts.ExpandWindow,
		expandGrowth: opts.ExpandGrowth,
		pruneWindow:  opts.PruneWindow,
		cache:        opts.Cache,
		log:          opts.Log,
		logger:       opts.Logger,
	}
	switch opts.Strategy {
	case "", StrategyExpandShrink:
	case StrategyShrink:
		es.skipExpand = true
	case StrategySwoop:
		es.definitions = true
	default:
		return nil, fmt.Errorf("%w: unknown MUPS finder %q", internalerr.ErrInvalidConfig, opts.Strategy)
	}
	if es.expandWindow <= 0 {
		es.expandWindow = DefaultExpandWindow
	}
	if es.expandGrowth <= 1 {
		es.expandGrowth = DefaultExpandGrowth
	}
	if es.pruneWindow <= 0 {
		es.pruneWindow = DefaultPruneWindow
	}
	if es.log == nil {
		es.log = &PerformanceLog{}
	}
	if es.logger == nil {
		es.logger = slog.Default()
	}
	return es, nil
}

// Log returns the performance log the finder writes to.
func (f *ExpandShrink) Log() *PerformanceLog {
	return f.log
}

// FindMUPS implements Finder. A cached MUPS contained in working is returned
// without consulting the reasoner.
func (f *ExpandShrink) FindMUPS(working Source, e axiom.Entity) (axiom.Set, error) {
	if f.cache != nil {
		if m, ok := f.cache.Lookup(e, working); ok {
			f.log.IncCacheHits()
			return m.Set(), nil
		}
	}

	start := time.Now()
	defer func() { f.log.AddFindMUPS(time.Since(start)) }()
	f.log.IncFinderRuns()

	s, err := oracle.Open(f.factory, axiom.NewSet())
	if err != nil {
		return nil, err
	}
	defer func() {
		st := s.Stats()
		f.log.AddSatChecks(st.SatChecks, st.SatTime)
		s.Close()
	}()

	temp := make(axiom.Set)
	phase := time.Now()
	var found bool
	switch {
	case f.skipExpand:
		found, err = f.addAll(s, temp, e, working.Sorted())
	case f.definitions:
		found, err = f.expandDefinitions(s, temp, working, e)
	default:
		found, err = f.expand(s, temp, working, e)
	}
	f.log.AddExpand(time.Since(phase))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	f.logger.Debug("shrink started", "entity", e, "axioms", temp.Len(), "candidates", working.Len())
	phase = time.Now()
	result, err := f.shrink(s, e, temp)
	f.log.AddShrink(time.Since(phase))
	if err != nil {
		return nil, err
	}
	f.logger.Debug("shrink finished", "entity", e, "axioms", result.Len())
	return result, nil
}

// expandDefinitions adds the defining axioms of every entity in the working
// signature, one layer at a time.
func (f *ExpandShrink) expandDefinitions(s *oracle.Session, temp axiom.Set, working Source, e axiom.Entity) (bool, error) {
	expanded := make(map[axiom.Entity]bool)
	for {
		var layer []axiom.Axiom
		for _, x := range signatureOf(temp, e) {
			if expanded[x] {
				continue
			}
			expanded[x] = true
			for _, a := range working.Defining(x) {
				if !temp.Contains(a) {
					layer = append(layer, a)
				}
			}
		}
		if len(layer) == 0 {
			layer = remaining(working, temp)
		}
		if len(layer) == 0 {
			return false, nil
		}
		found, err := f.addAll(s, temp, e, layer)
		if err != nil || found {
			return found, err
		}
	}
}

func (f *ExpandShrink) expand(s *oracle.Session, temp axiom.Set, working Source, e axiom.Entity) (bool, error) {
	found, err := f.addAll(s, temp, e, working.Defining(e))
	if err != nil || found {
		return found, err
	}

	window := f.expandWindow
	for !found {
		related := working.Intersecting(signatureOf(temp, e)).Minus(temp).Sorted()
		if len(related) == 0 {
			// axioms over Thing reach e without sharing its signature
			related = remaining(working, temp)
		}
		if len(related) == 0 {
			return false, nil
		}
		if len(related) > window {
			related = related[:window]
			window = int(float64(window) * f.expandGrowth)
		}
		found, err = f.addAll(s, temp, e, related)
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// addAll adds axs to the working set and reports whether e became unsatisfiable.
func (f *ExpandShrink) addAll(s *oracle.Session, temp axiom.Set, e axiom.Entity, axs []axiom.Axiom) (bool, error) {
	temp.AddAll(axs...)
	s.Add(axs...)
	if err := s.Flush(); err != nil {
		return false, err
	}
	sat, err := s.IsSatisfiable(e)
	return !sat, err
}

func (f *ExpandShrink) shrink(s *oracle.Session, e axiom.Entity, temp axiom.Set) (axiom.Set, error) {
	axs := temp.Sorted()

	// coarse pass: drop whole windows that keep e unsatisfiable
	w := f.pruneWindow
	if len(axs) >= w {
		index := 0
		for index < len(axs) {
			end := min(index+w, len(axs))
			window := slices.Clone(axs[index:end])

			sat, err := f.satisfiableWithout(s, e, window)
			if err != nil {
				return nil, err
			}
			if sat {
				if err := f.restore(s, window); err != nil {
					return nil, err
				}
				index += w
				continue
			}
			axs = slices.Delete(axs, index, end)
		}
	}

	// fine pass: one axiom at a time
	kept := make([]axiom.Axiom, 0, len(axs))
	for _, a := range axs {
		sat, err := f.satisfiableWithout(s, e, []axiom.Axiom{a})
		if err != nil {
			return nil, err
		}
		if sat {
			if err := f.restore(s, []axiom.Axiom{a}); err != nil {
				return nil, err
			}
			kept = append(kept, a)
		}
	}
	return axiom.NewSet(kept...), nil
}

func (f *ExpandShrink) satisfiableWithout(s *oracle.Session, e axiom.Entity, axs []axiom.Axiom) (bool, error) {
	s.Remove(axs...)
	if err := s.Flush(); err != nil {
		return false, err
	}
	return s.IsSatisfiable(e)
}

func (f *ExpandShrink) restore(s *oracle.Session, axs []axiom.Axiom) error {
	s.Add(axs...)
	return s.Flush()
}

func remaining(working Source, temp axiom.Set) []axiom.Axiom {
	var out []axiom.Axiom
	for _, a := range working.Sorted() {
		if !temp.Contains(a) {
			out = append(out, a)
		}
	}
	return out
}

func signatureOf(axs axiom.Set, seed axiom.Entity) []axiom.Entity {
	seen := map[axiom.Entity]bool{seed: true}
	out := []axiom.Entity{seed}
	for _, a := range axs {
		for _, e := range a.Signature() {
			if !seen[e] && !e.IsTopOrBottom() {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}
