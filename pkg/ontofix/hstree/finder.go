// Package hstree enumerates, for every unsatisfiable entity, all MUPS and all
// minimal diagnoses with Reiter's hitting-set tree.
package hstree

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cognicore/ontofix/internal/workpool"
	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

// Observer receives per-entity outcomes, e.g. for metrics export.
type Observer interface {
	ObserveBug(method string, b *bug.Bug, elapsed time.Duration, perf mups.Snapshot)
	ObserveFailure(method string, entity axiom.Entity, err error)
}

// Options configure a Finder.
type Options struct {
	Method Method

	// UseModule restricts each entity's candidates to its module.
	UseModule bool

	// Workers bounds helper goroutines; 1 runs entities sequentially and
	// <= 0 uses GOMAXPROCS.
	Workers int

	// SyncFindMUPS serializes MUPS extraction per entity.
	SyncFindMUPS bool

	// DebugClasses and DebugProperties select the entities FindAllBugs
	// looks at. When both are false only classes are debugged.
	DebugClasses    bool
	DebugProperties bool

	// Classifier types the MUPS found.
	Classifier mups.Classifier

	// Cache is shared across entities and passes. A fresh cache is used
	// when nil.
	Cache *mups.Cache

	// Finder overrides the MUPS finder built from FinderOptions.
	Finder        mups.Finder
	FinderOptions mups.Options

	Pool     *workpool.Pool
	Logger   *slog.Logger
	Observer Observer
}

// Finder builds bugs for unsatisfiable entities.
type Finder struct {
	factory oracle.Factory
	opts    Options
	cache   *mups.Cache
	pool    *workpool.Pool
	logger  *slog.Logger

	active atomic.Int64
}

// New creates a Finder.
func New(f oracle.Factory, opts Options) (*Finder, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil reasoner factory", internalerr.ErrInvalidConfig)
	}
	if opts.Method < DepthFirst || opts.Method > ParallelHSTree {
		return nil, fmt.Errorf("%w: unknown bug finder method %d", internalerr.ErrInvalidConfig, opts.Method)
	}
	if opts.Finder == nil {
		// validate the strategy once up front
		if _, err := mups.NewFinder(f, opts.FinderOptions); err != nil {
			return nil, err
		}
	}
	if !opts.DebugClasses && !opts.DebugProperties {
		opts.DebugClasses = true
	}

	fd := &Finder{
		factory: f,
		opts:    opts,
		cache:   opts.Cache,
		pool:    opts.Pool,
		logger:  opts.Logger,
	}
	if fd.cache == nil {
		fd.cache = mups.NewCache()
	}
	if fd.pool == nil {
		fd.pool = workpool.New(opts.Workers)
	}
	if fd.logger == nil {
		fd.logger = slog.Default()
	}
	return fd, nil
}

// Cache returns the MUPS cache shared by all searches.
func (f *Finder) Cache() *mups.Cache {
	return f.cache
}

// Method returns the configured scheduling method.
func (f *Finder) Method() Method {
	return f.opts.Method
}

// FindBug runs the hitting-set tree for e over ont. It returns a nil Bug
// when e is satisfiable w.r.t. ont.
func (f *Finder) FindBug(ctx context.Context, ont *ontology.Ontology, e axiom.Entity) (*bug.Bug, error) {
	start := time.Now()
	candidates := ont
	if f.opts.UseModule {
		candidates = ontology.FromSet(ont.Module(e))
		f.logger.Debug("module extracted", "entity", e, "axioms", candidates.Len(), "of", ont.Len())
	}

	s, err := f.newSearch(e, candidates)
	if err != nil {
		return nil, err
	}

	f.logger.Info("analysing entity", "kind", e.Kind, "entity", e, "active", f.active.Add(1))
	defer f.active.Add(-1)

	b, err := s.run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		if f.opts.Observer != nil {
			f.opts.Observer.ObserveFailure(f.opts.Method.String(), e, err)
		}
		return nil, fmt.Errorf("entity %s: %w", e, err)
	}
	if b == nil {
		f.logger.Debug("entity is satisfiable", "entity", e)
		return nil, nil
	}

	f.logger.Info("bug detected",
		"bug", b,
		"elapsed", elapsed,
		"perf", s.log,
	)
	if f.opts.Observer != nil {
		f.opts.Observer.ObserveBug(f.opts.Method.String(), b, elapsed, s.log.Snapshot())
	}
	return b, nil
}

// FindBugs builds bugs for the given entities. An entity whose search fails
// is logged and omitted; the error result only reports cancellation.
func (f *Finder) FindBugs(ctx context.Context, ont *ontology.Ontology, entities []axiom.Entity) ([]*bug.Bug, error) {
	entities = slices.Clone(entities)
	slices.SortFunc(entities, axiom.Entity.Compare)
	entities = slices.Compact(entities)

	var (
		mu   sync.Mutex
		bugs []*bug.Bug
	)
	remaining := int64(len(entities))
	one := func(ctx context.Context, e axiom.Entity) error {
		b, err := f.FindBug(ctx, ont, e)
		mu.Lock()
		remaining--
		left := remaining
		if b != nil {
			bugs = append(bugs, b)
		}
		mu.Unlock()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			f.logger.Warn("entity skipped", "entity", e, "error", err, "remaining", left)
			return nil
		}
		f.logger.Debug("entity finished", "entity", e, "remaining", left)
		return nil
	}

	var err error
	if f.opts.Workers == 1 {
		for _, e := range entities {
			if err = ctx.Err(); err != nil {
				break
			}
			if err = one(ctx, e); err != nil {
				break
			}
		}
	} else {
		err = workpool.ForEach(ctx, f.pool, entities, one)
	}

	slices.SortFunc(bugs, (*bug.Bug).Compare)
	return bugs, err
}

// FindAllBugs asks the oracle for the unsatisfiable entities of ont and
// builds a bug for each.
func (f *Finder) FindAllBugs(ctx context.Context, ont *ontology.Ontology) ([]*bug.Bug, error) {
	entities, err := f.Unsatisfiable(ont)
	if err != nil {
		return nil, err
	}
	return f.FindBugs(ctx, ont, entities)
}

// Unsatisfiable lists the entities of ont selected by the debug options that
// the oracle proves empty.
func (f *Finder) Unsatisfiable(ont *ontology.Ontology) ([]axiom.Entity, error) {
	s, err := oracle.Open(f.factory, ont.Axioms())
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var out []axiom.Entity
	check := func(kind string, candidates []axiom.Entity) error {
		n := 0
		for _, e := range candidates {
			sat, err := s.IsSatisfiable(e)
			if err != nil {
				return err
			}
			if !sat {
				out = append(out, e)
				n++
			}
		}
		f.logger.Info("unsatisfiable entities", "kind", kind, "count", n)
		return nil
	}

	if f.opts.DebugClasses {
		if err := check("class", ont.Classes()); err != nil {
			return nil, err
		}
	}
	if f.opts.DebugProperties {
		if err := check("property", ont.Properties()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *Finder) newSearch(e axiom.Entity, candidates *ontology.Ontology) (*search, error) {
	log := &mups.PerformanceLog{}
	finder := f.opts.Finder
	if finder == nil {
		fo := f.opts.FinderOptions
		fo.Cache = nil
		fo.Log = log
		fo.Logger = f.logger
		es, err := mups.NewFinder(f.factory, fo)
		if err != nil {
			return nil, err
		}
		finder = es
	}
	return &search{
		f:        f,
		entity:   e,
		cand:     candidates,
		finder:   finder,
		log:      log,
		examined: make(map[string]struct{}),
		foundKey: make(map[string]struct{}),
	}, nil
}
