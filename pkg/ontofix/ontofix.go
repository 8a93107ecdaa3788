// Package ontofix debugs ontologies: it finds every unsatisfiable entity,
// explains each one by its minimal conflicts, and proposes the cheapest set
// of axioms whose removal repairs them all.
package ontofix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognicore/ontofix/internal/workpool"
	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/config"
	"github.com/cognicore/ontofix/pkg/ontofix/detect"
	"github.com/cognicore/ontofix/pkg/ontofix/hstree"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/metrics"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle/simple"
	"github.com/cognicore/ontofix/pkg/ontofix/profile"
	"github.com/cognicore/ontofix/pkg/ontofix/rank"
	"github.com/cognicore/ontofix/pkg/ontofix/report"
	"github.com/cognicore/ontofix/pkg/ontofix/store"
)

// Debugger is the main ontology debugging facade
type Debugger struct {
	cfg       config.Config
	factory   oracle.Factory
	store     store.Store
	profile   *profile.Profile
	alignment axiom.Set
	metrics   *metrics.Recorder
	pool      *workpool.Pool
	logger    *slog.Logger

	oracle  *oracle.Counter
	cache   *mups.Cache
	reports *report.Builder
	checker *profile.SupportChecker
}

// Options configures a Debugger
type Options struct {
	Config config.Config

	// Factory builds reasoners; the SAT-backed reference reasoner is used
	// when nil.
	Factory oracle.Factory

	// Store, Profile, Alignment and Metrics are optional.
	Store     store.Store
	Profile   *profile.Profile
	Alignment axiom.Set
	Metrics   *metrics.Recorder

	Pool   *workpool.Pool
	Logger *slog.Logger
}

// New creates a Debugger with the given dependencies
func New(opts Options) (*Debugger, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	cfg := opts.Config
	if (cfg.Store.UseCache || cfg.Store.SaveCache) && opts.Store == nil {
		return nil, fmt.Errorf("%w: store cache enabled without a store", internalerr.ErrInvalidConfig)
	}
	if opts.Profile == nil && needsProfile(cfg) {
		return nil, fmt.Errorf("%w: profile options enabled without a profile", internalerr.ErrInvalidConfig)
	}

	d := &Debugger{
		cfg:       cfg,
		factory:   opts.Factory,
		store:     opts.Store,
		profile:   opts.Profile,
		alignment: opts.Alignment,
		metrics:   opts.Metrics,
		pool:      opts.Pool,
		logger:    opts.Logger,
		cache:     mups.NewCache(),
		reports:   report.New(),
	}
	if d.factory == nil {
		d.factory = simple.Factory()
	}
	d.oracle = oracle.NewCounter(d.factory)
	d.factory = d.oracle
	if d.pool == nil {
		d.pool = workpool.New(cfg.BugFinder.Workers)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.alignment == nil {
		d.alignment = axiom.NewSet()
	}
	if d.profile != nil {
		checker, err := profile.NewSupportChecker(d.factory, profile.WithLogger(d.logger))
		if err != nil {
			return nil, err
		}
		d.checker = checker
	}
	return d, nil
}

// Close cleanly shuts down the Debugger and its store
func (d *Debugger) Close() error {
	var errs []error
	if d.checker != nil {
		errs = append(errs, d.checker.Fini())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// Cache returns the MUPS cache shared by every pass.
func (d *Debugger) Cache() *mups.Cache {
	return d.cache
}

// Pass is one debugged ontology: the standalone ontology or its union with
// the profile.
type Pass struct {
	Name     string
	Ontology *ontology.Ontology
	Bugs     *bug.List
	Repairs  []report.Report
	// Missing lists suspected axioms of the standalone pass that the merged
	// ontology lacks.
	Missing axiom.Set
	// Oracle counts the reasoners and queries the pass used.
	Oracle  oracle.Usage
	Elapsed time.Duration
}

// Result is everything one Debug call found.
type Result struct {
	InitialErrors axiom.Set
	WhiteList     axiom.Set
	Skipped       axiom.Set
	Passes        []Pass
	Elapsed       time.Duration
}

// Debug runs the configured passes over ont. name keys persisted caches
// and reports.
func (d *Debugger) Debug(ctx context.Context, name string, ont *ontology.Ontology) (*Result, error) {
	start := time.Now()
	res := &Result{InitialErrors: axiom.NewSet(), WhiteList: axiom.NewSet(), Skipped: axiom.NewSet()}
	d.logger.Info("debug started", "ontology", name, "axioms", ont.Len())

	if d.checker != nil && d.usesSupport() {
		if err := d.checker.Init(d.profile, d.alignment); err != nil {
			return nil, fmt.Errorf("init support checker: %w", err)
		}
		defer func() {
			if err := d.checker.Fini(); err != nil {
				d.logger.Warn("support checker cleanup failed", "error", err)
			}
		}()
	}

	if d.cfg.ErrorSearch.AssumeProfileCorrect && d.profile != nil {
		res.WhiteList.AddAll(d.profile.Merged().Sorted()...)
	}
	if d.cfg.ErrorSearch.Preprocess {
		verdict := profile.Preprocess(d.checker, ont.Sorted(), d.logger)
		res.InitialErrors = verdict.Errors
		res.WhiteList.AddAll(verdict.White.Sorted()...)
		res.Skipped = verdict.Skipped
		d.logger.Info("preprocessed",
			"errors", verdict.Errors.Len(),
			"white", verdict.White.Len(),
			"skipped", verdict.Skipped.Len(),
		)
	}

	var local *Pass
	if d.cfg.Debug.Standalone {
		p, err := d.pass(ctx, name, ont, ont, res)
		if err != nil {
			return nil, err
		}
		res.Passes = append(res.Passes, *p)
		local = p
	}

	if d.cfg.Debug.MergeProfile {
		merged := ont.Clone()
		for _, a := range d.profile.Merged().Sorted() {
			merged.Add(a)
		}
		p, err := d.pass(ctx, name+"-merged", merged, ont, res)
		if err != nil {
			return nil, err
		}
		if local != nil {
			p.Missing = local.Bugs.Suspected().Minus(merged.Axioms())
			if p.Missing.Len() > 0 {
				d.logger.Info("suspected axioms missing in merged ontology", "count", p.Missing.Len())
			}
		}
		res.Passes = append(res.Passes, *p)
	}

	res.Elapsed = time.Since(start)
	d.logger.Info("debug finished", "ontology", name, "passes", len(res.Passes), "elapsed", res.Elapsed)
	return res, nil
}

// pass debugs ont and ranks its suspected axioms. MUPS types are relative
// to local, the ontology under test.
func (d *Debugger) pass(ctx context.Context, name string, ont, local *ontology.Ontology, res *Result) (*Pass, error) {
	start := time.Now()
	usage := d.oracle.Usage()
	target, err := d.cachedOntology(ctx, name, ont)
	if err != nil {
		return nil, err
	}
	if err := d.seedCache(ctx, name); err != nil {
		return nil, err
	}
	target = target.Without(res.InitialErrors)

	list, err := d.FindBugs(ctx, target, local)
	if err != nil {
		return nil, err
	}
	list.AddBlack(res.InitialErrors.Sorted()...)
	list.AddWhite(res.WhiteList.Sorted()...)
	d.logger.Info("bugs detected", "ontology", name, "bugs", list)

	if d.cfg.Store.SaveCache {
		if err := d.save(ctx, name, list); err != nil {
			return nil, err
		}
	}

	p := &Pass{Name: name, Ontology: target, Bugs: list}
	if !list.IsEmpty() && d.cfg.ErrorSearch.FindRootErrors {
		for _, rankerName := range d.cfg.ErrorSearch.Rankers {
			rep, err := d.Repair(ctx, name, ont, list, rankerName)
			if err != nil {
				return nil, err
			}
			p.Repairs = append(p.Repairs, rep)
		}
		if len(d.cfg.ErrorSearch.Weighted) > 0 {
			r, err := rank.ByWeights(d.cfg.ErrorSearch.Parts(), d.rankDeps())
			if err != nil {
				return nil, err
			}
			rep, err := d.RepairWith(ctx, name, ont, list, r)
			if err != nil {
				return nil, err
			}
			p.Repairs = append(p.Repairs, rep)
		}
	}
	p.Oracle = d.oracle.Usage().Sub(usage)
	if d.metrics != nil {
		d.metrics.ObserveOracle(p.Oracle)
	}
	p.Elapsed = time.Since(start)
	d.logger.Info("pass finished",
		"ontology", name,
		"reasoners", p.Oracle.Reasoners,
		"sat_checks", p.Oracle.SatChecks,
		"entailment_checks", p.Oracle.EntailmentChecks,
		"elapsed", p.Elapsed,
	)
	return p, nil
}

// FindBugs debugs every unsatisfiable entity of ont. MUPS are classified
// against local and the profile.
func (d *Debugger) FindBugs(ctx context.Context, ont, local *ontology.Ontology) (*bug.List, error) {
	finder, err := d.finder(local)
	if err != nil {
		return nil, err
	}
	bugs, err := finder.FindAllBugs(ctx, ont)
	if err != nil {
		return nil, err
	}
	return bug.NewList(bugs, bug.WithProfileAssumedCorrect(d.cfg.ErrorSearch.AssumeProfileCorrect)), nil
}

// FindBug debugs a single entity of ont. It returns nil when e is
// satisfiable.
func (d *Debugger) FindBug(ctx context.Context, ont *ontology.Ontology, e axiom.Entity) (*bug.Bug, error) {
	finder, err := d.finder(ont)
	if err != nil {
		return nil, err
	}
	return finder.FindBug(ctx, ont, e)
}

// Repair ranks the suspected axioms of bugs with the named ranker and
// computes one repair of ont. The report is persisted when a store is set.
func (d *Debugger) Repair(ctx context.Context, name string, ont *ontology.Ontology, bugs *bug.List, rankerName string) (report.Report, error) {
	r, err := rank.ByName(rankerName, d.rankDeps())
	if err != nil {
		return report.Report{}, err
	}
	return d.RepairWith(ctx, name, ont, bugs, r)
}

// RepairWith is Repair with a ranker built by the caller.
func (d *Debugger) RepairWith(ctx context.Context, name string, ont *ontology.Ontology, bugs *bug.List, r rank.Ranker) (report.Report, error) {
	det, err := detect.New(r, detect.Options{Greedy: d.cfg.ErrorSearch.Greedy, Logger: d.logger})
	if err != nil {
		return report.Report{}, err
	}
	found, err := det.FindErrors(ctx, ont, bugs)
	if err != nil {
		return report.Report{}, fmt.Errorf("find errors with %s: %w", r.Name(), err)
	}
	if d.metrics != nil {
		d.metrics.ObserveRepair(found)
	}

	rep := d.reports.Build(name, bugs, found)
	if d.store != nil {
		rec, err := rep.Record()
		if err != nil {
			return report.Report{}, err
		}
		if err := d.store.UpsertReport(ctx, rec); err != nil {
			return report.Report{}, fmt.Errorf("save report: %w", err)
		}
	}
	return rep, nil
}

func (d *Debugger) rankDeps() rank.Deps {
	deps := rank.Deps{Factory: d.factory, EntailedCost: d.cfg.ErrorSearch.EntailedAxiomCost}
	if d.checker != nil {
		deps.Support = d.checker
	}
	return deps
}

func (d *Debugger) finder(local *ontology.Ontology) (*hstree.Finder, error) {
	bf := d.cfg.BugFinder
	opts := hstree.Options{
		Method:          bf.ParsedMethod(),
		UseModule:       bf.UseModule,
		Workers:         bf.Workers,
		SyncFindMUPS:    bf.SyncFindMUPS,
		DebugClasses:    d.cfg.Debug.Classes,
		DebugProperties: d.cfg.Debug.Properties,
		Classifier:      mups.Classifier{Local: local},
		Cache:           d.cache,
		FinderOptions:   bf.FinderOptions(),
		Pool:            d.pool,
		Logger:          d.logger,
	}
	if d.profile != nil {
		opts.Classifier.Profile = d.profile
	}
	if d.metrics != nil {
		opts.Observer = d.metrics
	}
	return hstree.New(d.factory, opts)
}

// cachedOntology swaps ont for the suspected axioms of a previous pass when
// the store holds them.
func (d *Debugger) cachedOntology(ctx context.Context, name string, ont *ontology.Ontology) (*ontology.Ontology, error) {
	if !d.cfg.Store.UseCache {
		return ont, nil
	}
	lines, ok, err := d.store.LoadSuspected(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load suspected axioms: %w", err)
	}
	if !ok {
		d.logger.Warn("no cached bug list", "ontology", name)
		return ont, nil
	}
	axs, err := store.DecodeAxioms(lines)
	if err != nil {
		return nil, fmt.Errorf("decode suspected axioms: %w", err)
	}
	d.logger.Info("using cached bug list", "ontology", name, "axioms", axs.Len())
	return ontology.FromSet(axs), nil
}

func (d *Debugger) seedCache(ctx context.Context, name string) error {
	if !d.cfg.Store.UseCache {
		return nil
	}
	records, err := d.store.GetMUPS(ctx, name)
	if err != nil {
		return fmt.Errorf("load mups: %w", err)
	}
	added := 0
	for _, rec := range records {
		m, err := rec.Decode()
		if err != nil {
			d.logger.Warn("skipping stored mups", "entity", rec.Entity, "error", err)
			continue
		}
		if d.cache.Add(m) {
			added++
		}
	}
	d.logger.Debug("mups cache seeded", "ontology", name, "added", added)
	return nil
}

func (d *Debugger) save(ctx context.Context, name string, list *bug.List) error {
	if err := d.store.SaveSuspected(ctx, name, store.EncodeAxioms(list.Suspected())); err != nil {
		return fmt.Errorf("save suspected axioms: %w", err)
	}
	ms := list.MUPS()
	records := make([]store.MUPS, len(ms))
	for i, m := range ms {
		records[i] = store.FromMUPS(m)
	}
	if err := d.store.UpsertMUPS(ctx, name, records); err != nil {
		return fmt.Errorf("save mups: %w", err)
	}
	return nil
}

func (d *Debugger) usesSupport() bool {
	if d.cfg.ErrorSearch.Preprocess {
		return true
	}
	if !d.cfg.ErrorSearch.FindRootErrors {
		return false
	}
	for _, name := range d.cfg.ErrorSearch.RankerNames() {
		if rank.NeedsProfile(name) {
			return true
		}
	}
	return false
}

func needsProfile(cfg config.Config) bool {
	if cfg.Debug.MergeProfile || cfg.ErrorSearch.Preprocess || cfg.ErrorSearch.AssumeProfileCorrect {
		return true
	}
	for _, name := range cfg.ErrorSearch.RankerNames() {
		if rank.NeedsProfile(name) {
			return true
		}
	}
	return false
}
