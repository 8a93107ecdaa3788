package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/ontofix/pkg/ontofix/hstree"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
	"github.com/cognicore/ontofix/pkg/ontofix/rank"
)

// Config is the full debugger configuration
type Config struct {
	Debug       Debug       `yaml:"debug"`
	BugFinder   BugFinder   `yaml:"bug_finder"`
	ErrorSearch ErrorSearch `yaml:"error_search"`
	Store       Store       `yaml:"store"`
	Paths       Paths       `yaml:"paths"`
	Log         Log         `yaml:"log"`
}

// Debug selects what gets debugged
type Debug struct {
	Classes      bool `yaml:"classes"`
	Properties   bool `yaml:"properties"`
	MergeProfile bool `yaml:"merge_profile"`
	Standalone   bool `yaml:"standalone"`
}

// BugFinder configures MUPS and diagnosis search
type BugFinder struct {
	Method       string  `yaml:"method"`
	MUPSFinder   string  `yaml:"mups_finder"`
	UseModule    bool    `yaml:"use_module"`
	Workers      int     `yaml:"workers"`
	SyncFindMUPS bool    `yaml:"sync_find_mups"`
	ExpandWindow int     `yaml:"expand_window"`
	ExpandGrowth float64 `yaml:"expand_growth"`
	PruneWindow  int     `yaml:"prune_window"`
}

// ErrorSearch configures ranking and repair
type ErrorSearch struct {
	Greedy  bool     `yaml:"greedy"`
	Rankers []string `yaml:"rankers"`
	// Weighted, when set, adds one repair ranked by the weighted sum of
	// the listed rankers.
	Weighted             []WeightedPart `yaml:"weighted"`
	EntailedAxiomCost    float64        `yaml:"entailed_axiom_cost"`
	AssumeProfileCorrect bool           `yaml:"assume_profile_correct"`
	Preprocess           bool           `yaml:"preprocess"`
	FindRootErrors       bool           `yaml:"find_root_errors"`
}

// WeightedPart is one term of the weighted ranker
type WeightedPart struct {
	Ranker string  `yaml:"ranker"`
	Weight float64 `yaml:"weight"`
}

// Store configures persistence between passes
type Store struct {
	Path      string `yaml:"path"`
	UseCache  bool   `yaml:"use_cache"`
	SaveCache bool   `yaml:"save_cache"`
}

// Paths names the axiom files to load
type Paths struct {
	Ontology  string   `yaml:"ontology"`
	Profile   []string `yaml:"profile"`
	Alignment string   `yaml:"alignment"`
}

// Log configures the CLI logger
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when a key is absent.
func Default() Config {
	return Config{
		Debug: Debug{Classes: true, Standalone: true},
		BugFinder: BugFinder{
			Method:       hstree.ParallelHSTree.String(),
			MUPSFinder:   mups.StrategyExpandShrink,
			ExpandWindow: mups.DefaultExpandWindow,
			ExpandGrowth: mups.DefaultExpandGrowth,
			PruneWindow:  mups.DefaultPruneWindow,
		},
		ErrorSearch: ErrorSearch{
			Rankers:           []string{rank.NameShapley},
			EntailedAxiomCost: rank.DefaultEntailedCost,
			FindRootErrors:    true,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode decodes YAML over the defaults without validating, for callers
// that still apply overrides.
func Decode(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{internalerr.ErrInvalidConfig}, args...)...))
	}

	if !c.Debug.Standalone && !c.Debug.MergeProfile {
		bad("debug: neither standalone nor merge_profile is enabled")
	}
	if c.Debug.MergeProfile && len(c.Paths.Profile) == 0 {
		bad("debug.merge_profile needs paths.profile")
	}
	if _, err := hstree.ParseMethod(c.BugFinder.Method); err != nil {
		bad("bug_finder.method %q", c.BugFinder.Method)
	}
	switch c.BugFinder.MUPSFinder {
	case mups.StrategyExpandShrink, mups.StrategyShrink, mups.StrategySwoop:
	default:
		bad("bug_finder.mups_finder %q", c.BugFinder.MUPSFinder)
	}
	if c.BugFinder.Workers < 0 {
		bad("bug_finder.workers must not be negative")
	}
	if c.BugFinder.ExpandWindow <= 0 || c.BugFinder.PruneWindow <= 0 {
		bad("bug_finder windows must be positive")
	}
	if c.BugFinder.ExpandGrowth <= 1 {
		bad("bug_finder.expand_growth must exceed 1")
	}

	if c.ErrorSearch.FindRootErrors && len(c.ErrorSearch.Rankers) == 0 && len(c.ErrorSearch.Weighted) == 0 {
		bad("error_search.rankers is empty")
	}
	for _, name := range c.ErrorSearch.RankerNames() {
		if _, ok := rank.Canonical(name); !ok {
			bad("error_search: unknown ranker %q", name)
		} else if rank.NeedsProfile(name) && len(c.Paths.Profile) == 0 {
			bad("error_search: %s needs paths.profile", name)
		}
	}
	for _, p := range c.ErrorSearch.Weighted {
		if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) {
			bad("error_search.weighted: weight of %s is not finite", p.Ranker)
		}
	}
	if c.ErrorSearch.EntailedAxiomCost <= 0 {
		bad("error_search.entailed_axiom_cost must be positive")
	}
	if (c.ErrorSearch.Preprocess || c.ErrorSearch.AssumeProfileCorrect) && len(c.Paths.Profile) == 0 {
		bad("error_search profile options need paths.profile")
	}

	if (c.Store.UseCache || c.Store.SaveCache) && c.Store.Path == "" {
		bad("store cache options need store.path")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel maps the configured level name to a slog level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", internalerr.ErrInvalidConfig, l.Level)
	}
	return lvl, nil
}

// RankerNames lists every ranker the error search builds, including the
// terms of the weighted ranker.
func (e ErrorSearch) RankerNames() []string {
	names := slices.Clone(e.Rankers)
	for _, p := range e.Weighted {
		names = append(names, p.Ranker)
	}
	return names
}

// Parts returns the weighted ranker terms.
func (e ErrorSearch) Parts() []rank.Part {
	parts := make([]rank.Part, len(e.Weighted))
	for i, p := range e.Weighted {
		parts[i] = rank.Part{Ranker: p.Ranker, Weight: p.Weight}
	}
	return parts
}

// ParsedMethod returns the configured bug finder method.
func (b BugFinder) ParsedMethod() hstree.Method {
	m, _ := hstree.ParseMethod(b.Method)
	return m
}

// FinderOptions returns the MUPS finder settings.
func (b BugFinder) FinderOptions() mups.Options {
	return mups.Options{
		Strategy:     b.MUPSFinder,
		ExpandWindow: b.ExpandWindow,
		ExpandGrowth: b.ExpandGrowth,
		PruneWindow:  b.PruneWindow,
	}
}
