package profile

import (
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
)

// Status is the vote one trusted ontology casts on an axiom.
type Status int

const (
	// StatusUnknown means the ontology neither entails the axiom nor
	// contradicts it.
	StatusUnknown Status = iota
	// StatusEntailed means the ontology entails the axiom.
	StatusEntailed
	// StatusNegationEntailed means adding the axiom makes the ontology
	// inconsistent or turns a class unsatisfiable.
	StatusNegationEntailed
)

func (s Status) String() string {
	switch s {
	case StatusEntailed:
		return "entailed"
	case StatusNegationEntailed:
		return "negation-entailed"
	default:
		return "unknown"
	}
}

// DefaultCacheSize bounds the number of axioms whose votes are memoized.
const DefaultCacheSize = 4096

// CheckerOption configures a SupportChecker.
type CheckerOption func(*SupportChecker)

// WithCacheSize sets the vote cache capacity.
func WithCacheSize(n int) CheckerOption {
	return func(c *SupportChecker) { c.cacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *SupportChecker) { c.logger = l }
}

type voter struct {
	name    string
	sess    *oracle.Session
	classes map[axiom.Entity]struct{}
	unsat   int
}

// SupportChecker asks every trusted ontology of a profile, and their union,
// whether it supports an axiom. Safe for concurrent use.
type SupportChecker struct {
	factory   oracle.Factory
	cacheSize int
	logger    *slog.Logger

	mu     sync.Mutex
	voters []*voter
	cache  *lru.Cache[string, []Status]
}

// NewSupportChecker creates an idle checker; call Init before Status.
func NewSupportChecker(f oracle.Factory, opts ...CheckerOption) (*SupportChecker, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil reasoner factory", internalerr.ErrInvalidConfig)
	}
	c := &SupportChecker{factory: f, cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheSize <= 0 {
		c.cacheSize = DefaultCacheSize
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	cache, err := lru.New[string, []Status](c.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internalerr.ErrInvalidConfig, err)
	}
	c.cache = cache
	return c, nil
}

// Init binds the checker to the merged profile and each member. The
// alignment axioms, when given, are added to every voter so they can relate
// the axioms under test to the profile vocabulary. Any previous binding is
// released first.
func (c *SupportChecker) Init(p *Profile, alignment axiom.Set) error {
	if err := c.Fini(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	add := func(name string, axs axiom.Set) error {
		axs = axs.Union(alignment)
		sess, err := oracle.Open(c.factory, axs)
		if err != nil {
			return fmt.Errorf("voter %s: %w", name, err)
		}
		v := &voter{name: name, sess: sess, classes: make(map[axiom.Entity]struct{})}
		for _, a := range axs {
			for _, e := range a.Signature() {
				if e.Kind == axiom.ClassKind && !e.IsTopOrBottom() {
					v.classes[e] = struct{}{}
				}
			}
		}
		if v.unsat, err = v.countUnsat(nil); err != nil {
			sess.Close()
			return fmt.Errorf("voter %s: %w", name, err)
		}
		c.voters = append(c.voters, v)
		return nil
	}

	if err := add("merged", p.Merged().Axioms()); err != nil {
		c.closeVoters()
		return err
	}
	for _, m := range p.Members() {
		if err := add(m.Name, m.Ontology.Axioms()); err != nil {
			c.closeVoters()
			return err
		}
	}
	c.logger.Debug("support checker ready", "voters", len(c.voters), "alignment", alignment.Len())
	return nil
}

// Status returns one vote per voter, merged profile first.
func (c *SupportChecker) Status(a axiom.Axiom) ([]Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.cache.Get(a.Key()); ok {
		return cached, nil
	}
	out := make([]Status, 0, len(c.voters))
	for _, v := range c.voters {
		st, err := v.status(a)
		if err != nil {
			return nil, fmt.Errorf("support of %s in %s: %w", a, v.name, err)
		}
		out = append(out, st)
	}
	c.cache.Add(a.Key(), out)
	return out, nil
}

// Voters returns the number of bound voters.
func (c *SupportChecker) Voters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.voters)
}

// Fini releases every reasoner and forgets cached votes.
func (c *SupportChecker) Fini() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeVoters()
}

func (c *SupportChecker) closeVoters() error {
	var first error
	for _, v := range c.voters {
		if err := v.sess.Close(); err != nil && first == nil {
			first = err
		}
	}
	c.voters = nil
	c.cache.Purge()
	return first
}

func (v *voter) status(a axiom.Axiom) (st Status, err error) {
	entailed, err := v.sess.IsEntailed(a)
	if err != nil {
		return StatusUnknown, err
	}
	if entailed {
		return StatusEntailed, nil
	}

	v.sess.Add(a)
	defer func() {
		v.sess.Remove(a)
		if ferr := v.sess.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()
	if err := v.sess.Flush(); err != nil {
		return StatusUnknown, err
	}

	consistent, err := v.sess.IsConsistent()
	if err != nil {
		return StatusUnknown, err
	}
	if !consistent {
		return StatusNegationEntailed, nil
	}
	unsat, err := v.countUnsat(a.Signature())
	if err != nil {
		return StatusUnknown, err
	}
	if unsat != v.unsat {
		return StatusNegationEntailed, nil
	}
	return StatusUnknown, nil
}

// countUnsat counts unsatisfiable classes over the voter's vocabulary plus
// the classes in extra.
func (v *voter) countUnsat(extra []axiom.Entity) (int, error) {
	n := 0
	seen := make(map[axiom.Entity]struct{}, len(extra))
	check := func(e axiom.Entity) error {
		sat, err := v.sess.IsSatisfiable(e)
		if err != nil {
			return err
		}
		if !sat {
			n++
		}
		return nil
	}
	for e := range v.classes {
		if err := check(e); err != nil {
			return 0, err
		}
	}
	for _, e := range extra {
		if e.Kind != axiom.ClassKind || e.IsTopOrBottom() {
			continue
		}
		if _, ok := v.classes[e]; ok {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		if err := check(e); err != nil {
			return 0, err
		}
	}
	return n, nil
}
