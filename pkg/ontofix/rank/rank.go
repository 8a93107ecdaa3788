// Package rank scores suspected axioms. A lower cost marks an axiom as a
// better candidate for removal.
package rank

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
	"github.com/cognicore/ontofix/pkg/ontofix/oracle"
	"github.com/cognicore/ontofix/pkg/ontofix/profile"
)

// Ranker assigns costs to axioms. Init and Fini bracket one error search.
type Ranker interface {
	Name() string
	Init(ont *ontology.Ontology, bugs *bug.List) error
	Cost(a axiom.Axiom) (float64, error)
	Fini() error
}

// DefaultEntailedCost is the support weight of one entailing voter.
const DefaultEntailedCost = 1000

// Ranker names accepted by ByName.
const (
	NameShapley               = "shapley-mi"
	NameProfileSupport        = "profile-support"
	NameProfileSupportShapley = "profile-support-shapley"
	NameShapleySupport        = "shapley-support"
	NameInformationContent    = "information-content"
	NameSwoop                 = "swoop"
)

// Names lists every ranker ByName can build, in a stable order.
func Names() []string {
	return []string{
		NameShapley,
		NameProfileSupport,
		NameProfileSupportShapley,
		NameShapleySupport,
		NameInformationContent,
		NameSwoop,
	}
}

var aliases = map[string]string{
	"shapley": NameShapley,
	"support": NameProfileSupport,
	"ic":      NameInformationContent,
}

// fold drops case and the separators that vary between spellings, so
// "ProfileSupport+Shapley", "profile_support_shapley" and
// "profile-support-shapley" compare equal.
func fold(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '+', ' ':
			return -1
		}
		return unicode.ToLower(r)
	}, name)
}

// Canonical resolves case, separators and aliases; ok is false for unknown
// names.
func Canonical(name string) (canonical string, ok bool) {
	norm := fold(name)
	for alias, c := range aliases {
		if fold(alias) == norm {
			return c, true
		}
	}
	for _, n := range Names() {
		if fold(n) == norm {
			return n, true
		}
	}
	return "", false
}

// NeedsProfile reports whether the named ranker votes with profile support.
func NeedsProfile(name string) bool {
	c, _ := Canonical(name)
	switch c {
	case NameProfileSupport, NameProfileSupportShapley, NameShapleySupport:
		return true
	}
	return false
}

// Deps are the collaborators rankers may need.
type Deps struct {
	Factory      oracle.Factory
	Support      profile.StatusSource
	EntailedCost float64
}

// ByName builds the named ranker.
func ByName(name string, deps Deps) (Ranker, error) {
	if deps.EntailedCost == 0 {
		deps.EntailedCost = DefaultEntailedCost
	}
	needSupport := func() error {
		if deps.Support == nil {
			return fmt.Errorf("%w: ranker %s needs a profile support checker", internalerr.ErrInvalidConfig, name)
		}
		return nil
	}
	needFactory := func() error {
		if deps.Factory == nil {
			return fmt.Errorf("%w: ranker %s needs a reasoner factory", internalerr.ErrInvalidConfig, name)
		}
		return nil
	}

	canonical, _ := Canonical(name)
	switch canonical {
	case NameShapley:
		return &ShapleyMI{}, nil
	case NameProfileSupport:
		if err := needSupport(); err != nil {
			return nil, err
		}
		return NewProfileSupport(deps.Support, deps.EntailedCost), nil
	case NameProfileSupportShapley:
		if err := needSupport(); err != nil {
			return nil, err
		}
		return NewProfileSupportShapley(deps.Support, deps.EntailedCost), nil
	case NameShapleySupport:
		if err := needSupport(); err != nil {
			return nil, err
		}
		return NewShapleySupport(deps.Support, deps.EntailedCost), nil
	case NameInformationContent:
		if err := needFactory(); err != nil {
			return nil, err
		}
		return NewInformationContent(deps.Factory), nil
	case NameSwoop:
		if err := needFactory(); err != nil {
			return nil, err
		}
		return NewSwoop(deps.Factory), nil
	default:
		return nil, fmt.Errorf("%w: unknown ranker %q", internalerr.ErrInvalidConfig, name)
	}
}

// ShapleyMI ranks an axiom by the inverse of its Shapley inconsistency
// share: the sum of 1/|M| over every MUPS M containing it.
type ShapleyMI struct {
	bugs *bug.List
}

func (r *ShapleyMI) Name() string { return NameShapley }

func (r *ShapleyMI) Init(_ *ontology.Ontology, bugs *bug.List) error {
	r.bugs = bugs
	return nil
}

func (r *ShapleyMI) Cost(a axiom.Axiom) (float64, error) {
	if r.bugs == nil {
		return 0, fmt.Errorf("%w: ranker not initialized", internalerr.ErrInvalidInput)
	}
	var share float64
	for _, m := range r.bugs.Containing(a) {
		share += 1 / float64(m.Len())
	}
	if share == 0 {
		return math.Inf(1), nil
	}
	return 1 / share, nil
}

func (r *ShapleyMI) Fini() error {
	r.bugs = nil
	return nil
}
