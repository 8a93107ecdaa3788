// Package oracle defines the satisfiability and entailment capability the
// debugger consumes. A Reasoner is bound to one working axiom set; changes
// made with Add and Remove become visible to queries only after Flush.
package oracle

import (
	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
)

// Reasoner decides satisfiability and entailment over its working axiom set.
// Implementations are not required to be safe for concurrent use.
type Reasoner interface {
	// Add stages axioms for inclusion in the working set
	Add(axs ...axiom.Axiom)

	// Remove stages axioms for removal from the working set
	Remove(axs ...axiom.Axiom)

	// Flush applies staged changes. Queries issued with pending changes
	// fail with internalerr.ErrNotFlushed.
	Flush() error

	// IsConsistent reports whether the working set has a model
	IsConsistent() (bool, error)

	// IsSatisfiable reports whether e can have an instance
	IsSatisfiable(e axiom.Entity) (bool, error)

	// IsEntailed reports whether every model of the working set satisfies a
	IsEntailed(a axiom.Axiom) (bool, error)

	// Close releases solver resources
	Close() error
}

// Factory creates reasoners bound to an initial axiom set. The returned
// reasoner is already flushed.
type Factory interface {
	New(axs axiom.Set) (Reasoner, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(axs axiom.Set) (Reasoner, error)

func (f FactoryFunc) New(axs axiom.Set) (Reasoner, error) {
	return f(axs)
}

// Unsatisfiable returns the members of candidates that r proves empty.
func Unsatisfiable(r Reasoner, candidates []axiom.Entity) ([]axiom.Entity, error) {
	var out []axiom.Entity
	for _, e := range candidates {
		sat, err := r.IsSatisfiable(e)
		if err != nil {
			return nil, err
		}
		if !sat {
			out = append(out, e)
		}
	}
	return out, nil
}
