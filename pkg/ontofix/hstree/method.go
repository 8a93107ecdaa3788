package hstree

import (
	"fmt"
	"strings"

	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
)

// Method selects how the hitting-set tree is scheduled. Every method yields
// the same MUPS and diagnosis sets on a deterministic oracle.
type Method int

const (
	// DepthFirst walks the tree on one working ontology, removing axioms
	// on the way down and restoring them on backtrack.
	DepthFirst Method = iota
	// ParallelDepthFirst expands the children of each node concurrently,
	// each child on its own ontology copy.
	ParallelDepthFirst
	// HSTree expands the tree one generation at a time.
	HSTree
	// ParallelHSTree expands every node of a generation concurrently.
	ParallelHSTree
)

var methodNames = []string{"df-hitset", "parallel-df-hitset", "hitset", "parallel-hitset"}

func (m Method) String() string {
	if m >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod resolves a method name. Underscores and case are ignored.
func ParseMethod(s string) (Method, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, n := range methodNames {
		if n == norm {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown bug finder method %q", internalerr.ErrInvalidConfig, s)
}

func (m Method) parallel() bool {
	return m == ParallelDepthFirst || m == ParallelHSTree
}
