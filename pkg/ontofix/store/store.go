package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/mups"
)

// Store persists what one debugging pass learns so the next pass can start
// from it.
type Store interface {
	Close() error

	// Suspected axiom caches, one per ontology name
	SaveSuspected(ctx context.Context, ontology string, axioms []string) error
	LoadSuspected(ctx context.Context, ontology string) ([]string, bool, error)

	// MUPS
	UpsertMUPS(ctx context.Context, ontology string, ms []MUPS) error
	GetMUPS(ctx context.Context, ontology string) ([]MUPS, error)

	// Repair reports
	UpsertReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, id string) (Report, error)
	GetReports(ctx context.Context, ontology string, k int) ([]Report, error)
}

// MUPS is a stored conflict set. Axioms are in text syntax.
type MUPS struct {
	Entity string
	Kind   string // class or property
	Type   string
	Axioms []string
}

// Key identifies the record within one ontology.
func (m MUPS) Key() string {
	return m.Kind + ":" + m.Entity + "|" + strings.Join(m.Axioms, "|")
}

// Report is a stored repair report.
type Report struct {
	ID        string
	Ontology  string
	Ranker    string
	Greedy    bool
	TotalCost float64
	Errors    []string
	CreatedAt time.Time
	Body      string // JSON-encoded report
}

// FromMUPS converts a conflict set into its stored form.
func FromMUPS(m mups.MUPS) MUPS {
	axs := m.Axioms()
	rec := MUPS{
		Entity: m.Entity().Name,
		Kind:   "class",
		Type:   m.Type().String(),
		Axioms: make([]string, len(axs)),
	}
	if m.Entity().Kind == axiom.PropertyKind {
		rec.Kind = "property"
	}
	for i, a := range axs {
		rec.Axioms[i] = a.String()
	}
	return rec
}

// Decode parses a stored record back into a conflict set.
func (m MUPS) Decode() (mups.MUPS, error) {
	var e axiom.Entity
	switch m.Kind {
	case "class":
		e = axiom.NewClass(m.Entity)
	case "property":
		e = axiom.NewProperty(m.Entity)
	default:
		return mups.MUPS{}, fmt.Errorf("%w: entity kind %q", internalerr.ErrInvalidInput, m.Kind)
	}
	set := axiom.NewSet()
	for _, line := range m.Axioms {
		a, err := axiom.Parse(line)
		if err != nil {
			return mups.MUPS{}, fmt.Errorf("mups of %s: %w", m.Entity, err)
		}
		set.Add(a)
	}
	if set.Len() == 0 {
		return mups.MUPS{}, fmt.Errorf("%w: empty mups for %s", internalerr.ErrInvalidInput, m.Entity)
	}
	return mups.New(e, mups.ParseType(m.Type), set), nil
}

// DecodeAxioms parses stored axiom lines.
func DecodeAxioms(lines []string) (axiom.Set, error) {
	out := axiom.NewSet()
	for _, line := range lines {
		a, err := axiom.Parse(line)
		if err != nil {
			return nil, err
		}
		out.Add(a)
	}
	return out, nil
}

// EncodeAxioms renders axs in canonical order.
func EncodeAxioms(axs axiom.Set) []string {
	sorted := axs.Sorted()
	out := make([]string, len(sorted))
	for i, a := range sorted {
		out[i] = a.String()
	}
	return out
}
