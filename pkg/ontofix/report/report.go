// Package report turns a detected repair into an explainable, storable
// record.
package report

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/bug"
	"github.com/cognicore/ontofix/pkg/ontofix/detect"
	"github.com/cognicore/ontofix/pkg/ontofix/store"
)

// Builder constructs repair reports
type Builder struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a new report builder
func New() *Builder {
	return &Builder{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Report explains one repair of one ontology.
type Report struct {
	ID        string         `json:"id"`
	Ontology  string         `json:"ontology"`
	Ranker    string         `json:"ranker"`
	Greedy    bool           `json:"greedy"`
	CreatedAt time.Time      `json:"created_at"`
	Repairs   []Repair       `json:"repairs"`
	TotalCost float64        `json:"total_cost"`
	Counts    Counts         `json:"counts"`
	Costs     detect.Summary `json:"cost_summary"`
	Elapsed   time.Duration  `json:"elapsed"`
}

// Repair is one axiom to remove.
type Repair struct {
	Axiom string  `json:"axiom"`
	Cost  float64 `json:"cost"`
	// Unranked marks axioms the ranker could not price; Cost is then 0.
	Unranked  bool     `json:"unranked,omitempty"`
	Listed    string   `json:"listed,omitempty"` // black or white
	Conflicts int      `json:"conflicts"`
	Entities  []string `json:"entities"`
}

// Counts summarizes the bug list the repair was computed for.
type Counts struct {
	Bugs        int            `json:"bugs"`
	MUPS        int            `json:"mups"`
	Considered  int            `json:"considered"`
	Suspected   int            `json:"suspected"`
	WhiteListed int            `json:"white_listed"`
	BlackListed int            `json:"black_listed"`
	ByType      map[string]int `json:"by_type"`
}

// Build creates a report from a detector result.
func (b *Builder) Build(ontology string, bugs *bug.List, res *detect.Result) Report {
	b.mu.Lock()
	now := b.now()
	id := ulid.MustNew(ulid.Timestamp(now), b.entropy).String()
	b.mu.Unlock()

	r := Report{
		ID:        id,
		Ontology:  ontology,
		Ranker:    res.Ranker,
		Greedy:    res.Greedy,
		CreatedAt: now,
		Repairs:   make([]Repair, 0, res.Errors.Len()),
		Counts:    count(bugs),
		Costs:     res.Summary,
		Elapsed:   res.Elapsed,
	}

	for _, a := range res.Errors.Sorted() {
		rep := Repair{Axiom: a.String(), Cost: res.Cost(a)}
		if math.IsInf(rep.Cost, 0) || math.IsNaN(rep.Cost) {
			rep.Cost, rep.Unranked = 0, true
		}
		switch {
		case bugs.IsBlack(a):
			rep.Listed = "black"
		case bugs.IsWhite(a):
			rep.Listed = "white"
		}
		entities := make(map[axiom.Entity]struct{})
		for _, m := range bugs.Containing(a) {
			rep.Conflicts++
			entities[m.Entity()] = struct{}{}
		}
		rep.Entities = sortedNames(entities)
		r.TotalCost += rep.Cost
		r.Repairs = append(r.Repairs, rep)
	}
	return r
}

func count(bugs *bug.List) Counts {
	c := Counts{
		Bugs:        bugs.Len(),
		MUPS:        len(bugs.MUPS()),
		Considered:  len(bugs.Considered()),
		Suspected:   bugs.Suspected().Len(),
		WhiteListed: bugs.WhiteList().Len(),
		BlackListed: bugs.BlackList().Len(),
		ByType:      make(map[string]int),
	}
	for _, m := range bugs.MUPS() {
		c.ByType[m.Type().String()]++
	}
	return c
}

func sortedNames(set map[axiom.Entity]struct{}) []string {
	es := make([]axiom.Entity, 0, len(set))
	for e := range set {
		es = append(es, e)
	}
	slices.SortFunc(es, axiom.Entity.Compare)
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.String()
	}
	return out
}

// Errors returns the repair axioms in text syntax.
func (r Report) Errors() []string {
	out := make([]string, len(r.Repairs))
	for i, rep := range r.Repairs {
		out[i] = rep.Axiom
	}
	return out
}

// Record converts the report into its stored form.
func (r Report) Record() (store.Report, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return store.Report{}, fmt.Errorf("encode report %s: %w", r.ID, err)
	}
	return store.Report{
		ID:        r.ID,
		Ontology:  r.Ontology,
		Ranker:    r.Ranker,
		Greedy:    r.Greedy,
		TotalCost: r.TotalCost,
		Errors:    r.Errors(),
		CreatedAt: r.CreatedAt,
		Body:      string(body),
	}, nil
}

// FromRecord decodes a stored report.
func FromRecord(rec store.Report) (Report, error) {
	var r Report
	if err := json.Unmarshal([]byte(rec.Body), &r); err != nil {
		return Report{}, fmt.Errorf("decode report %s: %w", rec.ID, err)
	}
	return r, nil
}

// WriteText renders the report as an aligned table.
func (r Report) WriteText(w io.Writer) error {
	mode := "exact"
	if r.Greedy {
		mode = "greedy"
	}
	fmt.Fprintf(w, "report %s  ontology=%s  ranker=%s (%s)\n", r.ID, r.Ontology, r.Ranker, mode)
	fmt.Fprintf(w, "bugs=%d mups=%d considered=%d suspected=%d white=%d black=%d\n",
		r.Counts.Bugs, r.Counts.MUPS, r.Counts.Considered, r.Counts.Suspected, r.Counts.WhiteListed, r.Counts.BlackListed)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AXIOM\tCOST\tCONFLICTS\tENTITIES")
	for _, rep := range r.Repairs {
		cost := fmt.Sprintf("%.4g", rep.Cost)
		if rep.Unranked {
			cost = "n/a"
		}
		if rep.Listed != "" {
			cost += " (" + rep.Listed + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%v\n", rep.Axiom, cost, rep.Conflicts, rep.Entities)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total cost %.4g over %d axioms\n", r.TotalCost, len(r.Repairs))
	return err
}
