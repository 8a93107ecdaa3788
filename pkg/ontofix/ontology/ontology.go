// Package ontology holds an indexed, mutable collection of axioms and the
// signature queries the debugger needs: defining axioms of an entity, axioms
// referencing an entity, and module extraction.
//
// An Ontology is not safe for concurrent mutation; branches that need their
// own working copy call Clone or Without.
package ontology

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
)

// Ontology is a set of axioms indexed by signature.
type Ontology struct {
	axioms   axiom.Set
	byEntity map[axiom.Entity]map[string]struct{}
}

// New creates an ontology holding axs.
func New(axs ...axiom.Axiom) *Ontology {
	o := &Ontology{
		axioms:   make(axiom.Set, len(axs)),
		byEntity: make(map[axiom.Entity]map[string]struct{}),
	}
	for _, a := range axs {
		o.Add(a)
	}
	return o
}

// FromSet creates an ontology holding the members of s.
func FromSet(s axiom.Set) *Ontology {
	o := New()
	for _, a := range s {
		o.Add(a)
	}
	return o
}

// Load parses the axiom text syntax from r.
func Load(r io.Reader) (*Ontology, error) {
	axs, err := axiom.ParseAll(r)
	if err != nil {
		return nil, err
	}
	return New(axs...), nil
}

// LoadFile parses the axiom file at path.
func LoadFile(path string) (*Ontology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ontology: %w", err)
	}
	defer f.Close()

	o, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return o, nil
}

// WriteTo renders the axioms in canonical order, one per line.
func (o *Ontology) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, a := range o.axioms.Sorted() {
		n, err := fmt.Fprintln(w, a.String())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Add inserts a and reports whether it was absent.
func (o *Ontology) Add(a axiom.Axiom) bool {
	if !o.axioms.Add(a) {
		return false
	}
	for _, e := range a.Signature() {
		keys := o.byEntity[e]
		if keys == nil {
			keys = make(map[string]struct{})
			o.byEntity[e] = keys
		}
		keys[a.Key()] = struct{}{}
	}
	return true
}

// Remove deletes a and reports whether it was present.
func (o *Ontology) Remove(a axiom.Axiom) bool {
	if !o.axioms.Remove(a) {
		return false
	}
	for _, e := range a.Signature() {
		keys := o.byEntity[e]
		delete(keys, a.Key())
		if len(keys) == 0 {
			delete(o.byEntity, e)
		}
	}
	return true
}

// Contains reports whether a is in the ontology.
func (o *Ontology) Contains(a axiom.Axiom) bool {
	return o.axioms.Contains(a)
}

// Len returns the number of axioms.
func (o *Ontology) Len() int {
	return o.axioms.Len()
}

// Axioms returns a copy of the axiom set.
func (o *Ontology) Axioms() axiom.Set {
	return o.axioms.Clone()
}

// Sorted returns the axioms in canonical order.
func (o *Ontology) Sorted() []axiom.Axiom {
	return o.axioms.Sorted()
}

// Clone returns an independent copy.
func (o *Ontology) Clone() *Ontology {
	c := &Ontology{
		axioms:   o.axioms.Clone(),
		byEntity: make(map[axiom.Entity]map[string]struct{}, len(o.byEntity)),
	}
	for e, keys := range o.byEntity {
		cp := make(map[string]struct{}, len(keys))
		for k := range keys {
			cp[k] = struct{}{}
		}
		c.byEntity[e] = cp
	}
	return c
}

// Without returns a copy with the members of removed taken out.
func (o *Ontology) Without(removed axiom.Set) *Ontology {
	c := o.Clone()
	for _, a := range removed {
		c.Remove(a)
	}
	return c
}

// Signature returns every entity mentioned by some axiom, sorted.
func (o *Ontology) Signature() []axiom.Entity {
	out := make([]axiom.Entity, 0, len(o.byEntity))
	for e := range o.byEntity {
		out = append(out, e)
	}
	slices.SortFunc(out, axiom.Entity.Compare)
	return out
}

// Classes returns the named classes of the signature, excluding Thing and Nothing.
func (o *Ontology) Classes() []axiom.Entity {
	return o.entitiesOf(axiom.ClassKind)
}

// Properties returns the object properties of the signature, excluding the
// universal properties.
func (o *Ontology) Properties() []axiom.Entity {
	return o.entitiesOf(axiom.PropertyKind)
}

func (o *Ontology) entitiesOf(kind axiom.EntityKind) []axiom.Entity {
	var out []axiom.Entity
	for _, e := range o.Signature() {
		if e.Kind == kind && !e.IsTopOrBottom() {
			out = append(out, e)
		}
	}
	return out
}

// Referencing returns the axioms mentioning e, sorted.
func (o *Ontology) Referencing(e axiom.Entity) []axiom.Axiom {
	keys := o.byEntity[e]
	out := make([]axiom.Axiom, 0, len(keys))
	for k := range keys {
		out = append(out, o.axioms[k])
	}
	axiom.Sort(out)
	return out
}

// Defining returns the defining axioms of e, sorted.
func (o *Ontology) Defining(e axiom.Entity) []axiom.Axiom {
	var out []axiom.Axiom
	for _, a := range o.Referencing(e) {
		if a.Defines(e) {
			out = append(out, a)
		}
	}
	return out
}

// Intersecting returns the axioms whose signature shares an entity with sig.
func (o *Ontology) Intersecting(sig []axiom.Entity) axiom.Set {
	out := make(axiom.Set)
	for _, e := range sig {
		for k := range o.byEntity[e] {
			out[k] = o.axioms[k]
		}
	}
	return out
}

// Module returns the axioms reachable from seed by repeatedly taking every
// axiom that references the current signature and adding that axiom's
// signature. Axioms defining Thing or the top property constrain every
// entity and always belong to the module. The universal entities never
// extend the signature.
func (o *Ontology) Module(seed ...axiom.Entity) axiom.Set {
	module := make(axiom.Set)
	seen := make(map[axiom.Entity]bool)
	var frontier []axiom.Entity
	push := func(e axiom.Entity) {
		if !e.IsTopOrBottom() && !seen[e] {
			seen[e] = true
			frontier = append(frontier, e)
		}
	}
	take := func(a axiom.Axiom) {
		if !module.Add(a) {
			return
		}
		for _, s := range a.Signature() {
			push(s)
		}
	}

	for _, e := range seed {
		push(e)
	}
	for _, u := range []axiom.Entity{axiom.Thing, axiom.TopProperty} {
		for _, a := range o.Defining(u) {
			take(a)
		}
	}

	for len(frontier) > 0 {
		e := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for k := range o.byEntity[e] {
			take(o.axioms[k])
		}
	}
	return module
}
