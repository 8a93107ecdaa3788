// Package profile models the trusted background knowledge an ontology is
// debugged against and the support votes it casts on individual axioms.
package profile

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cognicore/ontofix/pkg/ontofix/axiom"
	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
	"github.com/cognicore/ontofix/pkg/ontofix/ontology"
)

// Member is one named ontology of a profile.
type Member struct {
	Name     string
	Ontology *ontology.Ontology
}

// Profile is a set of trusted ontologies together with their union.
type Profile struct {
	members []Member
	merged  *ontology.Ontology
}

// New builds a profile from its members.
func New(members ...Member) *Profile {
	p := &Profile{merged: ontology.New()}
	for _, m := range members {
		if m.Ontology == nil {
			continue
		}
		p.members = append(p.members, m)
		for _, a := range m.Ontology.Sorted() {
			p.merged.Add(a)
		}
	}
	return p
}

// LoadFiles reads one member per path, named after the file.
func LoadFiles(paths ...string) (*Profile, error) {
	members := make([]Member, 0, len(paths))
	for _, path := range paths {
		ont, err := ontology.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("profile member %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		members = append(members, Member{Name: name, Ontology: ont})
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: profile has no members", internalerr.ErrInvalidInput)
	}
	return New(members...), nil
}

// Members returns the member ontologies in load order.
func (p *Profile) Members() []Member {
	out := make([]Member, len(p.members))
	copy(out, p.members)
	return out
}

// Merged returns the union of all members.
func (p *Profile) Merged() *ontology.Ontology {
	return p.merged
}

// Contains reports whether any member holds a.
func (p *Profile) Contains(a axiom.Axiom) bool {
	return p.merged.Contains(a)
}

// Len returns the number of distinct axioms across members.
func (p *Profile) Len() int {
	return p.merged.Len()
}
