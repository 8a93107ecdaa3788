package axiom

import (
	"maps"
	"strings"
)

// Set is an unordered collection of axioms keyed by identity.
type Set map[string]Axiom

// NewSet returns a set holding axs.
func NewSet(axs ...Axiom) Set {
	s := make(Set, len(axs))
	for _, a := range axs {
		s[a.key] = a
	}
	return s
}

// Add inserts a and reports whether it was absent.
func (s Set) Add(a Axiom) bool {
	if _, ok := s[a.key]; ok {
		return false
	}
	s[a.key] = a
	return true
}

// AddAll inserts every axiom of axs.
func (s Set) AddAll(axs ...Axiom) {
	for _, a := range axs {
		s[a.key] = a
	}
}

// Remove deletes a and reports whether it was present.
func (s Set) Remove(a Axiom) bool {
	if _, ok := s[a.key]; !ok {
		return false
	}
	delete(s, a.key)
	return true
}

// Contains reports whether a is in the set.
func (s Set) Contains(a Axiom) bool {
	_, ok := s[a.key]
	return ok
}

func (s Set) Len() int { return len(s) }

// Clone returns an independent copy.
func (s Set) Clone() Set {
	if s == nil {
		return Set{}
	}
	return maps.Clone(s)
}

// Sorted returns the members in canonical order.
func (s Set) Sorted() []Axiom {
	out := make([]Axiom, 0, len(s))
	for _, a := range s {
		out = append(out, a)
	}
	Sort(out)
	return out
}

// ContainsAll reports whether o is a subset of s.
func (s Set) ContainsAll(o Set) bool {
	if len(o) > len(s) {
		return false
	}
	for k := range o {
		if _, ok := s[k]; !ok {
			return false
		}
	}
	return true
}

// Intersects reports whether s and o share a member.
func (s Set) Intersects(o Set) bool {
	small, large := s, o
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}

// Union returns a new set with the members of both.
func (s Set) Union(o Set) Set {
	out := s.Clone()
	maps.Copy(out, o)
	return out
}

// Minus returns a new set with the members of s not in o.
func (s Set) Minus(o Set) Set {
	out := make(Set, len(s))
	for k, a := range s {
		if _, ok := o[k]; !ok {
			out[k] = a
		}
	}
	return out
}

// Equal reports whether both sets have the same members.
func (s Set) Equal(o Set) bool {
	return len(s) == len(o) && s.ContainsAll(o)
}

// Key is a canonical string identifying the set contents.
func (s Set) Key() string {
	axs := s.Sorted()
	keys := make([]string, len(axs))
	for i, a := range axs {
		keys[i] = a.key
	}
	return strings.Join(keys, "\n")
}
