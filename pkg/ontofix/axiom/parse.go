package axiom

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/cognicore/ontofix/pkg/ontofix/internalerr"
)

// ParseAll reads one axiom per line.
// Format:
//
//	subclass(Dog, Animal)
//	subclass(Dog, not(Cat))
//	equivalent(Pet, and(Animal, Owned))
//	disjoint(Animal, Plant, Mineral)
//	subproperty(hasMother, hasParent)
//	domain(hasParent, Person)
//	# comments
func ParseAll(r io.Reader) ([]Axiom, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0

	var out []Axiom
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		a, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		out = append(out, a)
	}

	return out, scanner.Err()
}

// Parse reads a single axiom.
func Parse(line string) (Axiom, error) {
	p := &parser{src: line}
	t, err := p.term()
	if err != nil {
		return Axiom{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Axiom{}, p.errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return t.axiom()
}

// term is the untyped parse tree: a name with optional arguments.
type term struct {
	name  string
	args  []term
	apply bool
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: col %d: %s", internalerr.ErrInvalidInput, p.pos+1, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) term() (term, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '(' || c == ')' || c == ',' || unicode.IsSpace(rune(c)) {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return term{}, p.errorf("expected name")
	}
	t := term{name: p.src[start:p.pos]}

	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '(' {
		return t, nil
	}
	p.pos++
	t.apply = true
	for {
		arg, err := p.term()
		if err != nil {
			return term{}, err
		}
		t.args = append(t.args, arg)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return term{}, p.errorf("unclosed parenthesis")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return t, nil
		default:
			return term{}, p.errorf("expected ',' or ')'")
		}
	}
}

func (t term) axiom() (Axiom, error) {
	if !t.apply {
		return Axiom{}, fmt.Errorf("%w: %q is not an axiom", internalerr.ErrInvalidInput, t.name)
	}
	arity := func(lo, hi int) error {
		if len(t.args) < lo || (hi > 0 && len(t.args) > hi) {
			return fmt.Errorf("%w: %s: wrong number of arguments (%d)", internalerr.ErrInvalidInput, t.name, len(t.args))
		}
		return nil
	}

	switch strings.ToLower(t.name) {
	case "subclass":
		if err := arity(2, 2); err != nil {
			return Axiom{}, err
		}
		xs, err := classExprs(t.args)
		if err != nil {
			return Axiom{}, err
		}
		return SubClassOf(xs[0], xs[1]), nil
	case "equivalent":
		if err := arity(2, 0); err != nil {
			return Axiom{}, err
		}
		xs, err := classExprs(t.args)
		if err != nil {
			return Axiom{}, err
		}
		return EquivalentClasses(xs...), nil
	case "disjoint":
		if err := arity(2, 0); err != nil {
			return Axiom{}, err
		}
		xs, err := classExprs(t.args)
		if err != nil {
			return Axiom{}, err
		}
		return DisjointClasses(xs...), nil
	case "subproperty":
		if err := arity(2, 2); err != nil {
			return Axiom{}, err
		}
		ps, err := properties(t.args)
		if err != nil {
			return Axiom{}, err
		}
		return SubPropertyOf(ps[0], ps[1]), nil
	case "disjointproperties":
		if err := arity(2, 0); err != nil {
			return Axiom{}, err
		}
		ps, err := properties(t.args)
		if err != nil {
			return Axiom{}, err
		}
		return DisjointProperties(ps...), nil
	case "domain", "range":
		if err := arity(2, 2); err != nil {
			return Axiom{}, err
		}
		ps, err := properties(t.args[:1])
		if err != nil {
			return Axiom{}, err
		}
		c, err := t.args[1].expr()
		if err != nil {
			return Axiom{}, err
		}
		if strings.EqualFold(t.name, "domain") {
			return Domain(ps[0], c), nil
		}
		return Range(ps[0], c), nil
	default:
		return Axiom{}, fmt.Errorf("%w: unknown axiom %q", internalerr.ErrInvalidInput, t.name)
	}
}

func (t term) expr() (Expr, error) {
	if !t.apply {
		return Class(t.name), nil
	}
	xs, err := classExprs(t.args)
	if err != nil {
		return Expr{}, err
	}
	switch strings.ToLower(t.name) {
	case "not":
		if len(xs) != 1 {
			return Expr{}, fmt.Errorf("%w: not takes one argument", internalerr.ErrInvalidInput)
		}
		return Not(xs[0]), nil
	case "and":
		return And(xs...), nil
	case "or":
		return Or(xs...), nil
	default:
		return Expr{}, fmt.Errorf("%w: unknown class constructor %q", internalerr.ErrInvalidInput, t.name)
	}
}

func classExprs(ts []term) ([]Expr, error) {
	out := make([]Expr, len(ts))
	for i, t := range ts {
		x, err := t.expr()
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

func properties(ts []term) ([]Entity, error) {
	out := make([]Entity, len(ts))
	for i, t := range ts {
		if t.apply {
			return nil, fmt.Errorf("%w: %q: property expected", internalerr.ErrInvalidInput, t.name)
		}
		out[i] = NewProperty(t.name)
	}
	return out, nil
}
