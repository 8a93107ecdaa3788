package axiom

import (
	"cmp"
	"fmt"
)

// EntityKind distinguishes classes from object properties.
type EntityKind uint8

const (
	ClassKind EntityKind = iota
	PropertyKind
)

func (k EntityKind) String() string {
	switch k {
	case ClassKind:
		return "Class"
	case PropertyKind:
		return "Property"
	default:
		return fmt.Sprintf("EntityKind(%d)", uint8(k))
	}
}

// Entity is a named class or object property. Entities are comparable
// values and can be used directly as map keys.
type Entity struct {
	Kind EntityKind
	Name string
}

// Universal entities.
var (
	Thing          = Entity{Kind: ClassKind, Name: "Thing"}
	Nothing        = Entity{Kind: ClassKind, Name: "Nothing"}
	TopProperty    = Entity{Kind: PropertyKind, Name: "topProperty"}
	BottomProperty = Entity{Kind: PropertyKind, Name: "bottomProperty"}
)

// NewClass returns the class entity with the given name.
func NewClass(name string) Entity {
	return Entity{Kind: ClassKind, Name: name}
}

// NewProperty returns the object property entity with the given name.
func NewProperty(name string) Entity {
	return Entity{Kind: PropertyKind, Name: name}
}

// IsTopOrBottom reports whether e is one of the universal entities.
func (e Entity) IsTopOrBottom() bool {
	return e == Thing || e == Nothing || e == TopProperty || e == BottomProperty
}

// Compare orders entities by kind, then name.
func (e Entity) Compare(o Entity) int {
	if c := cmp.Compare(e.Kind, o.Kind); c != 0 {
		return c
	}
	return cmp.Compare(e.Name, o.Name)
}

func (e Entity) String() string {
	return e.Name
}
