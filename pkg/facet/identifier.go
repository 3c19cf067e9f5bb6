package facet

import (
	"fmt"
	"strings"
)

// IdentifierKind classifies the model element an Identifier points at.
type IdentifierKind int

const (
	// KindClass identifies a whole type.
	KindClass IdentifierKind = iota
	// KindMember identifies a property, collection or action.
	KindMember
	// KindParameter identifies an action parameter.
	KindParameter
)

// Identifier names a model element: a class, one of its members, or an
// action parameter. Identifiers are comparable and used as map keys.
type Identifier struct {
	Kind   IdentifierKind
	Class  string
	Member string
	Param  int
}

// ClassID identifies a class.
func ClassID(class string) Identifier {
	return Identifier{Kind: KindClass, Class: class}
}

// MemberID identifies a member of class.
func MemberID(class, member string) Identifier {
	return Identifier{Kind: KindMember, Class: class, Member: member}
}

// ParamID identifies the index-th parameter of an action.
func ParamID(class, action string, index int) Identifier {
	return Identifier{Kind: KindParameter, Class: class, Member: action, Param: index}
}

// ClassIdentifier returns the identifier of the owning class.
func (id Identifier) ClassIdentifier() Identifier {
	return ClassID(id.Class)
}

// MemberIdentifier returns the identifier of the owning member, or the class
// identifier for class-level identifiers.
func (id Identifier) MemberIdentifier() Identifier {
	if id.Kind == KindClass {
		return id
	}
	return MemberID(id.Class, id.Member)
}

// String renders Class, Class#member or Class#member[index].
func (id Identifier) String() string {
	switch id.Kind {
	case KindMember:
		return id.Class + "#" + id.Member
	case KindParameter:
		return fmt.Sprintf("%s#%s[%d]", id.Class, id.Member, id.Param)
	default:
		return id.Class
	}
}

// Less orders identifiers by their rendered form, keeping class entries ahead
// of their members.
func (id Identifier) Less(other Identifier) bool {
	if id.Class != other.Class {
		return id.Class < other.Class
	}
	if id.Kind != other.Kind && (id.Kind == KindClass || other.Kind == KindClass) {
		return id.Kind == KindClass
	}
	return strings.Compare(id.String(), other.String()) < 0
}
