// Package introspect produces the structural description of Go types that
// facet factories work from. A Class lists a type's annotations (struct
// tags), exported fields and exported methods with their signatures; it can
// be derived at runtime through reflection or statically from source.
package introspect

import (
	"context"
	"errors"
	"reflect"
	"strings"
)

// Kind is the coarse category of a referenced type.
type Kind string

const (
	KindStruct    Kind = "struct"
	KindString    Kind = "string"
	KindBool      Kind = "bool"
	KindInt       Kind = "int"
	KindUint      Kind = "uint"
	KindFloat     Kind = "float"
	KindTime      Kind = "time"
	KindDuration  Kind = "duration"
	KindSlice     Kind = "slice"
	KindMap       Kind = "map"
	KindInterface Kind = "interface"
	KindError     Kind = "error"
	KindFunc      Kind = "func"
	KindOther     Kind = "other"
)

// Keys of types with a fixed meaning for supporting-method signatures.
const (
	InteractionContextKey = "metacore/pkg/facet.InteractionContext"
	ContextKey            = "context.Context"
	TimeKey               = "time.Time"
	DurationKey           = "time.Duration"
)

// TypeRef references a type. Pointers are folded into the element type with
// Nillable set, so *Customer and Customer share a Key.
type TypeRef struct {
	Key      string
	Name     string
	Package  string
	Kind     Kind
	Elem     *TypeRef
	Nillable bool
	// Bits is the width of int, uint and float kinds.
	Bits int
	// Reflect is the concrete runtime type, nil for source-derived refs.
	Reflect reflect.Type
}

// IsZero reports whether the reference is unset.
func (r TypeRef) IsZero() bool {
	return r.Key == ""
}

// IsValue reports whether the type is treated as a value rather than an
// object with members.
func (r TypeRef) IsValue() bool {
	switch r.Kind {
	case KindStruct, KindSlice, KindMap, KindInterface, KindFunc, KindError:
		return false
	default:
		return true
	}
}

// IsCollection reports whether the type is a slice or map.
func (r TypeRef) IsCollection() bool {
	return r.Kind == KindSlice || r.Kind == KindMap
}

// Is reports whether r refers to key.
func (r TypeRef) Is(key string) bool {
	return r.Key == key
}

// SameType reports whether two refs denote the same type, ignoring pointers.
func (r TypeRef) SameType(other TypeRef) bool {
	if r.Key != other.Key {
		return false
	}
	if r.Elem == nil || other.Elem == nil {
		return r.Elem == nil && other.Elem == nil
	}
	return r.Elem.SameType(*other.Elem)
}

func (r TypeRef) String() string {
	if r.Nillable && !r.IsCollection() && r.Kind != KindInterface {
		return "*" + r.Name
	}
	return r.Name
}

// Field is an exported struct field.
type Field struct {
	Name string
	Type TypeRef
	Tags Tags
	// Index is the reflect field index path, including promoted fields.
	Index []int
	// Promoted marks fields inherited from an embedded struct.
	Promoted bool
}

// Method is an exported method of the pointer method set.
type Method struct {
	Name     string
	Params   []TypeRef
	Results  []TypeRef
	Variadic bool
	Tags     Tags
}

// ParamsAfterContext returns the parameters following an optional leading
// InteractionContext or context.Context, and whether one was present.
func (m Method) ParamsAfterContext() ([]TypeRef, bool) {
	if len(m.Params) > 0 && (m.Params[0].Is(InteractionContextKey) || m.Params[0].Is(ContextKey)) {
		return m.Params[1:], true
	}
	return m.Params, false
}

// Source identifies how a Class was produced.
type Source string

const (
	// SourceReflect classes can be invoked against live instances.
	SourceReflect Source = "reflect"
	// SourceStatic classes come from source analysis and cannot be invoked.
	SourceStatic Source = "source"
)

// Class is the structural description of one type.
type Class struct {
	Ref      TypeRef
	Tags     Tags
	Fields   []Field
	Methods  []Method
	Embedded []TypeRef
	Source   Source
}

// Key returns the class key.
func (c *Class) Key() string {
	return c.Ref.Key
}

// Name returns the short type name.
func (c *Class) Name() string {
	return c.Ref.Name
}

// Method returns the named method.
func (c *Class) Method(name string) (Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Field returns the named field.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// MethodsWithPrefix returns methods whose name starts with prefix.
func (c *Class) MethodsWithPrefix(prefix string) []Method {
	var out []Method
	for _, m := range c.Methods {
		if strings.HasPrefix(m.Name, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Introspector produces Class descriptions for type references.
type Introspector interface {
	Introspect(ctx context.Context, ref TypeRef) (*Class, error)
}

// ErrUnknownType is returned when an introspector cannot resolve a reference.
var ErrUnknownType = errors.New("introspect: unknown type")

// ErrOutOfRange is returned when a number does not fit the target type.
var ErrOutOfRange = errors.New("introspect: value out of range")

// ValueClass describes a value type, which has no members.
func ValueClass(ref TypeRef, source Source) *Class {
	return &Class{Ref: ref, Tags: Tags{}, Source: source}
}
