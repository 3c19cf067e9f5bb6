package facets

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"time"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

// ErrNotParseable is returned for kinds without a textual form.
var ErrNotParseable = errors.New("facets: type is not parseable")

// Defaulter supplies the default value of a property or parameter.
type Defaulter interface {
	facet.Facet
	Default(ctx context.Context, ic facet.InteractionContext, target any) (any, error)
}

// DefaultLiteral is a default taken from an annotation.
type DefaultLiteral struct {
	Value any
}

func (f DefaultLiteral) Type() facet.Type { return TypeDefault }

func (f DefaultLiteral) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(DefaultLiteral)
	return ok && reflect.DeepEqual(o.Value, f.Value)
}

func (f DefaultLiteral) Default(context.Context, facet.InteractionContext, any) (any, error) {
	return f.Value, nil
}

// DefaultViaMethod calls a DefaultXxx supporting method.
type DefaultViaMethod struct {
	Method MethodRef
}

func (f DefaultViaMethod) Type() facet.Type { return TypeDefault }

func (f DefaultViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(DefaultViaMethod)
	return ok && o.Method == f.Method
}

func (f DefaultViaMethod) Default(ctx context.Context, ic facet.InteractionContext, target any) (any, error) {
	if target == nil {
		return nil, nil
	}
	out, err := f.Method.Call(ctx, ic, target)
	if err != nil {
		return nil, err
	}
	return first(out), nil
}

// DefaultFromType asks the zero value of a value type for its default
// through the type's Defaulted method.
type DefaultFromType struct {
	Ref    introspect.TypeRef
	Method string
}

func (f DefaultFromType) Type() facet.Type { return TypeDefault }

func (f DefaultFromType) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(DefaultFromType)
	return ok && o.Ref.Key == f.Ref.Key && o.Method == f.Method
}

func (f DefaultFromType) Default(context.Context, facet.InteractionContext, any) (any, error) {
	inst, err := introspect.New(f.Ref)
	if err != nil {
		return nil, err
	}
	out, err := introspect.Call(inst, f.Method)
	if err != nil {
		return nil, err
	}
	return first(out), nil
}

// Defaulted marks a value type that can supply a default for elements of
// that type.
type Defaulted struct {
	Method string
}

func (f Defaulted) Type() facet.Type { return TypeDefaulted }

func (f Defaulted) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Defaulted)
	return ok && o.Method == f.Method
}

// Chooser supplies the permitted values of a property or parameter.
type Chooser interface {
	facet.Facet
	Choices(ctx context.Context, ic facet.InteractionContext, target any) ([]any, error)
}

// ChoicesLiteral is a fixed list from an annotation.
type ChoicesLiteral struct {
	Values []any
}

func (f ChoicesLiteral) Type() facet.Type { return TypeChoices }

func (f ChoicesLiteral) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(ChoicesLiteral)
	return ok && reflect.DeepEqual(o.Values, f.Values)
}

func (f ChoicesLiteral) Choices(context.Context, facet.InteractionContext, any) ([]any, error) {
	return slices.Clone(f.Values), nil
}

// ChoicesViaMethod calls a ChoicesXxx supporting method returning a slice.
type ChoicesViaMethod struct {
	Method MethodRef
}

func (f ChoicesViaMethod) Type() facet.Type { return TypeChoices }

func (f ChoicesViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(ChoicesViaMethod)
	return ok && o.Method == f.Method
}

func (f ChoicesViaMethod) Choices(ctx context.Context, ic facet.InteractionContext, target any) ([]any, error) {
	if target == nil {
		return nil, nil
	}
	out, err := f.Method.Call(ctx, ic, target)
	if err != nil {
		return nil, err
	}
	v := first(out)
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("facets: %s returned %T, want a slice", f.Method.Name, v)
	}
	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}
	return values, nil
}

// Parseable converts text into values of a value type.
type Parseable struct {
	Kind introspect.Kind
	// Bits bounds numeric parsing; zero means 64.
	Bits int
}

// ParseableKind reports whether kind has a textual form.
func ParseableKind(kind introspect.Kind) bool {
	switch kind {
	case introspect.KindString, introspect.KindBool, introspect.KindInt, introspect.KindUint,
		introspect.KindFloat, introspect.KindTime, introspect.KindDuration:
		return true
	}
	return false
}

func (f Parseable) Type() facet.Type { return TypeParseable }

func (f Parseable) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Parseable)
	return ok && o.Kind == f.Kind && o.Bits == f.Bits
}

// Parse converts text. Integers parse to int64, unsigned to uint64 and
// floats to float64, rejecting values that do not fit Bits; callers coerce
// to the declared type.
func (f Parseable) Parse(text string) (any, error) {
	bits := f.Bits
	if bits <= 0 || bits > 64 {
		bits = 64
	}
	switch f.Kind {
	case introspect.KindString:
		return text, nil
	case introspect.KindBool:
		return strconv.ParseBool(text)
	case introspect.KindInt:
		return strconv.ParseInt(text, 10, bits)
	case introspect.KindUint:
		return strconv.ParseUint(text, 10, bits)
	case introspect.KindFloat:
		if bits != 32 {
			bits = 64
		}
		return strconv.ParseFloat(text, bits)
	case introspect.KindTime:
		return time.Parse(time.RFC3339, text)
	case introspect.KindDuration:
		return time.ParseDuration(text)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotParseable, f.Kind)
	}
}

// ValueType marks a class treated as a value.
type ValueType struct {
	Kind introspect.Kind
}

func (f ValueType) Type() facet.Type { return TypeValue }

func (f ValueType) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(ValueType)
	return ok && o.Kind == f.Kind
}
