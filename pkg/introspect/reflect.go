package introspect

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
	"time"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

// ReflectIntrospector derives classes from runtime types.
type ReflectIntrospector struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewReflectIntrospector constructs an introspector pre-registered with types.
func NewReflectIntrospector(types ...reflect.Type) *ReflectIntrospector {
	r := &ReflectIntrospector{types: make(map[string]reflect.Type)}
	for _, t := range types {
		r.Register(t)
	}
	return r
}

// Register makes t resolvable by key for refs that lost their runtime type.
func (r *ReflectIntrospector) Register(t reflect.Type) TypeRef {
	ref := RefOf(t)
	r.mu.Lock()
	r.types[ref.Key] = deref(t)
	r.mu.Unlock()
	return ref
}

// Classes returns the refs of every registered type, sorted by key.
func (r *ReflectIntrospector) Classes() []TypeRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TypeRef, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, RefOf(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Introspect builds the class for ref.
func (r *ReflectIntrospector) Introspect(_ context.Context, ref TypeRef) (*Class, error) {
	t := ref.Reflect
	if t == nil {
		r.mu.RLock()
		t = r.types[ref.Key]
		r.mu.RUnlock()
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, ref.Key)
	}
	t = deref(t)
	ref = RefOf(t)
	r.mu.Lock()
	r.types[ref.Key] = t
	r.mu.Unlock()
	if t.Kind() != reflect.Struct || ref.Kind != KindStruct {
		class := ValueClass(ref, SourceReflect)
		class.Methods = methodsOf(t)
		return class, nil
	}
	return classOf(t, ref), nil
}

// RefOf returns the reference for a runtime type. A named composite type
// that contains itself, such as type Forest []Forest, is described once: the
// inner occurrence carries the key but no Elem.
func RefOf(t reflect.Type) TypeRef {
	return refOf(t, nil)
}

func refOf(t reflect.Type, visiting map[reflect.Type]bool) TypeRef {
	nillable := false
	if t.Kind() == reflect.Pointer {
		nillable = true
		t = deref(t)
	}
	ref := TypeRef{
		Key:      keyOf(t),
		Name:     nameOf(t),
		Package:  t.PkgPath(),
		Kind:     kindOf(t),
		Nillable: nillable,
		Reflect:  t,
	}
	switch ref.Kind {
	case KindInt, KindUint, KindFloat:
		ref.Bits = t.Bits()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		ref.Nillable = t.Kind() != reflect.Array
		if t.Name() != "" {
			if visiting[t] {
				return ref
			}
			if visiting == nil {
				visiting = make(map[reflect.Type]bool)
			}
			visiting[t] = true
			defer delete(visiting, t)
		}
		elem := refOf(t.Elem(), visiting)
		ref.Elem = &elem
	case reflect.Interface:
		ref.Nillable = true
	}
	return ref
}

// deref strips pointers. It stops at a named pointer type already seen, as
// in type P *P.
func deref(t reflect.Type) reflect.Type {
	var seen map[reflect.Type]bool
	for t.Kind() == reflect.Pointer {
		if t.Name() != "" {
			if seen[t] {
				break
			}
			if seen == nil {
				seen = make(map[reflect.Type]bool)
			}
			seen[t] = true
		}
		t = t.Elem()
	}
	return t
}

func keyOf(t reflect.Type) string {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			return t.Name()
		}
		return t.PkgPath() + "." + t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return keyOf(t.Elem())
	case reflect.Slice, reflect.Array:
		return "[]" + keyOf(deref(t.Elem()))
	case reflect.Map:
		return "map[" + keyOf(t.Key()) + "]" + keyOf(deref(t.Elem()))
	default:
		return t.String()
	}
}

func nameOf(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return "[]" + nameOf(deref(t.Elem()))
	case reflect.Map:
		return "map[" + nameOf(t.Key()) + "]" + nameOf(deref(t.Elem()))
	default:
		return t.String()
	}
}

func kindOf(t reflect.Type) Kind {
	switch {
	case t == timeType:
		return KindTime
	case t == durationType:
		return KindDuration
	case t == errorType:
		return KindError
	}
	switch t.Kind() {
	case reflect.Struct:
		return KindStruct
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Slice, reflect.Array:
		return KindSlice
	case reflect.Map:
		return KindMap
	case reflect.Interface:
		return KindInterface
	case reflect.Func:
		return KindFunc
	default:
		return KindOther
	}
}

func classOf(t reflect.Type, ref TypeRef) *Class {
	class := &Class{Ref: ref, Tags: Tags{}, Source: SourceReflect}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			class.Tags = class.Tags.Merge(ParseTags(string(sf.Tag)))
			continue
		}
		if sf.Anonymous && sf.IsExported() {
			class.Embedded = append(class.Embedded, RefOf(sf.Type))
		}
	}

	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous || sf.Name == "_" {
			continue
		}
		class.Fields = append(class.Fields, Field{
			Name:     sf.Name,
			Type:     RefOf(sf.Type),
			Tags:     ParseTags(string(sf.Tag)),
			Index:    append([]int(nil), sf.Index...),
			Promoted: len(sf.Index) > 1,
		})
	}

	class.Methods = methodsOf(t)
	return class
}

func methodsOf(t reflect.Type) []Method {
	ptr := reflect.PointerTo(t)
	var memberTags map[string]string
	if ptr.Implements(reflect.TypeOf((*MemberTagger)(nil)).Elem()) {
		memberTags = reflect.New(t).Interface().(MemberTagger).MemberTags()
	}
	var methods []Method
	for i := 0; i < ptr.NumMethod(); i++ {
		m := ptr.Method(i)
		if m.Name == MemberTagsMethod {
			continue
		}
		mt := m.Type
		method := Method{Name: m.Name, Variadic: mt.IsVariadic(), Tags: Tags{}}
		for p := 1; p < mt.NumIn(); p++ {
			method.Params = append(method.Params, RefOf(mt.In(p)))
		}
		for o := 0; o < mt.NumOut(); o++ {
			method.Results = append(method.Results, RefOf(mt.Out(o)))
		}
		if raw, ok := memberTags[m.Name]; ok {
			method.Tags = ParseTags(raw)
		}
		methods = append(methods, method)
	}
	return methods
}

// InvocationError reports a failure raised by a domain method, either a
// returned error or a recovered panic.
type InvocationError struct {
	Method string
	Err    error
	Panic  any
}

func (e *InvocationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("invoke %s: panic: %v", e.Method, e.Panic)
	}
	return fmt.Sprintf("invoke %s: %v", e.Method, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Call invokes the named method on target, converting args to the declared
// parameter types. A trailing error result is returned as the error; panics
// are recovered into *InvocationError.
func Call(target any, name string, args ...any) (results []any, err error) {
	if target == nil {
		return nil, fmt.Errorf("invoke %s: nil target", name)
	}
	v := reflect.ValueOf(target)
	m := v.MethodByName(name)
	if !m.IsValid() {
		return nil, fmt.Errorf("invoke %s: method not found on %s", name, v.Type())
	}
	mt := m.Type()
	in, err := convertArgs(name, mt, args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = &InvocationError{Method: name, Panic: r}
		}
	}()

	var out []reflect.Value
	if mt.IsVariadic() {
		out = m.CallSlice(in)
	} else {
		out = m.Call(in)
	}
	if n := len(out); n > 0 && mt.Out(n-1) == errorType {
		if e := out[n-1].Interface(); e != nil {
			return valuesOf(out[:n-1]), &InvocationError{Method: name, Err: e.(error)}
		}
		out = out[:n-1]
	}
	return valuesOf(out), nil
}

func convertArgs(name string, mt reflect.Type, args []any) ([]reflect.Value, error) {
	if len(args) != mt.NumIn() {
		return nil, fmt.Errorf("invoke %s: expected %d arguments, got %d", name, mt.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		cv, err := Coerce(arg, mt.In(i))
		if err != nil {
			return nil, fmt.Errorf("invoke %s: argument %d: %w", name, i, err)
		}
		in[i] = cv
	}
	return in, nil
}

// Coerce converts v to type t: nil becomes the zero value, assignable values
// pass through, numeric kinds convert, and values are wrapped when t is a
// pointer to their type.
func Coerce(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	av := reflect.ValueOf(v)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	if isNumeric(av.Kind()) && isNumeric(t.Kind()) {
		return convertNumber(av, t)
	}
	if av.Kind() == t.Kind() && av.Type().ConvertibleTo(t) {
		return av.Convert(t), nil
	}
	if t.Kind() == reflect.Pointer && av.Type().AssignableTo(t.Elem()) {
		p := reflect.New(t.Elem())
		p.Elem().Set(av)
		return p, nil
	}
	if av.Kind() == reflect.Pointer && !av.IsNil() && av.Elem().Type().AssignableTo(t) {
		return av.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", av.Type(), t)
}

// convertNumber converts between numeric kinds, refusing values the target
// cannot hold exactly in range.
func convertNumber(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	bad := func() (reflect.Value, error) {
		return reflect.Value{}, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, v.Interface(), t)
	}
	switch {
	case v.CanInt():
		i := v.Int()
		switch {
		case out.CanInt():
			if out.OverflowInt(i) {
				return bad()
			}
			out.SetInt(i)
		case out.CanUint():
			if i < 0 || out.OverflowUint(uint64(i)) {
				return bad()
			}
			out.SetUint(uint64(i))
		default:
			if out.OverflowFloat(float64(i)) {
				return bad()
			}
			out.SetFloat(float64(i))
		}
	case v.CanUint():
		u := v.Uint()
		switch {
		case out.CanInt():
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return bad()
			}
			out.SetInt(int64(u))
		case out.CanUint():
			if out.OverflowUint(u) {
				return bad()
			}
			out.SetUint(u)
		default:
			if out.OverflowFloat(float64(u)) {
				return bad()
			}
			out.SetFloat(float64(u))
		}
	default:
		f := v.Float()
		if out.CanFloat() {
			if out.OverflowFloat(f) {
				return bad()
			}
			out.SetFloat(f)
			return out, nil
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return bad()
		}
		switch {
		case out.CanInt():
			if f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
				return bad()
			}
			out.SetInt(int64(f))
		default:
			if f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return bad()
			}
			out.SetUint(uint64(f))
		}
	}
	return out, nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func valuesOf(vs []reflect.Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v.Interface()
	}
	return out
}

// GetField reads the field at index from a struct or pointer to struct.
// Nil embedded pointers along the path yield nil.
func GetField(target any, index []int) (any, error) {
	v, err := structValue(target)
	if err != nil {
		return nil, err
	}
	f, err := v.FieldByIndexErr(index)
	if err != nil {
		return nil, nil
	}
	return f.Interface(), nil
}

// SetField assigns value to the field at index of a pointer to struct.
func SetField(target any, index []int, value any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("set field: target must be a non-nil pointer, got %T", target)
	}
	s := v.Elem()
	if s.Kind() != reflect.Struct {
		return fmt.Errorf("set field: target must point to a struct, got %T", target)
	}
	f, err := s.FieldByIndexErr(index)
	if err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	if !f.CanSet() {
		return fmt.Errorf("set field: field %v not settable", index)
	}
	cv, err := Coerce(value, f.Type())
	if err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	f.Set(cv)
	return nil
}

// New allocates a zero instance of ref and returns a pointer to it.
func New(ref TypeRef) (any, error) {
	if ref.Reflect == nil {
		return nil, fmt.Errorf("%w: %s has no runtime type", ErrUnknownType, ref.Key)
	}
	return reflect.New(deref(ref.Reflect)).Interface(), nil
}

// IsEmpty reports whether v is nil, a nil pointer, or a zero-length
// string, slice or map.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func structValue(target any) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("nil target")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("target must be a struct, got %T", target)
	}
	return v, nil
}
