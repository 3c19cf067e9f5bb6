package facets

import (
	"context"
	"slices"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

// PropertyAccessor reads a property from its struct field.
type PropertyAccessor struct {
	Field string
	Index []int
}

func (f PropertyAccessor) Type() facet.Type { return TypePropertyAccessor }

func (f PropertyAccessor) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(PropertyAccessor)
	return ok && o.Field == f.Field && slices.Equal(o.Index, f.Index)
}

func (f PropertyAccessor) Get(target any) (any, error) {
	return introspect.GetField(target, f.Index)
}

// Setter assigns a property value.
type Setter interface {
	facet.Facet
	Set(ctx context.Context, ic facet.InteractionContext, target, value any) error
}

// FieldSetter assigns the struct field directly.
type FieldSetter struct {
	Index []int
}

func (f FieldSetter) Type() facet.Type { return TypePropertySetter }

func (f FieldSetter) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(FieldSetter)
	return ok && slices.Equal(o.Index, f.Index)
}

func (f FieldSetter) Set(_ context.Context, _ facet.InteractionContext, target, value any) error {
	return introspect.SetField(target, f.Index, value)
}

// SetterViaModify routes assignment through a ModifyXxx method.
type SetterViaModify struct {
	Method MethodRef
}

func (f SetterViaModify) Type() facet.Type { return TypePropertySetter }

func (f SetterViaModify) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(SetterViaModify)
	return ok && o.Method == f.Method
}

func (f SetterViaModify) Set(ctx context.Context, ic facet.InteractionContext, target, value any) error {
	_, err := f.Method.Call(ctx, ic, target, value)
	return err
}

// Clearer resets a property.
type Clearer interface {
	facet.Facet
	Clear(ctx context.Context, ic facet.InteractionContext, target any) error
}

// FieldClear assigns the zero value to the struct field.
type FieldClear struct {
	Index []int
}

func (f FieldClear) Type() facet.Type { return TypePropertyClear }

func (f FieldClear) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(FieldClear)
	return ok && slices.Equal(o.Index, f.Index)
}

func (f FieldClear) Clear(_ context.Context, _ facet.InteractionContext, target any) error {
	return introspect.SetField(target, f.Index, nil)
}

// ClearViaMethod routes clearing through a ClearXxx method.
type ClearViaMethod struct {
	Method MethodRef
}

func (f ClearViaMethod) Type() facet.Type { return TypePropertyClear }

func (f ClearViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(ClearViaMethod)
	return ok && o.Method == f.Method
}

func (f ClearViaMethod) Clear(ctx context.Context, ic facet.InteractionContext, target any) error {
	_, err := f.Method.Call(ctx, ic, target)
	return err
}

// CollectionAccessor reads a collection from its struct field.
type CollectionAccessor struct {
	Field string
	Index []int
}

func (f CollectionAccessor) Type() facet.Type { return TypeCollectionAccessor }

func (f CollectionAccessor) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(CollectionAccessor)
	return ok && o.Field == f.Field && slices.Equal(o.Index, f.Index)
}

func (f CollectionAccessor) Get(target any) (any, error) {
	return introspect.GetField(target, f.Index)
}

// TypeOf records the element type of a collection.
type TypeOf struct {
	Elem introspect.TypeRef
}

func (f TypeOf) Type() facet.Type { return TypeTypeOf }

func (f TypeOf) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(TypeOf)
	return ok && o.Elem.Key == f.Elem.Key
}

// ActionInvocation invokes the action method.
type ActionInvocation struct {
	Method MethodRef
	Params []introspect.TypeRef
	// Returns is the declared result type, zero for actions without one.
	Returns introspect.TypeRef
}

func (f ActionInvocation) Type() facet.Type { return TypeActionInvocation }

func (f ActionInvocation) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(ActionInvocation)
	return ok && o.Method == f.Method && o.Returns.Key == f.Returns.Key &&
		slices.EqualFunc(o.Params, f.Params, func(a, b introspect.TypeRef) bool { return a.Key == b.Key })
}

// Invoke calls the action and returns its single result, nil for actions
// without one.
func (f ActionInvocation) Invoke(ctx context.Context, ic facet.InteractionContext, target any, args []any) (any, error) {
	out, err := f.Method.Call(ctx, ic, target, args...)
	if err != nil {
		return nil, err
	}
	return first(out), nil
}

// LifecycleEvent names an object lifecycle callback.
type LifecycleEvent string

const (
	EventCreated    LifecycleEvent = "Created"
	EventLoaded     LifecycleEvent = "Loaded"
	EventPersisting LifecycleEvent = "Persisting"
	EventPersisted  LifecycleEvent = "Persisted"
	EventUpdating   LifecycleEvent = "Updating"
	EventUpdated    LifecycleEvent = "Updated"
	EventRemoving   LifecycleEvent = "Removing"
)

// LifecycleEvents lists every callback in firing order.
var LifecycleEvents = []LifecycleEvent{
	EventCreated, EventLoaded, EventPersisting, EventPersisted, EventUpdating, EventUpdated, EventRemoving,
}

// LifecycleType returns the facet type of the callback for event.
func LifecycleType(event LifecycleEvent) facet.Type {
	return facet.Type("lifecycle." + string(event))
}

// Lifecycle calls a callback method when the event occurs.
type Lifecycle struct {
	Event  LifecycleEvent
	Method MethodRef
}

func (f Lifecycle) Type() facet.Type { return LifecycleType(f.Event) }

func (f Lifecycle) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Lifecycle)
	return ok && o == f
}

// Fire invokes the callback.
func (f Lifecycle) Fire(ctx context.Context, target any) error {
	_, err := f.Method.Call(ctx, facet.InteractionContext{}, target)
	return err
}
