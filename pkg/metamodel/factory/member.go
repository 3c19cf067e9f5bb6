package factory

import (
	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/validation"
)

// PropertyAccessorFactory installs field-backed read, write and clear.
type PropertyAccessorFactory struct{ base }

func NewPropertyAccessorFactory() *PropertyAccessorFactory {
	return &PropertyAccessorFactory{base{"propertyAccessor", Features(FeatureProperty)}}
}

func (f *PropertyAccessorFactory) ProcessField(ctx *FieldContext) {
	ctx.Holder.Add(facets.PropertyAccessor{Field: ctx.Field.Name, Index: ctx.Field.Index})
	ctx.Holder.Add(facets.FieldSetter{Index: ctx.Field.Index})
	ctx.Holder.Add(facets.FieldClear{Index: ctx.Field.Index})
}

// CollectionAccessorFactory installs field-backed collection access and the
// element type.
type CollectionAccessorFactory struct{ base }

func NewCollectionAccessorFactory() *CollectionAccessorFactory {
	return &CollectionAccessorFactory{base{"collectionAccessor", Features(FeatureCollection)}}
}

func (f *CollectionAccessorFactory) ProcessField(ctx *FieldContext) {
	ctx.Holder.Add(facets.CollectionAccessor{Field: ctx.Field.Name, Index: ctx.Field.Index})
	if elem := ctx.Field.Type.Elem; elem != nil {
		ctx.Holder.Add(facets.TypeOf{Elem: *elem})
	}
}

// ActionInvocationFactory installs the invocation of action methods.
type ActionInvocationFactory struct{ base }

func NewActionInvocationFactory() *ActionInvocationFactory {
	return &ActionInvocationFactory{base{"actionInvocation", Features(FeatureAction)}}
}

func (f *ActionInvocationFactory) ProcessMethod(ctx *MethodContext) {
	m := ctx.Method
	if m.Variadic {
		ctx.Fail(validation.SeverityBlock, "variadic actions are not supported")
	}
	results := m.Results
	if n := len(results); n > 0 && results[n-1].Kind == introspect.KindError {
		results = results[:n-1]
	}
	if len(results) > 1 {
		ctx.Fail(validation.SeverityBlock, "actions may return at most one value besides error, found %d", len(results))
	}
	inv := facets.ActionInvocation{
		Method: facets.MethodRef{Name: m.Name, Context: contextParam(m)},
		Params: ctx.Params(),
	}
	if len(results) > 0 {
		inv.Returns = results[0]
		if results[0].IsCollection() && results[0].Elem != nil {
			ctx.Holder.Add(facets.TypeOf{Elem: *results[0].Elem})
		}
	}
	ctx.Holder.Add(inv)
}

// MandatoryDerivedFactory makes non-pointer properties and parameters
// mandatory. Booleans always hold a value and are optional.
type MandatoryDerivedFactory struct{ base }

func NewMandatoryDerivedFactory() *MandatoryDerivedFactory {
	return &MandatoryDerivedFactory{base{"mandatoryDerived", Features(FeatureProperty, FeatureParameter)}}
}

func optionalType(ref introspect.TypeRef) bool {
	return ref.Nillable || ref.Kind == introspect.KindBool
}

func (f *MandatoryDerivedFactory) ProcessField(ctx *FieldContext) {
	ctx.Holder.Add(facets.Mandatory{Optional: optionalType(ctx.Field.Type), Derived: true})
}

func (f *MandatoryDerivedFactory) ProcessParam(ctx *ParamContext) {
	ctx.Holder.Add(facets.Mandatory{Optional: optionalType(ctx.Param), Derived: true})
}

// DefaultDerivedFromTypeFactory takes the default of a property or
// parameter from its value type when nothing else supplied one.
type DefaultDerivedFromTypeFactory struct{ base }

func NewDefaultDerivedFromTypeFactory() *DefaultDerivedFromTypeFactory {
	return &DefaultDerivedFromTypeFactory{base{"defaultDerivedFromType", Features(FeatureProperty, FeatureParameter)}}
}

func (f *DefaultDerivedFromTypeFactory) ProcessField(ctx *FieldContext) {
	if fct, ok := f.derive(ctx.Env, ctx.Holder.Contains(facets.TypeDefault), ctx.Field.Type); ok {
		ctx.Holder.Add(fct)
	}
}

func (f *DefaultDerivedFromTypeFactory) ProcessParam(ctx *ParamContext) {
	if fct, ok := f.derive(ctx.Env, ctx.Holder.Contains(facets.TypeDefault), ctx.Param); ok {
		ctx.Holder.Add(fct)
	}
}

func (f *DefaultDerivedFromTypeFactory) derive(env *Env, present bool, ref introspect.TypeRef) (facets.DefaultFromType, bool) {
	if present || env.Types == nil || !ref.IsValue() || ref.Package == "" {
		return facets.DefaultFromType{}, false
	}
	holder, err := env.Types.ClassFacets(env.Ctx, ref)
	if err != nil {
		return facets.DefaultFromType{}, false
	}
	d, ok := facet.Lookup[facets.Defaulted](holder, facets.TypeDefaulted)
	if !ok {
		return facets.DefaultFromType{}, false
	}
	return facets.DefaultFromType{Ref: ref, Method: d.Method}, true
}

// PublishingFromConfigFactory applies the configured publishing default to
// objects and actions that were not annotated.
type PublishingFromConfigFactory struct {
	base
	Enabled bool
}

func NewPublishingFromConfigFactory(enabled bool) *PublishingFromConfigFactory {
	return &PublishingFromConfigFactory{base: base{"publishingFromConfig", Features(FeatureObject, FeatureAction)}, Enabled: enabled}
}

func (f *PublishingFromConfigFactory) ProcessClass(ctx *ClassContext) {
	if ctx.Class.Ref.IsValue() || ctx.Holder.Contains(facets.TypePublishing) {
		return
	}
	ctx.Holder.Add(facets.Publishing{Enabled: f.Enabled, Derived: true})
}

func (f *PublishingFromConfigFactory) ProcessMethod(ctx *MethodContext) {
	if ctx.Holder.Contains(facets.TypePublishing) {
		return
	}
	ctx.Holder.Add(facets.Publishing{Enabled: f.Enabled, Derived: true})
}

// DisabledFromImmutableFactory disables the properties of immutable classes
// unless they were disabled explicitly.
type DisabledFromImmutableFactory struct{ base }

func NewDisabledFromImmutableFactory() *DisabledFromImmutableFactory {
	return &DisabledFromImmutableFactory{base{"disabledFromImmutable", Features(FeatureProperty, FeatureCollection)}}
}

func (f *DisabledFromImmutableFactory) ProcessField(ctx *FieldContext) {
	if ctx.Holder.Contains(facets.TypeDisabled) {
		return
	}
	immutable, ok := facet.Lookup[facets.Immutable](ctx.ClassHolder, facets.TypeImmutable)
	if !ok {
		return
	}
	ctx.Holder.Add(facets.Disabled{Reason: immutable.DisabledReason(), Derived: true})
}
