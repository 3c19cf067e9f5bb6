package factory

import (
	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/validation"
)

// installer records malformed supporting methods and installs facets for
// the well-formed ones.
type installer interface {
	Fail(severity validation.Severity, format string, args ...any)
}

func installSupporting(ctx installer, holder *facet.Holder, remover *MethodRemover, name string, e expect, build func(facets.MethodRef) facet.Facet) {
	ref, problem, found := claim(remover, name, e)
	switch {
	case !found:
	case problem != "":
		ctx.Fail(validation.SeverityBlock, "%s", problem)
	default:
		holder.Add(build(ref))
	}
}

// HideMethodFactory installs HideXxx methods.
type HideMethodFactory struct{ base }

func NewHideMethodFactory() *HideMethodFactory {
	return &HideMethodFactory{base{"hideMethod", Members}}
}

func hideFacet(ref facets.MethodRef) facet.Facet { return facets.HideViaMethod{Method: ref} }

func (f *HideMethodFactory) ProcessField(ctx *FieldContext) {
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Hide+ctx.Field.Name, expect{result: resultHide}, hideFacet)
}

func (f *HideMethodFactory) ProcessMethod(ctx *MethodContext) {
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Hide+ctx.Method.Name, expect{result: resultHide}, hideFacet)
}

// DisableMethodFactory installs DisableXxx methods.
type DisableMethodFactory struct{ base }

func NewDisableMethodFactory() *DisableMethodFactory {
	return &DisableMethodFactory{base{"disableMethod", Members}}
}

func disableFacet(ref facets.MethodRef) facet.Facet { return facets.DisableViaMethod{Method: ref} }

func (f *DisableMethodFactory) ProcessField(ctx *FieldContext) {
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Disable+ctx.Field.Name, expect{result: resultString}, disableFacet)
}

func (f *DisableMethodFactory) ProcessMethod(ctx *MethodContext) {
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Disable+ctx.Method.Name, expect{result: resultString}, disableFacet)
}

// ValidateMethodFactory installs ValidateXxx methods for properties, whole
// argument sets and single parameters (ValidateNXxx).
type ValidateMethodFactory struct{ base }

func NewValidateMethodFactory() *ValidateMethodFactory {
	return &ValidateMethodFactory{base{"validateMethod", Features(FeatureProperty, FeatureAction, FeatureParameter)}}
}

func (f *ValidateMethodFactory) ProcessField(ctx *FieldContext) {
	e := expect{params: []introspect.TypeRef{ctx.Field.Type}, result: resultString}
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Validate+ctx.Field.Name, e, func(ref facets.MethodRef) facet.Facet {
		return facets.ValidateViaMethod{Method: ref, Target: facets.ValidateProposed}
	})
}

func (f *ValidateMethodFactory) ProcessMethod(ctx *MethodContext) {
	e := expect{params: ctx.Params(), result: resultString}
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Validate+ctx.Method.Name, e, func(ref facets.MethodRef) facet.Facet {
		return facets.ValidateViaMethod{Method: ref, Target: facets.ValidateArguments}
	})
}

func (f *ValidateMethodFactory) ProcessParam(ctx *ParamContext) {
	e := expect{params: []introspect.TypeRef{ctx.Param}, result: resultString}
	name := ParamMethod(ctx.Naming.Validate, ctx.Index, ctx.Method.Name)
	installSupporting(ctx, ctx.Holder, ctx.Remover, name, e, func(ref facets.MethodRef) facet.Facet {
		return facets.ValidateViaMethod{Method: ref, Target: facets.ValidateProposed}
	})
}

// DefaultMethodFactory installs DefaultXxx and DefaultNXxx methods.
type DefaultMethodFactory struct{ base }

func NewDefaultMethodFactory() *DefaultMethodFactory {
	return &DefaultMethodFactory{base{"defaultMethod", Features(FeatureProperty, FeatureParameter)}}
}

func defaultFacet(ref facets.MethodRef) facet.Facet { return facets.DefaultViaMethod{Method: ref} }

func (f *DefaultMethodFactory) ProcessField(ctx *FieldContext) {
	e := expect{result: resultType, of: ctx.Field.Type}
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Default+ctx.Field.Name, e, defaultFacet)
}

func (f *DefaultMethodFactory) ProcessParam(ctx *ParamContext) {
	e := expect{result: resultType, of: ctx.Param}
	installSupporting(ctx, ctx.Holder, ctx.Remover, ParamMethod(ctx.Naming.Default, ctx.Index, ctx.Method.Name), e, defaultFacet)
}

// ChoicesMethodFactory installs ChoicesXxx and ChoicesNXxx methods.
type ChoicesMethodFactory struct{ base }

func NewChoicesMethodFactory() *ChoicesMethodFactory {
	return &ChoicesMethodFactory{base{"choicesMethod", Features(FeatureProperty, FeatureParameter)}}
}

func choicesFacet(ref facets.MethodRef) facet.Facet { return facets.ChoicesViaMethod{Method: ref} }

func (f *ChoicesMethodFactory) ProcessField(ctx *FieldContext) {
	e := expect{result: resultSliceOf, of: ctx.Field.Type}
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Choices+ctx.Field.Name, e, choicesFacet)
}

func (f *ChoicesMethodFactory) ProcessParam(ctx *ParamContext) {
	e := expect{result: resultSliceOf, of: ctx.Param}
	installSupporting(ctx, ctx.Holder, ctx.Remover, ParamMethod(ctx.Naming.Choices, ctx.Index, ctx.Method.Name), e, choicesFacet)
}

// ModifyClearFactory routes property assignment and clearing through
// ModifyXxx and ClearXxx methods when present.
type ModifyClearFactory struct{ base }

func NewModifyClearFactory() *ModifyClearFactory {
	return &ModifyClearFactory{base{"modifyClear", Features(FeatureProperty)}}
}

func (f *ModifyClearFactory) ProcessField(ctx *FieldContext) {
	modify := expect{params: []introspect.TypeRef{ctx.Field.Type}, result: resultNone}
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Modify+ctx.Field.Name, modify, func(ref facets.MethodRef) facet.Facet {
		return facets.SetterViaModify{Method: ref}
	})
	installSupporting(ctx, ctx.Holder, ctx.Remover, ctx.Naming.Clear+ctx.Field.Name, expect{result: resultNone}, func(ref facets.MethodRef) facet.Facet {
		return facets.ClearViaMethod{Method: ref}
	})
}
