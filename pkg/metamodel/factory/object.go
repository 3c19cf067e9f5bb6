package factory

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/validation"
)

type base struct {
	name     string
	features FeatureSet
}

func (b base) Name() string             { return b.name }
func (b base) FeatureTypes() FeatureSet { return b.features }

// FallbackFactory installs derived names and plurals so every element has
// one even without annotations.
type FallbackFactory struct{ base }

func NewFallbackFactory() *FallbackFactory {
	return &FallbackFactory{base{"fallback", Features(FeatureObject, FeatureProperty, FeatureCollection, FeatureAction, FeatureParameter)}}
}

func (f *FallbackFactory) ProcessClass(ctx *ClassContext) {
	name := Humanize(ctx.Class.Name())
	ctx.Holder.Add(facets.Named{Name: name, Derived: true})
	ctx.Holder.Add(facets.Plural{Name: pluralize(name), Derived: true})
}

func (f *FallbackFactory) ProcessField(ctx *FieldContext) {
	ctx.Holder.Add(facets.Named{Name: Humanize(ctx.Field.Name), Derived: true})
}

func (f *FallbackFactory) ProcessMethod(ctx *MethodContext) {
	ctx.Holder.Add(facets.Named{Name: Humanize(ctx.Method.Name), Derived: true})
}

func (f *FallbackFactory) ProcessParam(ctx *ParamContext) {
	ctx.Holder.Add(facets.Named{Name: paramName(ctx.Param, ctx.Index), Derived: true})
}

func paramName(ref introspect.TypeRef, index int) string {
	if ref.Package == "" || ref.Name == "" {
		return fmt.Sprintf("Arg %d", index)
	}
	return Humanize(ref.Name)
}

func pluralize(name string) string {
	switch {
	case name == "":
		return ""
	case strings.HasSuffix(name, "y") && len(name) > 1 && !strings.ContainsRune("aeiou", rune(name[len(name)-2])):
		return name[:len(name)-1] + "ies"
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"), strings.HasSuffix(name, "ch"), strings.HasSuffix(name, "sh"):
		return name + "es"
	default:
		return name + "s"
	}
}

// LogicalTypeNameFactory names classes from the objectType annotation, or
// from the last package element and the type name.
type LogicalTypeNameFactory struct{ base }

func NewLogicalTypeNameFactory() *LogicalTypeNameFactory {
	return &LogicalTypeNameFactory{base{"logicalTypeName", Features(FeatureObject)}}
}

func (f *LogicalTypeNameFactory) ProcessClass(ctx *ClassContext) {
	if name, ok := ctx.Class.Tags.Lookup("objectType"); ok {
		if strings.TrimSpace(name) == "" {
			ctx.Fail(validation.SeverityBlock, "objectType annotation must not be empty")
		} else {
			ctx.Holder.Add(facets.LogicalTypeName{Name: name})
			return
		}
	}
	ref := ctx.Class.Ref
	name := ref.Key
	if ref.Package != "" {
		name = path.Base(ref.Package) + "." + ref.Name
	}
	ctx.Holder.Add(facets.LogicalTypeName{Name: name, Derived: true})
}

// ignoredMethods are never actions.
var ignoredMethods = []string{
	"String", "GoString", "Error", "Format",
	"MarshalJSON", "UnmarshalJSON", "MarshalText", "UnmarshalText",
	"MarshalYAML", "UnmarshalYAML", "MarshalBinary", "UnmarshalBinary",
}

// ProgrammaticFactory excludes members tagged ignore or programmatic and
// the standard interface methods.
type ProgrammaticFactory struct{ base }

func NewProgrammaticFactory() *ProgrammaticFactory {
	return &ProgrammaticFactory{base{"programmatic", Features(FeatureObject, FeatureProperty, FeatureCollection)}}
}

func excluded(tags introspect.Tags) bool {
	return tags.Has("ignore") || tags.Has("programmatic")
}

func (f *ProgrammaticFactory) ProcessClass(ctx *ClassContext) {
	for _, name := range ignoredMethods {
		ctx.Remover.Claim(name)
	}
	for _, m := range ctx.Class.Methods {
		if excluded(m.Tags) {
			ctx.Remover.Claim(m.Name)
		}
	}
}

func (f *ProgrammaticFactory) ProcessField(ctx *FieldContext) {
	if excluded(ctx.Field.Tags) {
		ctx.Holder.Add(facets.Programmatic())
	}
}

// LifecycleFactory installs callbacks named after lifecycle events.
type LifecycleFactory struct{ base }

func NewLifecycleFactory() *LifecycleFactory {
	return &LifecycleFactory{base{"lifecycle", Features(FeatureObject)}}
}

func (f *LifecycleFactory) ProcessClass(ctx *ClassContext) {
	for _, event := range facets.LifecycleEvents {
		ref, problem, found := claim(ctx.Remover, string(event), expect{result: resultNone})
		if !found {
			continue
		}
		if problem != "" {
			ctx.Fail(validation.SeverityBlock, "%s", problem)
			continue
		}
		ctx.Holder.Add(facets.Lifecycle{Event: event, Method: ref})
	}
}

// ObjectSupportFactory installs the Title, IconName and Validate methods.
type ObjectSupportFactory struct{ base }

func NewObjectSupportFactory() *ObjectSupportFactory {
	return &ObjectSupportFactory{base{"objectSupport", Features(FeatureObject)}}
}

func (f *ObjectSupportFactory) ProcessClass(ctx *ClassContext) {
	install := func(name string, build func(facets.MethodRef) facet.Facet) {
		ref, problem, found := claim(ctx.Remover, name, expect{result: resultString})
		switch {
		case !found:
		case problem != "":
			ctx.Fail(validation.SeverityBlock, "%s", problem)
		default:
			ctx.Holder.Add(build(ref))
		}
	}
	install("Title", func(ref facets.MethodRef) facet.Facet { return facets.TitleViaMethod{Method: ref} })
	install("IconName", func(ref facets.MethodRef) facet.Facet { return facets.IconName{Method: ref} })
	install(ctx.Naming.Validate, func(ref facets.MethodRef) facet.Facet { return facets.ObjectValidateViaMethod{Method: ref} })
}

// ValueTypeFactory marks value classes and their textual form.
type ValueTypeFactory struct{ base }

func NewValueTypeFactory() *ValueTypeFactory {
	return &ValueTypeFactory{base{"valueType", Features(FeatureObject)}}
}

// DefaultValueMethod is the method a value type declares to supply defaults.
const DefaultValueMethod = "DefaultValue"

func (f *ValueTypeFactory) ProcessClass(ctx *ClassContext) {
	ref := ctx.Class.Ref
	if !ref.IsValue() {
		return
	}
	ctx.Holder.Add(facets.ValueType{Kind: ref.Kind})
	if facets.ParseableKind(ref.Kind) {
		ctx.Holder.Add(facets.Parseable{Kind: ref.Kind, Bits: ref.Bits})
	}
	mref, problem, found := claim(ctx.Remover, DefaultValueMethod, expect{result: resultType, of: ref})
	switch {
	case !found:
	case problem != "":
		ctx.Fail(validation.SeverityBlock, "%s", problem)
	default:
		ctx.Holder.Add(facets.Defaulted{Method: mref.Name})
	}
}

// ImmutableFactory reads the immutable class annotation.
type ImmutableFactory struct{ base }

func NewImmutableFactory() *ImmutableFactory {
	return &ImmutableFactory{base{"immutable", Features(FeatureObject)}}
}

func (f *ImmutableFactory) ProcessClass(ctx *ClassContext) {
	if reason, ok := ctx.Class.Tags.Lookup("immutable"); ok {
		ctx.Holder.Add(facets.Immutable{Reason: reason})
	}
}

// TitleAnnotationFactory composes a title from properties tagged title
// when the class has no Title method.
type TitleAnnotationFactory struct{ base }

func NewTitleAnnotationFactory() *TitleAnnotationFactory {
	return &TitleAnnotationFactory{base{"titleAnnotation", Features(FeatureObject)}}
}

func (f *TitleAnnotationFactory) ProcessClass(ctx *ClassContext) {
	var fields []facets.TitleField
	for i, field := range ctx.Class.Fields {
		seq, ok := field.Tags.Lookup("title")
		if !ok {
			continue
		}
		if seq == "" {
			seq = fmt.Sprint(i + 1)
		}
		fields = append(fields, facets.TitleField{Name: field.Name, Index: field.Index, Sequence: seq})
	}
	if len(fields) == 0 {
		return
	}
	if ctx.Holder.Contains(facets.TypeTitle) {
		ctx.Fail(validation.SeverityWarn, "title annotations ignored, Title method present")
		return
	}
	sortTitleFields(fields)
	ctx.Holder.Add(facets.TitleFromProperties{Fields: fields})
}

func sortTitleFields(fields []facets.TitleField) {
	slices.SortStableFunc(fields, func(a, b facets.TitleField) int {
		return facets.CompareSequence(a.Sequence, b.Sequence)
	})
}
