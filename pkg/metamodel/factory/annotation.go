package factory

import (
	"strconv"
	"strings"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/validation"
)

// ParamTags returns the annotations of parameter index, written on the
// action as key.index, for example regex.0:"\\d+".
func ParamTags(action introspect.Tags, index int) introspect.Tags {
	suffix := "." + strconv.Itoa(index)
	out := introspect.Tags{}
	for k, v := range action {
		if name, ok := strings.CutSuffix(k, suffix); ok && name != "" {
			out[name] = v
		}
	}
	return out
}

// HiddenAnnotationFactory reads hidden:"where" and hidden:"empty".
type HiddenAnnotationFactory struct{ base }

func NewHiddenAnnotationFactory() *HiddenAnnotationFactory {
	return &HiddenAnnotationFactory{base{"hiddenAnnotation", Members}}
}

func (f *HiddenAnnotationFactory) ProcessField(ctx *FieldContext) {
	value, ok := ctx.Field.Tags.Lookup("hidden")
	if !ok {
		return
	}
	if value == "empty" {
		ctx.Holder.Add(facets.HiddenWhenEmpty{Index: ctx.Field.Index})
		return
	}
	f.where(ctx, ctx.Holder, value)
}

func (f *HiddenAnnotationFactory) ProcessMethod(ctx *MethodContext) {
	value, ok := ctx.Method.Tags.Lookup("hidden")
	if !ok {
		return
	}
	if value == "empty" {
		ctx.Fail(validation.SeverityBlock, "hidden:\"empty\" applies to properties and collections only")
		return
	}
	f.where(ctx, ctx.Holder, value)
}

func (f *HiddenAnnotationFactory) where(ctx installer, holder *facet.Holder, value string) {
	where, ok := facet.ParseWhere(value)
	if !ok {
		ctx.Fail(validation.SeverityBlock, "invalid hidden location %q", value)
		return
	}
	holder.Add(facets.Hidden{Where: where})
}

// DisabledAnnotationFactory reads disabled:"reason".
type DisabledAnnotationFactory struct{ base }

func NewDisabledAnnotationFactory() *DisabledAnnotationFactory {
	return &DisabledAnnotationFactory{base{"disabledAnnotation", Members}}
}

func (f *DisabledAnnotationFactory) ProcessField(ctx *FieldContext) {
	if reason, ok := ctx.Field.Tags.Lookup("disabled"); ok {
		ctx.Holder.Add(facets.Disabled{Reason: reason})
	}
}

func (f *DisabledAnnotationFactory) ProcessMethod(ctx *MethodContext) {
	if reason, ok := ctx.Method.Tags.Lookup("disabled"); ok {
		ctx.Holder.Add(facets.Disabled{Reason: reason})
	}
}

// RegExFactory reads regex:"pattern" with optional regexFlags:"i" on string
// properties and parameters.
type RegExFactory struct{ base }

func NewRegExFactory() *RegExFactory {
	return &RegExFactory{base{"regex", Features(FeatureProperty, FeatureParameter)}}
}

func (f *RegExFactory) ProcessField(ctx *FieldContext) {
	f.install(ctx, ctx.Holder, ctx.Field.Tags, ctx.Field.Type)
}

func (f *RegExFactory) ProcessParam(ctx *ParamContext) {
	f.install(ctx, ctx.Holder, ParamTags(ctx.Method.Tags, ctx.Index), ctx.Param)
}

func (f *RegExFactory) install(ctx installer, holder *facet.Holder, tags introspect.Tags, ref introspect.TypeRef) {
	pattern, ok := tags.Lookup("regex")
	if !ok {
		return
	}
	if ref.Kind != introspect.KindString {
		ctx.Fail(validation.SeverityBlock, "regex annotation requires a string type, found %s", ref.Name)
		return
	}
	flags := tags.Get("regexFlags")
	if flags != "" && flags != "i" {
		ctx.Fail(validation.SeverityBlock, "unsupported regex flags %q", flags)
		return
	}
	re, err := facets.NewRegEx(pattern, flags == "i")
	if err != nil {
		ctx.Fail(validation.SeverityBlock, "invalid regex %q: %v", pattern, err)
		return
	}
	holder.Add(re)
}

// MaxLengthFactory reads maxLength:"n".
type MaxLengthFactory struct{ base }

func NewMaxLengthFactory() *MaxLengthFactory {
	return &MaxLengthFactory{base{"maxLength", Features(FeatureProperty, FeatureParameter)}}
}

func (f *MaxLengthFactory) ProcessField(ctx *FieldContext) {
	f.install(ctx, ctx.Holder, ctx.Field.Tags)
}

func (f *MaxLengthFactory) ProcessParam(ctx *ParamContext) {
	f.install(ctx, ctx.Holder, ParamTags(ctx.Method.Tags, ctx.Index))
}

func (f *MaxLengthFactory) install(ctx installer, holder *facet.Holder, tags introspect.Tags) {
	value, ok := tags.Lookup("maxLength")
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		ctx.Fail(validation.SeverityBlock, "maxLength must be a positive integer, found %q", value)
		return
	}
	holder.Add(facets.MaxLength{Max: n})
}

// MandatoryAnnotationFactory reads optional and mandatory, replacing the
// derived Mandatory facet.
type MandatoryAnnotationFactory struct{ base }

func NewMandatoryAnnotationFactory() *MandatoryAnnotationFactory {
	return &MandatoryAnnotationFactory{base{"mandatoryAnnotation", Features(FeatureProperty, FeatureParameter)}}
}

func (f *MandatoryAnnotationFactory) ProcessField(ctx *FieldContext) {
	f.install(ctx, ctx.Holder, ctx.Field.Tags)
}

func (f *MandatoryAnnotationFactory) ProcessParam(ctx *ParamContext) {
	f.install(ctx, ctx.Holder, ParamTags(ctx.Method.Tags, ctx.Index))
}

func (f *MandatoryAnnotationFactory) install(ctx installer, holder *facet.Holder, tags introspect.Tags) {
	optional, mandatory := tags.Has("optional"), tags.Has("mandatory")
	switch {
	case optional && mandatory:
		ctx.Fail(validation.SeverityBlock, "both optional and mandatory annotations present")
	case optional:
		holder.Add(facets.Mandatory{Optional: true})
	case mandatory:
		holder.Add(facets.Mandatory{})
	}
}

// DescriptionFactory reads named, describedAs and, on classes, plural.
type DescriptionFactory struct{ base }

func NewDescriptionFactory() *DescriptionFactory {
	return &DescriptionFactory{base{"description", Features(FeatureObject, FeatureProperty, FeatureCollection, FeatureAction, FeatureParameter)}}
}

func describe(holder *facet.Holder, tags introspect.Tags) {
	if name, ok := tags.Lookup("named"); ok && name != "" {
		holder.Add(facets.Named{Name: name})
	}
	if text, ok := tags.Lookup("describedAs"); ok && text != "" {
		holder.Add(facets.DescribedAs{Text: text})
	}
}

func (f *DescriptionFactory) ProcessClass(ctx *ClassContext) {
	describe(ctx.Holder, ctx.Class.Tags)
	if plural, ok := ctx.Class.Tags.Lookup("plural"); ok && plural != "" {
		ctx.Holder.Add(facets.Plural{Name: plural})
	}
}

func (f *DescriptionFactory) ProcessField(ctx *FieldContext) { describe(ctx.Holder, ctx.Field.Tags) }

func (f *DescriptionFactory) ProcessMethod(ctx *MethodContext) { describe(ctx.Holder, ctx.Method.Tags) }

func (f *DescriptionFactory) ProcessParam(ctx *ParamContext) {
	describe(ctx.Holder, ParamTags(ctx.Method.Tags, ctx.Index))
}

// DefaultAnnotationFactory reads default:"literal".
type DefaultAnnotationFactory struct{ base }

func NewDefaultAnnotationFactory() *DefaultAnnotationFactory {
	return &DefaultAnnotationFactory{base{"defaultAnnotation", Features(FeatureProperty, FeatureParameter)}}
}

func (f *DefaultAnnotationFactory) ProcessField(ctx *FieldContext) {
	f.install(ctx, ctx.Holder, ctx.Field.Tags, ctx.Field.Type)
}

func (f *DefaultAnnotationFactory) ProcessParam(ctx *ParamContext) {
	f.install(ctx, ctx.Holder, ParamTags(ctx.Method.Tags, ctx.Index), ctx.Param)
}

func (f *DefaultAnnotationFactory) install(ctx installer, holder *facet.Holder, tags introspect.Tags, ref introspect.TypeRef) {
	text, ok := tags.Lookup("default")
	if !ok {
		return
	}
	v, err := facets.Parseable{Kind: ref.Kind, Bits: ref.Bits}.Parse(text)
	if err != nil {
		ctx.Fail(validation.SeverityBlock, "default %q is not a valid %s: %v", text, ref.Name, err)
		return
	}
	holder.Add(facets.DefaultLiteral{Value: v})
}

// ChoicesAnnotationFactory reads choices:"a|b|c".
type ChoicesAnnotationFactory struct{ base }

func NewChoicesAnnotationFactory() *ChoicesAnnotationFactory {
	return &ChoicesAnnotationFactory{base{"choicesAnnotation", Features(FeatureProperty, FeatureParameter)}}
}

func (f *ChoicesAnnotationFactory) ProcessField(ctx *FieldContext) {
	f.install(ctx, ctx.Holder, ctx.Field.Tags, ctx.Field.Type)
}

func (f *ChoicesAnnotationFactory) ProcessParam(ctx *ParamContext) {
	f.install(ctx, ctx.Holder, ParamTags(ctx.Method.Tags, ctx.Index), ctx.Param)
}

func (f *ChoicesAnnotationFactory) install(ctx installer, holder *facet.Holder, tags introspect.Tags, ref introspect.TypeRef) {
	raw, ok := tags.Lookup("choices")
	if !ok {
		return
	}
	parser := facets.Parseable{Kind: ref.Kind, Bits: ref.Bits}
	var values []any
	for _, item := range splitList(raw, "|") {
		v, err := parser.Parse(item)
		if err != nil {
			ctx.Fail(validation.SeverityBlock, "choice %q is not a valid %s: %v", item, ref.Name, err)
			return
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		ctx.Fail(validation.SeverityWarn, "choices annotation is empty")
		return
	}
	holder.Add(facets.ChoicesLiteral{Values: values})
}

// RolesFactory reads roles:"a,b".
type RolesFactory struct{ base }

func NewRolesFactory() *RolesFactory {
	return &RolesFactory{base{"roles", Features(FeatureObject, FeatureProperty, FeatureCollection, FeatureAction)}}
}

func roles(holder *facet.Holder, tags introspect.Tags) {
	if raw, ok := tags.Lookup("roles"); ok {
		if list := splitList(raw, ","); len(list) > 0 {
			holder.Add(facets.Roles{Roles: list})
		}
	}
}

func (f *RolesFactory) ProcessClass(ctx *ClassContext)   { roles(ctx.Holder, ctx.Class.Tags) }
func (f *RolesFactory) ProcessField(ctx *FieldContext)   { roles(ctx.Holder, ctx.Field.Tags) }
func (f *RolesFactory) ProcessMethod(ctx *MethodContext) { roles(ctx.Holder, ctx.Method.Tags) }

// PublishingAnnotationFactory reads publishing:"enabled|disabled".
type PublishingAnnotationFactory struct{ base }

func NewPublishingAnnotationFactory() *PublishingAnnotationFactory {
	return &PublishingAnnotationFactory{base{"publishingAnnotation", Features(FeatureObject, FeatureAction)}}
}

func publishing(ctx installer, holder *facet.Holder, tags introspect.Tags) {
	value, ok := tags.Lookup("publishing")
	if !ok {
		return
	}
	switch value {
	case "enabled", "":
		holder.Add(facets.Publishing{Enabled: true})
	case "disabled":
		holder.Add(facets.Publishing{Enabled: false})
	default:
		ctx.Fail(validation.SeverityBlock, "invalid publishing value %q", value)
	}
}

func (f *PublishingAnnotationFactory) ProcessClass(ctx *ClassContext) {
	publishing(ctx, ctx.Holder, ctx.Class.Tags)
}

func (f *PublishingAnnotationFactory) ProcessMethod(ctx *MethodContext) {
	publishing(ctx, ctx.Holder, ctx.Method.Tags)
}

// MemberOrderFactory reads memberOrder:"group,sequence".
type MemberOrderFactory struct{ base }

func NewMemberOrderFactory() *MemberOrderFactory {
	return &MemberOrderFactory{base{"memberOrder", Members}}
}

func memberOrder(ctx installer, holder *facet.Holder, tags introspect.Tags) {
	value, ok := tags.Lookup("memberOrder")
	if !ok {
		return
	}
	mo, err := facets.ParseMemberOrder(value)
	if err != nil {
		ctx.Fail(validation.SeverityBlock, "%v", err)
		return
	}
	holder.Add(mo)
}

func (f *MemberOrderFactory) ProcessField(ctx *FieldContext) {
	memberOrder(ctx, ctx.Holder, ctx.Field.Tags)
}

func (f *MemberOrderFactory) ProcessMethod(ctx *MethodContext) {
	memberOrder(ctx, ctx.Holder, ctx.Method.Tags)
}
