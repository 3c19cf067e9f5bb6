package metamodel

import (
	"context"
	"fmt"
	"reflect"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
)

// MemberKind distinguishes properties, collections and actions.
type MemberKind string

const (
	MemberProperty   MemberKind = "property"
	MemberCollection MemberKind = "collection"
	MemberAction     MemberKind = "action"
)

// Member is the common surface of properties, collections and actions.
type Member interface {
	ID() string
	Identifier() facet.Identifier
	Kind() MemberKind
	Name() string
	Description() string
	Holder() *facet.Holder
	Specification() *Specification
	IsVisible(ctx context.Context, target any, ic facet.InteractionContext) (facet.Consent, error)
	IsUsable(ctx context.Context, target any, ic facet.InteractionContext) (facet.Consent, error)
}

type member struct {
	spec   *Specification
	id     string
	goName string
	holder *facet.Holder
}

func (m *member) ID() string                    { return m.id }
func (m *member) Identifier() facet.Identifier  { return m.holder.Identifier() }
func (m *member) Holder() *facet.Holder         { return m.holder }
func (m *member) Specification() *Specification { return m.spec }

// GoName is the Go identifier backing the member.
func (m *member) GoName() string { return m.goName }

func (m *member) Name() string {
	return displayName(m.holder)
}

func (m *member) Description() string {
	if d, ok := facet.Lookup[facets.DescribedAs](m.holder, facets.TypeDescribedAs); ok {
		return d.Text
	}
	return ""
}

// IsVisible consults the hiding advisors of the class and then of the
// member. Programmatic interactions are never hidden.
func (m *member) IsVisible(ctx context.Context, target any, ic facet.InteractionContext) (facet.Consent, error) {
	if ic.Initiation == facet.Programmatic {
		return facet.Allow(), nil
	}
	vc := facet.VisibilityContext{Ctx: ctx, Interaction: ic, Identifier: m.Identifier(), Target: target}
	consent, err := facet.EvaluateVisibility(m.spec.holder, vc)
	if err != nil || consent.IsVetoed() {
		return consent, err
	}
	return facet.EvaluateVisibility(m.holder, vc)
}

// IsUsable consults the disabling advisors of the member. Programmatic
// interactions are never disabled.
func (m *member) IsUsable(ctx context.Context, target any, ic facet.InteractionContext) (facet.Consent, error) {
	if ic.Initiation == facet.Programmatic {
		return facet.Allow(), nil
	}
	return facet.EvaluateUsability(m.holder, facet.UsabilityContext{
		Ctx:         ctx,
		Interaction: ic,
		Identifier:  m.Identifier(),
		Target:      target,
	})
}

// checkAccess returns the visibility or usability veto as an error.
func (m *member) checkAccess(ctx context.Context, target any, ic facet.InteractionContext) error {
	visible, err := m.IsVisible(ctx, target, ic)
	if err != nil {
		return err
	}
	if err := visible.Err(m.Identifier(), facet.ConcernVisibility); err != nil {
		return err
	}
	usable, err := m.IsUsable(ctx, target, ic)
	if err != nil {
		return err
	}
	return usable.Err(m.Identifier(), facet.ConcernUsability)
}

func (m *member) requireInvocable() error {
	if !m.spec.Invocable() {
		return fmt.Errorf("%w: %s", ErrNotInvocable, m.Identifier())
	}
	return nil
}

func displayName(h *facet.Holder) string {
	if n, ok := facet.Lookup[facets.Named](h, facets.TypeNamed); ok {
		return n.Name
	}
	return h.Identifier().Member
}

func isMandatory(h *facet.Holder) bool {
	m, ok := facet.Lookup[facets.Mandatory](h, facets.TypeMandatory)
	return ok && !m.Optional
}

func memberOrder(h *facet.Holder) (facets.MemberOrder, bool) {
	return facet.Lookup[facets.MemberOrder](h, facets.TypeMemberOrder)
}

// coerceTo converts v to the runtime type of ref when both are known.
func coerceTo(ref introspect.TypeRef, v any) any {
	if v == nil || ref.Reflect == nil {
		return v
	}
	t := ref.Reflect
	if ref.Nillable && ref.Reflect.Kind() != reflect.Pointer && !ref.IsCollection() && ref.Kind != introspect.KindInterface {
		t = reflect.PointerTo(t)
	}
	cv, err := introspect.Coerce(v, t)
	if err != nil {
		return v
	}
	return cv.Interface()
}

// Property is a scalar member backed by a struct field.
type Property struct {
	member
	field introspect.Field
}

func (p *Property) Kind() MemberKind { return MemberProperty }

// Type is the declared field type.
func (p *Property) Type() introspect.TypeRef { return p.field.Type }

// IsMandatory reports whether empty values are rejected.
func (p *Property) IsMandatory() bool { return isMandatory(p.holder) }

// TypeSpec loads the specification of the property type.
func (p *Property) TypeSpec(ctx context.Context) (*Specification, error) {
	return p.spec.loader.LoadSpecification(ctx, p.field.Type)
}

// Get reads the current value.
func (p *Property) Get(target any) (any, error) {
	acc, ok := facet.Lookup[facets.PropertyAccessor](p.holder, facets.TypePropertyAccessor)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no accessor", ErrNoFacet, p.Identifier())
	}
	return acc.Get(target)
}

// IsValid evaluates the validating advisors against a proposed value.
func (p *Property) IsValid(ctx context.Context, target, proposed any, ic facet.InteractionContext) (facet.Consent, error) {
	return facet.EvaluateValidity(p.holder, facet.ValidityContext{
		Ctx:         ctx,
		Interaction: ic,
		Identifier:  p.Identifier(),
		Target:      target,
		Proposed:    proposed,
		ArgIndex:    -1,
	})
}

// Set assigns value after checking visibility, usability and validity.
// Vetoes are returned as *facet.VetoError.
func (p *Property) Set(ctx context.Context, target, value any, ic facet.InteractionContext) error {
	if err := p.requireInvocable(); err != nil {
		return err
	}
	if err := p.checkAccess(ctx, target, ic); err != nil {
		return err
	}
	valid, err := p.IsValid(ctx, target, value, ic)
	if err != nil {
		return err
	}
	if err := valid.Err(p.Identifier(), facet.ConcernValidity); err != nil {
		return err
	}
	setter, ok := facet.Lookup[facets.Setter](p.holder, facets.TypePropertySetter)
	if !ok {
		return fmt.Errorf("%w: %s has no setter", ErrNoFacet, p.Identifier())
	}
	return setter.Set(ctx, ic, target, value)
}

// Clear resets the property, routing through a ClearXxx method when
// declared. Mandatory properties cannot be cleared.
func (p *Property) Clear(ctx context.Context, target any, ic facet.InteractionContext) error {
	if err := p.requireInvocable(); err != nil {
		return err
	}
	if err := p.checkAccess(ctx, target, ic); err != nil {
		return err
	}
	valid, err := p.IsValid(ctx, target, nil, ic)
	if err != nil {
		return err
	}
	if err := valid.Err(p.Identifier(), facet.ConcernValidity); err != nil {
		return err
	}
	clearer, ok := facet.Lookup[facets.Clearer](p.holder, facets.TypePropertyClear)
	if !ok {
		return fmt.Errorf("%w: %s has no clear", ErrNoFacet, p.Identifier())
	}
	return clearer.Clear(ctx, ic, target)
}

// Default returns the default value, nil when none is declared.
func (p *Property) Default(ctx context.Context, target any, ic facet.InteractionContext) (any, error) {
	d, ok := facet.Lookup[facets.Defaulter](p.holder, facets.TypeDefault)
	if !ok {
		return nil, nil
	}
	v, err := d.Default(ctx, ic, target)
	if err != nil {
		return nil, err
	}
	return coerceTo(p.field.Type, v), nil
}

// Choices returns the permitted values, nil when unrestricted.
func (p *Property) Choices(ctx context.Context, target any, ic facet.InteractionContext) ([]any, error) {
	c, ok := facet.Lookup[facets.Chooser](p.holder, facets.TypeChoices)
	if !ok {
		return nil, nil
	}
	return c.Choices(ctx, ic, target)
}

// Collection is a slice or map member backed by a struct field.
type Collection struct {
	member
	field introspect.Field
}

func (c *Collection) Kind() MemberKind { return MemberCollection }

// Type is the declared field type.
func (c *Collection) Type() introspect.TypeRef { return c.field.Type }

// ElementType is the element type of the collection.
func (c *Collection) ElementType() introspect.TypeRef {
	if t, ok := facet.Lookup[facets.TypeOf](c.holder, facets.TypeTypeOf); ok {
		return t.Elem
	}
	return introspect.TypeRef{}
}

// ElementSpec loads the specification of the element type.
func (c *Collection) ElementSpec(ctx context.Context) (*Specification, error) {
	elem := c.ElementType()
	if elem.IsZero() {
		return nil, fmt.Errorf("%w: %s has no element type", ErrNoFacet, c.Identifier())
	}
	return c.spec.loader.LoadSpecification(ctx, elem)
}

// Get reads the collection value.
func (c *Collection) Get(target any) (any, error) {
	acc, ok := facet.Lookup[facets.CollectionAccessor](c.holder, facets.TypeCollectionAccessor)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no accessor", ErrNoFacet, c.Identifier())
	}
	return acc.Get(target)
}

// Action is a member backed by a method.
type Action struct {
	member
	method introspect.Method
	params []*Parameter
}

func (a *Action) Kind() MemberKind { return MemberAction }

// Parameters returns the parameters in declaration order.
func (a *Action) Parameters() []*Parameter {
	out := make([]*Parameter, len(a.params))
	copy(out, a.params)
	return out
}

// Parameter returns the index-th parameter.
func (a *Action) Parameter(index int) (*Parameter, bool) {
	if index < 0 || index >= len(a.params) {
		return nil, false
	}
	return a.params[index], true
}

// Returns is the declared result type, zero when the action returns nothing.
func (a *Action) Returns() introspect.TypeRef {
	if inv, ok := facet.Lookup[facets.ActionInvocation](a.holder, facets.TypeActionInvocation); ok {
		return inv.Returns
	}
	return introspect.TypeRef{}
}

// ReturnSpec loads the specification of the result type.
func (a *Action) ReturnSpec(ctx context.Context) (*Specification, error) {
	ret := a.Returns()
	if ret.IsZero() {
		return nil, fmt.Errorf("%w: %s returns nothing", ErrNoFacet, a.Identifier())
	}
	if ret.IsCollection() && ret.Elem != nil {
		ret = *ret.Elem
	}
	return a.spec.loader.LoadSpecification(ctx, ret)
}

// IsArgumentValid validates a single argument.
func (a *Action) IsArgumentValid(ctx context.Context, target any, index int, arg any, ic facet.InteractionContext) (facet.Consent, error) {
	p, ok := a.Parameter(index)
	if !ok {
		return facet.Veto(fmt.Sprintf("no parameter %d", index)), nil
	}
	return p.IsValid(ctx, target, arg, nil, ic)
}

// IsArgumentSetValid validates the argument count, every argument and then
// the argument set as a whole.
func (a *Action) IsArgumentSetValid(ctx context.Context, target any, args []any, ic facet.InteractionContext) (facet.Consent, error) {
	if len(args) != len(a.params) {
		return facet.Veto(fmt.Sprintf("expected %d arguments, got %d", len(a.params), len(args))), nil
	}
	for i, p := range a.params {
		consent, err := p.IsValid(ctx, target, args[i], args, ic)
		if err != nil || consent.IsVetoed() {
			return consent, err
		}
	}
	return facet.EvaluateValidity(a.holder, facet.ValidityContext{
		Ctx:         ctx,
		Interaction: ic,
		Identifier:  a.Identifier(),
		Target:      target,
		Args:        args,
		ArgIndex:    -1,
	})
}

// Execute invokes the action once it is visible, usable and its arguments
// are valid.
func (a *Action) Execute(ctx context.Context, target any, args []any, ic facet.InteractionContext) (any, error) {
	if err := a.requireInvocable(); err != nil {
		return nil, err
	}
	if err := a.checkAccess(ctx, target, ic); err != nil {
		return nil, err
	}
	valid, err := a.IsArgumentSetValid(ctx, target, args, ic)
	if err != nil {
		return nil, err
	}
	if err := valid.Err(a.Identifier(), facet.ConcernValidity); err != nil {
		return nil, err
	}
	inv, ok := facet.Lookup[facets.ActionInvocation](a.holder, facets.TypeActionInvocation)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no invocation", ErrNoFacet, a.Identifier())
	}
	return inv.Invoke(ctx, ic, target, args)
}

// Defaults returns the default of every parameter, nil where none is
// declared.
func (a *Action) Defaults(ctx context.Context, target any, ic facet.InteractionContext) ([]any, error) {
	out := make([]any, len(a.params))
	for i, p := range a.params {
		v, err := p.Default(ctx, target, ic)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Choices returns the choices of the index-th parameter.
func (a *Action) Choices(ctx context.Context, target any, index int, ic facet.InteractionContext) ([]any, error) {
	p, ok := a.Parameter(index)
	if !ok {
		return nil, fmt.Errorf("metamodel: %s has no parameter %d", a.Identifier(), index)
	}
	return p.Choices(ctx, target, ic)
}

// Parameter is one argument of an action.
type Parameter struct {
	action *Action
	index  int
	ref    introspect.TypeRef
	holder *facet.Holder
}

func (p *Parameter) Index() int                   { return p.index }
func (p *Parameter) Identifier() facet.Identifier { return p.holder.Identifier() }
func (p *Parameter) Holder() *facet.Holder        { return p.holder }
func (p *Parameter) Action() *Action              { return p.action }
func (p *Parameter) Type() introspect.TypeRef     { return p.ref }
func (p *Parameter) Name() string                 { return displayName(p.holder) }
func (p *Parameter) IsMandatory() bool            { return isMandatory(p.holder) }

// TypeSpec loads the specification of the parameter type.
func (p *Parameter) TypeSpec(ctx context.Context) (*Specification, error) {
	return p.action.spec.loader.LoadSpecification(ctx, p.ref)
}

// IsValid validates arg. args is the full argument set when known.
func (p *Parameter) IsValid(ctx context.Context, target, arg any, args []any, ic facet.InteractionContext) (facet.Consent, error) {
	return facet.EvaluateValidity(p.holder, facet.ValidityContext{
		Ctx:         ctx,
		Interaction: ic,
		Identifier:  p.Identifier(),
		Target:      target,
		Proposed:    arg,
		Args:        args,
		ArgIndex:    p.index,
	})
}

// Default returns the parameter default, nil when none is declared.
func (p *Parameter) Default(ctx context.Context, target any, ic facet.InteractionContext) (any, error) {
	d, ok := facet.Lookup[facets.Defaulter](p.holder, facets.TypeDefault)
	if !ok {
		return nil, nil
	}
	v, err := d.Default(ctx, ic, target)
	if err != nil {
		return nil, err
	}
	return coerceTo(p.ref, v), nil
}

// Choices returns the permitted values, nil when unrestricted.
func (p *Parameter) Choices(ctx context.Context, target any, ic facet.InteractionContext) ([]any, error) {
	c, ok := facet.Lookup[facets.Chooser](p.holder, facets.TypeChoices)
	if !ok {
		return nil, nil
	}
	return c.Choices(ctx, ic, target)
}
