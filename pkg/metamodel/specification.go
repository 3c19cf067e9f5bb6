package metamodel

import (
	"context"
	"fmt"
	"strings"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/validation"
)

// Specification is the metamodel of one type: its class-level facets and
// its ordered members. A published Specification is never mutated;
// invalidation replaces it with a fresh build.
type Specification struct {
	key        string
	loader     *Loader
	generation uint64
	class      *introspect.Class
	holder     *facet.Holder
	failures   *validation.Failures

	properties  []*Property
	collections []*Collection
	actions     []*Action
	members     map[string]Member
	orphans     []introspect.Method
}

func newSpecification(l *Loader, ref introspect.TypeRef, generation uint64) *Specification {
	return &Specification{
		key:        ref.Key,
		loader:     l,
		generation: generation,
		class:      introspect.ValueClass(ref, introspect.SourceReflect),
		holder:     facet.NewHolder(facet.ClassID(ref.Key)),
		failures:   validation.NewFailures(),
		members:    make(map[string]Member),
	}
}

// Key is the fully qualified type key.
func (s *Specification) Key() string { return s.key }

// Identifier identifies the class.
func (s *Specification) Identifier() facet.Identifier { return s.holder.Identifier() }

// Class is the structural description the specification was built from.
func (s *Specification) Class() *introspect.Class { return s.class }

// Holder carries the class-level facets.
func (s *Specification) Holder() *facet.Holder { return s.holder }

// Facet returns the class-level facet of type t.
func (s *Specification) Facet(t facet.Type) (facet.Facet, bool) { return s.holder.Facet(t) }

// Generation is the loader generation the specification was built in.
func (s *Specification) Generation() uint64 { return s.generation }

// Source reports how the underlying class was introspected.
func (s *Specification) Source() introspect.Source { return s.class.Source }

// Invocable reports whether members can be executed against live objects.
func (s *Specification) Invocable() bool { return s.class.Source == introspect.SourceReflect }

// IsValue reports whether the type is a value type without members.
func (s *Specification) IsValue() bool { return s.class.Ref.IsValue() }

// Failures returns the problems found while building the specification.
func (s *Specification) Failures() []validation.Failure { return s.failures.Items() }

// Name is the singular display name.
func (s *Specification) Name() string {
	if n, ok := facet.Lookup[facets.Named](s.holder, facets.TypeNamed); ok {
		return n.Name
	}
	return s.class.Name()
}

// PluralName is the plural display name.
func (s *Specification) PluralName() string {
	if p, ok := facet.Lookup[facets.Plural](s.holder, facets.TypePlural); ok {
		return p.Name
	}
	return s.Name() + "s"
}

// Description is the describedAs text of the class.
func (s *Specification) Description() string {
	if d, ok := facet.Lookup[facets.DescribedAs](s.holder, facets.TypeDescribedAs); ok {
		return d.Text
	}
	return ""
}

// LogicalTypeName is the stable external name of the type.
func (s *Specification) LogicalTypeName() string {
	if n, ok := facet.Lookup[facets.LogicalTypeName](s.holder, facets.TypeLogicalTypeName); ok {
		return n.Name
	}
	return s.key
}

// Superclass returns the specification of the first embedded type, nil
// when nothing is embedded.
func (s *Specification) Superclass(ctx context.Context) (*Specification, error) {
	if len(s.class.Embedded) == 0 {
		return nil, nil
	}
	return s.loader.LoadSpecification(ctx, s.class.Embedded[0])
}

// Properties returns the properties in display order.
func (s *Specification) Properties() []*Property {
	out := make([]*Property, len(s.properties))
	copy(out, s.properties)
	return out
}

// Collections returns the collections in display order.
func (s *Specification) Collections() []*Collection {
	out := make([]*Collection, len(s.collections))
	copy(out, s.collections)
	return out
}

// Actions returns the actions in display order.
func (s *Specification) Actions() []*Action {
	out := make([]*Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// Members returns properties, then collections, then actions.
func (s *Specification) Members() []Member {
	out := make([]Member, 0, len(s.properties)+len(s.collections)+len(s.actions))
	for _, p := range s.properties {
		out = append(out, p)
	}
	for _, c := range s.collections {
		out = append(out, c)
	}
	for _, a := range s.actions {
		out = append(out, a)
	}
	return out
}

// Member returns the member with the given id.
func (s *Specification) Member(id string) (Member, bool) {
	m, ok := s.members[id]
	return m, ok
}

// Property returns the property with the given id.
func (s *Specification) Property(id string) (*Property, bool) {
	p, ok := s.members[id].(*Property)
	return p, ok
}

// Collection returns the collection with the given id.
func (s *Specification) Collection(id string) (*Collection, bool) {
	c, ok := s.members[id].(*Collection)
	return c, ok
}

// Action returns the action with the given id.
func (s *Specification) Action(id string) (*Action, bool) {
	a, ok := s.members[id].(*Action)
	return a, ok
}

// Orphans returns supporting methods that matched no member.
func (s *Specification) Orphans() []introspect.Method {
	out := make([]introspect.Method, len(s.orphans))
	copy(out, s.orphans)
	return out
}

// Title renders the title of target. Types without a title source are
// titled "Untitled <name>".
func (s *Specification) Title(ctx context.Context, target any) (string, error) {
	t, ok := facet.Lookup[facets.Titler](s.holder, facets.TypeTitle)
	if !ok || target == nil {
		return "Untitled " + s.Name(), nil
	}
	if _, static := t.(facets.TitleViaMethod); static && !s.Invocable() {
		return "", fmt.Errorf("%w: %s", ErrNotInvocable, s.key)
	}
	return t.Title(ctx, target)
}

// IconName returns the icon of target, the lower-cased type name when the
// type declares none.
func (s *Specification) IconName(ctx context.Context, target any) (string, error) {
	icon, ok := facet.Lookup[facets.IconName](s.holder, facets.TypeIconName)
	if !ok || target == nil {
		return strings.ToLower(s.class.Name()), nil
	}
	if !s.Invocable() {
		return "", fmt.Errorf("%w: %s", ErrNotInvocable, s.key)
	}
	return icon.IconName(ctx, target)
}

// Instantiate allocates a new instance and fires its Created callback.
func (s *Specification) Instantiate(ctx context.Context) (any, error) {
	if !s.Invocable() {
		return nil, fmt.Errorf("%w: %s", ErrNotInvocable, s.key)
	}
	obj, err := introspect.New(s.class.Ref)
	if err != nil {
		return nil, err
	}
	if err := s.FireLifecycle(ctx, facets.EventCreated, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// FireLifecycle invokes the callback for event when the type declares one.
func (s *Specification) FireLifecycle(ctx context.Context, event facets.LifecycleEvent, target any) error {
	cb, ok := facet.Lookup[facets.Lifecycle](s.holder, facets.LifecycleType(event))
	if !ok {
		return nil
	}
	if !s.Invocable() {
		return fmt.Errorf("%w: %s", ErrNotInvocable, s.key)
	}
	return cb.Fire(ctx, target)
}

// ValidateObject validates the current value of every property and then
// the object as a whole. The first veto wins.
func (s *Specification) ValidateObject(ctx context.Context, target any, ic facet.InteractionContext) (facet.Consent, error) {
	for _, p := range s.properties {
		value, err := p.Get(target)
		if err != nil {
			return facet.Consent{}, err
		}
		consent, err := p.IsValid(ctx, target, value, ic)
		if err != nil {
			return facet.Consent{}, err
		}
		if consent.IsVetoed() {
			return facet.Veto(p.Name() + ": " + consent.Reason()), nil
		}
	}
	return facet.EvaluateValidity(s.holder, facet.ValidityContext{
		Ctx:         ctx,
		Interaction: ic,
		Identifier:  s.Identifier(),
		Target:      target,
		ArgIndex:    -1,
	})
}

func (s *Specification) addMember(m Member) {
	if _, exists := s.members[m.ID()]; !exists {
		s.members[m.ID()] = m
	}
	switch v := m.(type) {
	case *Property:
		s.properties = append(s.properties, v)
	case *Collection:
		s.collections = append(s.collections, v)
	case *Action:
		s.actions = append(s.actions, v)
	}
}

func (s *Specification) seal() {
	s.holder.Seal()
	for _, m := range s.Members() {
		m.Holder().Seal()
	}
	for _, a := range s.actions {
		for _, p := range a.params {
			p.holder.Seal()
		}
	}
}
