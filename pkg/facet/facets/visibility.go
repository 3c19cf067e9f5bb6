package facets

import (
	"slices"
	"strings"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

// Hidden hides an element wherever its scope includes the interaction
// location.
type Hidden struct {
	Where facet.Where
}

func (f Hidden) Type() facet.Type { return TypeHidden }

func (f Hidden) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Hidden)
	return ok && o.Where == f.Where
}

func (f Hidden) Hides(vc facet.VisibilityContext) (string, error) {
	if f.Where.Includes(vc.Interaction.Where) {
		return "Hidden", nil
	}
	return "", nil
}

// HiddenWhenEmpty hides a property whose current value is empty. Without a
// target object the property is shown.
type HiddenWhenEmpty struct {
	Index []int
}

func (f HiddenWhenEmpty) Type() facet.Type { return TypeHiddenWhenEmpty }

func (f HiddenWhenEmpty) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(HiddenWhenEmpty)
	return ok && slices.Equal(o.Index, f.Index)
}

func (f HiddenWhenEmpty) Hides(vc facet.VisibilityContext) (string, error) {
	if vc.Target == nil {
		return "", nil
	}
	v, err := introspect.GetField(vc.Target, f.Index)
	if err != nil {
		return "", err
	}
	if introspect.IsEmpty(v) {
		return "Hidden when empty", nil
	}
	return "", nil
}

// HideViaMethod consults a HideXxx supporting method returning bool or a
// reason string.
type HideViaMethod struct {
	Method MethodRef
}

func (f HideViaMethod) Type() facet.Type { return TypeHideViaMethod }

func (f HideViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(HideViaMethod)
	return ok && o.Method == f.Method
}

func (f HideViaMethod) Hides(vc facet.VisibilityContext) (string, error) {
	if vc.Target == nil {
		return "", nil
	}
	out, err := f.Method.Call(vc.Ctx, vc.Interaction, vc.Target)
	if err != nil {
		return "", err
	}
	return reasonOf(first(out), "Hidden by "+f.Method.Name)
}

// Roles restricts visibility to users holding at least one of the roles.
type Roles struct {
	Roles []string
}

func (f Roles) Type() facet.Type { return TypeRoles }

func (f Roles) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Roles)
	return ok && slices.Equal(o.Roles, f.Roles)
}

func (f Roles) Hides(vc facet.VisibilityContext) (string, error) {
	if len(f.Roles) == 0 {
		return "", nil
	}
	for _, role := range f.Roles {
		if vc.Interaction.User.HasRole(role) {
			return "", nil
		}
	}
	return "Requires one of roles: " + strings.Join(f.Roles, ", "), nil
}
