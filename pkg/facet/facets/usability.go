package facets

import "metacore/pkg/facet"

// Disabled makes an element read-only or non-invokable within its scope.
type Disabled struct {
	Where  facet.Where
	Reason string
	// Derived marks facets installed because the owning class is immutable.
	Derived bool
}

func (f Disabled) Type() facet.Type { return TypeDisabled }

func (f Disabled) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Disabled)
	return ok && o == f
}

func (f Disabled) Disables(uc facet.UsabilityContext) (string, error) {
	if !f.Where.Includes(uc.Interaction.Where) {
		return "", nil
	}
	if f.Reason == "" {
		return "Disabled", nil
	}
	return f.Reason, nil
}

// DisableViaMethod consults a DisableXxx supporting method returning the
// reason, empty when usable.
type DisableViaMethod struct {
	Method MethodRef
}

func (f DisableViaMethod) Type() facet.Type { return TypeDisableViaMethod }

func (f DisableViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(DisableViaMethod)
	return ok && o.Method == f.Method
}

func (f DisableViaMethod) Disables(uc facet.UsabilityContext) (string, error) {
	if uc.Target == nil {
		return "", nil
	}
	out, err := f.Method.Call(uc.Ctx, uc.Interaction, uc.Target)
	if err != nil {
		return "", err
	}
	return reasonOf(first(out), "Disabled by "+f.Method.Name)
}

// Immutable marks a class whose properties may not be changed.
type Immutable struct {
	Reason string
}

func (f Immutable) Type() facet.Type { return TypeImmutable }

func (f Immutable) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Immutable)
	return ok && o.Reason == f.Reason
}

// DisabledReason is the reason carried by the Disabled facets derived from
// the class.
func (f Immutable) DisabledReason() string {
	if f.Reason == "" {
		return "Immutable"
	}
	return f.Reason
}
