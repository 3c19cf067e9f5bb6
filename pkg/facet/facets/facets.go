// Package facets provides the concrete facets installed by the built-in
// factories. Every facet is immutable once constructed and compares
// semantically on its configured values.
package facets

import (
	"context"
	"fmt"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

// Facet types.
const (
	TypeHidden             facet.Type = "hidden"
	TypeHiddenWhenEmpty    facet.Type = "hiddenWhenEmpty"
	TypeHideViaMethod      facet.Type = "hideViaMethod"
	TypeDisabled           facet.Type = "disabled"
	TypeDisableViaMethod   facet.Type = "disableViaMethod"
	TypeImmutable          facet.Type = "immutable"
	TypeRegEx              facet.Type = "regex"
	TypeMaxLength          facet.Type = "maxLength"
	TypeMandatory          facet.Type = "mandatory"
	TypeValidateViaMethod  facet.Type = "validateViaMethod"
	TypeObjectValidate     facet.Type = "objectValidate"
	TypeMemberOrder        facet.Type = "memberOrder"
	TypeNamed              facet.Type = "named"
	TypeDescribedAs        facet.Type = "describedAs"
	TypePlural             facet.Type = "plural"
	TypeLogicalTypeName    facet.Type = "logicalTypeName"
	TypeTitle              facet.Type = "title"
	TypeIconName           facet.Type = "iconName"
	TypeDefault            facet.Type = "default"
	TypeDefaulted          facet.Type = "defaulted"
	TypeChoices            facet.Type = "choices"
	TypeParseable          facet.Type = "parseable"
	TypeValue              facet.Type = "value"
	TypePropertyAccessor   facet.Type = "propertyAccessor"
	TypePropertySetter     facet.Type = "propertySetter"
	TypePropertyClear      facet.Type = "propertyClear"
	TypeActionInvocation   facet.Type = "actionInvocation"
	TypeCollectionAccessor facet.Type = "collectionAccessor"
	TypeTypeOf             facet.Type = "typeOf"
	TypeRoles              facet.Type = "roles"
	TypePublishing         facet.Type = "publishing"
	TypeProgrammatic       facet.Type = "programmatic"
)

// ContextParam describes the optional leading parameter of a supporting
// method.
type ContextParam int

const (
	NoContext ContextParam = iota
	// InteractionParam passes the facet.InteractionContext.
	InteractionParam
	// StdContextParam passes the context.Context of the query.
	StdContextParam
)

// MethodRef names a domain method invoked by a facet.
type MethodRef struct {
	Name    string
	Context ContextParam
}

// IsZero reports whether no method is referenced.
func (m MethodRef) IsZero() bool {
	return m.Name == ""
}

// Call invokes the method on target, supplying the leading context
// parameter when the method declares one.
func (m MethodRef) Call(ctx context.Context, ic facet.InteractionContext, target any, args ...any) ([]any, error) {
	switch m.Context {
	case InteractionParam:
		args = append([]any{ic}, args...)
	case StdContextParam:
		if ctx == nil {
			ctx = context.Background()
		}
		args = append([]any{ctx}, args...)
	}
	return introspect.Call(target, m.Name, args...)
}

func (m MethodRef) String() string {
	return m.Name
}

func first(results []any) any {
	if len(results) == 0 {
		return nil
	}
	return results[0]
}

// reasonOf converts a supporting method result into a veto reason: strings
// pass through, true becomes fallback.
func reasonOf(result any, fallback string) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		if v {
			return fallback, nil
		}
		return "", nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("facets: unsupported advisor result %T", result)
	}
}

// Marker is a facet with no configuration, identified only by its type.
type Marker struct {
	T facet.Type
}

func (f Marker) Type() facet.Type { return f.T }

func (f Marker) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Marker)
	return ok && o.T == f.T
}

// Programmatic marks a member excluded from the metamodel.
func Programmatic() Marker {
	return Marker{T: TypeProgrammatic}
}
