package facets

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

// RegEx requires string values to match a pattern in full. Empty values are
// left to the Mandatory facet.
type RegEx struct {
	Pattern         string
	CaseInsensitive bool
	re              *regexp.Regexp
}

// NewRegEx compiles pattern.
func NewRegEx(pattern string, caseInsensitive bool) (RegEx, error) {
	expr := "^(?:" + pattern + ")$"
	if caseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return RegEx{}, err
	}
	return RegEx{Pattern: pattern, CaseInsensitive: caseInsensitive, re: re}, nil
}

func (f RegEx) Type() facet.Type { return TypeRegEx }

func (f RegEx) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(RegEx)
	return ok && o.Pattern == f.Pattern && o.CaseInsensitive == f.CaseInsensitive
}

func (f RegEx) Invalidates(vc facet.ValidityContext) (string, error) {
	if introspect.IsEmpty(vc.Proposed) {
		return "", nil
	}
	if f.re == nil {
		return "", fmt.Errorf("facets: regex %q not compiled", f.Pattern)
	}
	text := fmt.Sprint(vc.Proposed)
	if s, ok := vc.Proposed.(string); ok {
		text = s
	}
	if !f.re.MatchString(text) {
		return fmt.Sprintf("Value does not match pattern %s", f.Pattern), nil
	}
	return "", nil
}

// MaxLength limits the number of characters of string values.
type MaxLength struct {
	Max int
}

func (f MaxLength) Type() facet.Type { return TypeMaxLength }

func (f MaxLength) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(MaxLength)
	return ok && o.Max == f.Max
}

func (f MaxLength) Invalidates(vc facet.ValidityContext) (string, error) {
	s, ok := vc.Proposed.(string)
	if !ok {
		return "", nil
	}
	if n := utf8.RuneCountInString(s); n > f.Max {
		return fmt.Sprintf("Too long, maximum %d characters (got %d)", f.Max, n), nil
	}
	return "", nil
}

// Mandatory rejects empty values unless the element is optional. Derived
// facets come from the element type and are replaced by explicit ones.
type Mandatory struct {
	Optional bool
	Derived  bool
}

func (f Mandatory) Type() facet.Type { return TypeMandatory }

func (f Mandatory) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Mandatory)
	return ok && o == f
}

func (f Mandatory) Invalidates(vc facet.ValidityContext) (string, error) {
	if f.Optional || !introspect.IsEmpty(vc.Proposed) {
		return "", nil
	}
	return "Mandatory", nil
}

// ValidationTarget selects what a ValidateViaMethod facet passes to its
// method.
type ValidationTarget int

const (
	// ValidateProposed passes the proposed property or parameter value.
	ValidateProposed ValidationTarget = iota
	// ValidateArguments passes the whole argument set.
	ValidateArguments
)

// ValidateViaMethod consults a ValidateXxx supporting method returning the
// reason, empty when valid.
type ValidateViaMethod struct {
	Method MethodRef
	Target ValidationTarget
}

func (f ValidateViaMethod) Type() facet.Type { return TypeValidateViaMethod }

func (f ValidateViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(ValidateViaMethod)
	return ok && o == f
}

func (f ValidateViaMethod) Invalidates(vc facet.ValidityContext) (string, error) {
	if vc.Target == nil {
		return "", nil
	}
	var args []any
	if f.Target == ValidateArguments {
		args = vc.Args
	} else {
		args = []any{vc.Proposed}
	}
	out, err := f.Method.Call(vc.Ctx, vc.Interaction, vc.Target, args...)
	if err != nil {
		return "", err
	}
	return reasonOf(first(out), "Invalid")
}

// ObjectValidateViaMethod consults the object's Validate method.
type ObjectValidateViaMethod struct {
	Method MethodRef
}

func (f ObjectValidateViaMethod) Type() facet.Type { return TypeObjectValidate }

func (f ObjectValidateViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(ObjectValidateViaMethod)
	return ok && o.Method == f.Method
}

func (f ObjectValidateViaMethod) Invalidates(vc facet.ValidityContext) (string, error) {
	if vc.Target == nil {
		return "", nil
	}
	out, err := f.Method.Call(vc.Ctx, vc.Interaction, vc.Target)
	if err != nil {
		return "", err
	}
	return reasonOf(first(out), "Invalid")
}
