package factory

import (
	"fmt"
	"strings"

	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
)

// resultRule constrains the non-error result of a supporting method.
type resultRule int

const (
	resultNone resultRule = iota
	// resultHide accepts bool or string.
	resultHide
	resultString
	// resultType requires a result of the expected type.
	resultType
	// resultSliceOf requires a slice whose element is the expected type.
	resultSliceOf
	// resultAnyValue requires exactly one result of any type.
	resultAnyValue
)

// expect describes a supporting method signature.
type expect struct {
	params []introspect.TypeRef
	result resultRule
	// of is the type checked by resultType and resultSliceOf.
	of introspect.TypeRef
}

// contextParam reports the kind of leading context parameter of m.
func contextParam(m introspect.Method) facets.ContextParam {
	if len(m.Params) == 0 {
		return facets.NoContext
	}
	switch {
	case m.Params[0].Is(introspect.InteractionContextKey):
		return facets.InteractionParam
	case m.Params[0].Is(introspect.ContextKey):
		return facets.StdContextParam
	}
	return facets.NoContext
}

// check returns a description of how m deviates from e, empty when it
// conforms.
func (e expect) check(m introspect.Method) string {
	if m.Variadic {
		return "must not be variadic"
	}
	params, _ := m.ParamsAfterContext()
	if len(params) != len(e.params) {
		return fmt.Sprintf("expected %d parameter(s), found %d", len(e.params), len(params))
	}
	for i, want := range e.params {
		if want.Key != "" && params[i].Key != want.Key {
			return fmt.Sprintf("parameter %d must be %s, found %s", i, want.Name, params[i].Name)
		}
	}
	results := m.Results
	if n := len(results); n > 0 && results[n-1].Kind == introspect.KindError {
		results = results[:n-1]
	}
	switch e.result {
	case resultNone:
		if len(results) != 0 {
			return "must not return a value"
		}
		return ""
	}
	if len(results) != 1 {
		return fmt.Sprintf("expected 1 result, found %d", len(results))
	}
	r := results[0]
	switch e.result {
	case resultHide:
		if r.Kind != introspect.KindBool && r.Kind != introspect.KindString {
			return "must return bool or string, found " + r.Name
		}
	case resultString:
		if r.Kind != introspect.KindString {
			return "must return string, found " + r.Name
		}
	case resultType:
		if e.of.Key != "" && r.Key != e.of.Key {
			return fmt.Sprintf("must return %s, found %s", e.of.Name, r.Name)
		}
	case resultSliceOf:
		if r.Kind != introspect.KindSlice || r.Elem == nil || (e.of.Key != "" && r.Elem.Key != e.of.Key) {
			return fmt.Sprintf("must return []%s, found %s", e.of.Name, r.Name)
		}
	}
	return ""
}

// claim looks up a supporting method by name, claims it and checks its
// signature. A malformed method is still claimed, so it is not reported as
// an orphan or mistaken for an action, and the problem is returned.
func claim(remover *MethodRemover, name string, e expect) (facets.MethodRef, string, bool) {
	m, ok := remover.Find(name)
	if !ok {
		return facets.MethodRef{}, "", false
	}
	remover.Claim(name)
	if problem := e.check(m); problem != "" {
		return facets.MethodRef{}, fmt.Sprintf("supporting method %s: %s", name, problem), true
	}
	return facets.MethodRef{Name: name, Context: contextParam(m)}, "", true
}

// splitList splits a separated annotation value, trimming blanks.
func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
