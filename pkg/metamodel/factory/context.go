package factory

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/validation"
)

// Naming holds the prefixes of naming-convention supporting methods.
type Naming struct {
	Hide     string `yaml:"hide"`
	Disable  string `yaml:"disable"`
	Validate string `yaml:"validate"`
	Default  string `yaml:"default"`
	Choices  string `yaml:"choices"`
	Modify   string `yaml:"modify"`
	Clear    string `yaml:"clear"`
}

// DefaultNaming returns the standard prefixes.
func DefaultNaming() Naming {
	return Naming{
		Hide:     "Hide",
		Disable:  "Disable",
		Validate: "Validate",
		Default:  "Default",
		Choices:  "Choices",
		Modify:   "Modify",
		Clear:    "Clear",
	}
}

// WithDefaults fills empty prefixes.
func (n Naming) WithDefaults() Naming {
	d := DefaultNaming()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&n.Hide, d.Hide)
	fill(&n.Disable, d.Disable)
	fill(&n.Validate, d.Validate)
	fill(&n.Default, d.Default)
	fill(&n.Choices, d.Choices)
	fill(&n.Modify, d.Modify)
	fill(&n.Clear, d.Clear)
	return n
}

// Prefixes lists the configured prefixes.
func (n Naming) Prefixes() []string {
	return []string{n.Hide, n.Disable, n.Validate, n.Default, n.Choices, n.Modify, n.Clear}
}

// IsSupporting reports whether a method name looks like a supporting
// method: a prefix followed by an upper-case letter or a digit.
func (n Naming) IsSupporting(method string) bool {
	for _, p := range n.Prefixes() {
		if p == "" || !strings.HasPrefix(method, p) || len(method) == len(p) {
			continue
		}
		r := rune(method[len(p)])
		if unicode.IsUpper(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// ParamMethod names a parameter supporting method: prefix, index, action.
func ParamMethod(prefix string, index int, action string) string {
	return prefix + strconv.Itoa(index) + action
}

// MemberName converts a Go identifier to a member id: PlaceOrder becomes
// placeOrder and URLPath becomes urlPath.
func MemberName(goName string) string {
	runes := []rune(goName)
	for i := range runes {
		if !unicode.IsUpper(runes[i]) {
			break
		}
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// Humanize splits a Go identifier into words: PlaceOrder becomes
// "Place Order".
func Humanize(goName string) string {
	runes := []rune(goName)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TypeLookup resolves the class-level facets of another type. The loader
// implements it; factories use it for facets derived from a member's type.
type TypeLookup interface {
	ClassFacets(ctx context.Context, ref introspect.TypeRef) (*facet.Holder, error)
}

// MethodRemover tracks which methods of a class have been claimed by a
// factory. Claimed methods are never treated as actions.
type MethodRemover struct {
	methods map[string]introspect.Method
	claimed map[string]bool
}

// NewMethodRemover tracks the methods of class.
func NewMethodRemover(class *introspect.Class) *MethodRemover {
	r := &MethodRemover{
		methods: make(map[string]introspect.Method, len(class.Methods)),
		claimed: make(map[string]bool),
	}
	for _, m := range class.Methods {
		r.methods[m.Name] = m
	}
	return r
}

// Find returns the unclaimed method called name.
func (r *MethodRemover) Find(name string) (introspect.Method, bool) {
	if r.claimed[name] {
		return introspect.Method{}, false
	}
	m, ok := r.methods[name]
	return m, ok
}

// Claim removes name from the candidate methods.
func (r *MethodRemover) Claim(name string) {
	if _, ok := r.methods[name]; ok {
		r.claimed[name] = true
	}
}

// Claimed reports whether name was claimed.
func (r *MethodRemover) Claimed(name string) bool {
	return r.claimed[name]
}

// Remaining returns the unclaimed methods sorted by name.
func (r *MethodRemover) Remaining() []introspect.Method {
	out := make([]introspect.Method, 0, len(r.methods))
	for name, m := range r.methods {
		if !r.claimed[name] {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b introspect.Method) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Env is the state shared by every context of one class build.
type Env struct {
	Ctx      context.Context
	Naming   Naming
	Types    TypeLookup
	Remover  *MethodRemover
	Failures *validation.Failures
}

func (e *Env) fail(id facet.Identifier, source string, severity validation.Severity, format string, args ...any) {
	if e.Failures == nil {
		return
	}
	e.Failures.Addf(id, severity, source, format, args...)
}

// ClassContext is passed to class processors.
type ClassContext struct {
	*Env
	Class   *introspect.Class
	Holder  *facet.Holder
	factory string
}

// NewClassContext builds a class context.
func NewClassContext(env *Env, class *introspect.Class, holder *facet.Holder) *ClassContext {
	return &ClassContext{Env: env, Class: class, Holder: holder}
}

// Fail records a failure against the class.
func (c *ClassContext) Fail(severity validation.Severity, format string, args ...any) {
	c.fail(c.Holder.Identifier(), c.factory, severity, format, args...)
}

// FieldContext is passed to field processors.
type FieldContext struct {
	*Env
	Class       *introspect.Class
	ClassHolder *facet.Holder
	Field       introspect.Field
	Feature     FeatureType
	Holder      *facet.Holder
	factory     string
}

// NewFieldContext builds a field context.
func NewFieldContext(env *Env, class *introspect.Class, classHolder *facet.Holder, field introspect.Field, feature FeatureType, holder *facet.Holder) *FieldContext {
	return &FieldContext{Env: env, Class: class, ClassHolder: classHolder, Field: field, Feature: feature, Holder: holder}
}

// Fail records a failure against the member.
func (c *FieldContext) Fail(severity validation.Severity, format string, args ...any) {
	c.fail(c.Holder.Identifier(), c.factory, severity, format, args...)
}

// MethodContext is passed to action processors.
type MethodContext struct {
	*Env
	Class       *introspect.Class
	ClassHolder *facet.Holder
	Method      introspect.Method
	Holder      *facet.Holder
	factory     string
}

// NewMethodContext builds an action context.
func NewMethodContext(env *Env, class *introspect.Class, classHolder *facet.Holder, method introspect.Method, holder *facet.Holder) *MethodContext {
	return &MethodContext{Env: env, Class: class, ClassHolder: classHolder, Method: method, Holder: holder}
}

// Fail records a failure against the action.
func (c *MethodContext) Fail(severity validation.Severity, format string, args ...any) {
	c.fail(c.Holder.Identifier(), c.factory, severity, format, args...)
}

// Params returns the action parameters following any context parameter.
func (c *MethodContext) Params() []introspect.TypeRef {
	params, _ := c.Method.ParamsAfterContext()
	return params
}

// ParamContext is passed to parameter processors.
type ParamContext struct {
	*Env
	Class        *introspect.Class
	ClassHolder  *facet.Holder
	Method       introspect.Method
	ActionHolder *facet.Holder
	Index        int
	Param        introspect.TypeRef
	Holder       *facet.Holder
	factory      string
}

// NewParamContext builds a parameter context.
func NewParamContext(env *Env, class *introspect.Class, classHolder *facet.Holder, method introspect.Method, actionHolder *facet.Holder, index int, param introspect.TypeRef, holder *facet.Holder) *ParamContext {
	return &ParamContext{
		Env:          env,
		Class:        class,
		ClassHolder:  classHolder,
		Method:       method,
		ActionHolder: actionHolder,
		Index:        index,
		Param:        param,
		Holder:       holder,
	}
}

// Fail records a failure against the parameter.
func (c *ParamContext) Fail(severity validation.Severity, format string, args ...any) {
	c.fail(c.Holder.Identifier(), c.factory, severity, format, args...)
}
