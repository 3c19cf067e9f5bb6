package facets

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

// Named is the display name of an element. Derived names come from the Go
// identifier.
type Named struct {
	Name    string
	Derived bool
}

func (f Named) Type() facet.Type { return TypeNamed }

func (f Named) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Named)
	return ok && o.Name == f.Name
}

// DescribedAs is a longer description of an element.
type DescribedAs struct {
	Text string
}

func (f DescribedAs) Type() facet.Type { return TypeDescribedAs }

func (f DescribedAs) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(DescribedAs)
	return ok && o.Text == f.Text
}

// Plural is the plural display name of a class.
type Plural struct {
	Name    string
	Derived bool
}

func (f Plural) Type() facet.Type { return TypePlural }

func (f Plural) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Plural)
	return ok && o.Name == f.Name
}

// LogicalTypeName is the stable external name of a class.
type LogicalTypeName struct {
	Name    string
	Derived bool
}

func (f LogicalTypeName) Type() facet.Type { return TypeLogicalTypeName }

func (f LogicalTypeName) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(LogicalTypeName)
	return ok && o.Name == f.Name
}

// MemberOrder positions a member within a named group. Sequences are
// dotted numbers compared component-wise ("1.10" sorts after "1.9").
type MemberOrder struct {
	Group    string
	Sequence string
}

func (f MemberOrder) Type() facet.Type { return TypeMemberOrder }

func (f MemberOrder) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(MemberOrder)
	return ok && o == f
}

// ParseMemberOrder parses "group,sequence" or a bare sequence.
func ParseMemberOrder(value string) (MemberOrder, error) {
	group, seq, found := strings.Cut(value, ",")
	if !found {
		group, seq = "", value
	}
	group, seq = strings.TrimSpace(group), strings.TrimSpace(seq)
	if seq == "" {
		return MemberOrder{}, fmt.Errorf("facets: member order %q has no sequence", value)
	}
	for _, part := range strings.Split(seq, ".") {
		if _, err := strconv.Atoi(part); err != nil {
			return MemberOrder{}, fmt.Errorf("facets: member order sequence %q is not dotted numeric", seq)
		}
	}
	return MemberOrder{Group: group, Sequence: seq}, nil
}

// CompareSequence orders two dotted sequences.
func CompareSequence(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA != nil || errB != nil {
			if c := strings.Compare(pa[i], pb[i]); c != 0 {
				return c
			}
			continue
		}
		if na != nb {
			return na - nb
		}
	}
	return len(pa) - len(pb)
}

// Titler produces the title of an object.
type Titler interface {
	facet.Facet
	Title(ctx context.Context, target any) (string, error)
}

// TitleViaMethod calls the object's Title method.
type TitleViaMethod struct {
	Method MethodRef
}

func (f TitleViaMethod) Type() facet.Type { return TypeTitle }

func (f TitleViaMethod) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(TitleViaMethod)
	return ok && o.Method == f.Method
}

func (f TitleViaMethod) Title(ctx context.Context, target any) (string, error) {
	out, err := f.Method.Call(ctx, facet.InteractionContext{}, target)
	if err != nil {
		return "", err
	}
	s, _ := first(out).(string)
	return s, nil
}

// TitleField is one property contributing to a composed title.
type TitleField struct {
	Name     string
	Index    []int
	Sequence string
}

// TitleFromProperties joins the non-empty values of annotated properties in
// sequence order.
type TitleFromProperties struct {
	Fields []TitleField
}

func (f TitleFromProperties) Type() facet.Type { return TypeTitle }

func (f TitleFromProperties) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(TitleFromProperties)
	return ok && slices.EqualFunc(o.Fields, f.Fields, func(a, b TitleField) bool {
		return a.Name == b.Name && a.Sequence == b.Sequence
	})
}

func (f TitleFromProperties) Title(_ context.Context, target any) (string, error) {
	parts := make([]string, 0, len(f.Fields))
	for _, field := range f.Fields {
		v, err := introspect.GetField(target, field.Index)
		if err != nil {
			return "", err
		}
		if introspect.IsEmpty(v) {
			continue
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, " "), nil
}

// IconName calls the object's IconName method.
type IconName struct {
	Method MethodRef
}

func (f IconName) Type() facet.Type { return TypeIconName }

func (f IconName) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(IconName)
	return ok && o.Method == f.Method
}

func (f IconName) IconName(ctx context.Context, target any) (string, error) {
	out, err := f.Method.Call(ctx, facet.InteractionContext{}, target)
	if err != nil {
		return "", err
	}
	s, _ := first(out).(string)
	return s, nil
}

// Publishing marks objects or actions whose changes are published. Derived
// facets carry the configured default.
type Publishing struct {
	Enabled bool
	Derived bool
}

func (f Publishing) Type() facet.Type { return TypePublishing }

func (f Publishing) SemanticEquals(other facet.Facet) bool {
	o, ok := other.(Publishing)
	return ok && o == f
}
