package facets

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

type account struct {
	Phone  string
	Notes  []string
	Status string
}

func (a *account) HidePhone() bool { return a.Status == "closed" }

func (a *account) DisableNotes(ic facet.InteractionContext) string {
	if ic.User.HasRole("auditor") {
		return ""
	}
	return "Only auditors may edit notes"
}

func (a *account) ValidatePhone(v string) (string, error) {
	if v == "fail" {
		return "", errors.New("lookup failed")
	}
	if v == "000-0000" {
		return "Reserved number", nil
	}
	return "", nil
}

func (a *account) ChoicesStatus() []string { return []string{"open", "closed"} }

func TestRegExScenario(t *testing.T) {
	re, err := NewRegEx(`\d{3}-\d{4}`, false)
	require.NoError(t, err)

	reason, err := re.Invalidates(facet.ValidityContext{Proposed: "555-1234"})
	require.NoError(t, err)
	assert.Empty(t, reason)

	reason, err = re.Invalidates(facet.ValidityContext{Proposed: "bogus"})
	require.NoError(t, err)
	assert.Contains(t, reason, "match")

	reason, err = re.Invalidates(facet.ValidityContext{Proposed: "555-1234x"})
	require.NoError(t, err)
	assert.NotEmpty(t, reason, "pattern must match the whole value")

	reason, _ = re.Invalidates(facet.ValidityContext{Proposed: ""})
	assert.Empty(t, reason, "empty values are left to Mandatory")

	_, err = NewRegEx(`(`, false)
	assert.Error(t, err)

	ci, err := NewRegEx(`abc`, true)
	require.NoError(t, err)
	reason, _ = ci.Invalidates(facet.ValidityContext{Proposed: "ABC"})
	assert.Empty(t, reason)
	assert.False(t, ci.SemanticEquals(re))
}

func TestHiddenWhenEmpty(t *testing.T) {
	f := HiddenWhenEmpty{Index: []int{1}}
	reason, err := f.Hides(facet.VisibilityContext{Target: &account{}})
	require.NoError(t, err)
	assert.NotEmpty(t, reason)

	reason, err = f.Hides(facet.VisibilityContext{Target: &account{Notes: []string{"x"}}})
	require.NoError(t, err)
	assert.Empty(t, reason)

	reason, _ = f.Hides(facet.VisibilityContext{})
	assert.Empty(t, reason, "no target, nothing to inspect")
}

func TestHiddenScope(t *testing.T) {
	f := Hidden{Where: facet.WhereAllTables}
	reason, _ := f.Hides(facet.VisibilityContext{Interaction: facet.InteractionContext{Where: facet.WhereStandaloneTables}})
	assert.Equal(t, "Hidden", reason)
	reason, _ = f.Hides(facet.VisibilityContext{Interaction: facet.InteractionContext{Where: facet.WhereObjectForms}})
	assert.Empty(t, reason)
}

func TestMethodBackedAdvisors(t *testing.T) {
	ctx := context.Background()
	acc := &account{Status: "closed"}

	hide := HideViaMethod{Method: MethodRef{Name: "HidePhone"}}
	reason, err := hide.Hides(facet.VisibilityContext{Ctx: ctx, Target: acc})
	require.NoError(t, err)
	assert.Equal(t, "Hidden by HidePhone", reason)

	disable := DisableViaMethod{Method: MethodRef{Name: "DisableNotes", Context: InteractionParam}}
	reason, err = disable.Disables(facet.UsabilityContext{Ctx: ctx, Target: acc})
	require.NoError(t, err)
	assert.Equal(t, "Only auditors may edit notes", reason)
	reason, err = disable.Disables(facet.UsabilityContext{
		Ctx:         ctx,
		Target:      acc,
		Interaction: facet.UserInteraction(facet.User{Name: "ann", Roles: []string{"auditor"}}),
	})
	require.NoError(t, err)
	assert.Empty(t, reason)

	validate := ValidateViaMethod{Method: MethodRef{Name: "ValidatePhone"}}
	reason, err = validate.Invalidates(facet.ValidityContext{Ctx: ctx, Target: acc, Proposed: "000-0000"})
	require.NoError(t, err)
	assert.Equal(t, "Reserved number", reason)

	_, err = validate.Invalidates(facet.ValidityContext{Ctx: ctx, Target: acc, Proposed: "fail"})
	var invErr *introspect.InvocationError
	assert.ErrorAs(t, err, &invErr)

	choices := ChoicesViaMethod{Method: MethodRef{Name: "ChoicesStatus"}}
	values, err := choices.Choices(ctx, facet.InteractionContext{}, acc)
	require.NoError(t, err)
	assert.Equal(t, []any{"open", "closed"}, values)
}

func TestMandatoryAndMaxLength(t *testing.T) {
	reason, _ := Mandatory{}.Invalidates(facet.ValidityContext{Proposed: ""})
	assert.Equal(t, "Mandatory", reason)
	reason, _ = Mandatory{Optional: true}.Invalidates(facet.ValidityContext{})
	assert.Empty(t, reason)
	assert.False(t, Mandatory{Derived: true}.SemanticEquals(Mandatory{}))

	reason, _ = MaxLength{Max: 3}.Invalidates(facet.ValidityContext{Proposed: "héllo"})
	assert.Contains(t, reason, "maximum 3")
	reason, _ = MaxLength{Max: 3}.Invalidates(facet.ValidityContext{Proposed: "hé"})
	assert.Empty(t, reason)
}

func TestRoles(t *testing.T) {
	f := Roles{Roles: []string{"admin", "ops"}}
	reason, _ := f.Hides(facet.VisibilityContext{Interaction: facet.UserInteraction(facet.User{Roles: []string{"ops"}})})
	assert.Empty(t, reason)
	reason, _ = f.Hides(facet.VisibilityContext{Interaction: facet.UserInteraction(facet.User{})})
	assert.Contains(t, reason, "admin, ops")
}

func TestMemberOrder(t *testing.T) {
	mo, err := ParseMemberOrder("details, 1.10")
	require.NoError(t, err)
	assert.Equal(t, MemberOrder{Group: "details", Sequence: "1.10"}, mo)

	_, err = ParseMemberOrder("details,")
	assert.Error(t, err)
	_, err = ParseMemberOrder("x.y")
	assert.Error(t, err)

	assert.Positive(t, CompareSequence("1.10", "1.9"))
	assert.Negative(t, CompareSequence("1", "1.1"))
	assert.Zero(t, CompareSequence("2.3", "2.3"))
}

func TestParseable(t *testing.T) {
	cases := []struct {
		kind introspect.Kind
		text string
		want any
	}{
		{introspect.KindString, "x", "x"},
		{introspect.KindBool, "true", true},
		{introspect.KindInt, "-4", int64(-4)},
		{introspect.KindUint, "4", uint64(4)},
		{introspect.KindFloat, "1.5", 1.5},
		{introspect.KindDuration, "2s", 2 * time.Second},
	}
	for _, tc := range cases {
		got, err := Parseable{Kind: tc.kind}.Parse(tc.text)
		require.NoError(t, err, tc.kind)
		assert.Equal(t, tc.want, got, tc.kind)
	}
	_, err := Parseable{Kind: introspect.KindStruct}.Parse("x")
	assert.ErrorIs(t, err, ErrNotParseable)

	got, err := Parseable{Kind: introspect.KindInt, Bits: 8}.Parse("127")
	require.NoError(t, err)
	assert.Equal(t, int64(127), got)
	_, err = Parseable{Kind: introspect.KindInt, Bits: 8}.Parse("300")
	assert.ErrorIs(t, err, strconv.ErrRange)
	_, err = Parseable{Kind: introspect.KindUint, Bits: 16}.Parse("70000")
	assert.ErrorIs(t, err, strconv.ErrRange)
	_, err = Parseable{Kind: introspect.KindFloat, Bits: 32}.Parse("1e39")
	assert.ErrorIs(t, err, strconv.ErrRange)
	assert.False(t, Parseable{Kind: introspect.KindInt, Bits: 8}.SemanticEquals(Parseable{Kind: introspect.KindInt, Bits: 64}))
}

func TestTitleFromProperties(t *testing.T) {
	f := TitleFromProperties{Fields: []TitleField{{Name: "Status", Index: []int{2}}, {Name: "Phone", Index: []int{0}}}}
	title, err := f.Title(context.Background(), &account{Phone: "555-1234", Status: "open"})
	require.NoError(t, err)
	assert.Equal(t, "open 555-1234", title)
}

func TestActionInvocationComparesSignature(t *testing.T) {
	str := introspect.TypeRef{Key: "string", Kind: introspect.KindString}
	num := introspect.TypeRef{Key: "int", Kind: introspect.KindInt}
	inv := ActionInvocation{Method: MethodRef{Name: "Place"}, Params: []introspect.TypeRef{str, num}}

	assert.True(t, inv.SemanticEquals(ActionInvocation{Method: MethodRef{Name: "Place"}, Params: []introspect.TypeRef{str, num}}))
	assert.False(t, inv.SemanticEquals(ActionInvocation{Method: MethodRef{Name: "Place"}, Params: []introspect.TypeRef{num, str}}))
	assert.False(t, inv.SemanticEquals(ActionInvocation{Method: MethodRef{Name: "Place"}, Params: []introspect.TypeRef{str}}))

	h := facet.NewHolder(facet.Identifier{Class: "x.T", Member: "place"})
	h.Add(inv)
	replacement := ActionInvocation{Method: MethodRef{Name: "Place"}, Params: []introspect.TypeRef{num, num}}
	assert.True(t, h.Add(replacement))
	got, ok := facet.Lookup[ActionInvocation](h, TypeActionInvocation)
	require.True(t, ok)
	assert.Equal(t, "int", got.Params[0].Key)
}
