package metamodel

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/pkg/facet"
	"metacore/pkg/introspect"
)

func loadCustomer(t *testing.T) *Specification {
	t.Helper()
	spec, err := newTestLoader(t, Options{Mode: ModeLazy}).Load(context.Background(), typeOf[Customer]())
	require.NoError(t, err)
	return spec
}

func user() facet.InteractionContext {
	return facet.UserInteraction(facet.User{Name: "ada"})
}

func programmatic() facet.InteractionContext {
	ic := user()
	ic.Initiation = facet.Programmatic
	return ic
}

func requireVeto(t *testing.T, err error, concern facet.Concern) *facet.VetoError {
	t.Helper()
	var veto *facet.VetoError
	require.ErrorAs(t, err, &veto)
	assert.Equal(t, concern, veto.Concern)
	return veto
}

func TestPropertyRegexScenario(t *testing.T) {
	ctx := context.Background()
	phone, ok := loadCustomer(t).Property("phone")
	require.True(t, ok)
	c := &Customer{Name: "Ada"}

	consent, err := phone.IsValid(ctx, c, "555-1234", user())
	require.NoError(t, err)
	assert.True(t, consent.IsAllowed())

	err = phone.Set(ctx, c, "bogus", user())
	veto := requireVeto(t, err, facet.ConcernValidity)
	assert.Contains(t, veto.Reason, "match")
	assert.Empty(t, c.Phone)

	require.NoError(t, phone.Set(ctx, c, "555-1234", user()))
	value, err := phone.Get(c)
	require.NoError(t, err)
	assert.Equal(t, "555-1234", value)

	err = phone.Set(ctx, c, "bogus", programmatic())
	requireVeto(t, err, facet.ConcernValidity)
}

func TestHiddenWhenEmptyScenario(t *testing.T) {
	ctx := context.Background()
	notes, ok := loadCustomer(t).Property("notes")
	require.True(t, ok)
	c := &Customer{}

	consent, err := notes.IsVisible(ctx, c, user())
	require.NoError(t, err)
	assert.True(t, consent.IsVetoed())
	assert.Equal(t, "Hidden when empty", consent.Reason())

	consent, err = notes.IsVisible(ctx, c, programmatic())
	require.NoError(t, err)
	assert.True(t, consent.IsAllowed())

	c.Notes = "prefers email"
	consent, err = notes.IsVisible(ctx, c, user())
	require.NoError(t, err)
	assert.True(t, consent.IsAllowed())
}

func TestDisabledPropertyIsWritableProgrammatically(t *testing.T) {
	ctx := context.Background()
	status, ok := loadCustomer(t).Property("status")
	require.True(t, ok)
	c := &Customer{}

	veto := requireVeto(t, status.Set(ctx, c, "active", user()), facet.ConcernUsability)
	assert.Equal(t, "Managed by workflow", veto.Reason)

	require.NoError(t, status.Set(ctx, c, "active", programmatic()))
	assert.Equal(t, "active", c.Status)

	choices, err := status.Choices(ctx, c, user())
	require.NoError(t, err)
	assert.Equal(t, []any{"new", "active", "closed"}, choices)

	require.NoError(t, status.Clear(ctx, c, programmatic()))
	assert.Empty(t, c.Status)
}

func TestMandatoryPropertyCannotBeCleared(t *testing.T) {
	ctx := context.Background()
	name, ok := loadCustomer(t).Property("name")
	require.True(t, ok)
	assert.True(t, name.IsMandatory())
	c := &Customer{Name: "Ada"}

	veto := requireVeto(t, name.Clear(ctx, c, user()), facet.ConcernValidity)
	assert.Equal(t, "Mandatory", veto.Reason)
	assert.Equal(t, "Ada", c.Name)

	requireVeto(t, name.Set(ctx, c, "A name far too long", user()), facet.ConcernValidity)
}

func TestActionExecution(t *testing.T) {
	ctx := context.Background()
	action, ok := loadCustomer(t).Action("placeOrder")
	require.True(t, ok)
	c := &Customer{Name: "Ada"}

	defaults, err := action.Defaults(ctx, c, user())
	require.NoError(t, err)
	assert.Equal(t, []any{nil, 1}, defaults)

	consent, err := action.IsArgumentValid(ctx, c, 1, 0, user())
	require.NoError(t, err)
	assert.Equal(t, "quantity must be positive", consent.Reason())

	_, err = action.Execute(ctx, c, []any{"SKU-1", 0}, user())
	requireVeto(t, err, facet.ConcernValidity)

	_, err = action.Execute(ctx, c, []any{"SKU-1"}, user())
	veto := requireVeto(t, err, facet.ConcernValidity)
	assert.Equal(t, "expected 2 arguments, got 1", veto.Reason)

	result, err := action.Execute(ctx, c, []any{"SKU-1", 2}, user())
	require.NoError(t, err)
	order, ok := result.(*Order)
	require.True(t, ok)
	assert.Equal(t, 2, order.Qty)
	assert.Len(t, c.Orders, 1)

	_, err = action.Execute(ctx, c, []any{"broken", 1}, user())
	assert.ErrorIs(t, err, errOutOfStock)
	var invocation *introspect.InvocationError
	assert.ErrorAs(t, err, &invocation)
}

func TestNumericValuesMustFitTheDeclaredType(t *testing.T) {
	ctx := context.Background()
	spec, err := newTestLoader(t, Options{Mode: ModeLazy}).Load(ctx, typeOf[Meter]())
	require.NoError(t, err)
	m := &Meter{Label: "boiler"}

	level, ok := spec.Property("level")
	require.True(t, ok)
	assert.ErrorIs(t, level.Set(ctx, m, 300, user()), introspect.ErrOutOfRange)
	assert.Zero(t, m.Level)
	require.NoError(t, level.Set(ctx, m, 12, user()))
	assert.Equal(t, int8(12), m.Level)

	adjust, ok := spec.Action("adjust")
	require.True(t, ok)
	_, err = adjust.Execute(ctx, m, []any{3.7}, user())
	assert.ErrorIs(t, err, introspect.ErrOutOfRange)
	assert.Equal(t, int8(12), m.Level)

	var report []string
	for _, f := range spec.Failures() {
		report = append(report, f.String())
	}
	assert.Contains(t, strings.Join(report, "\n"), `default "300" is not a valid int8`)
	assert.Contains(t, strings.Join(report, "\n"), `choice "300" is not a valid int8`)
}

func TestObjectLevelOperations(t *testing.T) {
	ctx := context.Background()
	spec := loadCustomer(t)

	obj, err := spec.Instantiate(ctx)
	require.NoError(t, err)
	c, ok := obj.(*Customer)
	require.True(t, ok)
	assert.Equal(t, "new", c.Status, "Created callback fired")

	consent, err := spec.ValidateObject(ctx, c, user())
	require.NoError(t, err)
	assert.True(t, consent.IsVetoed())
	assert.Contains(t, consent.Reason(), "Mandatory")

	c.Name, c.Phone = "Ada", "555-1234"
	consent, err = spec.ValidateObject(ctx, c, user())
	require.NoError(t, err)
	assert.True(t, consent.IsAllowed())

	title, err := spec.Title(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "Ada", title)
	icon, err := spec.IconName(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "customer", icon)
}

type Audited struct {
	CreatedBy string
}

type Invoice struct {
	Audited
	Number string
}

func TestSuperclassAndPromotedFields(t *testing.T) {
	ctx := context.Background()
	spec, err := newTestLoader(t, Options{Mode: ModeLazy}).Load(ctx, typeOf[Invoice]())
	require.NoError(t, err)

	super, err := spec.Superclass(ctx)
	require.NoError(t, err)
	require.NotNil(t, super)
	assert.Equal(t, "metacore/pkg/metamodel.Audited", super.Key())

	_, ok := spec.Property("createdBy")
	assert.True(t, ok)
	none, err := super.Superclass(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	title, err := spec.Title(ctx, &Invoice{})
	require.NoError(t, err)
	assert.Equal(t, "Untitled Invoice", title)
}

func TestSourceDerivedSpecificationsAreNotInvocable(t *testing.T) {
	ctx := context.Background()
	l, err := NewLoader(staticIntrospector{inner: introspect.NewReflectIntrospector()}, Options{Mode: ModeLazy})
	require.NoError(t, err)
	spec, err := l.Load(ctx, typeOf[Customer]())
	require.NoError(t, err)
	assert.False(t, spec.Invocable())

	_, err = spec.Instantiate(ctx)
	assert.ErrorIs(t, err, ErrNotInvocable)

	phone, _ := spec.Property("phone")
	consent, err := phone.IsValid(ctx, nil, "bogus", user())
	require.NoError(t, err)
	assert.True(t, consent.IsVetoed(), "validation still runs without domain code")
	assert.ErrorIs(t, phone.Set(ctx, &Customer{}, "555-1234", user()), ErrNotInvocable)

	action, _ := spec.Action("placeOrder")
	_, err = action.Execute(ctx, &Customer{}, []any{"SKU-1", 1}, user())
	assert.ErrorIs(t, err, ErrNotInvocable)
}
