package factory

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacore/pkg/facet"
	"metacore/pkg/facet/facets"
	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/validation"
)

type recorder struct {
	base
	log *[]string
}

func (r *recorder) ProcessClass(*ClassContext) { *r.log = append(*r.log, r.name) }

func TestProgrammingModelOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	pm := NewProgrammingModel()
	pm.Add(PhaseFinally, &recorder{base{"last", Features(FeatureObject)}, &log})
	pm.Add(PhaseAnnotations, &recorder{base{"annotations-1", Features(FeatureObject)}, &log})
	pm.Add(PhaseFallbackDefaults, &recorder{base{"first", Features(FeatureObject)}, &log})
	pm.Add(PhaseAnnotations, &recorder{base{"annotations-2", Features(FeatureObject)}, &log})
	pm.Add(PhaseAnnotations, &recorder{base{"members-only", Members}, &log})

	class := &introspect.Class{Ref: introspect.TypeRef{Key: "x.T", Name: "T", Kind: introspect.KindStruct}}
	env := &Env{Ctx: context.Background(), Naming: DefaultNaming(), Remover: NewMethodRemover(class)}
	pm.ProcessClass(NewClassContext(env, class, facet.NewHolder(facet.ClassID("x.T"))))

	assert.Equal(t, []string{"first", "annotations-1", "annotations-2", "last"}, log)

	pm.Remove("last")
	assert.Len(t, pm.Factories(), 4)

	pm.Remove("annotations-1")
	pm.Remove("members-only")
	pm.Add(PhaseAnnotations, &recorder{base{"annotations-3", Features(FeatureObject)}, &log})
	log = nil
	pm.ProcessClass(NewClassContext(env, class, facet.NewHolder(facet.ClassID("x.T"))))
	assert.Equal(t, []string{"first", "annotations-2", "annotations-3"}, log)
}

func TestNaming(t *testing.T) {
	n := DefaultNaming()
	cases := map[string]bool{
		"HideName":       true,
		"Validate0Place": true,
		"Validate":       false,
		"Clearance":      false,
		"DefaultAddress": true,
		"PlaceOrder":     false,
	}
	for name, want := range cases {
		assert.Equal(t, want, n.IsSupporting(name), name)
	}
	assert.Equal(t, "Validate2PlaceOrder", ParamMethod(n.Validate, 2, "PlaceOrder"))

	custom := Naming{Hide: "Conceal"}.WithDefaults()
	assert.Equal(t, "Conceal", custom.Hide)
	assert.Equal(t, "Disable", custom.Disable)
}

func TestMemberNameAndHumanize(t *testing.T) {
	assert.Equal(t, "placeOrder", MemberName("PlaceOrder"))
	assert.Equal(t, "urlPath", MemberName("URLPath"))
	assert.Equal(t, "id", MemberName("ID"))
	assert.Equal(t, "Place Order", Humanize("PlaceOrder"))
	assert.Equal(t, "URL Path", Humanize("URLPath"))
	assert.Equal(t, "Address2 Line", Humanize("Address2Line"))
	assert.Equal(t, "Categories", pluralize("Category"))
	assert.Equal(t, "Boxes", pluralize("Box"))
	assert.Equal(t, "Keys", pluralize("Key"))
}

func TestParamTags(t *testing.T) {
	tags := introspect.ParseTags(`regex.0:"\\d+" named.1:"Quantity" named:"Place"`)
	assert.Equal(t, introspect.Tags{"regex": `\d+`}, ParamTags(tags, 0))
	assert.Equal(t, introspect.Tags{"named": "Quantity"}, ParamTags(tags, 1))
}

type supportTarget struct {
	Name string
}

func (s *supportTarget) HideName() bool   { return false }
func (s *supportTarget) DisableName() int { return 0 }

func (s *supportTarget) ValidateName(ic facet.InteractionContext, v string) (string, error) {
	return "", nil
}

func TestClaimChecksSignatures(t *testing.T) {
	class, err := introspect.NewReflectIntrospector().Introspect(context.Background(), introspect.RefOf(reflect.TypeOf(supportTarget{})))
	require.NoError(t, err)
	field, _ := class.Field("Name")
	remover := NewMethodRemover(class)

	ref, problem, found := claim(remover, "HideName", expect{result: resultHide})
	require.True(t, found)
	assert.Empty(t, problem)
	assert.Equal(t, facets.NoContext, ref.Context)

	_, problem, found = claim(remover, "DisableName", expect{result: resultString})
	require.True(t, found)
	assert.Contains(t, problem, "must return string")
	assert.True(t, remover.Claimed("DisableName"), "malformed methods are still claimed")

	ref, problem, found = claim(remover, "ValidateName", expect{params: []introspect.TypeRef{field.Type}, result: resultString})
	require.True(t, found)
	assert.Empty(t, problem)
	assert.Equal(t, facets.InteractionParam, ref.Context)

	_, _, found = claim(remover, "HideName", expect{result: resultHide})
	assert.False(t, found, "claimed methods are not found twice")
	assert.Empty(t, remover.Remaining())
}

func TestFieldFactoriesRecordFailures(t *testing.T) {
	type bad struct {
		Count int    `regex:"\\d+" maxLength:"zero"`
		Code  string `regex:"(" hidden:"sideways"`
	}
	class, err := introspect.NewReflectIntrospector().Introspect(context.Background(), introspect.RefOf(reflect.TypeOf(bad{})))
	require.NoError(t, err)

	failures := validation.NewFailures()
	env := &Env{Ctx: context.Background(), Naming: DefaultNaming(), Remover: NewMethodRemover(class), Failures: failures}
	pm := DefaultProgrammingModel(Options{})
	classHolder := facet.NewHolder(facet.ClassID(class.Key()))
	pm.ProcessClass(NewClassContext(env, class, classHolder))
	for _, field := range class.Fields {
		holder := facet.NewHolder(facet.MemberID(class.Key(), MemberName(field.Name)))
		pm.ProcessField(NewFieldContext(env, class, classHolder, field, FeatureProperty, holder))
	}

	report := failures.Report()
	assert.Contains(t, report, "regex annotation requires a string type")
	assert.Contains(t, report, "maxLength must be a positive integer")
	assert.Contains(t, report, "invalid regex")
	assert.Contains(t, report, "invalid hidden location")
	assert.True(t, failures.HasBlocking())
	for _, f := range failures.Items() {
		assert.NotEmpty(t, f.Factory)
	}
}
