package facet

import (
	"context"
	"errors"
	"testing"
)

type labelFacet struct {
	typ   Type
	label string
}

func (f *labelFacet) Type() Type { return f.typ }

func (f *labelFacet) SemanticEquals(other Facet) bool {
	o, ok := other.(*labelFacet)
	return ok && o.typ == f.typ && o.label == f.label
}

type countingHider struct {
	typ    Type
	reason string
	err    error
	calls  *int
}

func (f *countingHider) Type() Type { return f.typ }
func (f *countingHider) SemanticEquals(Facet) bool { return false }

func (f *countingHider) Hides(VisibilityContext) (string, error) {
	*f.calls++
	return f.reason, f.err
}

func TestHolderAddKeepsSingleFacetPerType(t *testing.T) {
	h := NewHolder(MemberID("Customer", "name"))
	first := &labelFacet{typ: "named", label: "Name"}
	if !h.Add(first) {
		t.Fatalf("first add should change holder")
	}
	if h.Add(&labelFacet{typ: "named", label: "Name"}) {
		t.Fatalf("semantically equal add must be a no-op")
	}
	got, _ := h.Facet("named")
	if got != first {
		t.Fatalf("no-op add replaced the held reference")
	}

	second := &labelFacet{typ: "named", label: "Full name"}
	if !h.Add(second) {
		t.Fatalf("replacement should change holder")
	}
	if h.Len() != 1 {
		t.Fatalf("expected one active facet, got %d", h.Len())
	}
	got, _ = h.Facet("named")
	if got != second {
		t.Fatalf("replacement not active")
	}
	shadowed := h.Shadowed("named")
	if len(shadowed) != 1 || shadowed[0] != first {
		t.Fatalf("shadowed = %v", shadowed)
	}
}

func TestHolderOrderRemoveAndLookup(t *testing.T) {
	h := NewHolder(ClassID("Customer"))
	h.Add(&labelFacet{typ: "b"})
	h.Add(&labelFacet{typ: "a"})
	h.Add(&labelFacet{typ: "c"})
	types := h.Types()
	if len(types) != 3 || types[0] != "b" || types[1] != "a" || types[2] != "c" {
		t.Fatalf("insertion order lost: %v", types)
	}
	h.Remove("a")
	if h.Contains("a") || h.Len() != 2 {
		t.Fatalf("remove failed: %v", h.Types())
	}
	if f, ok := Lookup[*labelFacet](h, "b"); !ok || f.typ != "b" {
		t.Fatalf("lookup failed")
	}
	if _, ok := Lookup[*countingHider](h, "b"); ok {
		t.Fatalf("lookup with wrong type should fail")
	}
}

func TestHolderSealed(t *testing.T) {
	h := NewHolder(ClassID("Customer"))
	h.Seal()
	if _, err := h.AddChecked(&labelFacet{typ: "a"}); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	if _, err := h.AddChecked(nil); !errors.Is(err, ErrNilFacet) {
		t.Fatalf("expected ErrNilFacet, got %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("Add on sealed holder should panic")
		}
	}()
	h.Add(&labelFacet{typ: "a"})
}

func TestEvaluateVisibilityShortCircuits(t *testing.T) {
	var c1, c2, c3 int
	h := NewHolder(MemberID("Customer", "notes"))
	h.Add(&countingHider{typ: "first", calls: &c1})
	h.Add(&labelFacet{typ: "plain"})
	h.Add(&countingHider{typ: "second", reason: "not for you", calls: &c2})
	h.Add(&countingHider{typ: "third", reason: "never asked", calls: &c3})

	consent, err := EvaluateVisibility(h, VisibilityContext{Ctx: context.Background(), Identifier: h.Identifier()})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !consent.IsVetoed() || consent.Reason() != "not for you" || consent.Source() != "second" {
		t.Fatalf("consent = %+v", consent)
	}
	if c1 != 1 || c2 != 1 || c3 != 0 {
		t.Fatalf("calls = %d %d %d", c1, c2, c3)
	}
}

func TestEvaluateVisibilityPropagatesAdvisorErrors(t *testing.T) {
	var calls int
	boom := errors.New("boom")
	h := NewHolder(MemberID("Customer", "notes"))
	h.Add(&countingHider{typ: "broken", err: boom, calls: &calls})
	_, err := EvaluateVisibility(h, VisibilityContext{Identifier: h.Identifier()})
	var advErr *AdvisorError
	if !errors.As(err, &advErr) || !errors.Is(err, boom) || advErr.Facet != "broken" {
		t.Fatalf("expected advisor error, got %v", err)
	}
}

func TestEvaluateWithoutAdvisorsAllows(t *testing.T) {
	h := NewHolder(MemberID("Customer", "name"))
	h.Add(&labelFacet{typ: "named"})
	for name, eval := range map[string]func() (Consent, error){
		"usability": func() (Consent, error) { return EvaluateUsability(h, UsabilityContext{}) },
		"validity":  func() (Consent, error) { return EvaluateValidity(h, ValidityContext{}) },
	} {
		c, err := eval()
		if err != nil || !c.IsAllowed() {
			t.Fatalf("%s: consent %v err %v", name, c, err)
		}
	}
}

func TestConsentErr(t *testing.T) {
	id := MemberID("Customer", "name")
	if Allow().Err(id, ConcernUsability) != nil {
		t.Fatalf("allow must not produce an error")
	}
	err := Veto("").Err(id, ConcernUsability)
	var veto *VetoError
	if !errors.As(err, &veto) || veto.Reason != "vetoed" || veto.Identifier != id {
		t.Fatalf("veto err = %v", err)
	}
}

func TestIdentifierAndWhere(t *testing.T) {
	p := ParamID("Customer", "placeOrder", 1)
	if p.String() != "Customer#placeOrder[1]" {
		t.Fatalf("param id = %s", p)
	}
	if p.MemberIdentifier() != MemberID("Customer", "placeOrder") {
		t.Fatalf("member identifier = %s", p.MemberIdentifier())
	}
	if !ClassID("Customer").Less(MemberID("Customer", "a")) {
		t.Fatalf("class must sort before members")
	}
	if !WhereAllTables.Includes(WhereParentedTables) || WhereObjectForms.Includes(WhereAllTables) {
		t.Fatalf("where inclusion mismatch")
	}
	if w, ok := ParseWhere("bogus"); ok || w != WhereEverywhere {
		t.Fatalf("ParseWhere(bogus) = %s %v", w, ok)
	}
}
