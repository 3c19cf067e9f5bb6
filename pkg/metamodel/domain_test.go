package metamodel

import (
	"context"
	"errors"
	"sync"

	"metacore/pkg/introspect"
	"metacore/pkg/metamodel/factory"
)

var errOutOfStock = errors.New("out of stock")

type Customer struct {
	_      struct{} `objectType:"crm.Customer" plural:"Clientele"`
	Name   string   `memberOrder:"1" maxLength:"10"`
	Phone  string   `regex:"\\d{3}-\\d{4}" memberOrder:"2"`
	Notes  string   `hidden:"empty" optional:""`
	Status string   `disabled:"Managed by workflow" optional:"" choices:"new|active|closed"`
	Orders []*Order
	secret string
}

func (c *Customer) Title() string { return c.Name }

func (c *Customer) Created() { c.Status = "new" }

func (c *Customer) PlaceOrder(sku string, qty int) (*Order, error) {
	if sku == "broken" {
		return nil, errOutOfStock
	}
	o := &Order{SKU: sku, Qty: qty, Customer: c}
	c.Orders = append(c.Orders, o)
	return o, nil
}

func (c *Customer) Validate1PlaceOrder(qty int) string {
	if qty <= 0 {
		return "quantity must be positive"
	}
	return ""
}

func (c *Customer) Default1PlaceOrder() int { return 1 }

func (c *Customer) MemberTags() map[string]string {
	return map[string]string{
		"PlaceOrder": `named:"Place order" memberOrder:"orders,1"`,
	}
}

type Order struct {
	SKU      string
	Qty      int
	Customer *Customer
}

type Node struct {
	Label    string
	Parent   *Node
	Children []*Node
}

type Misspelt struct {
	Name string
}

func (m *Misspelt) HideNmae() bool { return true }

type Left struct {
	Name  string
	Right *Right
}

type Right struct {
	Name string
	Left *Left
}

// rendezvous holds the builds of Left and Right until both have started,
// then makes each look up the other.
type rendezvous struct {
	started sync.WaitGroup
}

func newRendezvous() *rendezvous {
	r := &rendezvous{}
	r.started.Add(2)
	return r
}

func (r *rendezvous) Name() string { return "rendezvous" }

func (r *rendezvous) FeatureTypes() factory.FeatureSet {
	return factory.Features(factory.FeatureObject, factory.FeatureProperty)
}

func (r *rendezvous) ProcessClass(ctx *factory.ClassContext) {
	switch ctx.Class.Name() {
	case "Left", "Right":
		r.started.Done()
		r.started.Wait()
	}
}

func (r *rendezvous) ProcessField(ctx *factory.FieldContext) {
	if ctx.Field.Type.Kind == introspect.KindStruct {
		_, _ = ctx.Types.ClassFacets(ctx.Ctx, ctx.Field.Type)
	}
}

type testPlugin struct {
	name       string
	factories  []factory.Factory
	validators []Validator
	remove     []string
}

func (p testPlugin) Name() string    { return p.name }
func (p testPlugin) Version() string { return "1.0.0" }

func (p testPlugin) Register(r *Registry) error {
	for _, f := range p.factories {
		r.RegisterFactory(factory.PhaseFinally, f)
	}
	for _, v := range p.validators {
		r.RegisterValidator(v)
	}
	for _, name := range p.remove {
		r.RemoveFactory(name)
	}
	return nil
}

// staticIntrospector marks reflected classes as source-derived.
type staticIntrospector struct {
	inner *introspect.ReflectIntrospector
}

func (s staticIntrospector) Introspect(ctx context.Context, ref introspect.TypeRef) (*introspect.Class, error) {
	class, err := s.inner.Introspect(ctx, ref)
	if err != nil {
		return nil, err
	}
	class.Source = introspect.SourceStatic
	return class, nil
}

type Forest []Forest

type Canopy map[string]Canopy

type Grove struct {
	Name   string
	Trees  Forest
	Canopy Canopy
}

func (g *Grove) Title() string { return g.Name }

type Meter struct {
	Label string
	Level int8
	Limit int8 `default:"300"`
	Step  int8 `choices:"1|2|300"`
}

func (m *Meter) Title() string { return m.Label }

func (m *Meter) Adjust(by int) { m.Level += int8(by) }
