package shop

import "errors"

type Customer struct {
	_      struct{} `objectType:"shop.Customer" plural:"Customers"`
	Name   string   `maxLength:"40"`
	Phone  string   `regex:"\\d{3}-\\d{4}"`
	Orders []*Order
	notes  string
}

func (c *Customer) Title() string {
	return c.Name + c.notes
}

func (c *Customer) HideName() bool {
	return false
}

func (c *Customer) PlaceOrder(sku string, qty int) (*Order, error) {
	if qty <= 0 {
		return nil, errors.New("quantity must be positive")
	}
	o := &Order{SKU: sku, Qty: qty}
	c.Orders = append(c.Orders, o)
	return o, nil
}

func (c *Customer) MemberTags() map[string]string {
	return map[string]string{
		"PlaceOrder": `named:"Place order" memberOrder:"actions,1"`,
	}
}

type Order struct {
	SKU      string
	Qty      int
	Sections Catalog
}

type Catalog map[string]Catalog
