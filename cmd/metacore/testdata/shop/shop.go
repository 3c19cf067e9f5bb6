package shop

type Customer struct {
	_      struct{} `objectType:"shop.Customer"`
	Name   string   `maxLength:"40" memberOrder:"1"`
	Email  string   `regex:"[^@]+@[^@]+" memberOrder:"2"`
	Orders []*Order
}

func (c *Customer) Title() string { return c.Name }

func (c *Customer) PlaceOrder(sku string, qty int) *Order {
	o := &Order{SKU: sku, Qty: qty}
	c.Orders = append(c.Orders, o)
	return o
}

type Order struct {
	SKU string
	Qty int
}

func (o *Order) Title() string { return o.SKU }
