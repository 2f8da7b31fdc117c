package domain

import "github.com/shopspring/decimal"

type CartLine struct {
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

type Cart struct {
	ID      string     `json:"id"`
	OwnerID string     `json:"owner_id"`
	Lines   []CartLine `json:"lines"`
}

func (c *Cart) Empty() bool {
	return c == nil || len(c.Lines) == 0
}

// SubTotal is the sum of unit price times quantity over every line.
func (c *Cart) SubTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.FinalPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}

func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

// Items snapshots the cart lines for an order.
func (c *Cart) Items() []OrderItem {
	items := make([]OrderItem, 0, len(c.Lines))
	for _, line := range c.Lines {
		items = append(items, OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.FinalPrice,
		})
	}
	return items
}
