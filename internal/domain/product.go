package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	MainImage string          `json:"main_image"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Quantity  int             `json:"quantity"`
}

// CheckoutLineItem is one line handed to the payment gateway.
type CheckoutLineItem struct {
	ProductID  string
	Name       string
	Image      string
	UnitAmount int64
	Quantity   int64
}

// NewCheckoutLineItem builds a gateway line from an order item and the product
// it refers to. Amounts are converted to minor units.
func NewCheckoutLineItem(item OrderItem, product Product) (CheckoutLineItem, error) {
	if item.ProductID != product.ID {
		return CheckoutLineItem{}, fmt.Errorf("%w: item %s does not match product %s", ErrInvalidLineItem, item.ProductID, product.ID)
	}
	if item.Quantity <= 0 {
		return CheckoutLineItem{}, fmt.Errorf("%w: product %s has quantity %d", ErrInvalidLineItem, item.ProductID, item.Quantity)
	}
	if item.UnitPrice.IsNegative() {
		return CheckoutLineItem{}, fmt.Errorf("%w: product %s has negative price", ErrInvalidLineItem, item.ProductID)
	}
	if product.Name == "" {
		return CheckoutLineItem{}, fmt.Errorf("%w: product %s has no name", ErrInvalidLineItem, item.ProductID)
	}

	return CheckoutLineItem{
		ProductID:  item.ProductID,
		Name:       product.Name,
		Image:      product.MainImage,
		UnitAmount: item.UnitPrice.Mul(hundred).Round(0).IntPart(),
		Quantity:   int64(item.Quantity),
	}, nil
}
