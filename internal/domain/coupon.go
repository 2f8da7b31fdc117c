package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CouponLifetime is how long a coupon created without an expiry date stays
// valid.
const CouponLifetime = 7 * 24 * time.Hour

type Coupon struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	Discount   decimal.Decimal `json:"discount"`
	UsageLimit int             `json:"usage_limit"`
	UsedCount  int             `json:"used_count"`
	IsActive   bool            `json:"is_active"`
	ExpiryDate *time.Time      `json:"expiry_date,omitempty"`
}

// NewCoupon validates an admin-issued coupon and fills in defaults: a single
// use when usageLimit is zero and an expiry CouponLifetime after now when none
// is given.
func NewCoupon(code string, discount decimal.Decimal, usageLimit int, expiry *time.Time, now time.Time) (*Coupon, error) {
	var problems []string
	code = strings.TrimSpace(code)
	if code == "" {
		problems = append(problems, "code is required")
	}
	if !discount.IsPositive() || discount.GreaterThan(hundred) {
		problems = append(problems, "discount must be within (0, 100]")
	}
	if usageLimit < 0 {
		problems = append(problems, "usage_limit must not be negative")
	}
	if expiry != nil && !expiry.After(now) {
		problems = append(problems, "expiry_date must be in the future")
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}

	if usageLimit == 0 {
		usageLimit = 1
	}
	if expiry == nil {
		at := now.Add(CouponLifetime)
		expiry = &at
	}

	return &Coupon{
		Code:       code,
		Discount:   discount,
		UsageLimit: usageLimit,
		IsActive:   true,
		ExpiryDate: expiry,
	}, nil
}

// Usable reports whether the coupon can still be applied to a new order.
func (c *Coupon) Usable(now time.Time) bool {
	if !c.IsActive || c.UsedCount >= c.UsageLimit {
		return false
	}
	if c.ExpiryDate != nil && !now.Before(*c.ExpiryDate) {
		return false
	}
	return true
}

// ApplyDiscount returns subTotal minus the coupon's percentage. A nil coupon
// leaves the amount unchanged.
func ApplyDiscount(subTotal decimal.Decimal, coupon *Coupon) decimal.Decimal {
	if coupon == nil {
		return subTotal
	}
	return subTotal.Sub(subTotal.Mul(coupon.Discount).Div(hundred))
}
