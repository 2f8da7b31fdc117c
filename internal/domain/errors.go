package domain

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponExists      = errors.New("coupon already exists")
	ErrCartLineExists    = errors.New("product already in cart")
	ErrCartLineNotFound  = errors.New("product not in cart")
	ErrProductNotFound   = errors.New("product not found")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("order status does not allow this operation")
	ErrInvalidLineItem   = errors.New("invalid checkout line item")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrForbidden         = errors.New("forbidden")
)
