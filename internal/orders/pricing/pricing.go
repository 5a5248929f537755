// Package pricing computes authoritative order totals from catalog prices.
// All amounts are integer minor units of the store currency.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat rate applied to persisted orders.
var DefaultTaxRate = decimal.RequireFromString("0.05")

var (
	ErrInvalidTaxRate  = errors.New("tax rate must be between 0 and 1")
	ErrNegativeFee     = errors.New("shipping fee must not be negative")
	ErrNegativeMinimum = errors.New("free shipping threshold must not be negative")
)

// Policy holds the configured pricing rules.
type Policy struct {
	TaxRate decimal.Decimal
	// ShippingFee is charged when ItemsPrice is below FreeShippingThreshold.
	ShippingFee int64
	// FreeShippingThreshold of zero disables the waiver.
	FreeShippingThreshold int64
}

func (p Policy) Validate() error {
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidTaxRate
	}
	if p.ShippingFee < 0 {
		return ErrNegativeFee
	}
	if p.FreeShippingThreshold < 0 {
		return ErrNegativeMinimum
	}
	return nil
}

// Line is a priced cart line. UnitPrice must come from the catalog.
type Line struct {
	UnitPrice int64
	Quantity  int
}

// Quote is the result of pricing a cart.
type Quote struct {
	ItemsPrice    int64
	TaxPrice      int64
	ShippingPrice int64
	TotalPrice    int64
}

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("pricing policy: %w", err)
	}
	return &Engine{policy: policy}, nil
}

// Compute prices lines. It has no side effects and depends only on its input and the policy.
func (e *Engine) Compute(lines []Line) Quote {
	var items int64
	for _, line := range lines {
		items += line.UnitPrice * int64(line.Quantity)
	}

	tax := RoundHalfUp(decimal.NewFromInt(items).Mul(e.policy.TaxRate))
	shipping := e.Shipping(items)

	return Quote{
		ItemsPrice:    items,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    items + tax + shipping,
	}
}

// Shipping applies the shipping policy to an items subtotal.
func (e *Engine) Shipping(itemsPrice int64) int64 {
	if e.policy.FreeShippingThreshold > 0 && itemsPrice >= e.policy.FreeShippingThreshold {
		return 0
	}
	return e.policy.ShippingFee
}

// RoundHalfUp rounds to the nearest minor unit with ties away from zero.
func RoundHalfUp(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}
