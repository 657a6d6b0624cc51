// Package pricing computes line amounts for purchase request lines.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"procura/internal/core/types"
)

// ErrInvalidPriceInput is returned for inputs that violate the calculator contract.
var ErrInvalidPriceInput = errors.New("invalid price input")

// DefaultTaxRate is applied when a line carries no tax profile.
var DefaultTaxRate = decimal.NewFromInt(7)

// Input holds the calculator arguments.
// TaxAmount and DiscountAmount are used only when the matching adjustment flag is set.
type Input struct {
	Qty          types.Quantity
	Price        types.Money
	CurrencyRate types.Rate

	TaxRate         types.Rate
	IsTaxAdjustment bool
	TaxAmount       types.Money

	DiscountRate         types.Rate
	IsDiscountAdjustment bool
	DiscountAmount       types.Money
}

// DefaultInput returns an input with currency rate 1, tax 7% and no discount.
func DefaultInput(qty types.Quantity, price types.Money) Input {
	return Input{
		Qty:          qty,
		Price:        price,
		CurrencyRate: decimal.NewFromInt(1),
		TaxRate:      DefaultTaxRate,
		DiscountRate: decimal.Zero,
	}
}

// Breakdown is the priced result in transaction and base currency.
type Breakdown struct {
	SubTotal       types.Money `json:"sub_total_price"`
	DiscountAmount types.Money `json:"discount_amount"`
	NetAmount      types.Money `json:"net_amount"`
	TaxAmount      types.Money `json:"tax_amount"`
	TotalPrice     types.Money `json:"total_price"`

	BasePrice          types.Money `json:"base_price"`
	BaseSubTotal       types.Money `json:"base_sub_total_price"`
	BaseDiscountAmount types.Money `json:"base_discount_amount"`
	BaseNetAmount      types.Money `json:"base_net_amount"`
	BaseTaxAmount      types.Money `json:"base_tax_amount"`
	BaseTotalPrice     types.Money `json:"base_total_price"`
}

func (in Input) validate() error {
	switch {
	case in.Qty.IsNegative():
		return fmt.Errorf("%w: qty %s is negative", ErrInvalidPriceInput, in.Qty)
	case in.Price.IsNegative():
		return fmt.Errorf("%w: price %s is negative", ErrInvalidPriceInput, in.Price)
	case !in.CurrencyRate.IsPositive():
		return fmt.Errorf("%w: currency_rate %s must be positive", ErrInvalidPriceInput, in.CurrencyRate)
	case in.TaxRate.IsNegative():
		return fmt.Errorf("%w: tax_rate %s is negative", ErrInvalidPriceInput, in.TaxRate)
	case in.DiscountRate.IsNegative():
		return fmt.Errorf("%w: discount_rate %s is negative", ErrInvalidPriceInput, in.DiscountRate)
	case in.DiscountRate.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: discount_rate %s exceeds 100", ErrInvalidPriceInput, in.DiscountRate)
	}
	return nil
}

// Calculate prices a line. The order is fixed: discount applies to the
// subtotal and tax applies to the discounted net amount.
func Calculate(in Input) (Breakdown, error) {
	if err := in.validate(); err != nil {
		return Breakdown{}, err
	}

	subTotal := in.Qty.Mul(in.Price)

	discount := types.Percent(subTotal, in.DiscountRate)
	if in.IsDiscountAdjustment {
		discount = in.DiscountAmount
	}
	net := subTotal.Sub(discount)

	tax := types.Percent(net, in.TaxRate)
	if in.IsTaxAdjustment {
		tax = in.TaxAmount
	}
	total := net.Add(tax)

	rate := in.CurrencyRate
	return Breakdown{
		SubTotal:       subTotal,
		DiscountAmount: discount,
		NetAmount:      net,
		TaxAmount:      tax,
		TotalPrice:     total,

		BasePrice:          in.Price.Mul(rate),
		BaseSubTotal:       subTotal.Mul(rate),
		BaseDiscountAmount: discount.Mul(rate),
		BaseNetAmount:      net.Mul(rate),
		BaseTaxAmount:      tax.Mul(rate),
		BaseTotalPrice:     total.Mul(rate),
	}, nil
}
