// Package pricing computes cart totals for retail (B2C) and business (B2B)
// customers. Everything here is pure: no I/O, no clock, no shared state.
package pricing

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Classification string

const (
	B2C Classification = "b2c"
	B2B Classification = "b2b"
)

func (c Classification) String() string {
	return string(c)
}

func (c Classification) Valid() bool {
	return c == B2C || c == B2B
}

// Item is one priced input line: a product's price points at the moment of
// pricing and the requested quantity.
type Item struct {
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	B2BPrice  decimal.NullDecimal
	Quantity  int
}

type LineQuote struct {
	ProductID uuid.UUID       `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Quote struct {
	Classification Classification  `json:"classification"`
	Lines          []LineQuote     `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryFee    decimal.Decimal `json:"deliveryFee"`
	Total          decimal.Decimal `json:"total"`
	MinimumOrder   decimal.Decimal `json:"minimumOrder"`
	MeetsMinimum   bool            `json:"meetsMinimum"`
}

// Policy holds the delivery and minimum-order thresholds.
//
// The B2C and B2B delivery rules differ on purpose: retail pays the flat fee
// on any non-empty cart, business pays it unless the subtotal strictly
// exceeds B2BFreeDeliveryOver, including on an empty cart.
type Policy struct {
	DeliveryFee         decimal.Decimal
	B2BFreeDeliveryOver decimal.Decimal
	B2BMinimumOrder     decimal.Decimal
}

var DefaultPolicy = Policy{
	DeliveryFee:         decimal.NewFromInt(2500),
	B2BFreeDeliveryOver: decimal.NewFromInt(100000),
	B2BMinimumOrder:     decimal.NewFromInt(200000),
}

// UnitPrice picks the business price for B2B customers when the product has
// one, and the retail price otherwise.
func UnitPrice(item Item, class Classification) decimal.Decimal {
	if class == B2B && item.B2BPrice.Valid {
		return item.B2BPrice.Decimal
	}
	return item.Price
}

func (p Policy) DeliveryFeeFor(class Classification, subtotal decimal.Decimal, lineCount int) decimal.Decimal {
	if class == B2B {
		if subtotal.GreaterThan(p.B2BFreeDeliveryOver) {
			return decimal.Zero
		}
		return p.DeliveryFee
	}
	if lineCount == 0 {
		return decimal.Zero
	}
	return p.DeliveryFee
}

// Quote prices items in order. Unknown classifications are priced as B2C.
func (p Policy) Quote(items []Item, class Classification) Quote {
	if class != B2B {
		class = B2C
	}

	q := Quote{
		Classification: class,
		Lines:          make([]LineQuote, 0, len(items)),
		Subtotal:       decimal.Zero,
		MinimumOrder:   decimal.Zero,
		MeetsMinimum:   true,
	}

	for _, item := range items {
		unit := UnitPrice(item, class)
		lineSubtotal := unit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		q.Lines = append(q.Lines, LineQuote{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: unit,
			Quantity:  item.Quantity,
			Subtotal:  lineSubtotal,
		})
		q.Subtotal = q.Subtotal.Add(lineSubtotal)
	}

	q.DeliveryFee = p.DeliveryFeeFor(class, q.Subtotal, len(items))
	q.Total = q.Subtotal.Add(q.DeliveryFee)

	if class == B2B {
		q.MinimumOrder = p.B2BMinimumOrder
		q.MeetsMinimum = !q.Subtotal.LessThan(p.B2BMinimumOrder)
	}

	return q
}
