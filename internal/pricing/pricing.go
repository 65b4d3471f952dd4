// Package pricing computes ticket prices from a base price and the fee
// rules configured on a ticket category.  A fee rule is either a fixed
// amount or a percentage of the base price.  The convenience fee is
// charged to the customer on top of the base price; the commission is the
// platform's cut and is never added to what the customer pays.
package pricing

import (
	"fmt"
	"math"
	"strings"
)

// FeeType selects how a FeeRule value is interpreted.
type FeeType string

const (
	FeeFixed      FeeType = "fixed"
	FeePercentage FeeType = "percentage"
)

// FeeRule describes a single fee.  Value is an amount when Type is
// FeeFixed and a percentage (0-100) when Type is FeePercentage.
type FeeRule struct {
	Type  FeeType `json:"type"`
	Value float64 `json:"value"`
}

// Fixed returns a fixed-amount rule.
func Fixed(v float64) FeeRule { return FeeRule{Type: FeeFixed, Value: v} }

// Percentage returns a percentage rule.
func Percentage(v float64) FeeRule { return FeeRule{Type: FeePercentage, Value: v} }

// ParseFeeType normalises admin input into a FeeType.  An empty string
// maps to FeeFixed so that categories created without a rule carry a
// zero fixed fee.
func ParseFeeType(s string) (FeeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fixed", "flat", "amount":
		return FeeFixed, nil
	case "percentage", "percent", "pct", "%":
		return FeePercentage, nil
	}
	return "", fmt.Errorf("unknown fee type %q", s)
}

// Validate reports whether the rule can be stored on a category.  The
// calculator itself never rejects input.
func (r FeeRule) Validate() error {
	if r.Type != FeeFixed && r.Type != FeePercentage {
		return fmt.Errorf("unknown fee type %q", r.Type)
	}
	if r.Value < 0 || math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return fmt.Errorf("fee value must be a non-negative number")
	}
	if r.Type == FeePercentage && r.Value > 100 {
		return fmt.Errorf("percentage fee cannot exceed 100")
	}
	return nil
}

// Fee returns basePrice*value/100 for percentage rules and value verbatim
// otherwise.
func Fee(basePrice float64, rule FeeRule) float64 {
	if rule.Type == FeePercentage {
		return basePrice * rule.Value / 100
	}
	return rule.Value
}

// Breakdown is the per-ticket price.
type Breakdown struct {
	BasePrice      float64 `json:"base_price"`
	ConvenienceFee float64 `json:"convenience_fee"`
	TotalPrice     float64 `json:"total_price"`
	Commission     float64 `json:"commission"`
}

// Calculate prices a single ticket.
func Calculate(basePrice float64, convenience, commission FeeRule) Breakdown {
	conv := Fee(basePrice, convenience)
	return Breakdown{
		BasePrice:      basePrice,
		ConvenienceFee: conv,
		TotalPrice:     basePrice + conv,
		Commission:     Fee(basePrice, commission),
	}
}

// Quote is a breakdown scaled to a quantity of tickets.  Amounts are
// rounded to two decimal places, the precision stored for bookings.
type Quote struct {
	Quantity       int       `json:"quantity"`
	Unit           Breakdown `json:"unit"`
	Subtotal       float64   `json:"subtotal"`
	ConvenienceFee float64   `json:"convenience_fee"`
	Total          float64   `json:"total"`
	Commission     float64   `json:"commission"`
}

// QuoteFor multiplies every component of b by quantity.
func QuoteFor(b Breakdown, quantity int) Quote {
	q := float64(quantity)
	return Quote{
		Quantity:       quantity,
		Unit:           b,
		Subtotal:       Round2(b.BasePrice * q),
		ConvenienceFee: Round2(b.ConvenienceFee * q),
		Total:          Round2(b.TotalPrice * q),
		Commission:     Round2(b.Commission * q),
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
