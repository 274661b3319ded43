package pricing

import (
	"fmt"
	"math"
)

// Cents is a monetary amount in integer minor units (USD cents).
// All arithmetic happens on this type; conversion to major units is
// a presentation concern only.
type Cents int64

// LineTotal returns unit price times quantity.
func LineTotal(unit Cents, quantity int) Cents {
	return unit * Cents(quantity)
}

// FromDollars converts a decimal major-unit amount (as received from the
// upstream API) into minor units, rounding to the nearest cent.
func FromDollars(amount float64) Cents {
	return Cents(math.Round(amount * 100))
}

// Dollars converts to major units for payloads that require a decimal amount.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

// Format renders the amount as a dollar string, e.g. "$25.00".
func Format(c Cents) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}
