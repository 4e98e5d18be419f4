// Package amount converts currency values into the 12-digit cents field
// carried in the transaction envelope.
package amount

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/alovak/topup-playground/internal/failure"
	"github.com/shopspring/decimal"
)

// Width is the number of digits of the wire amount.
const Width = 12

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.New(1, Width) // 10^12, first value that no longer fits
)

// Format returns v, expressed in whole currency units, as zero-padded cents:
// "2.00" and 2 both become "000000000200". Cents are rounded half-up.
//
// v may be a string, json.Number, decimal.Decimal, float64, int or int64.
// Unparsable, NaN, infinite, negative and too large values are validation
// failures. Zero is accepted; callers reject non-positive amounts themselves.
func Format(v any) (string, error) {
	d, err := Parse(v)
	if err != nil {
		return "", err
	}
	return FormatDecimal(d)
}

// FormatDecimal is Format for an already parsed value.
func FormatDecimal(d decimal.Decimal) (string, error) {
	if d.IsNegative() {
		return "", failure.Validation("amount must not be negative: %s", d.String())
	}

	cents := d.Mul(hundred).Round(0)
	if cents.GreaterThanOrEqual(maxCents) {
		return "", failure.Validation("amount %s exceeds %d-digit wire format", d.String(), Width)
	}

	return fmt.Sprintf("%0*d", Width, cents.IntPart()), nil
}

// Parse converts v into a decimal value without range checks.
func Parse(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case string:
		return parseString(n)
	case json.Number:
		return parseString(n.String())
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, failure.Validation("invalid amount %v", n)
		}
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case nil:
		return decimal.Zero, failure.Validation("amount is required")
	default:
		return decimal.Zero, failure.Validation("unsupported amount type %T", v)
	}
}

func parseString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, failure.Validation("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, failure.Validation("invalid amount %q", s)
	}
	return d, nil
}
