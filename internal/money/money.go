// Package money holds the fixed-point amount type used by the ledger.
package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by an Amount.
const Scale = 2

const (
	maxInputLen = 64
	// Exponents outside this window cannot fit an int64 of minor units and
	// make decimal arithmetic cost proportional to the exponent.
	minExponent = -Scale - 18
	maxExponent = 18
)

// ErrInvalid is returned when a value cannot be represented as an Amount.
var ErrInvalid = errors.New("amount must be a finite number with at most 2 decimal places")

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
	hundred  = decimal.NewFromInt(100)
)

// Amount is a quantity of money expressed in minor units (cents).
type Amount int64

// Parse converts a decimal string such as "40", "40.5" or "1e3" into an Amount.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxInputLen {
		return 0, ErrInvalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalid
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal converts d to minor units, rejecting sub-cent precision.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return 0, ErrInvalid
	}
	minor := d.Shift(Scale)
	if !minor.IsInteger() {
		return 0, ErrInvalid
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrInvalid
	}
	return Amount(minor.IntPart()), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -Scale)
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	return a.Decimal().StringFixed(Scale)
}

// Percent returns pct percent of a, rounded half away from zero to minor units.
func (a Amount) Percent(pct decimal.Decimal) Amount {
	v := a.Decimal().Mul(pct).Div(hundred).Round(Scale)
	return Amount(v.Shift(Scale).IntPart())
}

// MarshalJSON emits the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and numeric strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var in Input
	if err := in.UnmarshalJSON(data); err != nil {
		return err
	}
	v, err := Parse(in.String())
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Input captures an amount exactly as the client sent it so validation can
// happen in the engine rather than during body decoding.
type Input struct {
	raw string
}

// NewInput wraps a raw client value.
func NewInput(raw string) Input { return Input{raw: raw} }

// String returns the raw value.
func (i Input) String() string { return i.raw }

// UnmarshalJSON keeps numbers verbatim and unquotes strings.
func (i *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		i.raw = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		i.raw = s
	default:
		i.raw = string(data)
	}
	return nil
}
