// Package money holds the single conversion point between the minor units the
// storefront and Vendure use and the major units payment providers expect.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const minorExponent = 2

// Minor is an integer amount in cents.
type Minor int64

// Major is a decimal amount in currency units. It can only be obtained from a
// Minor, so a value that already went through the conversion cannot be divided again.
type Major struct {
	d decimal.Decimal
}

// ToMajor converts cents into currency units.
func (m Minor) ToMajor() Major {
	return Major{d: decimal.NewFromInt(int64(m)).Shift(-minorExponent)}
}

// MajorFromFloat wraps an amount reported by a provider in major units.
func MajorFromFloat(v float64) Major {
	return Major{d: decimal.NewFromFloat(v)}
}

// Div splits the amount evenly, rounding to cents.
func (m Major) Div(n int64) Major {
	if n <= 0 {
		return m
	}
	return Major{d: m.d.Div(decimal.NewFromInt(n)).Round(minorExponent)}
}

// ToMinor converts back to cents, rounding half away from zero.
func (m Major) ToMinor() Minor {
	return Minor(m.d.Shift(minorExponent).Round(0).IntPart())
}

func (m Major) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

func (m Major) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Major) String() string {
	return m.d.StringFixed(minorExponent)
}

// MarshalJSON encodes the amount as a bare JSON number, as provider APIs require.
func (m Major) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

func (m *Major) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode major amount: %w", err)
	}
	m.d = d
	return nil
}
