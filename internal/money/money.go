package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point currency value quantized to 2 decimal places.
// Every constructor rounds, so arithmetic on Amounts never accumulates
// sub-cent residue. The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero is the 0.00 amount.
var Zero = Amount{}

// FromDecimal quantizes an arbitrary decimal to an Amount.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d.Round(2)}
}

// FromFloat quantizes a binary float received at an API boundary.
func FromFloat(f float64) Amount {
	return FromDecimal(decimal.NewFromFloat(f))
}

// Parse reads a decimal string such as "40.00".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// MustParse is a test helper that panics on malformed input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Neg() Amount         { return Amount{d: a.d.Neg()} }

func (a Amount) IsPositive() bool        { return a.d.IsPositive() }
func (a Amount) IsNegative() bool        { return a.d.IsNegative() }
func (a Amount) IsZero() bool            { return a.d.IsZero() }
func (a Amount) Equal(b Amount) bool     { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool  { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool {
	return a.d.GreaterThan(b.d)
}

// String renders with exactly two decimal places, e.g. "60.00".
func (a Amount) String() string {
	return a.d.StringFixed(2)
}

// Decimal exposes the underlying decimal for storage drivers.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// MarshalJSON emits a quoted decimal string so clients never see binary
// floats.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON number or a quoted decimal string
// and quantizes immediately.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = FromDecimal(d)
	return nil
}

// Value implements driver.Valuer for NUMERIC columns.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	*a = FromDecimal(d)
	return nil
}
