// Package core holds the record types of the finance domain and the money
// helpers every other package relies on.
//
// Amounts are shopspring decimals end to end. Rounding to two places only
// happens when an amount is formatted for display.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Amount is a decimal that never fails to decode. Server-side summaries
// occasionally carry nulls or junk strings; those contribute zero.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// UnmarshalJSON decodes numbers, numeric strings and anything else as ToAmount does.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		a.Decimal = decimal.Zero
		return nil
	}
	a.Decimal = ToAmount(v)
	return nil
}

// MarshalJSON writes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// ToAmount coerces an arbitrary value into a decimal. It is total:
//
//	nil                       -> 0
//	decimal / Amount          -> value
//	int*, uint*               -> value
//	float32/64                -> value (NaN and ±Inf -> 0)
//	json.Number, string       -> parsed value, 0 when empty or non-numeric
//	bool and everything else  -> 0
func ToAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case Amount:
		return x.Decimal
	case int:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case uint:
		return fromUint(uint64(x))
	case uint32:
		return fromUint(uint64(x))
	case uint64:
		return fromUint(x)
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case json.Number:
		return fromString(x.String())
	case string:
		return fromString(x)
	default:
		return decimal.Zero
	}
}

func fromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func fromString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAmount parses user input in either notation: "1234.56", "1234,56"
// or pt-BR grouped "1.234,56". Unlike ToAmount it reports malformed input.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("abc")      -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// With a comma present, dots are thousands separators.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	body := strings.TrimPrefix(s, "-")
	if body == "" || strings.Count(body, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// NormalizeAmountInput canonicalises a pt-BR amount typed by the user:
// whitespace is removed, ",00" is appended when there is no decimal comma,
// and the decimal part is padded or truncated to two digits.
func NormalizeAmountInput(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, ",") {
		return s + ",00"
	}
	intPart, decPart, _ := strings.Cut(s, ",")
	switch {
	case len(decPart) == 0:
		return intPart + ",00"
	case len(decPart) == 1:
		return intPart + "," + decPart + "0"
	default:
		return intPart + "," + decPart[:2]
	}
}

// FormatBRL renders an amount as Brazilian currency, e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// Sum adds amounts together.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ParseGoalInput reads a goal amount as typed in pt-BR. Empty or unparsable
// input yields zero, which callers treat as "no goal".
func ParseGoalInput(s string) decimal.Decimal {
	n := NormalizeAmountInput(s)
	if n == "" {
		return decimal.Zero
	}
	d, err := ParseAmount(n)
	if err != nil {
		return decimal.Zero
	}
	return d
}
