// backend/internal/domain/payment/money.go
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (1/100 of the currency unit).
// Gateway and commerce payloads always carry it with exactly two decimals.
type Money int64

var (
	ErrInvalidMoney  = errors.New("payment: invalid money value")
	ErrMoneyOverflow = errors.New("payment: money out of range")
)

// largest whole-unit part that still fits in minor units
const maxMoneyUnits = (math.MaxInt64 - 99) / 100

// ParseMoney parses "150", "150.5", "150.00" into minor units.
// More than two fractional digits is rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}

	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	if hasDot && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("%w: more than two decimals in %q", ErrInvalidMoney, s)
	}
	if whole == "" {
		whole = "0"
	}
	if !isDigits(whole) || (frac != "" && !isDigits(frac)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxMoneyUnits {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidMoney, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)

	v := units*100 + cents
	if neg {
		v = -v
	}
	return Money(v), nil
}

// MustMoney is for tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the amount with exactly two decimals ("150.00").
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Mul multiplies by a quantity.
func (m Money) Mul(qty int) (Money, error) {
	a, b := int64(m), int64(qty)
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, ErrMoneyOverflow
	}
	p := a * b
	if p/b != a {
		return 0, ErrMoneyOverflow
	}
	return Money(p), nil
}

// Add sums two amounts.
func (m Money) Add(o Money) (Money, error) {
	sum := m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, ErrMoneyOverflow
	}
	return sum, nil
}

// MarshalJSON emits a JSON number with two decimals (150.00).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// MarshalYAML keeps the two-decimal rendering in operator reports.
func (m Money) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*m = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
