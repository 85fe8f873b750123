// Package money represents monetary amounts as integer minor units (cents).
// All arithmetic inside the billing engine happens on Money; decimal strings
// exist only at the presentation boundary.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a USD amount in cents.
type Money int64

// FromCents wraps a raw cent count.
func FromCents(v int64) Money { return Money(v) }

// FromDollars converts a float dollar amount to cents, rounding half away
// from zero. Use only at input boundaries.
func FromDollars(v float64) Money {
	return Money(math.Round(v * 100))
}

// Cents returns the raw cent count.
func (m Money) Cents() int64 { return int64(m) }

// Dollars returns the amount as a float for display-adjacent callers.
func (m Money) Dollars() float64 { return float64(m) / 100 }

func (m Money) Add(o Money) Money { return m + o }

func (m Money) Sub(o Money) Money { return m - o }

func (m Money) IsZero() bool { return m == 0 }

func (m Money) IsNegative() bool { return m < 0 }

// Format renders the amount as "$1,234.56". Negative amounts render as
// "-$1,234.56".
func (m Money) Format() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	dollars := v / 100
	cents := v % 100
	return fmt.Sprintf("%s$%s.%02d", sign, groupThousands(dollars), cents)
}

func (m Money) String() string { return m.Format() }

// Parse reads a decimal dollar string ("1234.56", "$1,234.56") into cents.
func Parse(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}

	var cents int64
	switch len(frac) {
	case 0:
	case 1:
		cents, err = strconv.ParseInt(frac, 10, 64)
		cents *= 10
	case 2:
		cents, err = strconv.ParseInt(frac, 10, 64)
	default:
		return 0, fmt.Errorf("invalid amount %q: more than two decimal places", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}

	total := dollars*100 + cents
	if neg {
		total = -total
	}
	return Money(total), nil
}

func groupThousands(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
