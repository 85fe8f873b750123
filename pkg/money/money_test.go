package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "$0.00", FromCents(0).Format())
	assert.Equal(t, "$0.05", FromCents(5).Format())
	assert.Equal(t, "$2,000.00", FromCents(200000).Format())
	assert.Equal(t, "$10,200.00", FromCents(1020000).Format())
	assert.Equal(t, "$1,234,567.89", FromCents(123456789).Format())
	assert.Equal(t, "-$1,234.56", FromCents(-123456).Format())
}

func TestParse(t *testing.T) {
	cases := map[string]int64{
		"1234.56":    123456,
		"$1,234.56":  123456,
		"10200":      1020000,
		"0.5":        50,
		"-300.00":    -30000,
		"$10,200.00": 1020000,
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		assert.NoError(t, err, raw)
		assert.Equal(t, Money(want), got, raw)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "abc", "1.234", "$"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
}

func TestFromDollarsRounds(t *testing.T) {
	assert.Equal(t, Money(200000), FromDollars(2000.00))
	assert.Equal(t, Money(1005), FromDollars(10.046))
	assert.Equal(t, Money(-250), FromDollars(-2.50))
}
