package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// FormatMillion renders an amount in millions with two decimals, e.g.
// 8_500_000 -> "8.50M".
func FormatMillion(amount int64) string {
	return decimal.NewFromInt(amount).Div(million).StringFixed(2) + "M"
}

// ParseAmount parses operator input into currency units. Plain integers are
// taken as-is; an "M" or "K" suffix scales by a million or a thousand
// ("8.5M" -> 8_500_000). The result must be a whole number of units.
func ParseAmount(input string) (int64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(input, "_", ""))
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, fmt.Errorf("parse amount: empty input")
	}

	scale := decimal.NewFromInt(1)
	switch s[len(s)-1] {
	case 'M', 'm':
		scale = million
		s = s[:len(s)-1]
	case 'K', 'k':
		scale = thousand
		s = s[:len(s)-1]
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", input, err)
	}
	value = value.Mul(scale)
	if !value.IsInteger() {
		return 0, fmt.Errorf("parse amount %q: not a whole number of units", input)
	}
	if !value.Equal(decimal.NewFromInt(value.IntPart())) {
		return 0, fmt.Errorf("parse amount %q: out of range", input)
	}
	return value.IntPart(), nil
}
