package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a monetary value. Both "1234.56" and "1234,56" are accepted,
// since settlement exports from Brazilian processors use a decimal comma.
func ParseDecimal(val string) (decimal.Decimal, error) {
	s := strings.TrimSpace(val)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// 1.234,56 -> 1234.56
			s = strings.ReplaceAll(s, ".", "")
		}
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", val, err)
	}
	return d, nil
}

// ToBool converts a query or flag value to bool.
// It accepts "1", "true", "yes" and "y" in any case.
func ToBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// SplitList splits a comma separated list, dropping blanks and surrounding spaces.
func SplitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
