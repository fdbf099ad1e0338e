package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePercent parses a provider percent string such as "3.25%", "-0.4 %"
// or "+1.1%". A bare number is accepted as already being a percentage.
func ParsePercent(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	if s == "" {
		return 0, fmt.Errorf("empty percent")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percent %q", s)
	}
	return v, nil
}

// FormatPercent is the inverse of ParsePercent: 3.25 -> "3.25%".
func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// ParseNumber parses a provider number that may carry thousands separators
// ("1,234,567"). The provider's "-" placeholder reports ok=false.
func ParseNumber(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid number %q", s)
	}
	return v, true, nil
}
