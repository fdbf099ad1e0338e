package utils

import (
	"strings"
)

// Common ticker aliases seen in provider feeds and user input.
var tickerAliases = map[string]string{
	"FB":    "META",
	"BRK.B": "BRK-B",
	"BRK/B": "BRK-B",
	"BF.B":  "BF-B",
}

// NormalizeTicker normalizes a ticker to the canonical upper-case symbol.
// It handles aliases, uppercasing, whitespace and a leading "$".
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (common in headlines and chat)
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}
	return ticker
}

// SplitTickers splits a provider's comma-joined ticker list. Each part is
// trimmed and upper-cased only (no alias mapping, the provider's symbol is
// kept as is). Every non-empty occurrence is returned in order, duplicates
// included.
func SplitTickers(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.ToUpper(strings.TrimSpace(p))
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// JoinTickers is the inverse of SplitTickers.
func JoinTickers(tickers []string) string {
	return strings.Join(tickers, ",")
}

// IsValidTicker reports whether s looks like an exchange symbol:
// letters, digits, '.', '-' and at most 10 characters.
func IsValidTicker(s string) bool {
	if s == "" || len(s) > 10 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}
