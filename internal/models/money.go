package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatCents renders an integer cent amount for humans, e.g. "USD 250.00".
func FormatCents(currency string, cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}

// ParseCents parses a decimal amount like "250" or "250.75" into cents.
// At most two fraction digits are accepted; money never rounds silently.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("models: invalid amount %q", s)
	}

	cents := w * 100
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("models: amount %q has sub-cent precision", s)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("models: invalid amount %q", s)
		}
		cents += f
	}
	return cents, nil
}
