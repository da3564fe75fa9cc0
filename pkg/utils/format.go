// Package utils provides shared formatting, retry, and market-session helpers.
package utils

import (
	"fmt"
	"strings"
)

// FormatIndianCurrency formats an amount with the Indian grouping scheme
// (thousands, then lakhs and crores in pairs).
func FormatIndianCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "₹" + groupIndian(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupIndian inserts commas into an integer string: last three digits, then
// pairs.
func groupIndian(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 2 {
		result = s[len(s)-2:] + "," + result
		s = s[:len(s)-2]
	}
	if len(s) > 0 {
		result = s + "," + result
	}
	return result
}

// FormatPercent renders a ratio already expressed in percent, e.g. 35.0 ->
// "35.0%".
func FormatPercent(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

// FormatQuantity renders a share count with Indian grouping.
func FormatQuantity(qty int) string {
	sign := ""
	if qty < 0 {
		sign = "-"
		qty = -qty
	}
	return sign + groupIndian(fmt.Sprintf("%d", qty))
}
