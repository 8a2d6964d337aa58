// Package utils provides display formatting shared by the report, the CLI and
// the advisor prompts, so every surface prints a figure the same way.
package utils

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// FormatCurrency formats an amount as whole Indian Rupees with Indian digit
// grouping (₹38,87,288). Rounding is half away from zero and happens only
// here, at display time. Negative values, including negative zero and values
// that round to zero, carry a leading minus.
func FormatCurrency(amount float64) string {
	negative := math.Signbit(amount)
	prefix := "₹"
	if negative {
		prefix = "-₹"
	}

	switch {
	case math.IsNaN(amount):
		return "₹NaN"
	case math.IsInf(amount, 0):
		return prefix + "∞"
	}

	rounded := math.Round(math.Abs(amount))
	return prefix + formatIndianDigits(strconv.FormatFloat(rounded, 'f', 0, 64))
}

// FormatINRCompact formats a number in compact Indian notation.
// e.g., 1927345 → "₹19.27 L", 192734500000 → "₹19273.45 Cr"
func FormatINRCompact(amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	prefix := "₹"
	if negative {
		prefix = "-₹"
	}

	switch {
	case amount >= 1e12:
		return fmt.Sprintf("%s%s L Cr", prefix, formatWithDecimals(amount/1e12))
	case amount >= 1e7:
		return fmt.Sprintf("%s%s Cr", prefix, formatWithDecimals(amount/1e7))
	case amount >= 1e5:
		return fmt.Sprintf("%s%s L", prefix, formatWithDecimals(amount/1e5))
	case amount >= 1e3:
		return fmt.Sprintf("%s%s K", prefix, formatWithDecimals(amount/1e3))
	default:
		return fmt.Sprintf("%s%.2f", prefix, amount)
	}
}

// FormatFixed renders v with exactly digits decimals using JavaScript
// Number.prototype.toFixed rounding: the exact binary value is rounded to the
// nearest decimal and an exact tie goes away from zero.
// e.g., FormatFixed(0.125, 2) → "0.13", FormatFixed(1.005, 2) → "1.00"
func FormatFixed(v float64, digits int) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	if digits < 0 {
		digits = 0
	}
	if digits > 20 {
		digits = 20
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	// Scale exactly: a 53-bit mantissa times 10^digits fits in 256 bits.
	scaled := new(big.Float).SetPrec(256).SetFloat64(v)
	pow := new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil))
	scaled.Mul(scaled, pow)

	n, _ := scaled.Int(nil)
	frac := new(big.Float).SetPrec(256).Sub(scaled, new(big.Float).SetPrec(256).SetInt(n))
	if frac.Cmp(big.NewFloat(0.5)) >= 0 {
		n.Add(n, big.NewInt(1))
	}

	s := n.String()
	if digits == 0 {
		return sign + s
	}
	if len(s) <= digits {
		s = strings.Repeat("0", digits-len(s)+1) + s
	}
	return sign + s[:len(s)-digits] + "." + s[len(s)-digits:]
}

// FormatRatio formats a multiple such as MER: 3.2394 → "3.24x".
func FormatRatio(v float64) string {
	return FormatFixed(v, 2) + "x"
}

// FormatMarginPct formats a margin percentage: 53.8239 → "53.8%".
func FormatMarginPct(pct float64) string {
	return FormatFixed(pct, 1) + "%"
}

// formatIndianDigits groups a string of decimal digits the Indian way.
func formatIndianDigits(s string) string {
	length := len(s)
	if length <= 3 {
		return s
	}

	// Take the last 3 digits
	result := s[length-3:]
	remaining := s[:length-3]

	// Group remaining digits in pairs from right
	for len(remaining) > 0 {
		if len(remaining) > 2 {
			result = remaining[len(remaining)-2:] + "," + result
			remaining = remaining[:len(remaining)-2]
		} else {
			result = remaining + "," + result
			remaining = ""
		}
	}

	return result
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
