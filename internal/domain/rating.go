package domain

import (
	"math"
	"strconv"
	"strings"
)

// ParseRating reads a decimal rating string such as "4.8" or "4,8". Anything
// non-numeric, negative or not finite reads as zero.
func ParseRating(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// FormatDecimal renders a float the way the Listing API carries decimals on the wire.
func FormatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
