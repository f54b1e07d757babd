package tiktok

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var groupPrinter = message.NewPrinter(language.English)

// FormatCount abbreviates a statistic: 1234 is "1.2K", 3400000 is "3.4M".
// Values below 1000 are printed as is.
func FormatCount(n int64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(float64(n)/1_000_000, 'f', 1, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(float64(n)/1_000, 'f', 1, 64) + "K"
	default:
		return strconv.FormatInt(n, 10)
	}
}

// GroupDigits prints n with thousands separators, e.g. "1,234,567"
func GroupDigits(n int64) string {
	return groupPrinter.Sprintf("%d", n)
}
