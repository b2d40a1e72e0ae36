package monitor

import (
	"strconv"
	"strings"
)

// FormatPrice renders a price with precision adapted to its magnitude:
// 2 decimals from 1000 up, 4 from 1, 6 from 0.01 and 8 below that.
// Trailing zeros and a dangling decimal point are stripped.
func FormatPrice(price float64) string {
	if price == 0 {
		return "0"
	}

	var formatted string
	switch {
	case price >= 1000:
		formatted = strconv.FormatFloat(price, 'f', 2, 64)
	case price >= 1:
		formatted = strconv.FormatFloat(price, 'f', 4, 64)
	case price >= 0.01:
		formatted = strconv.FormatFloat(price, 'f', 6, 64)
	default:
		formatted = strconv.FormatFloat(price, 'f', 8, 64)
	}

	if strings.Contains(formatted, ".") {
		formatted = strings.TrimRight(formatted, "0")
		formatted = strings.TrimRight(formatted, ".")
	}

	return formatted
}
