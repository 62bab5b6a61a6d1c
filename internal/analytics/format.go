package analytics

import "strconv"

// formatNumber печатает число в кратчайшей форме: 48 -> "48", 6.25 -> "6.25"
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
