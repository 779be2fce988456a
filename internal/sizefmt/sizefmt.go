// Package sizefmt formats byte counts and throughput rates for the C6
// progress and summary output. FormatSize is kept verbatim from the
// teacher's internal/scan/size.go.
package sizefmt

import "fmt"

// FormatSize formats a byte count as a human-readable string using SI units
// (base 1000). Examples: 0 -> "0 B", 1500 -> "1.5 kB", 1000000 -> "1.0 MB".
func FormatSize(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}

	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"kB", "MB", "GB", "TB", "PB", "EB"}
	return fmt.Sprintf("%.1f %s", float64(b)/float64(div), units[exp])
}

// FormatRate formats a bytes-per-second throughput as "<size>/s".
func FormatRate(bytesPerSecond float64) string {
	return FormatSize(int64(bytesPerSecond)) + "/s"
}

// FormatCount formats an element-per-second rate with one decimal place.
func FormatCount(elementsPerSecond float64) string {
	return fmt.Sprintf("%.1f/s", elementsPerSecond)
}
