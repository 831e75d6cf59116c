package utils

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

const bytesPerMB = 1024 * 1024

// HumanSize renders a byte count the way sweep reports expose it.
func HumanSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

// SizeMB converts a byte count to megabytes.
func SizeMB(size int64) float64 {
	return float64(size) / bytesPerMB
}

// CombinedSize renders both the exact byte count and its human form.
func CombinedSize(size int64) string {
	return fmt.Sprintf("%d bytes (%s)", size, HumanSize(size))
}
