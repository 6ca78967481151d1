package config

import (
	"fmt"
	"strconv"
	"strings"
)

// byte-size multipliers, binary (1024-based) — human-readable size suffixes
// in the dustin/go-humanize style.
const (
	unitKiB = 1024
	unitMiB = unitKiB * 1024
	unitGiB = unitMiB * 1024
)

// ParseSize parses a human-readable byte size like "1MiB", "512KiB", "8MB",
// or a bare integer (bytes). Returns an error for negative or unparsable values.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("config: empty size value")
	}

	upper := strings.ToUpper(s)

	mult, numPart := int64(1), upper

	switch {
	case strings.HasSuffix(upper, "GIB"):
		mult, numPart = unitGiB, strings.TrimSuffix(upper, "GIB")
	case strings.HasSuffix(upper, "MIB"):
		mult, numPart = unitMiB, strings.TrimSuffix(upper, "MIB")
	case strings.HasSuffix(upper, "KIB"):
		mult, numPart = unitKiB, strings.TrimSuffix(upper, "KIB")
	case strings.HasSuffix(upper, "GB"):
		mult, numPart = unitGiB, strings.TrimSuffix(upper, "GB")
	case strings.HasSuffix(upper, "MB"):
		mult, numPart = unitMiB, strings.TrimSuffix(upper, "MB")
	case strings.HasSuffix(upper, "KB"):
		mult, numPart = unitKiB, strings.TrimSuffix(upper, "KB")
	case strings.HasSuffix(upper, "B"):
		mult, numPart = 1, strings.TrimSuffix(upper, "B")
	}

	numPart = strings.TrimSpace(numPart)

	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid size %q: %w", s, err)
	}

	if n < 0 {
		return 0, fmt.Errorf("config: size %q must not be negative", s)
	}

	return int64(n * float64(mult)), nil
}
