// Package bytesize parses and formats human-readable size strings for
// segment and message size limits ("1gb", "512mb", "4096"). The engine's
// config and the cmd/duraqd flags take plain byte counts and do not
// parse through this package.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KB int64 = 1 << 10
	MB int64 = 1 << 20
	GB int64 = 1 << 30
)

var units = []struct {
	suffix string
	scale  int64
}{
	{"gb", GB},
	{"mb", MB},
	{"kb", KB},
	{"g", GB},
	{"m", MB},
	{"k", KB},
	{"b", 1},
}

// Parse converts a size string like "1gb", "512Mb" or a bare byte count
// like "4096" into a byte count. It is case-insensitive and tolerates
// surrounding whitespace.
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty size")
	}
	lower := strings.ToLower(s)

	for _, u := range units {
		if strings.HasSuffix(lower, u.suffix) {
			numPart := strings.TrimSpace(lower[:len(lower)-len(u.suffix)])
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("bytesize: invalid size %q: %w", s, err)
			}
			return int64(n * float64(u.scale)), nil
		}
	}

	n, err := strconv.ParseInt(lower, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid size %q: %w", s, err)
	}
	return n, nil
}

// Format renders n bytes as the largest whole unit that divides it
// evenly, falling back to a plain byte count otherwise.
func Format(n int64) string {
	switch {
	case n != 0 && n%GB == 0:
		return fmt.Sprintf("%dgb", n/GB)
	case n != 0 && n%MB == 0:
		return fmt.Sprintf("%dmb", n/MB)
	case n != 0 && n%KB == 0:
		return fmt.Sprintf("%dkb", n/KB)
	default:
		return fmt.Sprintf("%db", n)
	}
}
