// Package derive computes the accepted quantity of an inspection from the
// cast quantity and the defect counters. Operators type counts as free text,
// so every raw value is sanitized before it is interpreted: anything that is
// not an ASCII digit is dropped, and an empty result counts as zero.
//
// All functions are pure. Callers recompute on every field change; with a
// fixed set of ~40 counters there is nothing worth caching.
package derive

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// MaxCount bounds a single count. Larger digit runs are out of range.
const MaxCount = math.MaxInt32

// ErrOverflow is returned by ParseCount when the digits exceed MaxCount.
var ErrOverflow = errors.New("derive: count out of range")

// SanitizeDigits returns s with every non-digit character removed. Only
// ASCII 0-9 survive; other Unicode digits are dropped like any other rune.
func SanitizeDigits(s string) string {
	// Fast path: already clean.
	clean := true
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ParseCount sanitizes s and parses the remaining digits. An empty or fully
// non-numeric value is 0 with a nil error. A digit run above MaxCount yields
// MaxCount and ErrOverflow.
func ParseCount(s string) (int, error) {
	d := strings.TrimLeft(SanitizeDigits(s), "0")
	if d == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(d, 10, 32)
	if err != nil {
		return MaxCount, ErrOverflow
	}
	return int(n), nil
}

// Coerce is ParseCount without the error: out-of-range values saturate at
// MaxCount, so an absurd entry still drives the accepted quantity negative.
func Coerce(s string) int {
	n, _ := ParseCount(s)
	return n
}

// Accepted returns cast minus the sum of all defect counts. The result is
// not clamped at zero: a negative value means the operator entered more
// defects than parts and is surfaced as-is. The sum saturates instead of
// wrapping, so the sign of the result is always right.
func Accepted(cast int, counts []int) int {
	sum := 0
	for _, n := range counts {
		sum = addSat(sum, n)
	}
	return addSat(cast, -max(sum, -math.MaxInt))
}

func addSat(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
