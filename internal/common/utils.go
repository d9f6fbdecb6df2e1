package common

import (
	"strconv"
	"strings"
)

// Round rounds v to the given number of decimal places. Rounding works on the
// exact value of v, with ties to even: 1.15 is stored as 1.1499... and gives
// 1.1, 0.25 gives 0.2.
func Round(v float64, places int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	if r == 0 {
		// no negative zero
		return 0
	}
	return r
}

// Mean returns the arithmetic mean of values and false when values is empty.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}

// SplitList splits a comma separated list, trimming blanks and dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
