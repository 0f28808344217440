// Package ptrcutil contains helpers shared by the HTTP server and the CLI.
package ptrcutil

import (
	"fmt"
	"strings"
	"time"
)

// FlattenErrors converts errors to strings, skipping nil errors.
func FlattenErrors(errs ...error) []string {
	var strs []string
	for _, err := range errs {
		if err != nil {
			strs = append(strs, err.Error())
		}
	}
	return strs
}

// JoinErrors flattens errs and joins them with "; ".
func JoinErrors(errs ...error) string {
	return strings.Join(FlattenErrors(errs...), "; ")
}

// ParseDefault parses s, returning def if parsing fails.
func ParseDefault[T any](s string, parse func(string) (T, error), def T) T {
	if v, err := parse(s); err == nil {
		return v
	}
	return def
}

// ParseRange parses s, returning def if parsing fails, and clamping the
// result to [min, max].
func ParseRange[T ~int | ~int64](s string, parse func(string) (T, error), min, def, max T) T {
	v, err := parse(s)
	switch {
	case err != nil:
		return def
	case v < min:
		return min
	case v > max:
		return max
	default:
		return v
	}
}

//
//
//

var durationTruncations = []struct {
	above time.Duration
	to    time.Duration
}{
	{10 * 24 * time.Hour, 24 * time.Hour},
	{24 * time.Hour, time.Hour},
	{time.Hour, time.Minute},
	{time.Minute, time.Second},
	{time.Second, 100 * time.Millisecond},
	{10 * time.Millisecond, time.Millisecond},
	{time.Millisecond, 100 * time.Microsecond},
	{time.Microsecond, time.Microsecond},
}

// TruncateDuration truncates d to a precision that depends on its magnitude,
// e.g. durations over 1s are truncated to 100ms.
func TruncateDuration(d time.Duration) time.Duration {
	for _, t := range durationTruncations {
		if d >= t.above {
			return d.Truncate(t.to)
		}
	}
	return d
}

// HumanizeDuration truncates d and returns a human-friendly string.
func HumanizeDuration(d time.Duration) string {
	dd := TruncateDuration(d)
	ds := dd.String()
	if dd >= time.Hour && strings.HasSuffix(ds, "0s") {
		ds = strings.TrimSuffix(ds, "0s")
	}
	return ds
}

// HumanizeBytes returns a human-friendly representation of n bytes, using KB
// for 1024 bytes and MB for 1048576 bytes.
func HumanizeBytes[T ~int | ~int64 | ~uint64](n T) string {
	const (
		kib = 1024.0
		mib = 1024 * kib
	)
	f := float64(n)
	switch {
	case f < kib:
		return fmt.Sprintf("%.0fB", f)
	case f < 100*kib:
		return fmt.Sprintf("%.1fKB", f/kib)
	case f < mib:
		return fmt.Sprintf("%.0fKB", f/kib)
	case f < 100*mib:
		return fmt.Sprintf("%.1fMB", f/mib)
	default:
		return fmt.Sprintf("%.0fMB", f/mib)
	}
}
