package ptrcutil_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/peterbourgon/ptrc/internal/ptrcutil"
)

func TestFlattenErrors(t *testing.T) {
	t.Parallel()

	if have := ptrcutil.FlattenErrors(); have != nil {
		t.Errorf("empty: have %v", have)
	}

	want := []string{"a", "b"}
	have := ptrcutil.FlattenErrors(errors.New("a"), nil, errors.New("b"))
	if !cmp.Equal(want, have) {
		t.Error(cmp.Diff(want, have))
	}

	if want, have := "a; b", ptrcutil.JoinErrors(errors.New("a"), errors.New("b")); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
}

func TestParseRange(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		input string
		want  int
	}{
		{"", 10},
		{"abc", 10},
		{"0", 1},
		{"5", 5},
		{"1000", 100},
	} {
		if have := ptrcutil.ParseRange(tc.input, strconv.Atoi, 1, 10, 100); tc.want != have {
			t.Errorf("%q: want %d, have %d", tc.input, tc.want, have)
		}
	}

	if want, have := time.Second, ptrcutil.ParseDefault("x", time.ParseDuration, time.Second); want != have {
		t.Errorf("want %s, have %s", want, have)
	}
}

func TestHumanize(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		input time.Duration
		want  string
	}{
		{0, "0s"},
		{999 * time.Nanosecond, "999ns"},
		{1234567 * time.Nanosecond, "1.2ms"},
		{25*time.Millisecond + 123*time.Microsecond, "25ms"},
		{1234 * time.Millisecond, "1.2s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2h3m"},
	} {
		if have := ptrcutil.HumanizeDuration(tc.input); tc.want != have {
			t.Errorf("%s: want %q, have %q", tc.input, tc.want, have)
		}
	}

	for _, tc := range []struct {
		input int
		want  string
	}{
		{512, "512B"},
		{2048, "2.0KB"},
		{500 * 1024, "500KB"},
		{3 * 1024 * 1024, "3.0MB"},
	} {
		if have := ptrcutil.HumanizeBytes(tc.input); tc.want != have {
			t.Errorf("%d: want %q, have %q", tc.input, tc.want, have)
		}
	}
}
