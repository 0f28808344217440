package ptrc

import (
	"strings"
	"testing"
)

func TestFuncNameOnly(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		input string
		want  string
	}{
		{"main.main", "main"},
		{"github.com/x/y.Func", "Func"},
		{"github.com/x/y.(*Server).handle", "(*Server).handle"},
		{"github.com/x/y.Func.func1", "Func.func1"},
		{"github.com/x/y.v2/z.Func", "Func"},
		{"Unknown", "Unknown"},
	} {
		if want, have := tc.want, funcNameOnly(tc.input); want != have {
			t.Errorf("%s: want %q, have %q", tc.input, want, have)
		}
	}
}

func TestPkgFilePath(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		function string
		file     string
		want     string
	}{
		{"github.com/x/y.Func", "/src/y/file.go", "github.com/x/y/file.go"},
		{"main.main", "/src/cmd/main.go", "cmd/main.go"},
	} {
		if want, have := tc.want, pkgFilePath(tc.function, tc.file); want != have {
			t.Errorf("%s: want %q, have %q", tc.function, want, have)
		}
	}
}

func TestIgnoreStackFrameFunction(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		input string
		want  bool
	}{
		{pkgName + ".(*Session).Begin", true},
		{pkgName + ".stackTrace", true},
		{pkgName + "_test.TestSomething", false},
		{pkgName + "/ptrchttp.Middleware", false},
		{"github.com/other/pkg.Something", false},
	} {
		if want, have := tc.want, ignoreStackFrameFunction(tc.input); want != have {
			t.Errorf("%s: want %v, have %v", tc.input, want, have)
		}
	}
}

func TestCallSiteCache(t *testing.T) {
	t.Parallel()

	var cache callSiteCache
	site := func() callSite { return cache.caller(0) }

	a, b := site(), site()
	if a != b {
		t.Errorf("want identical sites, have %+v, %+v", a, b)
	}
	if !strings.HasSuffix(a.location.File, "stack_internal_test.go") {
		t.Errorf("file: have %q", a.location.File)
	}
	if !strings.HasPrefix(a.simpleName, "TestCallSiteCache") {
		t.Errorf("name: have %q", a.simpleName)
	}
}

func TestStackTraceExcludesOwnFrames(t *testing.T) {
	t.Parallel()

	trace := stackTrace()
	for _, line := range strings.Split(trace, "\n") {
		if strings.HasPrefix(line, pkgName+".") {
			t.Errorf("unexpected frame %q", line)
		}
	}
}
