package ptrc

import (
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/go-stack/stack"
)

// callSite is the parsed naming information for a single call site.
type callSite struct {
	fullName   string
	simpleName string
	location   SourceLocation
}

// callSiteCache memoizes parsed call sites, keyed by the raw program counters
// of the innermost frames above the instrumentation call. Programs have a
// small and slowly growing set of distinct call stacks, so the cache is
// unbounded.
type callSiteCache struct {
	sites sync.Map // stackKey -> callSite
}

type stackKey [4]uintptr

var callSites callSiteCache

// caller returns the call site skip frames above the caller of caller.
func (c *callSiteCache) caller(skip int) callSite {
	var key stackKey
	runtime.Callers(skip+2, key[:])
	if site, ok := c.sites.Load(key); ok {
		return site.(callSite)
	}

	fr := stack.Caller(skip + 1).Frame()
	site := callSite{
		fullName:   fr.Function,
		simpleName: funcNameOnly(fr.Function),
		location:   SourceLocation{File: fr.File, Line: fr.Line},
	}
	if site.fullName == "" {
		site.fullName, site.simpleName = "Unknown", "Unknown"
	}

	actual, _ := c.sites.LoadOrStore(key, site)
	return actual.(callSite)
}

// name returns the simple or fully qualified name of the call site.
func (site callSite) name(simple bool) string {
	if simple {
		return site.simpleName
	}
	return site.fullName
}

// stackTrace returns the current call stack as text, one "function file:line"
// frame per line, innermost first, without runtime or ptrc frames.
func stackTrace() string {
	var sb strings.Builder
	for _, c := range stack.Trace().TrimRuntime() {
		fr := c.Frame()
		if ignoreStackFrameFunction(fr.Function) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(fr.Function)
		sb.WriteByte(' ')
		sb.WriteString(pkgFilePath(fr.Function, fr.File))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(fr.Line))
	}
	return sb.String()
}

const pkgName = "github.com/peterbourgon/ptrc"

func ignoreStackFrameFunction(function string) bool {
	if !strings.HasPrefix(function, pkgName) {
		return false // fast path
	}
	return strings.HasPrefix(function, pkgName+".")
}

func pkgFilePath(function, file string) string {
	pre := pkgPrefix(function)
	post := pathSuffix(file)
	if pre == "" {
		return post
	}
	return pre + "/" + post
}

func pkgPrefix(funcName string) string {
	const pathSep = "/"
	end := strings.LastIndex(funcName, pathSep)
	if end == -1 {
		return ""
	}
	return funcName[:end]
}

func pathSuffix(path string) string {
	const pathSep = "/"
	lastSep := strings.LastIndex(path, pathSep)
	if lastSep == -1 {
		return path
	}
	return path[strings.LastIndex(path[:lastSep], pathSep)+1:]
}

func funcNameOnly(name string) string {
	const pathSep = "/"
	if i := strings.LastIndex(name, pathSep); i != -1 {
		name = name[i+len(pathSep):]
	}
	const pkgSep = "."
	if i := strings.Index(name, pkgSep); i != -1 {
		name = name[i+len(pkgSep):]
	}
	return name
}
