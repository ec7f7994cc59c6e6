package unit

import (
	"runtime"
	"strings"
	"time"
)

func runtimeFuncForPC(pc uintptr) *runtime.Func {
	return runtime.FuncForPC(pc)
}

// shortFuncName strips the import path and package name from a
// fully-qualified runtime function name, e.g.
// "taskgraph/internal/unit_test.TestFoo.func1" -> "TestFoo.func1"; any
// receiver or closure suffix is kept (caller decides anonymity via
// isAnonymousFuncName).
func shortFuncName(full string) string {
	if idx := strings.LastIndex(full, "/"); idx >= 0 {
		full = full[idx+1:]
	}
	if idx := strings.Index(full, "."); idx >= 0 {
		full = full[idx+1:]
	}
	return full
}

// isAnonymousFuncName reports whether a short function name denotes a Go
// closure literal (the runtime names these "funcN" or embeds ".func").
func isAnonymousFuncName(name string) bool {
	return strings.Contains(name, ".func") || strings.HasPrefix(name, "func")
}

func durationFromSeconds(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
