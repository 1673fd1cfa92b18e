// Package monitoring holds the process-level logger used outside the
// detection pipeline: CLI progress, store writes and HTTP helpers.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// RunLogf returns a logger that tags every line with a shortened run id
// and forwards to whatever Logf is at call time.
func RunLogf(runID string) func(format string, v ...interface{}) {
	tag := runID
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return func(format string, v ...interface{}) {
		Logf("[run %s] %s", tag, fmt.Sprintf(format, v...))
	}
}
