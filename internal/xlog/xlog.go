// Package xlog provides the warning output of the command line tools.
// Warnings go to standard error and can be suppressed globally, which is
// all the tools need; anything structured would be overkill for them.
package xlog

import (
	"fmt"
	"io"
	"os"
)

// Quiet suppresses all warning output when set.
var Quiet bool

// Output is the destination for warnings. It defaults to standard error
// and is only changed by tests.
var Output io.Writer = os.Stderr

// Warnf formats a warning and prints it on a single line.
func Warnf(format string, v ...interface{}) {
	if Quiet {
		return
	}
	fmt.Fprintf(Output, format+"\n", v...)
}

// Warn prints the arguments as a warning line.
func Warn(v ...interface{}) {
	if Quiet {
		return
	}
	fmt.Fprintln(Output, v...)
}
