// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package paropt

import (
	"fmt"
	"io"
)

// LogLevel controls which messages Logger.log emits, following the same
// ascending-verbosity convention as curioloop/optimizer's lbfgsb driver.
type LogLevel int

const (
	// LogNoop disables every message.
	LogNoop LogLevel = -1
	// LogLast prints no per-iteration output; no final summary is printed.
	LogLast LogLevel = 0
	// LogIter prints one line per major iteration.
	LogIter LogLevel = 1
	// LogLineSearch additionally prints line search diagnostics.
	LogLineSearch LogLevel = 2
	// LogDetail additionally prints the periodic gradient-check report.
	LogDetail LogLevel = 99
	// LogVerbose enables every message.
	LogVerbose LogLevel = 100
)

// Logger writes optimizer progress to Msg (human-readable, used by log)
// and Out (machine-parseable, used by out); either may be nil to discard.
type Logger struct {
	Level LogLevel
	Msg   io.Writer
	Out   io.Writer
}

func (l Logger) enable(level LogLevel) bool {
	return l.Level != LogNoop && l.Level >= level
}

func (l Logger) log(level LogLevel, format string, args ...any) {
	if l.enable(level) && l.Msg != nil {
		fmt.Fprintf(l.Msg, format, args...)
	}
}

func (l Logger) out(level LogLevel, format string, args ...any) {
	if l.enable(level) && l.Out != nil {
		fmt.Fprintf(l.Out, format, args...)
	}
}
