// Package logging provides the plain-text leveled logger used across the
// unpacker. It wraps the standard library logger rather than a structured
// one: nothing in this codebase's lineage reaches for structured logging,
// so a thin stdlib wrapper matches the idiom instead of inventing one.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger writes leveled, prefixed lines to an underlying *log.Logger.
type Logger struct {
	out      *log.Logger
	Warnings []string
	Errors   []string
}

// New builds a Logger writing to w (os.Stderr if w is nil).
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{out: log.New(w, "", 0)}
}

func (l *Logger) Infof(format string, args ...any) {
	l.out.Printf("info: "+format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.Warnings = append(l.Warnings, msg)
	l.out.Printf("warning: %s", msg)
}

func (l *Logger) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.Errors = append(l.Errors, msg)
	l.out.Printf("error: %s", msg)
}

// OK reports whether no errors have been recorded.
func (l *Logger) OK() bool { return len(l.Errors) == 0 }
