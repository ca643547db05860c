// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"
)

// StackFrame captures one call frame's position at the moment a runtime
// error was raised: which instruction it had reached, and a best-effort
// name for the function running there (the VM has no debug symbol table,
// so "<closure>" stands in for anything but the top-level program).
type StackFrame struct {
	Name string // "<program>" or "<closure>"
	IP   int    // instruction pointer at time of error
}

// RuntimeError is the error the VM returns for every execution failure
// ("unsupported types for binary operation: ...", "division by zero",
// "stack overflow", "unknown operator: ...", "unsupported type for
// negation: ...", "calling non-function", wrong argument counts, ...).
// Message carries the exact verbatim wording callers assert against;
// StackTrace is purely diagnostic and never part of that text.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

// Error implements the error interface, appending a stack trace after the
// verbatim message so REPL/CLI output stays readable without disturbing
// tests that check Message directly.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.StackTrace) - 1; i >= 0; i-- {
			frame := e.StackTrace[i]
			b.WriteString(fmt.Sprintf("\n  at %s [IP: %d]", frame.Name, frame.IP))
		}
	}

	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}
