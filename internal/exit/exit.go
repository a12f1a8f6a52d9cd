// Package exit carries the message and status a command finishes with.
package exit

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	CodeOK      = 0
	CodeFailure = 1
	// CodeUsage reports invalid flags or arguments.
	CodeUsage = 2
)

// Result holds the output destination and exit code for program termination.
type Result struct {
	Output   io.Writer
	ExitCode int
	Message  string
}

// Print writes the message, ending it with a newline if it lacks one.
func (r *Result) Print() {
	if r.Message == "" {
		return
	}

	msg := r.Message
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(r.Output, msg)
}

// Success writes to stdout and exits with CodeOK.
func Success(message string) *Result {
	return &Result{
		Output:   os.Stdout,
		ExitCode: CodeOK,
		Message:  message,
	}
}

// Error writes to stderr and exits with CodeFailure.
func Error(message string) *Result {
	return &Result{
		Output:   os.Stderr,
		ExitCode: CodeFailure,
		Message:  message,
	}
}

func Errorf(format string, a ...any) *Result {
	return Error(fmt.Sprintf(format, a...))
}

// Usagef writes to stderr and exits with CodeUsage.
func Usagef(format string, a ...any) *Result {
	return &Result{
		Output:   os.Stderr,
		ExitCode: CodeUsage,
		Message:  fmt.Sprintf(format, a...),
	}
}
