// Package failure defines the error kinds shared by the translation, solver and
// navigation layers. A kind tells the caller whether retrying with the same
// input can help: launch and protocol failures are contract violations between
// this program and an external binary, never problems in the user's source.
package failure

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// LaunchFailure indicates an external binary could not be started.
	LaunchFailure Kind = "launch_failure"
	// TranslatorUsage indicates the translator rejected its own arguments.
	TranslatorUsage Kind = "translator_usage"
	// MalformedDiagnostic indicates a translator error line was not row:col:message.
	MalformedDiagnostic Kind = "malformed_diagnostic"
	// MalformedTableFile indicates the literal table file could not be parsed.
	MalformedTableFile Kind = "malformed_table_file"
	// UnknownLiteralCode indicates the solver emitted a code absent from the table.
	UnknownLiteralCode Kind = "unknown_literal_code"
	// RoundTimeout indicates the solver did not answer a request in time.
	RoundTimeout Kind = "round_timeout"
	// Protocol indicates any other violation of the solver protocol.
	Protocol Kind = "protocol"
	// IO indicates a local file or pipe operation failed.
	IO Kind = "io"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *E found in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Fatal reports whether err is a contract violation that retrying with the
// same source cannot fix.
func Fatal(err error) bool {
	switch KindOf(err) {
	case LaunchFailure, TranslatorUsage, MalformedDiagnostic, MalformedTableFile, UnknownLiteralCode, Protocol:
		return true
	}
	return false
}
