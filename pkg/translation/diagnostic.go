package translation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/limaJavier/modelbrowser/internal/failure"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (severity Severity) String() string {
	if severity == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one translator message anchored to a source position (1-based).
type Diagnostic struct {
	Severity Severity
	Line     int
	Column   int
	Message  string
}

func (diagnostic Diagnostic) String() string {
	return fmt.Sprintf("%v:%v: %v: %v", diagnostic.Line, diagnostic.Column, diagnostic.Severity, diagnostic.Message)
}

// ParseDiagnostic parses "<row>:<col>:<message>"; the message keeps any further colons.
func ParseDiagnostic(line string, severity Severity) (Diagnostic, error) {
	parts := strings.SplitN(strings.TrimRight(line, "\r"), ":", 3)
	if len(parts) != 3 {
		return Diagnostic{}, failure.Newf(failure.MalformedDiagnostic, "expected \"<row>:<col>:<message>\": %q", line)
	}

	row, err := strconv.Atoi(parts[0])
	if err != nil || row < 1 {
		return Diagnostic{}, failure.Newf(failure.MalformedDiagnostic, "invalid row in %q", line)
	}
	column, err := strconv.Atoi(parts[1])
	if err != nil || column < 1 {
		return Diagnostic{}, failure.Newf(failure.MalformedDiagnostic, "invalid column in %q", line)
	}

	return Diagnostic{
		Severity: severity,
		Line:     row,
		Column:   column,
		Message:  parts[2],
	}, nil
}

// ParseDiagnostics parses every non-blank line of the translator's stderr, in order.
func ParseDiagnostics(stderr string, severity Severity) ([]Diagnostic, error) {
	diagnostics := make([]Diagnostic, 0)
	for _, line := range strings.Split(stderr, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		diagnostic, err := ParseDiagnostic(line, severity)
		if err != nil {
			return nil, err
		}
		diagnostics = append(diagnostics, diagnostic)
	}
	return diagnostics, nil
}
