package translation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/internal/logging"
	"github.com/limaJavier/modelbrowser/internal/metrics"
	"github.com/limaJavier/modelbrowser/pkg/literal"
	"github.com/samber/lo"
)

const (
	clauseFileName = "out.cnf"
	tableFileName  = "out.table"
)

// Translator exit codes
const (
	exitOK            = 0
	exitSyntaxError   = 1
	exitSemanticError = 2
	exitJustWarnings  = 3
)

type Status int

const (
	StatusOK Status = iota
	StatusSyntaxError
	StatusSemanticError
	StatusWarnings
)

func (status Status) String() string {
	switch status {
	case StatusSyntaxError:
		return "syntax_error"
	case StatusSemanticError:
		return "semantic_error"
	case StatusWarnings:
		return "warnings"
	}
	return "ok"
}

// Result of one translator run. On failure (syntax or semantic errors) only
// the diagnostics are meaningful.
type Result struct {
	Success  bool
	Status   Status
	ExitCode int
	Stdout   string
	Stderr   string

	diagnostics    []Diagnostic
	table          *literal.Table
	clauseFilePath string
	tableFilePath  string
	outputDir      string
}

func (result *Result) Diagnostics() []Diagnostic {
	return slices.Clone(result.diagnostics)
}

func (result *Result) Errors() []Diagnostic {
	return lo.Filter(result.diagnostics, func(diagnostic Diagnostic, _ int) bool {
		return diagnostic.Severity == SeverityError
	})
}

func (result *Result) Warnings() []Diagnostic {
	return lo.Filter(result.diagnostics, func(diagnostic Diagnostic, _ int) bool {
		return diagnostic.Severity == SeverityWarning
	})
}

func (result *Result) LiteralTable() *literal.Table {
	return result.table
}

func (result *Result) ClauseFilePath() string {
	return result.clauseFilePath
}

func (result *Result) TableFilePath() string {
	return result.tableFilePath
}

// Cleanup removes the clause and table files produced by the run.
func (result *Result) Cleanup() error {
	if result == nil || result.outputDir == "" {
		return nil
	}
	err := os.RemoveAll(result.outputDir)
	result.outputDir = ""
	return err
}

// Service runs the external translator. Each call owns its own output
// directory, so a Service may be shared between goroutines.
type Service struct {
	command string
	args    []string
	workDir string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

// WithArgs sets arguments placed before the -o/-table/source arguments.
func WithArgs(args ...string) Option {
	return func(s *Service) {
		s.args = args
	}
}

// WithWorkDir sets where per-run output directories are created.
func WithWorkDir(dir string) Option {
	return func(s *Service) {
		s.workDir = dir
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(command string, opts ...Option) *Service {
	s := &Service{
		command: command,
		workDir: os.TempDir(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Translate runs `<command> <args...> -o <clause> -table <table> <sourcePath>`
// and blocks until it exits. Source errors are reported through a Result with
// Success=false and a nil error; launch, usage and output contract failures
// are returned as errors.
func (s *Service) Translate(ctx context.Context, sourcePath string) (*Result, error) {
	start := time.Now()

	outputDir, err := os.MkdirTemp(s.workDir, "translation-*")
	if err != nil {
		return nil, failure.Wrap(failure.IO, "cannot create translation directory", err)
	}
	clauseFilePath := filepath.Join(outputDir, clauseFileName)
	tableFilePath := filepath.Join(outputDir, tableFileName)

	args := append(slices.Clone(s.args), "-o", clauseFilePath, "-table", tableFilePath, sourcePath)
	cmd := exec.CommandContext(ctx, s.command, args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	s.logger.Debug("running translator", "command", s.command, "args", args)
	err = cmd.Run()

	exitCode := exitOK
	if err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() != nil {
			os.RemoveAll(outputDir)
			return nil, ctx.Err()
		} else if !errors.As(err, &exitErr) {
			os.RemoveAll(outputDir)
			s.metrics.ObserveTranslation(string(failure.LaunchFailure), time.Since(start))
			return nil, failure.Wrap(failure.LaunchFailure, fmt.Sprintf("cannot start translator %q", s.command), err)
		}
		exitCode = exitErr.ExitCode()
	}

	result := &Result{
		ExitCode:       exitCode,
		Stdout:         stdout.String(),
		Stderr:         stderr.String(),
		clauseFilePath: clauseFilePath,
		tableFilePath:  tableFilePath,
		outputDir:      outputDir,
	}

	switch exitCode {
	case exitSyntaxError, exitSemanticError:
		result.Status = StatusSyntaxError
		if exitCode == exitSemanticError {
			result.Status = StatusSemanticError
		}
		// The output files are not guaranteed to exist, drop them right away
		result.Cleanup()
		result.clauseFilePath = ""
		result.tableFilePath = ""
		result.diagnostics, err = ParseDiagnostics(result.Stderr, SeverityError)
		if err != nil {
			return nil, err
		}
		s.logger.Info("translator reported errors", "status", result.Status, "count", len(result.diagnostics))

	case exitOK, exitJustWarnings:
		result.Success = true
		result.Status = StatusOK
		if exitCode == exitJustWarnings {
			result.Status = StatusWarnings
		}
		result.diagnostics = s.parseWarnings(result.Stderr)
		if _, err := os.Stat(tableFilePath); err != nil && exitCode == exitJustWarnings {
			// Only exit 0 promises output files; warnings alone leave nothing to solve
			result.Success = false
			result.Cleanup()
			result.clauseFilePath = ""
			result.tableFilePath = ""
			s.logger.Info("translator reported warnings without output", "count", len(result.diagnostics))
			break
		} else if err != nil {
			result.Cleanup()
			return nil, failure.Wrap(failure.MalformedTableFile, "translator succeeded without writing a literal table", err)
		}
		result.table, err = literal.ParseFile(tableFilePath)
		if err != nil {
			result.Cleanup()
			return nil, err
		}

	default:
		result.Cleanup()
		s.metrics.ObserveTranslation(string(failure.TranslatorUsage), time.Since(start))
		return nil, failure.Newf(failure.TranslatorUsage, "translator exited with code %d: %s", exitCode, strings.TrimSpace(result.Stderr))
	}

	s.metrics.ObserveTranslation(result.Status.String(), time.Since(start))
	return result, nil
}

// parseWarnings keeps the stderr lines of a successful run that look like
// diagnostics; anything else is informational output.
func (s *Service) parseWarnings(stderr string) []Diagnostic {
	warnings := make([]Diagnostic, 0)
	for _, line := range strings.Split(stderr, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		warning, err := ParseDiagnostic(line, SeverityWarning)
		if err != nil {
			s.logger.Debug("ignoring translator output", "line", line)
			continue
		}
		warnings = append(warnings, warning)
	}
	return warnings
}
