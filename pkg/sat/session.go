package sat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/internal/logging"
	"github.com/limaJavier/modelbrowser/internal/metrics"
	"github.com/limaJavier/modelbrowser/pkg/literal"
	"github.com/samber/lo"
)

// ProtocolVersion identifies the request/terminate handshake spoken with the
// bundled reference solver: "1\n" asks for a model, "\n0" asks it to quit.
const ProtocolVersion = 1

const (
	requestModel = "1\n"
	requestQuit  = "\n0"

	DefaultRoundTimeout = 30 * time.Second
	DefaultGracePeriod  = 2 * time.Second

	maxLineSize = 16 * 1024 * 1024
)

var ErrSessionClosed = errors.New("solver session closed")

type State int

const (
	StateActive State = iota
	StateExhausted
	StateFailed
	StateClosed
)

func (state State) String() string {
	switch state {
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "active"
}

type Option func(*Session)

// WithArgs sets arguments placed before the clause file path.
func WithArgs(args ...string) Option {
	return func(s *Session) {
		s.args = args
	}
}

// WithTable makes the session read signed integer codes and resolve them
// through the table instead of reading literal names.
func WithTable(table *literal.Table) Option {
	return func(s *Session) {
		s.table = table
	}
}

// WithRoundTimeout bounds the wait for one answer. Zero disables the bound.
func WithRoundTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		s.roundTimeout = timeout
	}
}

// WithGracePeriod bounds how long Close waits before killing the solver.
func WithGracePeriod(grace time.Duration) Option {
	return func(s *Session) {
		s.gracePeriod = grace
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithEnv appends KEY=value entries to the solver's inherited environment.
func WithEnv(env ...string) Option {
	return func(s *Session) {
		s.env = env
	}
}

// Session owns one interactive solver process and the models fetched from it.
// Models are requested lazily, one per Next call past the end of the buffer.
type Session struct {
	command      string
	args         []string
	env          []string
	table        *literal.Table
	roundTimeout time.Duration
	gracePeriod  time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	stderr syncBuffer

	lines chan string
	eof   chan struct{}
	done  chan struct{}

	nextMu  sync.Mutex
	writeMu sync.Mutex

	mu     sync.Mutex
	state  State
	models []Model
	cursor int

	closeOnce sync.Once
	closeErr  error
}

// Open starts `<command> <args...> <clauseFilePath>`. The returned session is
// Active with an empty buffer.
func Open(command, clauseFilePath string, opts ...Option) (*Session, error) {
	s := &Session{
		command:      command,
		roundTimeout: DefaultRoundTimeout,
		gracePeriod:  DefaultGracePeriod,
		logger:       logging.NewNop(),
		lines:        make(chan string),
		eof:          make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	args := append(slices.Clone(s.args), clauseFilePath)
	cmd := exec.Command(command, args...)
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}
	cmd.Stderr = &s.stderr
	cmd.WaitDelay = s.gracePeriod

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, failure.Wrap(failure.IO, "cannot create solver stdin", err)
	}
	stdoutReader, stdoutWriter, err := os.Pipe()
	if err != nil {
		return nil, failure.Wrap(failure.IO, "cannot create solver stdout", err)
	}
	cmd.Stdout = stdoutWriter

	if err := cmd.Start(); err != nil {
		stdoutReader.Close()
		stdoutWriter.Close()
		return nil, failure.Wrap(failure.LaunchFailure, fmt.Sprintf("cannot start solver %q", command), err)
	}
	// The child holds its own copy
	stdoutWriter.Close()

	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdoutReader
	s.logger = s.logger.With("solver", command, "pid", cmd.Process.Pid)
	s.metrics.SessionOpened()
	s.logger.Debug("solver session opened", "args", args)

	go s.read()
	return s, nil
}

func (s *Session) read() {
	defer close(s.eof)

	scanner := bufio.NewScanner(s.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Debug("solver output reader stopped", "err", err)
	}
}

// Next returns the model at the cursor and advances it. Buffered models are
// replayed without touching the process; past the buffer exactly one model is
// requested. ok is false once the solver has no more models.
func (s *Session) Next(ctx context.Context) (Model, bool, error) {
	s.nextMu.Lock()
	defer s.nextMu.Unlock()

	s.mu.Lock()
	if s.cursor < len(s.models) {
		model := s.models[s.cursor]
		s.cursor++
		s.mu.Unlock()
		return model.clone(), true, nil
	}
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateClosed:
		return nil, false, ErrSessionClosed
	case StateExhausted:
		return nil, false, nil
	case StateFailed:
		return nil, false, failure.New(failure.Protocol, "solver session failed, no further models can be requested")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	start := time.Now()
	line, ok, err := s.round(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			s.metrics.ObserveRound("closed", time.Since(start))
			return nil, false, err
		}
		s.fail(err)
		result := string(failure.KindOf(err))
		if result == "" {
			result = "cancelled"
		}
		s.metrics.ObserveRound(result, time.Since(start))
		return nil, false, err
	}

	// A blank line or EOF is exhaustion; "0" alone is the empty model
	exhausted := !ok || strings.TrimSpace(line) == ""
	var model Model
	if !exhausted {
		model, err = parseModel(line, s.table)
		if err != nil {
			s.fail(err)
			s.metrics.ObserveRound(string(failure.UnknownLiteralCode), time.Since(start))
			return nil, false, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		s.metrics.ObserveRound("closed", time.Since(start))
		return nil, false, ErrSessionClosed
	}
	if exhausted {
		s.state = StateExhausted
		s.metrics.ObserveRound("exhausted", time.Since(start))
		s.logger.Debug("solver exhausted", "models", len(s.models))
		return nil, false, nil
	}

	s.models = append(s.models, model)
	s.cursor = len(s.models)
	s.metrics.ObserveRound("model", time.Since(start))
	return model.clone(), true, nil
}

// round performs one request/answer exchange. ok is false when the solver
// closed its output instead of answering.
func (s *Session) round(ctx context.Context) (string, bool, error) {
	s.writeMu.Lock()
	_, err := io.WriteString(s.stdin, requestModel)
	s.writeMu.Unlock()
	if err != nil {
		if s.isClosed() {
			return "", false, ErrSessionClosed
		}
		// A solver that already quit reports it through its output
		s.logger.Debug("cannot write model request", "err", err)
	}

	var timeout <-chan time.Time
	if s.roundTimeout > 0 {
		timer := time.NewTimer(s.roundTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case line := <-s.lines:
		return line, true, nil
	case <-s.eof:
		if s.isClosed() {
			return "", false, ErrSessionClosed
		}
		return "", false, nil
	case <-s.done:
		return "", false, ErrSessionClosed
	case <-timeout:
		return "", false, failure.Newf(failure.RoundTimeout, "solver did not answer within %v", s.roundTimeout)
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		s.state = StateFailed
		s.logger.Warn("solver session failed", "err", err)
	}
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

// Back moves the cursor one model backwards. It reports false at the start of
// the buffer.
func (s *Session) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == 0 {
		return false
	}
	s.cursor--
	return true
}

// Rewind moves the cursor to the first buffered model.
func (s *Session) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = 0
}

// At returns the i-th buffered model without moving the cursor.
func (s *Session) At(i int) (Model, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.models) {
		return nil, false
	}
	return s.models[i].clone(), true
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.models)
}

func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Models() []Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.models, func(model Model, _ int) Model { return model.clone() })
}

func (s *Session) Table() *literal.Table {
	return s.table
}

// Stderr returns what the solver wrote on its error stream so far.
func (s *Session) Stderr() string {
	return s.stderr.String()
}

// Close asks the solver to quit, then kills it if it is still running after
// the grace period. A Next in flight returns ErrSessionClosed. Closing twice
// is a no-op.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.models = nil
		s.cursor = 0
		s.mu.Unlock()
		close(s.done)

		s.writeMu.Lock()
		if _, err := io.WriteString(s.stdin, requestQuit); err != nil {
			s.logger.Debug("cannot write quit request", "err", err)
		}
		s.stdin.Close()
		s.writeMu.Unlock()

		waited := make(chan error, 1)
		go func() {
			waited <- s.cmd.Wait()
		}()

		var err error
		killed := false
		select {
		case err = <-waited:
		case <-time.After(s.gracePeriod):
			s.logger.Warn("solver did not exit in time, killing it", "grace", s.gracePeriod)
			killed = true
			if killErr := s.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				s.logger.Debug("cannot kill solver", "err", killErr)
			}
			err = <-waited
		}
		s.stdout.Close()
		s.metrics.SessionClosed()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			if !killed {
				s.logger.Debug("solver exited with non-zero status", "code", exitErr.ExitCode())
			}
		case errors.Is(err, exec.ErrWaitDelay):
			s.logger.Debug("solver left its error stream open", "err", err)
		default:
			s.closeErr = failure.Wrap(failure.IO, "cannot wait for solver", err)
		}
		s.logger.Debug("solver session closed")
	})
	return s.closeErr
}

// syncBuffer lets the exec copier goroutine and Stderr readers share a buffer.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
