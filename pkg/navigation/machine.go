// Package navigation drives the edit, test and browse cycle: it translates the
// document, opens a solver session on success and walks the models it
// produces, rejecting any event the current state cannot satisfy.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/internal/logging"
	"github.com/limaJavier/modelbrowser/internal/metrics"
	"github.com/limaJavier/modelbrowser/pkg/sat"
	"github.com/limaJavier/modelbrowser/pkg/translation"
	"github.com/samber/lo"
)

type Document interface {
	Count() int
	Add(text string) int
	Remove(i int) error
	Import(path string) error
	WriteFile(path string) error
}

type Translator interface {
	Translate(ctx context.Context, sourcePath string) (*translation.Result, error)
}

// ModelSource is the part of a solver session the machine relies on.
type ModelSource interface {
	Next(ctx context.Context) (sat.Model, bool, error)
	At(i int) (sat.Model, bool)
	Len() int
	Close() error
}

type SessionOpener interface {
	Open(result *translation.Result) (ModelSource, error)
}

// SolverOpener opens a sat.Session over the clause file of a translation,
// resolving codes through its literal table.
type SolverOpener struct {
	Command string
	Options []sat.Option
}

func (o SolverOpener) Open(result *translation.Result) (ModelSource, error) {
	opts := append([]sat.Option{sat.WithTable(result.LiteralTable())}, o.Options...)
	session, err := sat.Open(o.Command, result.ClauseFilePath(), opts...)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Outcome describes what an accepted event did.
type Outcome struct {
	Event Event
	From  State
	To    State
	// Model is the shown model in result states, Index its position.
	Model sat.Model
	Index int
	// Translation is set by RunTest; its diagnostics explain a run that
	// stayed in the editor.
	Translation   *translation.Result
	Unsatisfiable bool
}

type Option func(*Machine)

// WithWorkDir sets where RunTest writes the document before translating it.
func WithWorkDir(dir string) Option {
	return func(m *Machine) {
		m.workDir = dir
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = metrics
	}
}

type Machine struct {
	document   Document
	translator Translator
	opener     SessionOpener
	workDir    string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu          sync.Mutex
	state       State
	session     ModelSource
	translation *translation.Result
	shown       int
}

func New(document Document, translator Translator, opener SessionOpener, opts ...Option) *Machine {
	m := &Machine{
		document:   document,
		translator: translator,
		opener:     opener,
		workDir:    os.TempDir(),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state = editState(document.Count())
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Allowed reports whether event is accepted in the current state.
func (m *Machine) Allowed(event Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return allowed(m.state, event)
}

func (m *Machine) AllowedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), transitions[m.state]...)
}

// Shown returns the model currently displayed, if any.
func (m *Machine) Shown() (sat.Model, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, 0, false
	}
	model, ok := m.session.At(m.shown)
	return model, m.shown, ok
}

// RunTest translates the document and, on success, opens a session and
// fetches up to two models to pick the result state. Source errors and
// unsatisfiable formulas leave the state unchanged and are reported in the
// Outcome.
func (m *Machine) RunTest(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(RunTest); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Event: RunTest, From: m.state, To: m.state}

	result, err := m.translate(ctx)
	if err != nil {
		m.observe(RunTest, "error")
		return outcome, err
	}
	outcome.Translation = result
	if !result.Success {
		m.observe(RunTest, "source_errors")
		m.logger.Info("translation failed", "errors", len(result.Errors()))
		return outcome, nil
	}

	session, err := m.opener.Open(result)
	if err != nil {
		m.discard(nil, result)
		m.observe(RunTest, "error")
		return outcome, err
	}

	first, ok, err := session.Next(ctx)
	if err != nil || !ok {
		m.discard(session, result)
		if err != nil {
			m.observe(RunTest, "error")
			return outcome, err
		}
		outcome.Unsatisfiable = true
		m.observe(RunTest, "unsatisfiable")
		return outcome, nil
	}

	// Lookahead
	_, more, err := session.Next(ctx)
	if err != nil {
		m.discard(session, result)
		m.observe(RunTest, "error")
		return outcome, err
	}

	m.session = session
	m.translation = result
	m.shown = 0
	return m.enter(outcome, lo.Ternary(more, FirstResult, SingleResult), first), nil
}

func (m *Machine) translate(ctx context.Context) (*translation.Result, error) {
	source, err := os.CreateTemp(m.workDir, "source-*.touistl")
	if err != nil {
		return nil, failure.Wrap(failure.IO, "cannot create source file", err)
	}
	source.Close()
	defer os.Remove(source.Name())

	if err := m.document.WriteFile(source.Name()); err != nil {
		return nil, err
	}
	return m.translator.Translate(ctx, source.Name())
}

// ShowNext shows the following buffered model. When it is the last one
// buffered, one more model is requested to tell InterResult from LastResult.
func (m *Machine) ShowNext(ctx context.Context) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ShowNext); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Event: ShowNext, From: m.state, To: m.state}

	index := m.shown + 1
	model, ok := m.session.At(index)
	if !ok {
		m.observe(ShowNext, "error")
		return outcome, failure.Newf(failure.Protocol, "no buffered model at %d while in %v", index, m.state)
	}

	to := InterResult
	if index == m.session.Len()-1 {
		_, more, err := m.session.Next(ctx)
		if err != nil {
			m.observe(ShowNext, "error")
			return outcome, err
		}
		if !more {
			to = LastResult
		}
	}

	m.shown = index
	return m.enter(outcome, to, model), nil
}

// ShowPrevious shows the preceding buffered model without asking the solver.
func (m *Machine) ShowPrevious() (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ShowPrevious); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Event: ShowPrevious, From: m.state, To: m.state}
	if m.shown == 0 {
		m.observe(ShowPrevious, "rejected")
		return outcome, &TransitionError{State: m.state, Event: ShowPrevious}
	}

	index := m.shown - 1
	model, ok := m.session.At(index)
	if !ok {
		m.observe(ShowPrevious, "error")
		return outcome, failure.Newf(failure.Protocol, "no buffered model at %d while in %v", index, m.state)
	}

	m.shown = index
	return m.enter(outcome, lo.Ternary(index == 0, FirstResult, InterResult), model), nil
}

// ReturnToEditor closes the session and drops its models and translation output.
func (m *Machine) ReturnToEditor() (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ReturnToEditor); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Event: ReturnToEditor, From: m.state}

	err := m.release()
	outcome = m.enter(outcome, editState(m.document.Count()), nil)
	return outcome, err
}

func (m *Machine) AddFormula(text string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(AddFormula); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Event: AddFormula, From: m.state}

	outcome.Index = m.document.Add(text)
	return m.enter(outcome, editState(m.document.Count()), nil), nil
}

func (m *Machine) ImportFormulas(path string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ImportFormulas); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Event: ImportFormulas, From: m.state, To: m.state}

	if err := m.document.Import(path); err != nil {
		m.observe(ImportFormulas, "error")
		return outcome, err
	}
	return m.enter(outcome, editState(m.document.Count()), nil), nil
}

func (m *Machine) RemoveFormula(i int) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(RemoveFormula); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Event: RemoveFormula, From: m.state, To: m.state}

	if err := m.document.Remove(i); err != nil {
		m.observe(RemoveFormula, "error")
		return outcome, err
	}
	return m.enter(outcome, editState(m.document.Count()), nil), nil
}

// Close releases the session and translation output, if any, and puts the
// machine back in the editor.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.release()
	m.state = editState(m.document.Count())
	return err
}

func (m *Machine) check(event Event) error {
	if !allowed(m.state, event) {
		m.observe(event, "rejected")
		m.logger.Warn("rejected navigation event", "event", event, "state", m.state)
		return &TransitionError{State: m.state, Event: event}
	}
	return nil
}

func (m *Machine) enter(outcome Outcome, to State, model sat.Model) Outcome {
	m.logger.Debug("navigation transition", "event", outcome.Event, "from", m.state, "to", to)
	m.state = to
	outcome.To = to
	if model != nil {
		outcome.Model = model
		outcome.Index = m.shown
	}
	m.observe(outcome.Event, "ok")
	return outcome
}

func (m *Machine) observe(event Event, outcome string) {
	m.metrics.ObserveTransition(event.String(), outcome)
}

func (m *Machine) release() error {
	err := m.discard(m.session, m.translation)
	m.session = nil
	m.translation = nil
	m.shown = 0
	return err
}

func (m *Machine) discard(session ModelSource, result *translation.Result) error {
	var errs []error
	if session != nil {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cannot close solver session: %w", err))
		}
	}
	if err := result.Cleanup(); err != nil {
		errs = append(errs, failure.Wrap(failure.IO, "cannot remove translation output", err))
	}
	return errors.Join(errs...)
}
