// Package document holds the formulas being edited before a test run. A
// document is never empty: a fresh one holds a single empty formula.
package document

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/samber/lo"
)

var (
	ErrNoSuchFormula = errors.New("no such formula")
	ErrLastFormula   = errors.New("cannot remove the last formula")
)

type Document struct {
	mu       sync.RWMutex
	formulas []string
}

func New() *Document {
	return &Document{formulas: []string{""}}
}

// Count returns the number of formulas, always at least one.
func (d *Document) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.formulas)
}

func (d *Document) Formulas() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.formulas)
}

func (d *Document) Formula(i int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i < 0 || i >= len(d.formulas) {
		return "", fmt.Errorf("%w: %d", ErrNoSuchFormula, i)
	}
	return d.formulas[i], nil
}

// Add appends a formula and returns its index.
func (d *Document) Add(text string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.formulas = append(d.formulas, normalize(text))
	return len(d.formulas) - 1
}

// Set replaces the text of the i-th formula.
func (d *Document) Set(i int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.formulas) {
		return fmt.Errorf("%w: %d", ErrNoSuchFormula, i)
	}
	d.formulas[i] = normalize(text)
	return nil
}

func (d *Document) Remove(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.formulas) {
		return fmt.Errorf("%w: %d", ErrNoSuchFormula, i)
	}
	if len(d.formulas) == 1 {
		return ErrLastFormula
	}
	d.formulas = slices.Delete(d.formulas, i, i+1)
	return nil
}

// Import replaces the formulas with the blank-line separated blocks of the file.
func (d *Document) Import(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return failure.Wrap(failure.IO, "cannot open formula file", err)
	}
	defer file.Close()

	formulas, err := Parse(file)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.formulas = formulas
	return nil
}

// Parse splits a source into blank-line separated formulas. An empty source
// gives a single empty formula.
func Parse(r io.Reader) ([]string, error) {
	formulas := make([]string, 0)
	var block []string

	flush := func() {
		if len(block) > 0 {
			formulas = append(formulas, strings.Join(block, "\n"))
			block = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, failure.Wrap(failure.IO, "cannot read formula file", err)
	}
	flush()

	if len(formulas) == 0 {
		formulas = append(formulas, "")
	}
	return formulas, nil
}

// Source renders the formulas as one translator source, blank-line separated.
// Empty formulas are left out.
func (d *Document) Source() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	blocks := lo.Filter(d.formulas, func(formula string, _ int) bool { return formula != "" })
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

func (d *Document) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(d.Source()), 0o644); err != nil {
		return failure.Wrap(failure.IO, "cannot write source file", err)
	}
	return nil
}

// normalize drops blank lines, which would otherwise split the formula once
// written.
func normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines = lo.Filter(lines, func(line string, _ int) bool { return strings.TrimSpace(line) != "" })
	return strings.Join(lines, "\n")
}
