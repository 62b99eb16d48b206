package literal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/samber/lo"
)

// Table maps the solver's positive integer codes to the literal names the
// translator assigned them, and back. It is immutable once built.
type Table struct {
	names map[int]string
	codes map[string]int
}

// NewTable builds a table from a code -> name mapping. Codes must be positive and names unique.
func NewTable(names map[int]string) (*Table, error) {
	table := &Table{
		names: make(map[int]string, len(names)),
		codes: make(map[string]int, len(names)),
	}
	for _, code := range lo.Keys(names) {
		if err := table.add(names[code], code); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func (table *Table) add(name string, code int) error {
	if code <= 0 {
		return fmt.Errorf("literal code must be positive: %v", code)
	} else if name == "" {
		return fmt.Errorf("literal %v has an empty name", code)
	} else if _, ok := table.names[code]; ok {
		return fmt.Errorf("duplicated literal code %v", code)
	} else if other, ok := table.codes[name]; ok {
		return fmt.Errorf("literal %q is bound to both %v and %v", name, other, code)
	}
	table.names[code] = name
	table.codes[name] = code
	return nil
}

func (table *Table) Name(code int) (string, bool) {
	name, ok := table.names[code]
	return name, ok
}

func (table *Table) Code(name string) (int, bool) {
	code, ok := table.codes[name]
	return code, ok
}

func (table *Table) Len() int {
	return len(table.names)
}

// Codes returns every code in ascending order.
func (table *Table) Codes() []int {
	codes := lo.Keys(table.names)
	slices.Sort(codes)
	return codes
}

// Names returns a copy of the code -> name mapping.
func (table *Table) Names() map[int]string {
	names := make(map[int]string, len(table.names))
	for code, name := range table.names {
		names[code] = name
	}
	return names
}

// WriteTo writes the table in the translator's format, ordered by code.
func (table *Table) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, code := range table.Codes() {
		n, err := fmt.Fprintf(w, "%s %d\n", table.names[code], code)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (table *Table) String() string {
	var builder strings.Builder
	table.WriteTo(&builder)
	return builder.String()
}

// Parse reads the translator's table format: one "<name> <code>" pair per line.
// The code is whatever follows the last space, so names may contain spaces.
// Blank lines are ignored.
func Parse(r io.Reader) (*Table, error) {
	table := &Table{
		names: make(map[int]string),
		codes: make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		separator := strings.LastIndexByte(line, ' ')
		if separator <= 0 {
			return nil, failure.Newf(failure.MalformedTableFile, "line %d: expected \"<name> <code>\": %q", lineNumber, line)
		}
		code, err := strconv.Atoi(line[separator+1:])
		if err != nil {
			return nil, failure.Wrap(failure.MalformedTableFile, fmt.Sprintf("line %d: invalid literal code", lineNumber), err)
		}
		if err := table.add(line[:separator], code); err != nil {
			return nil, failure.Wrap(failure.MalformedTableFile, fmt.Sprintf("line %d", lineNumber), err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, failure.Wrap(failure.IO, "cannot read literal table", err)
	}

	return table, nil
}

func ParseFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, failure.Wrap(failure.IO, "cannot open literal table", err)
	}
	defer file.Close()
	return Parse(file)
}
