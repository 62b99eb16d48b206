package main

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/limaJavier/modelbrowser/pkg/literal"
	"github.com/limaJavier/modelbrowser/pkg/sat"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// (a or b) and not (a and b)
const exclusiveOr = "p cnf 2 2\n1 2 0\n-1 -2 0\n"

func skipUnavailable(t *testing.T, engine string) {
	if engine != sat.EngineKissat {
		return
	}
	if _, err := exec.LookPath(sat.KissatPath); err != nil {
		t.Skipf("kissat not found: %v", err)
	}
}

func TestServe(t *testing.T) {
	for _, engine := range sat.Engines() {
		t.Run(engine, func(t *testing.T) {
			skipUnavailable(t, engine)
			//** Arrange
			enumerator, err := sat.NewEnumerator(engine, strings.NewReader(exclusiveOr))
			require.NoError(t, err)
			var out bytes.Buffer

			//** Act
			err = serve(enumerator, strings.NewReader("1\n1\n1\n1\n\n0"), &out)

			//** Assert
			require.NoError(t, err)
			lines := strings.Split(out.String(), "\n")
			require.Len(t, lines, 5)
			assert.ElementsMatch(t, []string{"1 -2 0", "-1 2 0"}, lines[:2])
			assert.Equal(t, []string{"", "", ""}, lines[2:])
		})
	}
}

func TestServeStopsAtEndOfInput(t *testing.T) {
	enumerator, err := sat.NewEnumerator(sat.EngineGini, strings.NewReader(exclusiveOr))
	require.NoError(t, err)
	var out bytes.Buffer

	require.NoError(t, serve(enumerator, strings.NewReader("1\n"), &out))
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestServeProblemWithoutVariables(t *testing.T) {
	for _, engine := range sat.Engines() {
		t.Run(engine, func(t *testing.T) {
			skipUnavailable(t, engine)
			enumerator, err := sat.NewEnumerator(engine, strings.NewReader("p cnf 0 0\n"))
			require.NoError(t, err)
			var out bytes.Buffer

			err = serve(enumerator, strings.NewReader("1\n1\n0"), &out)

			require.NoError(t, err)
			assert.Equal(t, "0\n\n", out.String())
		})
	}
}

func TestServeRejectsUnknownRequests(t *testing.T) {
	enumerator, err := sat.NewEnumerator(sat.EngineGophersat, strings.NewReader(exclusiveOr))
	require.NoError(t, err)

	err = serve(enumerator, strings.NewReader("next\n"), &bytes.Buffer{})
	assert.ErrorContains(t, err, "unexpected request")
}

// TestSessionAgainstReferenceSolver compiles refsolver and browses every model
// of a small formula through a real sat.Session.
func TestSessionAgainstReferenceSolver(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping reference solver build in short mode")
	}

	binPath := filepath.Join(t.TempDir(), "refsolver")
	if runtime.GOOS == "windows" {
		binPath += ".exe"
	}
	cmdBuild := exec.Command("go", "build", "-o", binPath, ".")
	if out, err := cmdBuild.CombinedOutput(); err != nil {
		t.Fatalf("Failed to compile refsolver: %v\nOutput: %s", err, string(out))
	}

	// (p or q or r) and not p
	clauses := "p cnf 3 2\n1 2 3 0\n-1 0\n"
	clausePath := filepath.Join(t.TempDir(), "out.cnf")
	require.NoError(t, os.WriteFile(clausePath, []byte(clauses), 0o644))
	instance, err := sat.ParseDIMACSFile(clausePath)
	require.NoError(t, err)
	table, err := literal.NewTable(map[int]string{1: "p", 2: "q", 3: "r"})
	require.NoError(t, err)

	for _, engine := range sat.Engines() {
		t.Run(engine, func(t *testing.T) {
			skipUnavailable(t, engine)
			session, err := sat.Open(binPath, clausePath, sat.WithArgs("-engine", engine), sat.WithTable(table))
			require.NoError(t, err)
			defer session.Close()

			seen := make(map[string]bool)
			for {
				model, ok, err := session.Next(context.Background())
				require.NoError(t, err)
				if !ok {
					break
				}
				solution, err := sat.ModelSolution(model, table)
				require.NoError(t, err)
				assert.True(t, instance.Satisfied(solution), model.String())
				assert.False(t, seen[model.String()])
				seen[model.String()] = true
			}

			assert.Len(t, seen, 3)
			assert.Equal(t, sat.StateExhausted, session.State())
			assert.True(t, lo.EveryBy(session.Models(), func(model sat.Model) bool { return len(model) == 3 }))
			assert.NoError(t, session.Close())
			assert.Empty(t, session.Stderr())
		})
	}
}
