package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/pkg/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrowseCommand(t *testing.T) {
	scenarios := map[string]browseCommand{
		"run":                   {kind: commandAction, action: navigation.Action{Event: navigation.RunTest}},
		"  n ":                  {kind: commandAction, action: navigation.Action{Event: navigation.ShowNext}},
		"prev":                  {kind: commandAction, action: navigation.Action{Event: navigation.ShowPrevious}},
		"EDIT":                  {kind: commandAction, action: navigation.Action{Event: navigation.ReturnToEditor}},
		"add a and  b":          {kind: commandAction, action: navigation.Action{Event: navigation.AddFormula, Text: "a and  b"}},
		"import /tmp/f.touistl": {kind: commandAction, action: navigation.Action{Event: navigation.ImportFormulas, Path: "/tmp/f.touistl"}},
		"rm 2":                  {kind: commandAction, action: navigation.Action{Event: navigation.RemoveFormula, Index: 1}},
		"set 1 not a":           {kind: commandSet, index: 0, text: "not a"},
		"ls":                    {kind: commandList},
		"":                      {kind: commandHelp},
		"q":                     {kind: commandQuit},
	}

	for line, expected := range scenarios {
		command, err := parseBrowseCommand(line)
		require.NoError(t, err, line)
		assert.Equal(t, expected, command, line)
	}
}

func TestParseBrowseCommandErrors(t *testing.T) {
	for _, line := range []string{"remove", "remove zero", "rm 0", "set x a", "import", "jump"} {
		_, err := parseBrowseCommand(line)
		assert.Error(t, err, line)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries rely on /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func writeConfig(t *testing.T, translator, solver string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`translator:
  command: /bin/sh
  args: [%q]
solver:
  command: /bin/sh
  args: [%q]
workDir: %q
roundTimeout: 5s
gracePeriod: 500ms
logLevel: error
`, translator, solver, t.TempDir())
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestDescribeActionError(t *testing.T) {
	message, fatal := describeActionError(navigation.RunTest, failure.New(failure.LaunchFailure, "cannot start solver"))
	assert.True(t, fatal)
	assert.Contains(t, message, "check the translator and solver commands")

	message, fatal = describeActionError(navigation.ShowNext, failure.New(failure.RoundTimeout, "no reply"))
	assert.False(t, fatal)
	assert.Contains(t, message, "try again")

	_, fatal = describeActionError(navigation.RunTest, context.Canceled)
	assert.False(t, fatal)
}

func TestTranslateCommand(t *testing.T) {
	source := filepath.Join(t.TempDir(), "source.touistl")
	require.NoError(t, os.WriteFile(source, []byte("a\n"), 0o644))

	t.Run("Success", func(t *testing.T) {
		translator := writeScript(t, `echo "a 1" > "$4"; echo "p cnf 1 0" > "$2"; exit 0`)
		assert.NoError(t, execute("translate", "--config", writeConfig(t, translator, translator), source))
	})

	t.Run("Syntax error", func(t *testing.T) {
		translator := writeScript(t, `echo "1:3:unexpected token" >&2; exit 1`)
		err := execute("translate", "--config", writeConfig(t, translator, translator), source)
		assert.ErrorContains(t, err, "syntax_error")
	})
}

func TestSolveCommand(t *testing.T) {
	dir := t.TempDir()
	clause := filepath.Join(dir, "out.cnf")
	require.NoError(t, os.WriteFile(clause, []byte("p cnf 2 1\n1 -2 0\n"), 0o644))
	table := filepath.Join(dir, "out.table")
	require.NoError(t, os.WriteFile(table, []byte("a 1\nb 2\n"), 0o644))

	solver := writeScript(t, `n=0
while IFS= read -r line || [ -n "$line" ]; do
  case "$line" in
    1) n=$((n+1)); if [ $n -eq 1 ]; then echo "1 -2 0"; elif [ $n -eq 2 ]; then echo "-1 -2 0"; else echo; fi ;;
    0) exit 0 ;;
  esac
done
`)
	configPath := writeConfig(t, solver, solver)

	assert.NoError(t, execute("solve", "--config", configPath, "--table", table, "--verify", clause))
	assert.NoError(t, execute("solve", "--config", configPath, "--table", table, "--limit", "1", "--verify=false", clause))

	// ¬a b leaves (a or ¬b) unsatisfied
	bad := writeScript(t, `while IFS= read -r line; do [ "$line" = 1 ] && echo "-1 2 0"; done`)
	err := execute("solve", "--config", writeConfig(t, bad, bad), "--table", table, "--verify", "--limit", "2", clause)
	assert.ErrorContains(t, err, "model 1 does not satisfy")

	err = execute("solve", "--config", configPath, "--table", "", "--verify", clause)
	assert.ErrorContains(t, err, "--verify needs --table")
}
