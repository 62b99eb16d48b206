package sat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/limaJavier/modelbrowser/internal/failure"
	"github.com/limaJavier/modelbrowser/pkg/literal"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSolver struct {
	script   string
	fixtures string
	clause   string
}

// newFakeSolver writes a shell script speaking the session protocol. The n-th
// model request is answered with answers[n-1]; later requests run after.
func newFakeSolver(t *testing.T, answers []string, after string) fakeSolver {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake solver relies on /bin/sh")
	}

	fixtures := t.TempDir()
	var arms strings.Builder
	for i, answer := range answers {
		fmt.Fprintf(&arms, "      %d) printf '%%s\\n' '%s' ;;\n", i+1, answer)
	}

	script := fmt.Sprintf(`#!/bin/sh
echo "$1" > "%[1]s/clause-seen"
echo "c fake solver ready" >&2
n=0
while IFS= read -r line || [ -n "$line" ]; do
  case "$line" in
    1)
      n=$((n+1))
      echo "$n" >> "%[1]s/requests"
      case $n in
%[2]s      *) %[3]s ;;
      esac ;;
    0)
      echo quit > "%[1]s/quit"
      exit 0 ;;
  esac
done
`, fixtures, arms.String(), after)

	scriptPath := filepath.Join(fixtures, "solver.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))
	clause := filepath.Join(fixtures, "out.cnf")
	require.NoError(t, os.WriteFile(clause, []byte("p cnf 0 0\n"), 0o644))

	return fakeSolver{script: scriptPath, fixtures: fixtures, clause: clause}
}

func (f fakeSolver) open(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithArgs(f.script), WithGracePeriod(200 * time.Millisecond)}, opts...)
	session, err := Open("/bin/sh", f.clause, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func (f fakeSolver) requests() int {
	content, err := os.ReadFile(filepath.Join(f.fixtures, "requests"))
	if err != nil {
		return 0
	}
	return strings.Count(string(content), "\n")
}

func TestSessionEnumeratesNamedLiteralsUntilExhausted(t *testing.T) {
	solver := newFakeSolver(t, []string{"a -b", "-a b"}, "echo")
	session := solver.open(t)
	ctx := context.Background()

	first, ok, err := session.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Model{{Name: "a", Value: true}, {Name: "b", Value: false}}, first)
	assert.Equal(t, "a ¬b", first.String())

	second, ok, err := session.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, second.True())

	for iteration := 0; iteration < 3; iteration++ {
		model, ok, err := session.Next(ctx)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, model)
	}

	assert.Equal(t, StateExhausted, session.State())
	assert.Equal(t, 2, session.Len())
	// Exhaustion is reported once by the solver and never asked again
	assert.Equal(t, 3, solver.requests())

	seen, err := os.ReadFile(filepath.Join(solver.fixtures, "clause-seen"))
	require.NoError(t, err)
	assert.Equal(t, solver.clause, strings.TrimSpace(string(seen)))
}

func TestSessionResolvesCodesThroughTable(t *testing.T) {
	table, err := literal.NewTable(map[int]string{1: "A(b)", 2: "B(a)"})
	require.NoError(t, err)
	solver := newFakeSolver(t, []string{"1 -2 0"}, "echo")
	session := solver.open(t, WithTable(table))

	model, ok, err := session.Next(context.Background())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Model{{Name: "A(b)", Value: true}, {Name: "B(a)", Value: false}}, model)
	assert.Same(t, table, session.Table())
}

func TestSessionEmptyModelIsNotExhaustion(t *testing.T) {
	table, err := literal.NewTable(map[int]string{1: "a"})
	require.NoError(t, err)

	for name, opts := range map[string][]Option{"With table": {WithTable(table)}, "Without table": nil} {
		t.Run(name, func(t *testing.T) {
			solver := newFakeSolver(t, []string{"0"}, "echo")
			session := solver.open(t, opts...)
			ctx := context.Background()

			model, ok, err := session.Next(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Empty(t, model)
			assert.Equal(t, StateActive, session.State())
			assert.Equal(t, 1, session.Len())

			_, ok, err = session.Next(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, StateExhausted, session.State())
		})
	}
}

func TestSessionUnknownCodeFailsTheSession(t *testing.T) {
	table, err := literal.NewTable(map[int]string{1: "A(b)"})
	require.NoError(t, err)
	solver := newFakeSolver(t, []string{"1 7 0"}, "echo")
	session := solver.open(t, WithTable(table))

	_, ok, err := session.Next(context.Background())
	assert.False(t, ok)
	assert.True(t, failure.Is(err, failure.UnknownLiteralCode), "%v", err)
	assert.Equal(t, StateFailed, session.State())

	_, _, err = session.Next(context.Background())
	assert.True(t, failure.Is(err, failure.Protocol), "%v", err)
	assert.Equal(t, 1, solver.requests())
}

func TestSessionReplaysBufferedModels(t *testing.T) {
	solver := newFakeSolver(t, []string{"x", "y"}, "echo")
	session := solver.open(t)
	ctx := context.Background()

	for iteration := 0; iteration < 2; iteration++ {
		_, ok, err := session.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 2, session.Cursor())

	//** Back then forward replays without a new request
	assert.True(t, session.Back())
	assert.True(t, session.Back())
	assert.False(t, session.Back())
	assert.Equal(t, 0, session.Cursor())

	model, ok, err := session.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, model.Names())
	assert.Equal(t, 2, solver.requests())

	//** Rewind replays the whole buffer in order
	session.Rewind()
	var names []string
	for iteration := 0; iteration < 2; iteration++ {
		model, ok, err := session.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		names = append(names, model.Names()...)
	}
	assert.Equal(t, []string{"x", "y"}, names)
	assert.Equal(t, 2, solver.requests())

	//** Past the buffer exactly one request is made
	_, ok, err = session.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, solver.requests())

	at, ok := session.At(1)
	assert.True(t, ok)
	assert.Equal(t, []string{"y"}, at.Names())
	_, ok = session.At(2)
	assert.False(t, ok)
	assert.Len(t, session.Models(), 2)
}

func TestSessionReturnedModelsAreCopies(t *testing.T) {
	solver := newFakeSolver(t, []string{"x"}, "echo")
	session := solver.open(t)

	model, _, err := session.Next(context.Background())
	require.NoError(t, err)
	model[0].Name = "mutated"

	buffered, _ := session.At(0)
	assert.Equal(t, "x", buffered[0].Name)
}

func TestSessionOutputCloseMeansExhausted(t *testing.T) {
	solver := newFakeSolver(t, []string{"x"}, "exit 0")
	session := solver.open(t)
	ctx := context.Background()

	_, ok, err := session.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = session.Next(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateExhausted, session.State())
}

func TestSessionRoundTimeout(t *testing.T) {
	solver := newFakeSolver(t, nil, "exec sleep 10")
	session := solver.open(t, WithRoundTimeout(100*time.Millisecond))

	start := time.Now()
	_, ok, err := session.Next(context.Background())

	assert.False(t, ok)
	assert.True(t, failure.Is(err, failure.RoundTimeout), "%v", err)
	assert.Equal(t, StateFailed, session.State())
	assert.Less(t, time.Since(start), 5*time.Second)

	start = time.Now()
	assert.NoError(t, session.Close())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSessionCloseDuringNext(t *testing.T) {
	g := NewWithT(t)
	solver := newFakeSolver(t, nil, "exec sleep 10")
	session := solver.open(t, WithRoundTimeout(0))

	errs := make(chan error, 1)
	go func() {
		_, _, err := session.Next(context.Background())
		errs <- err
	}()

	g.Eventually(solver.requests).Should(Equal(1))
	require.NoError(t, session.Close())

	g.Eventually(errs, 2*time.Second).Should(Receive(MatchError(ErrSessionClosed)))
	assert.Equal(t, StateClosed, session.State())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	solver := newFakeSolver(t, []string{"x"}, "echo")
	session := solver.open(t)

	_, _, err := session.Next(context.Background())
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	assert.FileExists(t, filepath.Join(solver.fixtures, "quit"))
	assert.Equal(t, StateClosed, session.State())
	assert.Zero(t, session.Len())

	_, ok, err := session.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionCancelledContextDoesNotTouchSolver(t *testing.T) {
	solver := newFakeSolver(t, []string{"x"}, "echo")
	session := solver.open(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := session.Next(ctx)

	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateActive, session.State())
	assert.Zero(t, solver.requests())
}

func TestSessionCapturesStderrAndEnvironment(t *testing.T) {
	g := NewWithT(t)
	solver := newFakeSolver(t, nil, `echo "$FAKE_MODEL"`)
	session := solver.open(t, WithEnv("FAKE_MODEL=p -q"))

	model, ok, err := session.Next(context.Background())

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Model{{Name: "p", Value: true}, {Name: "q", Value: false}}, model)
	g.Eventually(session.Stderr).Should(ContainSubstring("fake solver ready"))
}

func TestOpenMissingSolver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no-such-solver"), "out.cnf")

	assert.True(t, failure.Is(err, failure.LaunchFailure), "%v", err)
}
