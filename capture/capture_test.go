package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// These tests swap the process stdout and stderr handles, so they must not
// run in parallel with each other.

func Test_Scope_CapturesOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "output.txt")

	s, err := Open(logPath, false)
	require.NoError(t, err)

	fmt.Println("hello from the run")
	fmt.Fprintln(os.Stderr, "a warning")

	require.NoError(t, s.Close())

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello from the run")
	require.Contains(t, string(b), "a warning")
}

func Test_Scope_RestoresConsole(t *testing.T) {
	origOut := os.Stdout
	origErr := os.Stderr

	s, err := Open(filepath.Join(t.TempDir(), "output.txt"), false)
	require.NoError(t, err)
	require.NotEqual(t, origOut, os.Stdout)

	require.NoError(t, s.Close())
	require.Equal(t, origOut, os.Stdout)
	require.Equal(t, origErr, os.Stderr)
}

func Test_Scope_CloseIsIdempotent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "output.txt"), false)
	require.NoError(t, err)

	fmt.Println("once")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func Test_Scope_EchoStillCaptures(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "output.txt")

	// Echo writes through to the original stdout, which the test harness
	// owns here; the capture file must see the output either way.
	s, err := Open(logPath, true)
	require.NoError(t, err)

	fmt.Println("echoed line")

	require.NoError(t, s.Close())

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "echoed line")
}

func Test_Scope_Path(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "output.txt")

	s, err := Open(logPath, false)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, logPath, s.Path())
}
