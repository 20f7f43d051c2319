package predict

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"farmalytica/api/advice"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// writeScript drops an executable shell script into a directory whose name
// contains a space.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tech hub")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "classify.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecRunner_CapturesStreamsAndExitCode(t *testing.T) {
	requireShell(t)

	p, err := ExecRunner{}.Start(context.Background(), "sh", []string{"-c", `echo '{"prediction":"Optimal"}'; echo warn >&2; exit 3`})
	require.NoError(t, err)

	res, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, "{\"prediction\":\"Optimal\"}\n", string(res.Stdout))
	assert.Equal(t, "warn\n", string(res.Stderr))
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	_, err := ExecRunner{}.Start(context.Background(), "definitely-not-a-classifier-binary", nil)
	assert.Error(t, err)
}

func TestBridge_ArgumentsStaySeparate(t *testing.T) {
	requireShell(t)
	script := writeScript(t, `printf '%s|%s|%s|%s|%s' "$#" "$1" "$2" "$3" "$4"`)

	b := New(Config{Python: script, Timeout: 5 * time.Second}, ExecRunner{}, nil)
	out, err := b.Classify(context.Background(), advice.Levels{N: 20, P: 10.25, K: 60, PH: 6.5})

	require.NoError(t, err)
	assert.Equal(t, "4|20|10.25|60|6.5", out.Prediction)
	assert.False(t, out.Structured)
}

func TestBridge_RealProcessTimeout(t *testing.T) {
	requireShell(t)
	script := writeScript(t, `sleep 5`)

	b := New(Config{Python: script, Timeout: 100 * time.Millisecond}, ExecRunner{}, nil)
	start := time.Now()
	_, err := b.Classify(context.Background(), advice.Levels{N: 1, P: 1, K: 1, PH: 1})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)
}
