package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeTool(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool uses a shell script")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte("#!/usr/bin/env bash\n"+script), 0o755))
	return path
}

func TestExecInvoker_ExitCodeAndStderrTail(t *testing.T) {
	bin := writeFakeTool(t, `echo "[download] Destination: video-18.mp4"
echo "WARNING: slow" >&2
echo "ERROR: Requested format is not available" >&2
exit 1
`)
	var lines []string
	var mu sync.Mutex
	var log bytes.Buffer

	res := NewExecInvoker(bin).Invoke(context.Background(), Invocation{
		Args:      []string{"-f", "18"},
		LogWriter: &log,
		Progress: func(stream OutputStream, line string) {
			mu.Lock()
			lines = append(lines, string(stream)+":"+line)
			mu.Unlock()
		},
	})

	assert.Equal(t, 1, res.ExitCode)
	assert.Error(t, res.Err)
	assert.False(t, res.Succeeded())
	assert.True(t, strings.HasSuffix(res.Stderr, "ERROR: Requested format is not available"))
	assert.Contains(t, lines, "stdout:[download] Destination: video-18.mp4")
	assert.Contains(t, log.String(), "WARNING: slow")

	v := NewClassifier(nil, nil).Classify(res)
	assert.Equal(t, "format_unavailable", v.Reason)
}

func TestExecInvoker_CaptureStdout(t *testing.T) {
	bin := writeFakeTool(t, `printf '{"id":"abc",\n"formats":[]}'
`)
	res := NewExecInvoker(bin).Invoke(context.Background(), Invocation{Args: []string{"-J"}, CaptureStdout: true})
	require.True(t, res.Succeeded(), "err=%v stderr=%s", res.Err, res.Stderr)
	assert.Equal(t, "{\"id\":\"abc\",\n\"formats\":[]}", string(res.Stdout))
}

func TestExecInvoker_Timeout(t *testing.T) {
	bin := writeFakeTool(t, "exec sleep 5\n")
	res := NewExecInvoker(bin).Invoke(context.Background(), Invocation{Timeout: 100 * time.Millisecond})
	assert.True(t, res.TimedOut)
	assert.False(t, res.Canceled)
	assert.Equal(t, "timeout", NewClassifier(nil, nil).Classify(res).Reason)
}

func TestExecInvoker_Canceled(t *testing.T) {
	bin := writeFakeTool(t, "exec sleep 5\n")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	res := NewExecInvoker(bin).Invoke(ctx, Invocation{Timeout: time.Minute})
	assert.True(t, res.Canceled)
	assert.False(t, res.TimedOut)
}

func TestExecInvoker_MissingBinary(t *testing.T) {
	res := NewExecInvoker(filepath.Join(t.TempDir(), "nope")).Invoke(context.Background(), Invocation{})
	assert.Equal(t, -1, res.ExitCode)
	assert.True(t, errors.Is(res.Err, ErrStart))
	assert.Equal(t, "tool_unavailable", NewClassifier(nil, nil).Classify(res).Reason)
}
