package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

const DefaultBinary = "yt-dlp"

// Invocation is one external tool run.
type Invocation struct {
	Args []string
	// Timeout bounds this invocation; 0 relies on ctx alone.
	Timeout time.Duration
	// CaptureStdout keeps the complete stdout (probe JSON). Otherwise stdout
	// is line-split and tail-limited like stderr.
	CaptureStdout bool
	LogWriter     io.Writer
	Progress      func(stream OutputStream, line string)
}

type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   string
	// Err is set when the process could not start or did not exit cleanly.
	Err      error
	TimedOut bool
	Canceled bool
	Duration time.Duration
}

func (r Result) Succeeded() bool {
	return r.Err == nil && r.ExitCode == 0 && !r.TimedOut && !r.Canceled
}

// Invoker runs the external download tool. Tests substitute a scripted fake.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) Result
}

type ExecInvoker struct {
	Binary string
}

func NewExecInvoker(binary string) ExecInvoker {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return ExecInvoker{Binary: binary}
}

// ErrStart marks a process that never ran.
var ErrStart = errors.New("start external tool")

func (e ExecInvoker) Invoke(ctx context.Context, inv Invocation) Result {
	binary := e.Binary
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	runCtx := ctx
	cancel := func() {}
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	started := time.Now()
	res := runCommand(runCtx, binary, inv)
	res.Duration = time.Since(started)

	if runCtx.Err() != nil {
		switch {
		case ctx.Err() != nil:
			res.Canceled = true
			res.Err = ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			res.TimedOut = true
			res.Err = runCtx.Err()
		}
	}
	return res
}

func runCommand(ctx context.Context, binary string, inv Invocation) Result {
	cmd := exec.CommandContext(ctx, binary, inv.Args...)
	cmd.WaitDelay = 5 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1, Err: errors.Join(ErrStart, err)}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1, Err: errors.Join(ErrStart, err)}
	}

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Err: errors.Join(ErrStart, err)}
	}

	var outBuf tailBuffer
	var errBuf tailBuffer
	var fullOut bytes.Buffer
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			if stream == StreamStderr {
				errBuf.appendLine(line)
			} else {
				outBuf.appendLine(line)
			}
			if inv.LogWriter != nil {
				_, _ = io.WriteString(inv.LogWriter, line+"\n")
			}
			mu.Unlock()

			if inv.Progress != nil {
				inv.Progress(stream, line)
			}
		}
		_, _ = io.Copy(io.Discard, r)
	}

	wg.Add(2)
	if inv.CaptureStdout {
		go func() {
			defer wg.Done()
			_, _ = io.Copy(&fullOut, stdoutPipe)
		}()
	} else {
		go read(StreamStdout, stdoutPipe)
	}
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	waitErr := cmd.Wait()

	mu.Lock()
	defer mu.Unlock()
	res := Result{
		Stderr: strings.TrimSpace(errBuf.String()),
	}
	if inv.CaptureStdout {
		res.Stdout = fullOut.Bytes()
	} else {
		res.Stdout = []byte(outBuf.String())
	}
	if waitErr != nil {
		res.Err = waitErr
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
	}
	return res
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

const maxKeep = 8192

// tailBuffer keeps the last maxKeep bytes written. yt-dlp prints its ERROR
// line last, after any number of warnings.
type tailBuffer struct {
	buf []byte
}

func (t *tailBuffer) appendLine(line string) {
	t.buf = append(t.buf, line...)
	t.buf = append(t.buf, '\n')
	if over := len(t.buf) - maxKeep; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
