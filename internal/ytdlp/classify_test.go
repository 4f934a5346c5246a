package ytdlp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"yt-resolver/internal/model"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier([]string{"Quota Exhausted"}, []string{"try another client"})
	exitErr := errors.New("exit status 1")

	tests := []struct {
		name    string
		res     Result
		outcome model.Outcome
		reason  string
	}{
		{"success", Result{ExitCode: 0}, model.OutcomeSuccess, ""},
		{"format unavailable", Result{ExitCode: 1, Err: exitErr, Stderr: "ERROR: [youtube] abc: Requested format is not available"}, model.OutcomeRecoverable, "format_unavailable"},
		{"auth", Result{ExitCode: 1, Err: exitErr, Stderr: "ERROR: Sign in to confirm you're not a bot"}, model.OutcomeRecoverable, "auth_required"},
		{"rate limited", Result{ExitCode: 1, Err: exitErr, Stderr: "ERROR: HTTP Error 429: Too Many Requests"}, model.OutcomeRecoverable, "rate_limited"},
		{"disk full", Result{ExitCode: 1, Err: exitErr, Stderr: "ERROR: unable to write data: [Errno 28] No space left on device"}, model.OutcomeFatal, "disk_full"},
		{"missing ffmpeg", Result{ExitCode: 1, Err: exitErr, Stderr: "ERROR: ffmpeg could not be found. Please install"}, model.OutcomeFatal, "missing_dependency"},
		{"usage error", Result{ExitCode: 2, Err: exitErr, Stderr: "yt-dlp: error: no such option: --bogus"}, model.OutcomeFatal, "invalid_configuration"},
		{"timeout", Result{ExitCode: -1, TimedOut: true, Err: context.DeadlineExceeded}, model.OutcomeRecoverable, "timeout"},
		{"canceled", Result{ExitCode: -1, Canceled: true, Err: context.Canceled}, model.OutcomeRecoverable, "canceled"},
		{"cannot start", Result{ExitCode: -1, Err: errors.Join(ErrStart, errors.New("executable file not found"))}, model.OutcomeFatal, "tool_unavailable"},
		{"unknown failure", Result{ExitCode: 1, Err: exitErr, Stderr: "ERROR: something odd"}, model.OutcomeRecoverable, "download_error"},
		{"configured fatal", Result{ExitCode: 1, Err: exitErr, Stderr: "quota exhausted for key"}, model.OutcomeFatal, "configured_fatal"},
		{"configured recoverable", Result{ExitCode: 1, Err: exitErr, Stderr: "please try another client"}, model.OutcomeRecoverable, "configured_recoverable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.res)
			assert.Equal(t, tt.outcome, v.Outcome)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestClassifier_IgnoresSABRWarningsForAuth(t *testing.T) {
	c := NewClassifier(nil, nil)
	v := c.Classify(Result{
		ExitCode: 1,
		Err:      errors.New("exit status 1"),
		Stderr:   "WARNING: [youtube] abc: Some formats are missing due to SABR streaming, 403 forbidden\nERROR: giving up",
	})
	assert.Equal(t, model.OutcomeRecoverable, v.Outcome)
	assert.Equal(t, "download_error", v.Reason)
}

func TestTailAndTruncate(t *testing.T) {
	assert.Equal(t, "cdef", Tail("abcdef", 4))
	assert.Equal(t, "abcd", Truncate("abcdef", 4))
	assert.Equal(t, "ab", Tail("ab", 4))
}
