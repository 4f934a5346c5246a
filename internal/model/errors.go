package model

import (
	"errors"
	"fmt"
)

var (
	ErrProbeParse      = errors.New("probe parse error")
	ErrProbeFailed     = errors.New("probe failed")
	ErrNoViableProfile = errors.New("no viable profile")
	ErrFatalFailure    = errors.New("fatal failure")
	ErrExhausted       = errors.New("fallback exhausted")
)

// ProbeParseError reports structurally invalid probe data. It is not retried.
type ProbeParseError struct {
	Field string
	Err   error
}

func (e *ProbeParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parse probe response: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("parse probe response: missing or invalid %s", e.Field)
	}
	return fmt.Sprintf("parse probe response: %s: %v", e.Field, e.Err)
}

func (e *ProbeParseError) Unwrap() error { return e.Err }

func (e *ProbeParseError) Is(target error) bool { return target == ErrProbeParse }

// ProbeFailedError is returned when no client/auth combination produced a catalog.
type ProbeFailedError struct {
	Attempts []Attempt
}

func (e *ProbeFailedError) Error() string {
	if len(e.Attempts) == 0 {
		return "probe failed: no client attempted"
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("probe failed: %d attempt(s), last client=%s reason=%s", len(e.Attempts), last.ClientName, last.Reason)
}

func (e *ProbeFailedError) Is(target error) bool { return target == ErrProbeFailed }

type NoViableProfileError struct {
	ItemID string
}

func (e *NoViableProfileError) Error() string {
	return fmt.Sprintf("no viable quality profile for item %s", e.ItemID)
}

func (e *NoViableProfileError) Is(target error) bool { return target == ErrNoViableProfile }

// FatalFailureError aborts a resolution run at the attempt that raised it.
type FatalFailureError struct {
	Attempt Attempt
	Err     error
}

func (e *FatalFailureError) Error() string {
	return fmt.Sprintf("fatal failure on profile=%d client=%s auth=%s (%s): %v",
		e.Attempt.ProfileRank, e.Attempt.ClientName, e.Attempt.AuthMode, e.Attempt.Reason, e.Err)
}

func (e *FatalFailureError) Unwrap() error { return e.Err }

func (e *FatalFailureError) Is(target error) bool { return target == ErrFatalFailure }

// ExhaustedError is returned when every permitted leaf failed recoverably.
type ExhaustedError struct {
	Attempts         []Attempt
	Profiles         int
	RefusedDowngrade bool
}

func (e *ExhaustedError) Error() string {
	if e.RefusedDowngrade {
		return fmt.Sprintf("best profile failed after full client fallback (%d attempt(s)); quality downgrade refused", len(e.Attempts))
	}
	return fmt.Sprintf("all %d profile(s) failed after full client fallback (%d attempt(s))", e.Profiles, len(e.Attempts))
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }
