package model

import "fmt"

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending:    true,
		StatusInProgress: true,
		StatusFailed:     true,
	},
	StatusInProgress: {
		StatusSucceeded: true,
		StatusFailed:    true,
	},
	StatusSucceeded: {
		StatusSucceeded:  true,
		StatusInProgress: true, // re-run reuses canonical artifacts
	},
	StatusFailed: {
		StatusFailed:     true,
		StatusInProgress: true,
		StatusPending:    true,
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobStatus(job *JobState, toStatus string, reason string) error {
	from := job.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid job status transition: %q -> %q (item_id=%s)", from, toStatus, job.ItemID)
	}
	job.Status = toStatus
	job.Reason = reason
	return nil
}
