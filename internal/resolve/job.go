package resolve

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"

	"yt-resolver/internal/model"
	"yt-resolver/internal/workspace"
)

// run is the state of one Resolve call. It owns the job document until the
// lock is released.
type run struct {
	e      *Engine
	ref    workspace.ItemRef
	job    *model.JobState
	skip   map[string]bool
	log    io.Writer
	logger *zap.Logger

	cachedCatalog bool
	probeAttempts []model.Attempt
	// auth is the mode that produced the acquired track, when known.
	auth model.AuthMode
}

// openJob loads or creates job.json and moves it to in_progress under a
// fresh run id.
func (e *Engine) openJob(ref workspace.ItemRef, req Request) (*model.JobState, map[string]bool, error) {
	job, ok, err := e.ws.LoadJob(ref)
	if err != nil {
		return nil, nil, err
	}
	now := e.timestamp()
	if !ok {
		job = model.JobState{
			SchemaVersion: workspace.JobSchemaVersion,
			ItemID:        ref.ID,
			Platform:      ref.Platform,
			CreatedAt:     now,
			Attempts:      []model.Attempt{},
		}
		if err := model.TransitionJobStatus(&job, model.StatusPending, ""); err != nil {
			return nil, nil, err
		}
	}
	job.SourceURL = ref.URL
	if req.IntendedName != "" {
		job.IntendedOutputName = req.IntendedName
	}

	if job.Status == model.StatusInProgress {
		e.logger.Warn("resetting job left in progress by a previous run",
			zap.String("item", ref.Key()), zap.String("run_id", job.RunID))
		if err := model.TransitionJobStatus(&job, model.StatusFailed, ReasonInterrupted); err != nil {
			return nil, nil, err
		}
	}

	skip := map[string]bool{}
	if job.Status == model.StatusFailed && job.Reason == ReasonCanceled {
		for _, k := range job.SkipLeaves {
			skip[k] = true
		}
	}
	job.SkipLeaves = nil

	if err := model.TransitionJobStatus(&job, model.StatusInProgress, ""); err != nil {
		return nil, nil, err
	}
	job.RunID = e.newRunID()
	job.LastError = ""
	job.CompletedAt = ""
	job.Resumed = false
	job.UpdatedAt = now
	if err := e.ws.SaveJob(ref, job); err != nil {
		return nil, nil, err
	}
	return &job, skip, nil
}

func (r *run) persist() error {
	r.job.UpdatedAt = r.e.timestamp()
	return r.e.ws.SaveJob(r.ref, *r.job)
}

// fail marks the job failed and returns cause, joined with any error from
// persisting the failure.
func (r *run) fail(reason string, cause error) error {
	if err := model.TransitionJobStatus(r.job, model.StatusFailed, reason); err != nil {
		return errors.Join(cause, err)
	}
	if cause != nil {
		r.job.LastError = truncate(cause.Error(), maxErrorLen)
	}
	r.logger.Warn("resolution failed", zap.String("reason", reason), zap.Error(cause))
	if err := r.persist(); err != nil {
		return errors.Join(cause, fmt.Errorf("persist failed job: %w", err))
	}
	return cause
}

// cancel records the leaves this run tried so the next run resumes after
// them.
func (r *run) cancel(cause error) error {
	keys := make([]string, 0, len(r.skip)+len(r.job.Attempts))
	seen := map[string]bool{}
	for k := range r.skip {
		seen[k] = true
		keys = append(keys, k)
	}
	for _, a := range r.job.AttemptsForRun(r.job.RunID) {
		if a.FormatSelector == "" || seen[a.LeafKey()] {
			continue
		}
		seen[a.LeafKey()] = true
		keys = append(keys, a.LeafKey())
	}
	slices.Sort(keys)
	r.job.SkipLeaves = keys
	return r.fail(ReasonCanceled, cause)
}

func (r *run) succeed() error {
	if err := model.TransitionJobStatus(r.job, model.StatusSucceeded, ""); err != nil {
		return err
	}
	r.job.LastError = ""
	r.job.CompletedAt = r.e.timestamp()
	return r.persist()
}

func (r *run) sessionf(format string, args ...any) {
	if r.log == nil {
		return
	}
	_, _ = fmt.Fprintf(r.log, "[%s] "+format+"\n", append([]any{r.e.timestamp()}, args...)...)
}
