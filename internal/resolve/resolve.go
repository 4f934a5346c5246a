package resolve

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"yt-resolver/internal/model"
	"yt-resolver/internal/profile"
	"yt-resolver/internal/workspace"
)

// Resolve runs one item to completion. The returned JobState carries the
// full ordered attempt log, also on failure.
func (e *Engine) Resolve(ctx context.Context, req Request) (model.JobState, error) {
	ref, err := workspace.ParseURL(req.URL)
	if err != nil {
		return model.JobState{}, err
	}
	if ref.Kind == model.ItemPlaylist {
		return model.JobState{}, fmt.Errorf("resolve %s: playlist URLs are not resolved, resolve each entry instead", ref.Key())
	}

	lock, err := e.ws.AcquireLock(ref)
	if err != nil {
		return model.JobState{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	job, skip, err := e.openJob(ref, req)
	if err != nil {
		return model.JobState{}, err
	}

	logger := e.logger.With(zap.String("item", ref.Key()), zap.String("run_id", job.RunID))
	r := &run{e: e, ref: ref, job: job, skip: skip, logger: logger}

	sessionLog, err := e.ws.OpenSessionLog(ref)
	if err != nil {
		logger.Warn("session log unavailable", zap.Error(err))
	} else {
		defer sessionLog.Close()
		r.log = sessionLog
	}
	r.sessionf("run %s start url=%s", job.RunID, ref.URL)

	err = r.execute(ctx, req)
	r.sessionf("run %s end status=%s reason=%s", job.RunID, job.Status, job.Reason)
	return *job, err
}

func (r *run) execute(ctx context.Context, req Request) error {
	e := r.e

	final, ok, err := e.ws.FinalArtifact(r.ref)
	if err != nil {
		return r.fail(ReasonStorage, err)
	}
	if ok {
		r.logger.Info("final artifact already present, skipping acquisition", zap.String("path", final.Path))
		r.job.Resumed = true
		r.job.FinalArtifact = final.Path
		return r.finish(ctx, req, nil, nil, final)
	}

	cat, err := r.catalog(ctx)
	if err != nil {
		return r.failFor(ctx, err)
	}

	profiles := profile.Rank(cat, e.opts.Ranker)
	if len(profiles) == 0 {
		return r.fail(ReasonNoProfile, &model.NoViableProfileError{ItemID: r.ref.ID})
	}
	r.logger.Info("ranked profiles", zap.Int("count", len(profiles)), zap.String("best", profiles[0].Label))

	track, selected, err := r.acquire(ctx, profiles)
	if err != nil {
		return r.failFor(ctx, err)
	}

	final, err = r.promote(track)
	if err != nil {
		return r.fail(ReasonStorage, err)
	}
	r.job.FinalArtifact = final.Path
	return r.finish(ctx, req, &cat, selected, final)
}

// failFor picks the failure reason from the error type.
func (r *run) failFor(ctx context.Context, err error) error {
	var (
		parseErr     *model.ProbeParseError
		probeErr     *model.ProbeFailedError
		exhaustedErr *model.ExhaustedError
		fatalErr     *model.FatalFailureError
	)
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return r.cancel(err)
	case errors.As(err, &parseErr):
		return r.fail(ReasonProbeParse, err)
	case errors.As(err, &probeErr):
		return r.fail(ReasonProbeFailed, err)
	case errors.As(err, &exhaustedErr):
		if exhaustedErr.RefusedDowngrade {
			return r.fail(ReasonDowngrade, err)
		}
		return r.fail(ReasonExhausted, err)
	case errors.As(err, &fatalErr):
		return r.fail(fatalErr.Attempt.Reason, err)
	default:
		return r.fail(ReasonStorage, err)
	}
}

// ProbeResult is what Probe learned about an item.
type ProbeResult struct {
	Ref      workspace.ItemRef      `json:"item"`
	Catalog  model.TrackCatalog     `json:"catalog"`
	Profiles []model.QualityProfile `json:"profiles"`
	Cached   bool                   `json:"cached"`
	Attempts []model.Attempt        `json:"attempts,omitempty"`
}

// Probe fetches (or reuses) the track catalog and ranks it without
// downloading anything or touching job.json.
func (e *Engine) Probe(ctx context.Context, rawURL string) (ProbeResult, error) {
	ref, err := workspace.ParseURL(rawURL)
	if err != nil {
		return ProbeResult{}, err
	}
	lock, err := e.ws.AcquireLock(ref)
	if err != nil {
		return ProbeResult{}, err
	}
	defer func() {
		_ = lock.Release()
	}()

	job := &model.JobState{ItemID: ref.ID, RunID: e.newRunID()}
	r := &run{e: e, ref: ref, job: job, logger: e.logger.With(zap.String("item", ref.Key()))}
	if sessionLog, err := e.ws.OpenSessionLog(ref); err == nil {
		defer sessionLog.Close()
		r.log = sessionLog
	}

	cat, err := r.catalog(ctx)
	res := ProbeResult{Ref: ref, Cached: r.cachedCatalog, Attempts: r.probeAttempts}
	if err != nil {
		return res, err
	}
	res.Catalog = cat
	res.Profiles = profile.Rank(cat, e.opts.Ranker)
	return res, nil
}
