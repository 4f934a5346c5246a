package resolve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"yt-resolver/internal/cache"
	"yt-resolver/internal/catalog"
	"yt-resolver/internal/model"
	"yt-resolver/internal/ytdlp"
)

// probeRank marks probe attempts, which belong to no profile.
const probeRank = -1

// catalog returns the persisted catalog when it classifies Reusable and
// probes otherwise.
func (r *run) catalog(ctx context.Context) (model.TrackCatalog, error) {
	raw, err := r.e.ws.LoadCatalog(r.ref)
	switch {
	case err == nil:
		verdict := cache.Classify(raw)
		r.logger.Info("cached catalog classified", zap.String("verdict", string(verdict)))
		r.sessionf("cached url_info.json verdict=%s", verdict)
		if !verdict.NeedsProbe() {
			cat, perr := catalog.Parse(raw)
			if perr == nil {
				r.cachedCatalog = true
				return cat, nil
			}
		}
	case !errors.Is(err, fs.ErrNotExist):
		r.logger.Warn("cached catalog unreadable", zap.Error(err))
	}
	return r.probe(ctx)
}

func (r *run) probe(ctx context.Context) (model.TrackCatalog, error) {
	e := r.e
	if _, err := e.ws.EnsureItemDir(r.ref); err != nil {
		return model.TrackCatalog{}, err
	}
	clients := e.tracker.OrderedClients(r.ref.Key(), e.opts.Clients)
	for _, client := range clients {
		for _, auth := range e.opts.Creds.AuthModes() {
			if err := e.pace(ctx); err != nil {
				return model.TrackCatalog{}, contextErr(ctx, err)
			}
			args, err := ytdlp.ProbeArgs(ytdlp.ProbeOptions{
				URL:      r.ref.URL,
				Client:   client,
				Auth:     auth,
				Creds:    e.opts.Creds,
				Settings: e.opts.Settings,
			})
			if err != nil {
				return model.TrackCatalog{}, err
			}

			r.sessionf("probe client=%s auth=%s", client.Name, auth)
			res := e.invoke(ctx, ytdlp.Invocation{
				Args:          args,
				Timeout:       e.opts.ProbeTimeout,
				CaptureStdout: true,
				LogWriter:     r.log,
			})
			verdict := e.classifier.Classify(res)
			att := r.attempt(nil, client.Name, auth, res, verdict)
			r.probeAttempts = append(r.probeAttempts, att)
			r.logAttempt("probe", att)

			switch verdict.Outcome {
			case model.OutcomeSuccess:
				cat, perr := catalog.Build(res.Stdout)
				if perr != nil {
					return model.TrackCatalog{}, perr
				}
				cat.SourceClient = client.Name
				r.storeCatalog(res.Stdout, client.Name)
				return cat, nil
			case model.OutcomeFatal:
				return model.TrackCatalog{}, &model.FatalFailureError{Attempt: att, Err: resultErr(res)}
			}
			if ctx.Err() != nil {
				return model.TrackCatalog{}, ctx.Err()
			}
		}
	}
	return model.TrackCatalog{}, &model.ProbeFailedError{Attempts: r.probeAttempts}
}

// storeCatalog persists the probe document tagged with the client that
// produced it. Failures only cost a future re-probe.
func (r *run) storeCatalog(raw []byte, client string) {
	doc := raw
	if tagged, err := catalog.TagClient(raw, client); err == nil {
		doc = tagged
	}
	if err := r.e.ws.SaveCatalog(r.ref, doc); err != nil {
		r.logger.Warn("persist catalog failed", zap.Error(err))
	}
	if err := r.e.tracker.Record(r.ref.Key(), client); err != nil {
		r.logger.Warn("record client failed", zap.Error(err))
	}
}

// attempt records one invocation; p is nil for probes.
func (r *run) attempt(p *model.QualityProfile, client string, auth model.AuthMode, res ytdlp.Result, v ytdlp.Verdict) model.Attempt {
	att := model.Attempt{
		RunID:       r.job.RunID,
		ProfileRank: probeRank,
		ClientName:  client,
		AuthMode:    auth,
		Outcome:     v.Outcome,
		Reason:      v.Reason,
		ExitCode:    res.ExitCode,
		Timestamp:   r.e.timestamp(),
		DurationMS:  res.Duration.Milliseconds(),
	}
	if p != nil {
		att.ProfileRank = p.Rank
		att.ProfileLabel = p.Label
		att.FormatSelector = p.FormatSelector
	}
	if v.Outcome != model.OutcomeSuccess {
		att.Error = ytdlp.Tail(resultErr(res).Error(), 600)
	}
	return att
}

func (r *run) logAttempt(stage string, a model.Attempt) {
	fields := []zap.Field{
		zap.String("stage", stage),
		zap.Int("profile_rank", a.ProfileRank),
		zap.String("client", a.ClientName),
		zap.String("auth", string(a.AuthMode)),
		zap.String("outcome", string(a.Outcome)),
		zap.String("reason", a.Reason),
		zap.Int("exit_code", a.ExitCode),
	}
	if a.Outcome == model.OutcomeSuccess {
		r.logger.Info("attempt", fields...)
	} else {
		r.logger.Warn("attempt", fields...)
	}
	r.sessionf("%s attempt profile=%d client=%s auth=%s outcome=%s reason=%s exit=%d",
		stage, a.ProfileRank, a.ClientName, a.AuthMode, a.Outcome, a.Reason, a.ExitCode)
}

// resultErr describes a failed invocation by its stderr tail, falling back
// to the process error.
func resultErr(res ytdlp.Result) error {
	if res.Stderr != "" {
		return errors.New(ytdlp.Tail(res.Stderr, maxErrorLen))
	}
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("exit status %d", res.ExitCode)
}

func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
