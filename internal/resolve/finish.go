package resolve

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"yt-resolver/internal/model"
	"yt-resolver/internal/runstore"
	"yt-resolver/internal/workspace"
	"yt-resolver/internal/ytdlp"
)

// promote copies the acquired track to final.<ext>. The track is kept so a
// later run can resume from it.
func (r *run) promote(track workspace.Artifact) (workspace.Artifact, error) {
	final := workspace.Artifact{Kind: workspace.KindFinal, Ext: track.Ext}
	path, err := r.e.ws.CanonicalPath(r.ref, final)
	if err != nil {
		return workspace.Artifact{}, err
	}
	if _, err := runstore.CopyFile(track.Path, path); err != nil {
		return workspace.Artifact{}, err
	}
	final.Path = path
	r.sessionf("promoted %s -> %s", track.Path, path)
	return final, nil
}

// finish runs the post-acquisition stages shared by fresh and resumed runs.
// cat and selected are nil when the final artifact already existed.
func (r *run) finish(ctx context.Context, req Request, cat *model.TrackCatalog, selected *model.QualityProfile, final workspace.Artifact) error {
	subs := r.subtitles(ctx)

	if req.Destination != nil {
		location, err := r.e.ws.Finalize(ctx, r.ref, req.Destination, r.job.IntendedOutputName)
		if err != nil {
			if ctx.Err() != nil {
				return r.cancel(ctx.Err())
			}
			return r.fail(ReasonFinalize, err)
		}
		r.job.DeliveredTo = location
		r.logger.Info("delivered", zap.String("location", location))
		r.sessionf("delivered %s", location)
	}

	if err := r.writeStatus(cat, selected, final, subs); err != nil {
		r.logger.Warn("write status.json failed", zap.Error(err))
	}
	return r.succeed()
}

// subtitles fetches each configured language that is not already on disk.
// It never fails the job.
func (r *run) subtitles(ctx context.Context) []string {
	e := r.e
	have := map[string]bool{}
	existing, _ := e.ws.FindExisting(r.ref, workspace.KindSubtitle)
	for _, a := range existing {
		have[a.Language] = true
	}

	client := e.opts.Clients[0]
	if r.job.SuccessfulClient != nil {
		for _, c := range e.opts.Clients {
			if c.Name == *r.job.SuccessfulClient {
				client = c
				break
			}
		}
	}
	auth := r.auth
	if auth == "" {
		auth = e.opts.Creds.AuthModes()[0]
	}

	for _, lang := range e.opts.SubtitleLangs {
		if have[lang] || ctx.Err() != nil {
			continue
		}
		args, err := ytdlp.SubtitleArgs(ytdlp.SubtitleOptions{
			URL:       r.ref.URL,
			OutputDir: e.ws.ItemDir(r.ref),
			Language:  lang,
			Client:    client,
			Auth:      auth,
			Creds:     e.opts.Creds,
			Settings:  e.opts.Settings,
		})
		if err != nil {
			r.logger.Warn("subtitle args", zap.String("lang", lang), zap.Error(err))
			continue
		}
		if err := e.pace(ctx); err != nil {
			break
		}
		r.sessionf("subtitles lang=%s client=%s auth=%s", lang, client.Name, auth)
		res := e.invoke(ctx, ytdlp.Invocation{Args: args, Timeout: e.opts.ProbeTimeout, LogWriter: r.log})
		if !res.Succeeded() {
			r.logger.Warn("subtitle download failed (non-fatal)", zap.String("lang", lang), zap.Error(resultErr(res)))
		}
	}

	found, _ := e.ws.FindExisting(r.ref, workspace.KindSubtitle)
	langs := make([]string, 0, len(found))
	for _, a := range found {
		langs = append(langs, a.Language)
	}
	slices.Sort(langs)
	return langs
}

func (r *run) writeStatus(cat *model.TrackCatalog, selected *model.QualityProfile, final workspace.Artifact, subs []string) error {
	st := workspace.ItemStatus{
		ItemID:        r.ref.ID,
		Status:        model.StatusSucceeded,
		ProfileRank:   r.job.SelectedProfileRank,
		FinalArtifact: final.Path,
		ActualSize:    workspace.ArtifactSize(final.Path),
		Subtitles:     subs,
		Resumed:       r.job.Resumed,
		DeliveredTo:   r.job.DeliveredTo,
		UpdatedAt:     r.e.timestamp(),
	}
	if r.job.SuccessfulClient != nil {
		st.Client = *r.job.SuccessfulClient
	}
	if cat != nil {
		st.Title = cat.Title
	}
	if selected != nil {
		st.ProfileLabel = selected.Label
		st.VideoFormat = selected.VideoTrackRef
		st.AudioFormat = selected.AudioTrackRef
		st.Container = selected.Container
		st.EstimatedSize = selected.EstimatedSize
		if st.EstimatedSize <= 0 && cat != nil {
			st.EstimatedSize = workspace.EstimateBytesFromDuration(cat.DurationSeconds, selected.Height)
		}
	} else if prev, ok, err := r.e.ws.LoadStatus(r.ref); err == nil && ok {
		st.Title = prev.Title
		st.ProfileLabel = prev.ProfileLabel
		st.VideoFormat = prev.VideoFormat
		st.AudioFormat = prev.AudioFormat
		st.Container = prev.Container
		st.EstimatedSize = prev.EstimatedSize
	}
	return r.e.ws.SaveStatus(r.ref, st)
}
