package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"yt-resolver/internal/model"
	"yt-resolver/internal/workspace"
	"yt-resolver/internal/ytdlp"
)

// acquire returns the video track to promote. An existing complete track
// short-circuits the fallback loop; otherwise leaves run profile-major,
// then client, then auth mode, each at most once per run.
func (r *run) acquire(ctx context.Context, profiles []model.QualityProfile) (workspace.Artifact, *model.QualityProfile, error) {
	e := r.e
	existing, err := e.ws.FindExisting(r.ref, workspace.KindVideo)
	if err != nil {
		return workspace.Artifact{}, nil, err
	}
	if len(existing) > 0 {
		track := existing[0]
		r.job.Resumed = true
		selected := matchProfile(profiles, track.FormatID)
		if selected != nil {
			rank := selected.Rank
			r.job.SelectedProfileRank = &rank
		}
		r.logger.Info("existing track found, skipping download", zap.String("path", track.Path))
		r.sessionf("resume from %s", track.Path)
		return track, selected, nil
	}

	clients := e.tracker.OrderedClients(r.ref.Key(), e.opts.Clients)
	authModes := e.opts.Creds.AuthModes()
	itemDir, err := e.ws.EnsureItemDir(r.ref)
	if err != nil {
		return workspace.Artifact{}, nil, err
	}

	var attempts []model.Attempt
	for pi := range profiles {
		p := &profiles[pi]
		for _, client := range clients {
			for _, auth := range authModes {
				key := model.LeafKey(p.FormatSelector, client.Name, auth)
				if r.skip[key] {
					r.logger.Debug("skipping leaf tried by cancelled run", zap.String("leaf", key))
					continue
				}
				if err := e.pace(ctx); err != nil {
					return workspace.Artifact{}, nil, contextErr(ctx, err)
				}

				args, err := ytdlp.DownloadArgs(ytdlp.DownloadOptions{
					URL:        r.ref.URL,
					OutputDir:  itemDir,
					Selector:   p.FormatSelector,
					Container:  p.Container,
					Client:     client,
					Auth:       auth,
					Creds:      e.opts.Creds,
					Settings:   e.opts.Settings,
					MultiAudio: len(p.ExtraAudioTrackRefs) > 0,
				})
				if err != nil {
					return workspace.Artifact{}, nil, err
				}

				r.sessionf("download profile=%d (%s) client=%s auth=%s", p.Rank, p.Label, client.Name, auth)
				res := e.invoke(ctx, ytdlp.Invocation{
					Args:      args,
					Timeout:   e.opts.Timeout,
					LogWriter: r.log,
				})
				verdict := e.classifier.Classify(res)

				var track workspace.Artifact
				if verdict.Outcome == model.OutcomeSuccess {
					var found bool
					track, found = r.downloadedTrack(p)
					if !found {
						verdict = ytdlp.Verdict{Outcome: model.OutcomeRecoverable, Reason: "missing_output"}
					}
				}

				att := r.attempt(p, client.Name, auth, res, verdict)
				if verdict.Reason == "missing_output" {
					att.Error = "yt-dlp exited 0 but no complete video-* file was found"
				}
				r.job.Attempts = append(r.job.Attempts, att)
				attempts = append(attempts, att)
				r.logAttempt("download", att)
				if err := r.persist(); err != nil {
					return workspace.Artifact{}, nil, err
				}

				switch verdict.Outcome {
				case model.OutcomeSuccess:
					rank := p.Rank
					name := client.Name
					r.job.SelectedProfileRank = &rank
					r.job.SuccessfulClient = &name
					r.auth = auth
					if err := e.tracker.Record(r.ref.Key(), client.Name); err != nil {
						r.logger.Warn("record client failed", zap.Error(err))
					}
					return track, p, nil
				case model.OutcomeFatal:
					return workspace.Artifact{}, nil, &model.FatalFailureError{Attempt: att, Err: resultErr(res)}
				}
				if ctx.Err() != nil {
					return workspace.Artifact{}, nil, ctx.Err()
				}
			}
		}
		if pi == 0 && e.opts.RefuseDowngrade && len(profiles) > 1 {
			return workspace.Artifact{}, nil, &model.ExhaustedError{Attempts: attempts, Profiles: 1, RefusedDowngrade: true}
		}
	}
	return workspace.Artifact{}, nil, &model.ExhaustedError{Attempts: attempts, Profiles: len(profiles)}
}

// downloadedTrack finds the file yt-dlp wrote for p. The merged format id
// is the selector itself.
func (r *run) downloadedTrack(p *model.QualityProfile) (workspace.Artifact, bool) {
	found, err := r.e.ws.FindExisting(r.ref, workspace.KindVideo)
	if err != nil || len(found) == 0 {
		return workspace.Artifact{}, false
	}
	for _, a := range found {
		if a.FormatID == p.FormatSelector {
			return a, true
		}
	}
	for _, a := range found {
		if primaryFormatID(a.FormatID) == p.VideoTrackRef {
			return a, true
		}
	}
	return found[0], true
}

// matchProfile returns the profile whose video track produced formatID.
func matchProfile(profiles []model.QualityProfile, formatID string) *model.QualityProfile {
	id := primaryFormatID(formatID)
	for i := range profiles {
		if profiles[i].VideoTrackRef == id {
			return &profiles[i]
		}
	}
	return nil
}

func primaryFormatID(formatID string) string {
	id, _, _ := strings.Cut(formatID, "+")
	return id
}
