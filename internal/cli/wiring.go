package cli

import (
	"context"
	"strings"

	"yt-resolver/internal/config"
	"yt-resolver/internal/observability"
	"yt-resolver/internal/profile"
	"yt-resolver/internal/resolve"
	"yt-resolver/internal/workspace"
	"yt-resolver/internal/ytdlp"
)

func engineOptions(c *config.Config) resolve.Options {
	ranker := profile.Options{
		MaxProfiles:    c.Profiles.MaxProfiles,
		MaxHeight:      c.Profiles.MaxHeight,
		AudioLanguages: c.Profiles.AudioLanguages,
		MultiAudio:     c.Profiles.MultiAudio,
	}
	if c.Profiles.StaticTable {
		ranker.Table = profile.StaticTable
	}
	return resolve.Options{
		Clients: c.ClientIdentities(),
		Creds: ytdlp.Credentials{
			CookiesPath:        c.Cookies.File,
			CookiesFromBrowser: c.Cookies.FromBrowser,
		},
		Settings: ytdlp.Settings{
			ProxyURL:   c.Invocation.Proxy,
			LimitRate:  firstNonEmpty(c.Invocation.LimitRate, ytdlp.FormatRateLimitMBps(c.Invocation.LimitRateMBps)),
			CustomArgs: c.Invocation.CustomArgs,
		},
		Ranker:            ranker,
		RefuseDowngrade:   c.Profiles.RefuseDowngrade,
		Timeout:           c.Invocation.Timeout,
		ProbeTimeout:      c.Invocation.ProbeTimeout,
		AttemptsPerSecond: c.Invocation.AttemptsPerSecond,
		SubtitleLangs:     c.Subtitles.Languages,
		FatalPatterns:     c.Classifier.Fatal,
		RecoverPatterns:   c.Classifier.Recoverable,
	}
}

func newEngine(ws workspace.Workspace, extra ...resolve.Option) (*resolve.Engine, error) {
	options := append([]resolve.Option{resolve.WithLogger(observability.CLILogger)}, extra...)
	return resolve.New(ws, newInvoker(cfg.Invocation.Binary), engineOptions(cfg), options...)
}

// destinationFor resolves --dest, falling back to output_dir. No value
// means the result stays in the work directory.
func destinationFor(ctx context.Context, raw string) (workspace.Destination, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = cfg.OutputDir
	}
	if target == "" {
		return nil, nil
	}
	return workspace.ParseDestination(ctx, target, workspace.DestinationOptions{
		AllowOverwrite: cfg.Storage.AllowOverwrite,
		S3: workspace.S3Options{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Profile:         cfg.S3.Profile,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		},
	})
}
