package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yt-resolver/internal/model"
	"yt-resolver/internal/observability"
	"yt-resolver/internal/resolve"
	"yt-resolver/internal/workspace"
	"yt-resolver/internal/ytdlp"
)

var (
	resolveName            string
	resolveDest            string
	resolveRefuseDowngrade bool
	resolveMaxProfiles     int
	resolveJSON            bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Download one item at the best quality the fallback tree can reach",
	Long: `Resolve probes the URL (or reuses a cached probe), ranks quality profiles
and tries every profile x client x auth combination in order until one
download succeeds. The final artifact is copied to --dest (a directory or
s3://bucket/prefix) under the sanitized --name.

Examples:
  yt-resolver resolve https://youtu.be/dQw4w9WgXcQ
  yt-resolver resolve <url> --dest ~/Videos --name "Never Gonna Give You Up"
  yt-resolver resolve <url> --refuse-downgrade --json`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolveName, "name", "", "output file name without extension (default: item id)")
	resolveCmd.Flags().StringVar(&resolveDest, "dest", "", "destination directory or s3://bucket/prefix (default: output_dir)")
	resolveCmd.Flags().BoolVar(&resolveRefuseDowngrade, "refuse-downgrade", false, "fail instead of falling back to a lower quality profile")
	resolveCmd.Flags().IntVar(&resolveMaxProfiles, "max-profiles", 0, "maximum number of quality profiles to try (0 = unlimited)")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print the job document as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()
	if flags.Changed("refuse-downgrade") {
		cfg.Profiles.RefuseDowngrade = resolveRefuseDowngrade
	}
	if flags.Changed("max-profiles") {
		if resolveMaxProfiles < 0 {
			return fmt.Errorf("--max-profiles must be >= 0")
		}
		cfg.Profiles.MaxProfiles = resolveMaxProfiles
	}

	if err := ytdlp.CheckDependencies(cfg.Invocation.Binary); err != nil {
		return err
	}
	ws, err := workspace.New(cfg.TmpDir)
	if err != nil {
		return err
	}
	dest, err := destinationFor(ctx, resolveDest)
	if err != nil {
		return err
	}

	var options []resolve.Option
	var progress *liveProgress
	if showProgress && !resolveJSON {
		progress = newLiveProgress(cmd.ErrOrStderr(), args[0])
		options = append(options, resolve.WithProgress(progress.Handle))
	}
	engine, err := newEngine(ws, options...)
	if err != nil {
		return err
	}

	if progress != nil {
		progress.Start()
	}
	job, runErr := engine.Resolve(ctx, resolve.Request{
		URL:          args[0],
		IntendedName: resolveName,
		Destination:  dest,
	})
	if progress != nil {
		progress.Stop()
	}

	out := cmd.OutOrStdout()
	if job.ItemID == "" {
		return runErr
	}
	if resolveJSON {
		if err := printJSON(out, job); err != nil {
			return err
		}
		return runErr
	}

	printJobSummary(out, job)
	if runErr != nil {
		observability.CLILogger.Error("resolution failed",
			zap.String("item", job.ItemID),
			zap.String("reason", job.Reason),
			zap.Int("attempts", len(job.AttemptsForRun(job.RunID))))
		printAttempts(out, job.AttemptsForRun(job.RunID))
	}
	return runErr
}

func printJobSummary(w io.Writer, job model.JobState) {
	fmt.Fprintf(w, "item: %s\n", job.ItemID)
	fmt.Fprintf(w, "run_id: %s\n", job.RunID)
	fmt.Fprintf(w, "status: %s\n", statusStyle(job.Status).Render(job.Status))
	if job.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", job.Reason)
	}
	if job.SelectedProfileRank != nil {
		fmt.Fprintf(w, "profile_rank: %d\n", *job.SelectedProfileRank)
	}
	if job.SuccessfulClient != nil {
		fmt.Fprintf(w, "client: %s\n", *job.SuccessfulClient)
	}
	if job.Resumed {
		fmt.Fprintln(w, "resumed: true")
	}
	if job.FinalArtifact != "" {
		fmt.Fprintf(w, "final: %s\n", job.FinalArtifact)
	}
	if job.DeliveredTo != "" {
		fmt.Fprintf(w, "delivered_to: %s\n", job.DeliveredTo)
	}
	fmt.Fprintf(w, "attempts: %d\n", len(job.AttemptsForRun(job.RunID)))
	if job.LastError != "" {
		fmt.Fprintf(w, "last_error: %s\n", job.LastError)
	}
}

func printAttempts(w io.Writer, attempts []model.Attempt) {
	for i, a := range attempts {
		fmt.Fprintf(w, "  %2d. profile=%d client=%s auth=%s outcome=%s reason=%s exit=%d\n",
			i+1, a.ProfileRank, a.ClientName, a.AuthMode, a.Outcome, a.Reason, a.ExitCode)
	}
}
