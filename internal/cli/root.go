// Package cli wires the yt-resolver commands onto cobra.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yt-resolver/internal/config"
	"yt-resolver/internal/observability"
	"yt-resolver/internal/ytdlp"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	tmpDir     string

	// cfg is loaded by the root command before any subcommand runs.
	cfg *config.Config
)

// newInvoker builds the yt-dlp runner. Tests replace it with a fake.
var newInvoker = func(binary string) ytdlp.Invoker {
	return ytdlp.NewExecInvoker(binary)
}

// showProgress enables the live progress line on stderr.
var showProgress = stderrIsTTY()

var rootCmd = &cobra.Command{
	Use:   "yt-resolver",
	Short: "Resolve media URLs to the best downloadable quality, resiliently",
	Long: `yt-resolver probes a media URL with yt-dlp, ranks the available quality
profiles and walks a profile -> client -> auth fallback tree until one
download succeeds. Work directories are resumable: completed tracks are
never downloaded twice and an interrupted run picks up where it stopped.

Examples:
  yt-resolver resolve https://www.youtube.com/watch?v=dQw4w9WgXcQ
  yt-resolver resolve <url> --dest ~/Videos --name "My Video"
  yt-resolver resolve <url> --dest s3://media/archive
  yt-resolver probe <url> --format yaml
  yt-resolver status <url>
  yt-resolver doctor`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = observability.CLILogger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./yt-resolver.yaml or ~/.config/yt-resolver/yt-resolver.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	flags.StringVar(&logFormat, "log-format", "", "log format: console|json")
	flags.StringVar(&tmpDir, "tmp-dir", "", "work directory root")
}

// Run executes the command line. SIGINT and SIGTERM cancel the running
// resolution, which records where it stopped.
func Run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// setup loads configuration and installs the logger. Flags that were set
// explicitly override file and environment values.
func setup(cmd *cobra.Command, _ []string) error {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		overrides["logging.level"] = logLevel
	}
	if flags.Changed("log-format") {
		overrides["logging.format"] = logFormat
	}
	if flags.Changed("tmp-dir") {
		overrides["tmp_dir"] = tmpDir
	}

	loaded, err := config.Load(config.LoadOptions{ConfigFile: configFile, Overrides: overrides})
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(loaded.Logging.Level, loaded.Logging.Format)
	if err != nil {
		return err
	}
	cfg = loaded
	observability.SetCLILogger(logger)
	logger.Debug("config loaded", zap.String("file", loaded.ConfigFile), zap.String("tmp_dir", loaded.TmpDir))
	return nil
}
