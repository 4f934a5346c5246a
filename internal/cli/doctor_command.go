package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yt-resolver/internal/observability"
)

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run dependency and filesystem preflight checks",
	Long: `Run diagnostic checks: yt-dlp and ffmpeg on PATH, a writable work
directory, a writable output directory and a parseable cookies file.

Examples:
  yt-resolver doctor
  yt-resolver doctor --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "print JSON output")
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	res := Doctor(cfg)
	out := cmd.OutOrStdout()
	if doctorJSON {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		for i, c := range res.Checks {
			mark := okStyle.Render("ok")
			if !c.OK {
				mark = errorStyle.Render("FAIL")
			}
			fmt.Fprintf(out, "[%d/%d] %-18s %s  %s\n", i+1, len(res.Checks), c.Name, mark, c.Message)
		}
	}
	if !res.OK {
		for _, c := range res.Checks {
			if !c.OK {
				observability.CLILogger.Warn("doctor check failed", zap.String("check", c.Name), zap.String("message", c.Message))
			}
		}
		return errors.New("doctor found problems")
	}
	return nil
}
