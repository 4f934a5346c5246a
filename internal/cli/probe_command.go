package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"yt-resolver/internal/resolve"
	"yt-resolver/internal/workspace"
)

var probeFormat string

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Show the track catalog and ranked quality profiles without downloading",
	Long: `Probe fetches (or reuses) the yt-dlp metadata for an item, prints a
catalog summary and the ranked quality profiles resolve would try.

Examples:
  yt-resolver probe https://youtu.be/dQw4w9WgXcQ
  yt-resolver probe <url> --format json
  yt-resolver probe <url> --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probeFormat, "format", "text", "output format: text|json|yaml")
}

func runProbe(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(strings.TrimSpace(probeFormat))
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported --format %q (want text, json or yaml)", probeFormat)
	}

	ws, err := workspace.New(cfg.TmpDir)
	if err != nil {
		return err
	}
	engine, err := newEngine(ws)
	if err != nil {
		return err
	}
	res, err := engine.Probe(cmd.Context(), args[0])
	if err != nil {
		if len(res.Attempts) > 0 {
			printAttempts(cmd.ErrOrStderr(), res.Attempts)
		}
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		return printJSON(out, res)
	case "yaml":
		return printYAML(out, res)
	}
	printProbe(out, res)
	return nil
}

func printProbe(w io.Writer, res resolve.ProbeResult) {
	cat := res.Catalog
	fmt.Fprintln(w, titleStyle.Render(firstNonEmpty(cat.Title, res.Ref.ID)))
	fmt.Fprintf(w, "item: %s\n", res.Ref.Key())
	if cat.DurationSeconds > 0 {
		fmt.Fprintf(w, "duration: %ds\n", int(cat.DurationSeconds))
	}
	source := "probe"
	if res.Cached {
		source = "cache"
	}
	fmt.Fprintf(w, "catalog: %d track(s) from %s", len(cat.Tracks), source)
	if cat.SourceClient != "" {
		fmt.Fprintf(w, " (client %s)", cat.SourceClient)
	}
	fmt.Fprintln(w)

	if len(res.Profiles) == 0 {
		fmt.Fprintln(w, errorStyle.Render("no viable quality profile"))
		return
	}
	fmt.Fprintln(w, "profiles:")
	for _, p := range res.Profiles {
		size := mutedStyle.Render("size unknown")
		if p.EstimatedSize > 0 {
			size = "~" + humanize.IBytes(uint64(p.EstimatedSize))
		}
		fmt.Fprintf(w, "  %d. %-24s -f %-12s %s\n", p.Rank, p.Label, p.FormatSelector, size)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
