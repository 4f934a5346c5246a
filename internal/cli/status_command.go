package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"yt-resolver/internal/model"
	"yt-resolver/internal/runstore"
	"yt-resolver/internal/workspace"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <url>",
	Short: "Show the persisted job state of one item",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print job and status documents as JSON")
}

type statusReport struct {
	Job    model.JobState        `json:"job"`
	Status *workspace.ItemStatus `json:"status,omitempty"`
	Final  *workspace.Artifact   `json:"final,omitempty"`
	Lock   *runstore.LockOwner   `json:"lock,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ref, err := workspace.ParseURL(args[0])
	if err != nil {
		return err
	}
	ws, err := workspace.New(cfg.TmpDir)
	if err != nil {
		return err
	}

	job, ok, err := ws.LoadJob(ref)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no job for %s under %s", ref.Key(), ws.Root)
	}
	report := statusReport{Job: job}
	if st, ok, err := ws.LoadStatus(ref); err != nil {
		return err
	} else if ok {
		report.Status = &st
	}
	if final, ok, err := ws.FinalArtifact(ref); err == nil && ok {
		report.Final = &final
	}
	if owner, ok := ws.LockOwner(ref); ok {
		report.Lock = &owner
	}

	if statusJSON {
		return printJSON(cmd.OutOrStdout(), report)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStatus(ref, report))
	return nil
}

func renderStatus(ref workspace.ItemRef, r statusReport) string {
	job := r.Job
	title := ref.Key()
	if r.Status != nil && r.Status.Title != "" {
		title = r.Status.Title
	}

	lines := []string{
		row("item", ref.Key()),
		row("status", statusStyle(job.Status).Render(job.Status)),
	}
	if r.Lock != nil {
		lines = append(lines, row("locked", warnStyle.Render(fmt.Sprintf("pid %d on %s since %s", r.Lock.PID, r.Lock.Hostname, r.Lock.CreatedAt))))
	} else if !model.IsTerminal(job.Status) {
		lines = append(lines, row("", warnStyle.Render("not finished: the last run was interrupted")))
	}
	if job.Reason != "" {
		lines = append(lines, row("reason", job.Reason))
	}
	if job.SelectedProfileRank != nil {
		label := fmt.Sprintf("#%d", *job.SelectedProfileRank)
		if r.Status != nil && r.Status.ProfileLabel != "" {
			label += " " + r.Status.ProfileLabel
		}
		lines = append(lines, row("profile", label))
	}
	if job.SuccessfulClient != nil {
		lines = append(lines, row("client", *job.SuccessfulClient))
	}
	if r.Final != nil {
		lines = append(lines, row("final", r.Final.Path+" "+mutedStyle.Render(sizeText(workspace.ArtifactSize(r.Final.Path)))))
	}
	if r.Status != nil {
		lines = append(lines, row("size", sizeCheck(*r.Status)))
		if len(r.Status.Subtitles) > 0 {
			lines = append(lines, row("subtitles", strings.Join(r.Status.Subtitles, ", ")))
		}
	}
	if job.DeliveredTo != "" {
		lines = append(lines, row("delivered", job.DeliveredTo))
	}
	lines = append(lines, row("attempts", fmt.Sprintf("%d this run, %d total", len(job.AttemptsForRun(job.RunID)), len(job.Attempts))))
	if job.UpdatedAt != "" {
		lines = append(lines, row("updated", job.UpdatedAt))
	}
	if job.LastError != "" {
		lines = append(lines, row("last error", errorStyle.Render(firstLine(job.LastError))))
	}
	if len(job.SkipLeaves) > 0 {
		lines = append(lines, row("resume after", strings.Join(job.SkipLeaves, ", ")))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), panelStyle.Render(body))
}

func row(label, value string) string {
	return mutedStyle.Render(fmt.Sprintf("%-13s", label)) + value
}

func sizeText(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

func sizeCheck(st workspace.ItemStatus) string {
	actual := sizeText(st.ActualSize)
	if st.SizeWithinBounds == nil {
		return actual + mutedStyle.Render(" (no estimate)")
	}
	msg := fmt.Sprintf("%s vs ~%s (±%s)", actual, sizeText(st.EstimatedSize), sizeText(st.SizeTolerance))
	if *st.SizeWithinBounds {
		return msg + " " + okStyle.Render("ok")
	}
	return msg + " " + warnStyle.Render("outside tolerance")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
