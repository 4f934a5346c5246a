package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	rePct   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reSpeed = regexp.MustCompile(`\bat\s+([^\s]+)`) // yt-dlp [download] ... at X
	reETA   = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reOf    = regexp.MustCompile(`\bof\s+~?\s*([^\s]+)`)
	reFF    = regexp.MustCompile(`\bspeed=\s*([^\s]+)`) // ffmpeg speed=x
	reDest  = regexp.MustCompile(`Destination:\s+(.+)$`)
	reMerge = regexp.MustCompile(`Merging formats into "(.+)"`)
)

const (
	PhaseStarting    = "starting"
	PhaseMetadata    = "metadata"
	PhaseDownloading = "downloading"
	PhaseMerging     = "merging"
	PhaseSubtitles   = "subtitles"
)

// Progress is a snapshot of what yt-dlp last reported.
type Progress struct {
	Phase       string  `json:"phase"`
	Percent     float64 `json:"percent"`
	Speed       string  `json:"speed,omitempty"`
	ETA         string  `json:"eta,omitempty"`
	Total       string  `json:"total,omitempty"`
	Destination string  `json:"destination,omitempty"`
	LastLine    string  `json:"last_line,omitempty"`
}

// ProgressTracker folds yt-dlp output lines into a Progress snapshot. It is
// safe for the concurrent stdout/stderr readers.
type ProgressTracker struct {
	mu   sync.Mutex
	cur  Progress
	seen bool
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{cur: Progress{Phase: PhaseStarting}}
}

func (p *ProgressTracker) Handle(stream OutputStream, line string) {
	l := strings.TrimSpace(line)
	if l == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen = true
	p.cur.LastLine = l
	switch {
	case strings.HasPrefix(l, "[youtube]"), strings.HasPrefix(l, "[generic]"):
		p.cur.Phase = PhaseMetadata
	case strings.HasPrefix(l, "[info]"):
		if strings.Contains(strings.ToLower(l), "subtitles") {
			p.cur.Phase = PhaseSubtitles
		}
	case strings.HasPrefix(l, "[Merger]"):
		p.cur.Phase = PhaseMerging
		if m := reMerge.FindStringSubmatch(l); len(m) > 1 {
			p.cur.Destination = m[1]
		}
	case strings.HasPrefix(l, "[download]"):
		p.cur.Phase = PhaseDownloading
		if m := reDest.FindStringSubmatch(l); len(m) > 1 {
			p.cur.Destination = strings.TrimSpace(m[1])
		}
		if m := rePct.FindStringSubmatch(l); len(m) > 1 {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				p.cur.Percent = v
			}
		}
		if m := reSpeed.FindStringSubmatch(l); len(m) > 1 {
			p.cur.Speed = m[1]
		}
		if m := reETA.FindStringSubmatch(l); len(m) > 1 {
			p.cur.ETA = m[1]
		}
		if m := reOf.FindStringSubmatch(l); len(m) > 1 {
			p.cur.Total = m[1]
		}
	}
	if stream == StreamStderr {
		if m := reFF.FindStringSubmatch(l); len(m) > 1 {
			p.cur.Speed = m[1]
		}
	}
}

func (p *ProgressTracker) Snapshot() (Progress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur, p.seen
}
