package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"yt-resolver/internal/ytdlp"
)

// liveProgress redraws one status line on w while an item resolves.
type liveProgress struct {
	w       io.Writer
	label   string
	tracker *ytdlp.ProgressTracker

	once    sync.Once
	started bool
	stop    chan struct{}
	done    chan struct{}
}

func newLiveProgress(w io.Writer, label string) *liveProgress {
	return &liveProgress{
		w:       w,
		label:   label,
		tracker: ytdlp.NewProgressTracker(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (p *liveProgress) Handle(stream ytdlp.OutputStream, line string) {
	p.tracker.Handle(stream, line)
}

func (p *liveProgress) Start() {
	p.started = true
	go func() {
		defer close(p.done)
		t := time.NewTicker(700 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				fmt.Fprintf(p.w, "\r\033[2K%s", p.render())
			}
		}
	}()
}

// Stop clears the line. It is safe to call more than once.
func (p *liveProgress) Stop() {
	p.once.Do(func() {
		close(p.stop)
		if p.started {
			<-p.done
		}
		fmt.Fprint(p.w, "\r\033[2K")
	})
}

func (p *liveProgress) render() string {
	snap, ok := p.tracker.Snapshot()
	parts := []string{p.label, snap.Phase}
	if !ok {
		return strings.Join(parts, "  ")
	}
	if snap.Percent > 0 {
		parts = append(parts, fmt.Sprintf("%.1f%%", snap.Percent))
	}
	if snap.Speed != "" {
		parts = append(parts, snap.Speed)
	}
	if snap.ETA != "" {
		parts = append(parts, "ETA "+snap.ETA)
	}
	if snap.Total != "" {
		parts = append(parts, snap.Total)
	}
	return strings.Join(parts, "  ")
}
