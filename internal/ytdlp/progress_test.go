package ytdlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_DownloadLines(t *testing.T) {
	p := NewProgressTracker()
	_, seen := p.Snapshot()
	assert.False(t, seen)

	p.Handle(StreamStdout, "[youtube] abc: Downloading webpage")
	snap, seen := p.Snapshot()
	assert.True(t, seen)
	assert.Equal(t, PhaseMetadata, snap.Phase)

	p.Handle(StreamStdout, "[download] Destination: /w/video-399.mp4")
	p.Handle(StreamStdout, "[download]  42.5% of ~ 120.00MiB at  3.20MiB/s ETA 00:21")
	snap, _ = p.Snapshot()
	assert.Equal(t, PhaseDownloading, snap.Phase)
	assert.Equal(t, "/w/video-399.mp4", snap.Destination)
	assert.InDelta(t, 42.5, snap.Percent, 0.001)
	assert.Equal(t, "120.00MiB", snap.Total)
	assert.Equal(t, "3.20MiB/s", snap.Speed)
	assert.Equal(t, "00:21", snap.ETA)

	p.Handle(StreamStdout, `[Merger] Merging formats into "/w/video-399+251.mkv"`)
	snap, _ = p.Snapshot()
	assert.Equal(t, PhaseMerging, snap.Phase)
	assert.Equal(t, "/w/video-399+251.mkv", snap.Destination)
}

func TestProgressTracker_FFmpegSpeedOnStderr(t *testing.T) {
	p := NewProgressTracker()
	p.Handle(StreamStderr, "frame= 100 fps=0.0 size=1024kB time=00:00:04.00 speed=2.5x")
	snap, _ := p.Snapshot()
	assert.Equal(t, "2.5x", snap.Speed)
	assert.Equal(t, PhaseStarting, snap.Phase)
}
