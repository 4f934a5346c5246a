package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"yt-resolver/internal/catalog"
	"yt-resolver/internal/model"
	"yt-resolver/internal/runstore"
)

const JobSchemaVersion = 1

// LoadJob returns the persisted job and whether one existed.
func (w Workspace) LoadJob(ref ItemRef) (model.JobState, bool, error) {
	var job model.JobState
	err := runstore.ReadJSON(w.JobPath(ref), &job)
	if errors.Is(err, fs.ErrNotExist) {
		return model.JobState{}, false, nil
	}
	if err != nil {
		return model.JobState{}, false, err
	}
	if !model.IsKnownStatus(job.Status) {
		return model.JobState{}, false, fmt.Errorf("job %s: unknown status %q", w.JobPath(ref), job.Status)
	}
	return job, true, nil
}

func (w Workspace) SaveJob(ref ItemRef, job model.JobState) error {
	if job.SchemaVersion == 0 {
		job.SchemaVersion = JobSchemaVersion
	}
	if job.Attempts == nil {
		job.Attempts = []model.Attempt{}
	}
	return runstore.WriteJSON(w.JobPath(ref), job)
}

// LoadCatalog returns the raw persisted probe document. A missing file is
// reported as fs.ErrNotExist.
func (w Workspace) LoadCatalog(ref ItemRef) ([]byte, error) {
	raw, err := os.ReadFile(w.CatalogPath(ref))
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", w.CatalogPath(ref), err)
	}
	return raw, nil
}

func (w Workspace) SaveCatalog(ref ItemRef, raw []byte) error {
	return runstore.WriteBytes(w.CatalogPath(ref), raw)
}

type clientRecord struct {
	SuccessfulClient string `json:"successful_client"`
	UpdatedAt        string `json:"updated_at"`
}

// PreferredClient implements clientpref.Store. The url_info.json tag wins
// over client.json.
func (w Workspace) PreferredClient(itemKey string) (string, error) {
	ref, err := ParseKey(itemKey)
	if err != nil {
		return "", err
	}
	if raw, err := w.LoadCatalog(ref); err == nil {
		if c := catalog.TaggedClient(raw); c != "" {
			return c, nil
		}
	}
	var rec clientRecord
	err = runstore.ReadJSON(w.ClientPath(ref), &rec)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rec.SuccessfulClient), nil
}

// RecordClient implements clientpref.Store. It tags url_info.json when the
// item has one and falls back to client.json otherwise.
func (w Workspace) RecordClient(itemKey, client string) error {
	ref, err := ParseKey(itemKey)
	if err != nil {
		return err
	}
	raw, err := w.LoadCatalog(ref)
	if err == nil {
		tagged, tagErr := catalog.TagClient(raw, client)
		if tagErr == nil {
			return w.SaveCatalog(ref, tagged)
		}
	}
	return runstore.WriteJSON(w.ClientPath(ref), clientRecord{
		SuccessfulClient: client,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339),
	})
}

// ItemStatus is the status.json summary written after a resolution.
type ItemStatus struct {
	ItemID           string   `json:"item_id"`
	Title            string   `json:"title,omitempty"`
	Status           string   `json:"status"`
	ProfileRank      *int     `json:"profile_rank"`
	ProfileLabel     string   `json:"profile_label,omitempty"`
	VideoFormat      string   `json:"video_format,omitempty"`
	AudioFormat      string   `json:"audio_format,omitempty"`
	Container        string   `json:"container,omitempty"`
	Client           string   `json:"client,omitempty"`
	FinalArtifact    string   `json:"final_artifact,omitempty"`
	ActualSize       int64    `json:"actual_size"`
	EstimatedSize    int64    `json:"estimated_size"`
	SizeTolerance    int64    `json:"size_tolerance"`
	SizeWithinBounds *bool    `json:"size_within_bounds"`
	Subtitles        []string `json:"subtitles,omitempty"`
	Resumed          bool     `json:"resumed,omitempty"`
	DeliveredTo      string   `json:"delivered_to,omitempty"`
	UpdatedAt        string   `json:"updated_at"`
}

func (w Workspace) SaveStatus(ref ItemRef, st ItemStatus) error {
	st.SizeTolerance = SizeTolerance(st.EstimatedSize)
	st.SizeWithinBounds = nil
	if ok, known := SizeMatches(st.EstimatedSize, st.ActualSize); known {
		st.SizeWithinBounds = &ok
	}
	return runstore.WriteJSON(w.StatusPath(ref), st)
}

func (w Workspace) LoadStatus(ref ItemRef) (ItemStatus, bool, error) {
	var st ItemStatus
	err := runstore.ReadJSON(w.StatusPath(ref), &st)
	if errors.Is(err, fs.ErrNotExist) {
		return ItemStatus{}, false, nil
	}
	if err != nil {
		return ItemStatus{}, false, err
	}
	return st, true, nil
}

const minSizeTolerance = 100 * 1024

// SizeTolerance is max(100 KiB, 1% of expected).
func SizeTolerance(expected int64) int64 {
	return max(int64(minSizeTolerance), expected/100)
}

// SizeMatches compares an actual size with an estimate. known is false
// when either side is unknown.
func SizeMatches(expected, actual int64) (ok bool, known bool) {
	if expected <= 0 || actual <= 0 {
		return false, false
	}
	diff := expected - actual
	if diff < 0 {
		diff = -diff
	}
	return diff <= SizeTolerance(expected), true
}

// EstimateBytesFromDuration guesses a file size when the probe reported
// none, from a per-height bitrate.
func EstimateBytesFromDuration(durationSec float64, height int) int64 {
	if durationSec <= 0 {
		return 0
	}
	var mbps float64
	switch {
	case height > 0 && height <= 480:
		mbps = 1.5
	case height > 0 && height <= 720:
		mbps = 3.5
	case height > 0 && height <= 1080:
		mbps = 6.0
	default:
		mbps = 8.0
	}
	return int64(math.Round(durationSec * mbps * 1_000_000 / 8.0))
}

// OpenSessionLog appends to the item's session.log.
func (w Workspace) OpenSessionLog(ref ItemRef) (io.WriteCloser, error) {
	dir, err := w.EnsureItemDir(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(w.SessionLogPath(ref), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log in %s: %w", dir, err)
	}
	return f, nil
}
