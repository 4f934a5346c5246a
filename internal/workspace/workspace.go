// Package workspace owns the per-item work directory: canonical artifact
// names, resume discovery, persisted job state and final delivery.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"yt-resolver/internal/model"
	"yt-resolver/internal/runstore"
)

const (
	JobFile        = "job.json"
	StatusFile     = "status.json"
	CatalogFile    = "url_info.json"
	ClientFile     = "client.json"
	SessionLogFile = "session.log"
)

// Workspace is rooted at the configured temp directory. Every item gets
// {root}/videos/{platform}/{id} or {root}/playlists/{platform}/{id}.
type Workspace struct {
	Root string
}

func New(root string) (Workspace, error) {
	r := strings.TrimSpace(root)
	if r == "" {
		return Workspace{}, fmt.Errorf("workspace root is required")
	}
	abs, err := filepath.Abs(r)
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve workspace root %s: %w", r, err)
	}
	return Workspace{Root: abs}, nil
}

func (w Workspace) ItemDir(ref ItemRef) string {
	group := "videos"
	if ref.Kind == model.ItemPlaylist {
		group = "playlists"
	}
	return filepath.Join(w.Root, group, safeSegment(ref.Platform), safeSegment(ref.ID))
}

// EnsureItemDir creates the item directory.
func (w Workspace) EnsureItemDir(ref ItemRef) (string, error) {
	dir := w.ItemDir(ref)
	if err := runstore.Mkdir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (w Workspace) JobPath(ref ItemRef) string {
	return filepath.Join(w.ItemDir(ref), JobFile)
}

func (w Workspace) StatusPath(ref ItemRef) string {
	return filepath.Join(w.ItemDir(ref), StatusFile)
}

func (w Workspace) CatalogPath(ref ItemRef) string {
	return filepath.Join(w.ItemDir(ref), CatalogFile)
}

func (w Workspace) ClientPath(ref ItemRef) string {
	return filepath.Join(w.ItemDir(ref), ClientFile)
}

func (w Workspace) SessionLogPath(ref ItemRef) string {
	return filepath.Join(w.ItemDir(ref), SessionLogFile)
}

// AcquireLock takes the single-writer lock for the item directory.
func (w Workspace) AcquireLock(ref ItemRef) (runstore.RunLock, error) {
	return runstore.AcquireRunLock(w.ItemDir(ref), ref.Key())
}

// LockOwner reports the process currently holding the item lock.
func (w Workspace) LockOwner(ref ItemRef) (runstore.LockOwner, bool) {
	return runstore.ReadLockOwner(w.ItemDir(ref))
}

func safeSegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return invalidSegmentChars.ReplaceAllString(s, "_")
}
