package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	LockDirName        = ".run.lock"
	lockOwnerFile      = "owner.json"
	reclaimGuardSuffix = ".reclaim"

	// ownerlessStaleAfter is how long a lock without owner.json is honored.
	ownerlessStaleAfter = 10 * time.Minute
)

// ErrLocked is returned when another process holds the directory lock.
var ErrLocked = errors.New("directory is locked")

// LockOwner is recorded inside the lock directory by the holder.
type LockOwner struct {
	PID       int    `json:"pid"`
	Hostname  string `json:"hostname,omitempty"`
	Label     string `json:"label,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (o LockOwner) String() string {
	s := fmt.Sprintf("pid=%d host=%s created_at=%s", o.PID, o.Hostname, o.CreatedAt)
	if o.Label != "" {
		s += " label=" + o.Label
	}
	return s
}

type RunLock struct {
	lockDir string
}

// AcquireRunLock takes the exclusive mkdir lock on dir, creating dir when
// needed. label identifies the holder in owner.json. A lock left by a
// process that no longer exists on this host is reclaimed once.
func AcquireRunLock(runDir, label string) (RunLock, error) {
	target := strings.TrimSpace(runDir)
	if target == "" {
		return RunLock{}, fmt.Errorf("run directory is required")
	}
	if err := Mkdir(target); err != nil {
		return RunLock{}, err
	}
	lockDir := filepath.Join(target, LockDirName)

	for reclaimed := false; ; reclaimed = true {
		err := os.Mkdir(lockDir, 0o755)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return RunLock{}, fmt.Errorf("acquire run lock for %s: %w", target, err)
		}
		owner, ok := ReadLockOwner(target)
		if !reclaimed && staleLock(lockDir, owner, ok) {
			if err := reclaimStaleLock(lockDir, owner, ok); err != nil {
				return RunLock{}, err
			}
			continue
		}
		if ok {
			return RunLock{}, fmt.Errorf("%w: %s (%s)", ErrLocked, target, owner)
		}
		return RunLock{}, fmt.Errorf("%w: %s", ErrLocked, target)
	}

	owner := LockOwner{
		PID:       os.Getpid(),
		Hostname:  hostnameOrUnknown(),
		Label:     strings.TrimSpace(label),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := WriteJSON(filepath.Join(lockDir, lockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return RunLock{}, fmt.Errorf("write run lock owner for %s: %w", target, err)
	}
	return RunLock{lockDir: lockDir}, nil
}

// ReadLockOwner reports who holds the lock on runDir, if anyone does and
// recorded itself.
func ReadLockOwner(runDir string) (LockOwner, bool) {
	return readOwner(filepath.Join(runDir, LockDirName))
}

func readOwner(lockDir string) (LockOwner, bool) {
	var owner LockOwner
	err := ReadJSON(filepath.Join(lockDir, lockOwnerFile), &owner)
	if err != nil || owner.PID <= 0 {
		return LockOwner{}, false
	}
	return owner, true
}

func (l RunLock) Release() error {
	if strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = os.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := os.Remove(l.lockDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release run lock %s: %w", l.lockDir, err)
	}
	return nil
}

// staleLock only trusts liveness checks for owners on this host. A lock
// without an owner record is stale once it is older than
// ownerlessStaleAfter.
func staleLock(lockDir string, owner LockOwner, hasOwner bool) bool {
	if !hasOwner {
		info, err := os.Stat(lockDir)
		return err == nil && time.Since(info.ModTime()) > ownerlessStaleAfter
	}
	if owner.Hostname != hostnameOrUnknown() || owner.PID == os.Getpid() {
		return false
	}
	return !processAlive(owner.PID)
}

// reclaimStaleLock removes lockDir when it still holds the stale owner the
// caller saw. Reclaimers serialize on a guard directory and repeat the check
// under it, so a lock re-taken in the meantime is left alone.
func reclaimStaleLock(lockDir string, seen LockOwner, hadOwner bool) error {
	guard := lockDir + reclaimGuardSuffix
	if err := os.Mkdir(guard, 0o755); err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("guard stale run lock %s: %w", lockDir, err)
		}
		// a reclaimer that died mid-reclaim leaves its guard behind
		if info, statErr := os.Stat(guard); statErr == nil && time.Since(info.ModTime()) > ownerlessStaleAfter {
			_ = os.Remove(guard)
		}
		return nil
	}
	defer func() {
		_ = os.Remove(guard)
	}()

	owner, ok := readOwner(lockDir)
	if ok != hadOwner || owner != seen || !staleLock(lockDir, owner, ok) {
		return nil
	}
	tombstone := fmt.Sprintf("%s.stale-%d", lockDir, os.Getpid())
	if err := os.Rename(lockDir, tombstone); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reclaim stale run lock %s: %w", lockDir, err)
	}
	if err := os.RemoveAll(tombstone); err != nil {
		return fmt.Errorf("remove stale run lock %s: %w", tombstone, err)
	}
	return nil
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return true
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return false
	default:
		// EPERM: alive but owned by someone else
		return true
	}
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
