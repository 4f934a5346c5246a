package runstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAcquireRunLock_BlocksConcurrentAcquire(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "videos", "youtube", "abc")

	lock, err := AcquireRunLock(runDir, "youtube:abc")
	if err != nil {
		t.Fatalf("acquire first lock: %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()

	owner, ok := ReadLockOwner(runDir)
	if !ok || owner.PID != os.Getpid() || owner.Label != "youtube:abc" {
		t.Fatalf("unexpected owner %+v (ok=%v)", owner, ok)
	}

	_, err = AcquireRunLock(runDir, "youtube:abc")
	if err == nil {
		t.Fatalf("expected second acquire to fail")
	}
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "pid=") {
		t.Fatalf("expected owner details in lock error, got %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	if _, ok := ReadLockOwner(runDir); ok {
		t.Fatalf("owner still readable after release")
	}

	lock2, err := AcquireRunLock(runDir, "")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("release second lock: %v", err)
	}
}

func TestAcquireRunLock_RequiresDir(t *testing.T) {
	if _, err := AcquireRunLock("  ", "x"); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

// deadPID is above any kernel pid_max, so no process can own it.
const deadPID = 1 << 30

func plantLock(t *testing.T, runDir string, owner *LockOwner) {
	t.Helper()
	lockDir := filepath.Join(runDir, LockDirName)
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		t.Fatalf("mkdir lock: %v", err)
	}
	if owner != nil {
		if err := WriteJSON(filepath.Join(lockDir, lockOwnerFile), owner); err != nil {
			t.Fatalf("write owner: %v", err)
		}
	}
}

func TestAcquireRunLock_ReclaimsDeadOwnerOnThisHost(t *testing.T) {
	runDir := t.TempDir()
	plantLock(t, runDir, &LockOwner{PID: deadPID, Hostname: hostnameOrUnknown(), CreatedAt: "2026-01-01T00:00:00Z"})

	lock, err := AcquireRunLock(runDir, "youtube:abc")
	if err != nil {
		t.Fatalf("expected stale lock to be reclaimed, got %v", err)
	}
	defer func() {
		_ = lock.Release()
	}()
	owner, ok := ReadLockOwner(runDir)
	if !ok || owner.PID != os.Getpid() {
		t.Fatalf("lock not re-owned: %+v", owner)
	}
}

func TestAcquireRunLock_KeepsForeignHostLock(t *testing.T) {
	runDir := t.TempDir()
	plantLock(t, runDir, &LockOwner{PID: deadPID, Hostname: "some-other-host", CreatedAt: "2026-01-01T00:00:00Z"})

	_, err := AcquireRunLock(runDir, "youtube:abc")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked for a lock held on another host, got %v", err)
	}
}

func TestAcquireRunLock_OwnerlessLock(t *testing.T) {
	runDir := t.TempDir()
	plantLock(t, runDir, nil)

	if _, err := AcquireRunLock(runDir, ""); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected fresh ownerless lock to be honored, got %v", err)
	}

	old := time.Now().Add(-2 * ownerlessStaleAfter)
	if err := os.Chtimes(filepath.Join(runDir, LockDirName), old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	lock, err := AcquireRunLock(runDir, "")
	if err != nil {
		t.Fatalf("expected old ownerless lock to be reclaimed, got %v", err)
	}
	_ = lock.Release()
}

func TestAcquireRunLock_OneWinnerForStaleLock(t *testing.T) {
	runDir := t.TempDir()
	plantLock(t, runDir, &LockOwner{PID: deadPID, Hostname: hostnameOrUnknown(), CreatedAt: "2026-01-01T00:00:00Z"})

	const starters = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		locks []RunLock
	)
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := AcquireRunLock(runDir, "youtube:abc")
			if err != nil {
				if !errors.Is(err, ErrLocked) {
					t.Errorf("unexpected acquire error: %v", err)
				}
				return
			}
			mu.Lock()
			locks = append(locks, lock)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(locks) != 1 {
		t.Fatalf("expected exactly one holder, got %d", len(locks))
	}
	_ = locks[0].Release()
	assertNoTombstones(t, runDir)
}

func TestReclaimStaleLock_LeavesRetakenLock(t *testing.T) {
	runDir := t.TempDir()
	live := &LockOwner{PID: os.Getpid(), Hostname: hostnameOrUnknown(), Label: "youtube:abc", CreatedAt: "2026-01-02T00:00:00Z"}
	plantLock(t, runDir, live)

	// the caller judged a dead owner stale, but the lock was re-taken since
	dead := LockOwner{PID: deadPID, Hostname: hostnameOrUnknown(), CreatedAt: "2026-01-01T00:00:00Z"}
	if err := reclaimStaleLock(filepath.Join(runDir, LockDirName), dead, true); err != nil {
		t.Fatalf("reclaim: %v", err)
	}

	owner, ok := ReadLockOwner(runDir)
	if !ok || owner != *live {
		t.Fatalf("live lock was touched: %+v (ok=%v)", owner, ok)
	}
	assertNoTombstones(t, runDir)
}

func TestReclaimStaleLock_WaitsForConcurrentReclaimer(t *testing.T) {
	runDir := t.TempDir()
	dead := &LockOwner{PID: deadPID, Hostname: hostnameOrUnknown(), CreatedAt: "2026-01-01T00:00:00Z"}
	plantLock(t, runDir, dead)
	lockDir := filepath.Join(runDir, LockDirName)
	if err := os.Mkdir(lockDir+reclaimGuardSuffix, 0o755); err != nil {
		t.Fatalf("mkdir guard: %v", err)
	}

	if _, err := AcquireRunLock(runDir, ""); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked while another reclaim is in flight, got %v", err)
	}
	if _, ok := ReadLockOwner(runDir); !ok {
		t.Fatalf("stale lock removed without holding the guard")
	}

	old := time.Now().Add(-2 * ownerlessStaleAfter)
	if err := os.Chtimes(lockDir+reclaimGuardSuffix, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := AcquireRunLock(runDir, ""); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected abandoned guard to be cleared first, got %v", err)
	}
	lock, err := AcquireRunLock(runDir, "")
	if err != nil {
		t.Fatalf("expected reclaim after abandoned guard cleared, got %v", err)
	}
	_ = lock.Release()
}

func assertNoTombstones(t *testing.T, runDir string) {
	t.Helper()
	entries, err := os.ReadDir(runDir)
	if err != nil {
		t.Fatalf("read run dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != LockDirName && strings.HasPrefix(e.Name(), LockDirName+".") {
			t.Fatalf("tombstone left behind: %s", e.Name())
		}
	}
}
