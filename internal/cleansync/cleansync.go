// Package cleansync replaces the legacy SysV-semaphore-guarded ini file
// with a cooperative flock over a plain marker file. Of the legacy
// three-state semaphore (ownership, reader-count, write-access) only
// write-access is kept: each account's marker file takes a single exclusive
// advisory lock, which gives mutual exclusion across processes on the same
// host. No reader count is tracked, and ownership is reduced to whether the
// marker file already existed when Guard was called.
package cleansync

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Locker guards the clean-sync-required check with
// one flock'd marker file per account.
type Locker struct {
	dir string
}

// NewLocker builds a Locker whose marker files live under dir.
func NewLocker(dir string) *Locker {
	return &Locker{dir: dir}
}

// Guard acquires an exclusive flock on accountID's marker file, runs fn
// while holding it, and releases the lock on return. wasFirstAttacher
// reports whether this call created the marker file (the "initial-owner"
// flag, used for bootstrap-only decisions such as first-run
// account setup).
func (l *Locker) Guard(accountID string, fn func(wasFirstAttacher bool) error) error {
	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return fmt.Errorf("cleansync: creating marker directory: %w", err)
	}
	path := filepath.Join(l.dir, accountID+".lock")

	_, statErr := os.Stat(path)
	wasFirstAttacher := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("cleansync: opening marker for %s: %w", accountID, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("cleansync: acquiring write-access lock for %s: %w", accountID, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn(wasFirstAttacher)
}
