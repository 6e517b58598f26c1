//go:build unix

// Package filelock provides the advisory exclusive-open test that guards
// rewrites of the shared flat files (sign-off list, approved list).
//
// Locks are flock(2) advisory locks on a sibling "<path>.lock" file. They are
// process scoped and released on Unlock, file close or process exit.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("filelock: resource is locked")

// pollInterval is the spin step used by Acquire.
const pollInterval = 100 * time.Millisecond

// Lock is a held advisory lock.
type Lock struct {
	file *os.File
}

// TryAcquire takes the lock for path without blocking.
func TryAcquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &Lock{file: f}, nil
}

// Acquire spins on TryAcquire until the lock is taken, wait elapses or ctx is
// done. A zero wait behaves like TryAcquire.
func Acquire(ctx context.Context, path string, wait time.Duration) (*Lock, error) {
	deadline := time.Now().Add(wait)
	for {
		lock, err := TryAcquire(path)
		if err == nil || !errors.Is(err, ErrLocked) {
			return lock, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Unlock releases the lock. Safe to call on a nil lock.
func (l *Lock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
