//go:build unix

package filelock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryAcquireExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updates_table.list")

	first, err := TryAcquire(path)
	require.NoError(t, err)

	_, err = TryAcquire(path)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Unlock())

	second, err := TryAcquire(path)
	require.NoError(t, err)
	require.NoError(t, second.Unlock())
}

func TestAcquireBoundedSpin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approved")

	held, err := TryAcquire(path)
	require.NoError(t, err)
	defer held.Unlock() //nolint:errcheck

	start := time.Now()
	_, err = Acquire(context.Background(), path, 300*time.Millisecond)
	require.ErrorIs(t, err, ErrLocked)
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestAcquireSucceedsOnceReleased(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approved")

	held, err := TryAcquire(path)
	require.NoError(t, err)
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = held.Unlock()
	}()

	lock, err := Acquire(context.Background(), path, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
}

func TestUnlockNil(t *testing.T) {
	var l *Lock
	require.NoError(t, l.Unlock())
}
