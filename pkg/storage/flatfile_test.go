package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatFileMissingReadsEmpty(t *testing.T) {
	f := NewFlatFile(filepath.Join(t.TempDir(), "absent"))

	lines, err := f.ReadLines()
	require.NoError(t, err)
	assert.Empty(t, lines)

	mod, err := f.ModTime()
	require.NoError(t, err)
	assert.True(t, mod.IsZero())
}

func TestFlatFileRewriteKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "updates_table.list")
	f := NewFlatFile(path)

	require.NoError(t, f.Append("first"))
	require.NoError(t, f.Append("# comment"))
	require.NoError(t, f.Append(""))

	lines, err := f.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, lines)

	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.Rewrite([]string{"second", "third"}, stamp))

	lines, err = f.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "third"}, lines)

	mod, err := f.ModTime()
	require.NoError(t, err)
	assert.True(t, stamp.Equal(mod))

	backup, err := os.ReadFile(path + BackupSuffix)
	require.NoError(t, err)
	assert.Contains(t, string(backup), "first")
}

func TestNextVersionIsStrictlyIncreasing(t *testing.T) {
	prev := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)

	next := NextVersion(prev, prev)
	assert.True(t, next.After(prev))
	assert.Equal(t, 0, next.Nanosecond()%1000)

	later := prev.Add(time.Hour)
	assert.True(t, later.Truncate(time.Microsecond).Equal(NextVersion(later, prev)))
}
