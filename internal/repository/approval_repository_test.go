//go:build unix

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/filelock"
)

func TestApprovalRepositoryAppendAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approved")
	repo := NewApprovalRepository(path)
	ctx := context.Background()

	modified, err := repo.LastModified(ctx)
	require.NoError(t, err)
	assert.True(t, modified.IsZero())

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(ctx, models.ApprovalEntry{Obsid: 12345, SeqNbr: "500123", Signer: "jdoe", Date: at}, time.Second))
	require.NoError(t, repo.Append(ctx, models.ApprovalEntry{Obsid: 23456, SeqNbr: "500200", Signer: "jdoe", Date: at}, time.Second))
	err = repo.Append(ctx, models.ApprovalEntry{Obsid: 12345, SeqNbr: "500123", Signer: "asmith", Date: at}, time.Second)
	require.ErrorIs(t, err, ErrDuplicate)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "jdoe", entries[0].Signer)
	assert.True(t, at.Equal(entries[0].Date))

	removed, err := repo.Remove(ctx, 12345)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Remove(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, removed)

	entries, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 23456, entries[0].Obsid)
}

func TestApprovalRepositoryLockedRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approved")
	repo := NewApprovalRepository(path)

	held, err := filelock.TryAcquire(path)
	require.NoError(t, err)
	defer held.Unlock() //nolint:errcheck

	err = repo.Append(context.Background(), models.ApprovalEntry{Obsid: 1, Date: time.Now()}, 150*time.Millisecond)
	require.ErrorIs(t, err, ErrLocked)

	_, err = repo.Remove(context.Background(), 1)
	require.ErrorIs(t, err, ErrLocked)
}
