package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

func TestRevisionRepositoryWriteOnce(t *testing.T) {
	repo := NewRevisionRepository(t.TempDir())
	ctx := context.Background()

	record := &models.RevisionRecord{
		ID:        models.RevisionID{Obsid: 12345, Rev: 1},
		User:      "jdoe",
		Mode:      models.ModeNormal,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, record, []byte("OBSID: 12345\n")))
	require.ErrorIs(t, repo.Create(ctx, record, []byte("second\n")), ErrArtifactExists)

	body, err := repo.Raw(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "OBSID: 12345\n", string(body))

	got, err := repo.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", got.User)
	assert.Equal(t, record.ID, got.ID)

	_, err = repo.Get(ctx, models.RevisionID{Obsid: 12345, Rev: 9})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevisionRepositoryNumbersAndIDs(t *testing.T) {
	repo := NewRevisionRepository(t.TempDir())
	ctx := context.Background()

	for _, id := range []models.RevisionID{{Obsid: 12345, Rev: 5}, {Obsid: 12345, Rev: 1}, {Obsid: 900, Rev: 2}, {Obsid: 12345, Rev: 2}} {
		require.NoError(t, repo.Create(ctx, &models.RevisionRecord{ID: id}, []byte("x")))
	}

	revs, err := repo.Numbers(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, revs)

	ids, err := repo.IDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 4)
	assert.Equal(t, "900.002", ids[0].String())
	assert.Equal(t, "12345.005", ids[3].String())

	empty := NewRevisionRepository(t.TempDir() + "/missing")
	revs, err = empty.Numbers(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestRevisionRepositoryFailedWriteKeepsNumberReserved(t *testing.T) {
	dir := t.TempDir()
	repo := NewRevisionRepository(dir)
	ctx := context.Background()

	// A plain file where the sidecar directory belongs makes the record write fail.
	require.NoError(t, os.WriteFile(filepath.Join(dir, recordDirName), []byte("x"), 0o644))

	id := models.RevisionID{Obsid: 12345, Rev: 1}
	err := repo.Create(ctx, &models.RevisionRecord{ID: id, User: "jdoe"}, []byte("OBSID: 12345\n"))
	require.Error(t, err)

	_, err = repo.Raw(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	revs, err := repo.Numbers(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, revs)

	ids, err := repo.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.ErrorIs(t, repo.Create(ctx, &models.RevisionRecord{ID: id}, []byte("retry")), ErrArtifactExists)
}
