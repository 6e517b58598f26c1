package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

func TestShiftLogRepositoryAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cdo_warning_list")
	repo := NewShiftLogRepository(path)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Append(context.Background(), models.ShiftLogEntry{
		Revision: models.RevisionID{Obsid: 12345, Rev: 2},
		User:     "jdoe",
		FromRA:   10,
		FromDec:  41.2,
		ToRA:     10.5,
		ToDec:    41.2,
		Shift:    0.376,
		At:       at,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fields := strings.Split(strings.TrimSpace(string(data)), "\t")
	require.Len(t, fields, 8)
	assert.Equal(t, "12345.002", fields[0])
	assert.Equal(t, "jdoe", fields[1])
	assert.Equal(t, "10.500000", fields[4])
	assert.Equal(t, "2026-03-01T12:00:00Z", fields[7])
}

func TestShiftLogRepositoryHonoursContext(t *testing.T) {
	repo := NewShiftLogRepository(filepath.Join(t.TempDir(), "log"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, repo.Append(ctx, models.ShiftLogEntry{}), context.Canceled)
}
