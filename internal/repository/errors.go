package repository

import (
	"database/sql"
	"errors"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/filelock"
)

var (
	// ErrNotFound is returned by the file-backed stores for missing records.
	// It is sql.ErrNoRows so callers treat every backing alike.
	ErrNotFound = sql.ErrNoRows
	// ErrStale is returned when a guarded update finds a newer stored version.
	ErrStale = errors.New("repository: stored resource is newer than the observed version")
	// ErrLocked is returned when an advisory lock is held by another writer.
	ErrLocked = filelock.ErrLocked
	// ErrArtifactExists is returned when a write-once record already exists.
	ErrArtifactExists = errors.New("repository: artifact already exists")
	// ErrDuplicate is returned when a keyed entry is already present.
	ErrDuplicate = errors.New("repository: entry already exists")
)
