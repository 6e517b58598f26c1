package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/storage"
)

// ShiftLogRepository appends large coordinate shifts to a reviewer log.
type ShiftLogRepository struct {
	file *storage.FlatFile
}

// NewShiftLogRepository constructs the log over path.
func NewShiftLogRepository(path string) *ShiftLogRepository {
	return &ShiftLogRepository{file: storage.NewFlatFile(path)}
}

// Append writes one line: revision, user, from ra/dec, to ra/dec, shift, time.
func (r *ShiftLogRepository) Append(ctx context.Context, entry models.ShiftLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	return r.file.Append(strings.Join([]string{
		entry.Revision.String(),
		entry.User,
		formatDegrees(entry.FromRA),
		formatDegrees(entry.FromDec),
		formatDegrees(entry.ToRA),
		formatDegrees(entry.ToDec),
		formatDegrees(entry.Shift),
		at.UTC().Format(time.RFC3339),
	}, "\t"))
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
