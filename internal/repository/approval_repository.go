package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/filelock"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/storage"
)

// ApprovalRepository is the approved-observations list consumed by the
// scheduling pipeline: "obsid<TAB>seq<TAB>signer<TAB>date" per line.
type ApprovalRepository struct {
	file *storage.FlatFile
}

// NewApprovalRepository constructs the registry over path.
func NewApprovalRepository(path string) *ApprovalRepository {
	return &ApprovalRepository{file: storage.NewFlatFile(path)}
}

// Append adds entry, waiting up to wait for the registry lock. An obsid that
// is already listed yields ErrDuplicate.
func (r *ApprovalRepository) Append(ctx context.Context, entry models.ApprovalEntry, wait time.Duration) error {
	lock, err := filelock.Acquire(ctx, r.file.Path(), wait)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	existing, err := r.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Obsid == entry.Obsid {
			return ErrDuplicate
		}
	}
	return r.file.Append(formatApproval(entry))
}

// Remove deletes every line for obsid. It reports whether anything was removed.
func (r *ApprovalRepository) Remove(ctx context.Context, obsid int) (bool, error) {
	lock, err := filelock.TryAcquire(r.file.Path())
	if err != nil {
		return false, err
	}
	defer lock.Unlock()

	entries, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]string, 0, len(entries))
	removed := false
	for _, e := range entries {
		if e.Obsid == obsid {
			removed = true
			continue
		}
		kept = append(kept, formatApproval(e))
	}
	if !removed {
		return false, nil
	}
	if err := r.file.Rewrite(kept, time.Time{}); err != nil {
		return false, err
	}
	return true, nil
}

// List returns the registry in file order.
func (r *ApprovalRepository) List(ctx context.Context) ([]models.ApprovalEntry, error) {
	lines, err := r.file.ReadLines()
	if err != nil {
		return nil, err
	}
	entries := make([]models.ApprovalEntry, 0, len(lines))
	for n, line := range lines {
		entry, err := parseApproval(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", r.file.Path(), n+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// LastModified is the registry version; zero when the file does not exist.
func (r *ApprovalRepository) LastModified(ctx context.Context) (time.Time, error) {
	modified, err := r.file.ModTime()
	if err != nil {
		return time.Time{}, err
	}
	return modified.UTC(), nil
}

func formatApproval(e models.ApprovalEntry) string {
	return strings.Join([]string{
		strconv.Itoa(e.Obsid),
		e.SeqNbr,
		e.Signer,
		e.Date.UTC().Format(time.RFC3339),
	}, "\t")
}

func parseApproval(line string) (models.ApprovalEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		fields = strings.Fields(line)
	}
	if len(fields) < 4 {
		return models.ApprovalEntry{}, fmt.Errorf("expected 4 fields, got %d", len(fields))
	}
	obsid, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return models.ApprovalEntry{}, fmt.Errorf("invalid obsid %q", fields[0])
	}
	date, err := parseLedgerDate(strings.TrimSpace(fields[3]))
	if err != nil {
		return models.ApprovalEntry{}, err
	}
	return models.ApprovalEntry{
		Obsid:  obsid,
		SeqNbr: strings.TrimSpace(fields[1]),
		Signer: strings.TrimSpace(fields[2]),
		Date:   date,
	}, nil
}
