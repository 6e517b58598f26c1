package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/filelock"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/storage"
)

const (
	// Rows written by older tools stop before the trailing mode field.
	legacyFieldCount = 8
	flatFieldCount   = 9
	cellNA           = "NA"
	cellPending      = "NULL"
)

// legacyDateLayouts are accepted when reading rows written by older tools.
var legacyDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "01/02/06", "2006-01-02"}

// FlatSignoffRepository keeps the ledger as the legacy tab separated list,
// one line per revision. The file modification time is the version of every
// row in it.
type FlatSignoffRepository struct {
	file *storage.FlatFile
	now  func() time.Time
}

// NewFlatSignoffRepository constructs the repository over path.
func NewFlatSignoffRepository(path string) *FlatSignoffRepository {
	return &FlatSignoffRepository{file: storage.NewFlatFile(path), now: time.Now}
}

// Insert appends the row. An existing row yields ErrDuplicate.
func (r *FlatSignoffRepository) Insert(ctx context.Context, entry *models.SignoffEntry) error {
	return r.withLock(func() error {
		entries, version, err := r.load()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.ID == entry.ID {
				return ErrDuplicate
			}
		}
		next := storage.NextVersion(r.now(), version)
		if err := r.file.Append(formatFlatEntry(entry)); err != nil {
			return err
		}
		if err := r.file.Touch(next); err != nil {
			return err
		}
		entry.UpdatedAt = next
		return nil
	})
}

// Get returns the row for id. A missing row yields ErrNotFound.
func (r *FlatSignoffRepository) Get(ctx context.Context, id models.RevisionID) (*models.SignoffEntry, error) {
	entries, _, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == id {
			return &entries[i], nil
		}
	}
	return nil, ErrNotFound
}

// Update rewrites the row when the file has not changed since observed.
func (r *FlatSignoffRepository) Update(ctx context.Context, entry *models.SignoffEntry, observed time.Time) error {
	return r.withLock(func() error {
		entries, version, err := r.load()
		if err != nil {
			return err
		}
		if version.After(observed) {
			return ErrStale
		}
		idx := indexOf(entries, entry.ID)
		if idx < 0 {
			return ErrNotFound
		}
		entries[idx] = *entry
		next := storage.NextVersion(r.now(), version)
		if err := r.file.Rewrite(formatFlatEntries(entries), next); err != nil {
			return err
		}
		entry.UpdatedAt = next
		return nil
	})
}

// Upsert replaces or appends the row without a version check. It keeps the
// flat list in step when another store is authoritative.
func (r *FlatSignoffRepository) Upsert(ctx context.Context, entry *models.SignoffEntry) error {
	return r.withLock(func() error {
		entries, version, err := r.load()
		if err != nil {
			return err
		}
		if idx := indexOf(entries, entry.ID); idx >= 0 {
			entries[idx] = *entry
		} else {
			entries = append(entries, *entry)
		}
		return r.file.Rewrite(formatFlatEntries(entries), storage.NextVersion(r.now(), version))
	})
}

// List returns rows newest first, which is reverse file order.
func (r *FlatSignoffRepository) List(ctx context.Context, filter models.SignoffFilter) ([]models.SignoffEntry, error) {
	entries, _, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.SignoffEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if !matchesFilter(&entries[i], filter) {
			continue
		}
		out = append(out, entries[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *FlatSignoffRepository) withLock(fn func() error) error {
	lock, err := filelock.TryAcquire(r.file.Path())
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}

func (r *FlatSignoffRepository) load() ([]models.SignoffEntry, time.Time, error) {
	version, err := r.file.ModTime()
	if err != nil {
		return nil, time.Time{}, err
	}
	version = version.UTC()
	lines, err := r.file.ReadLines()
	if err != nil {
		return nil, time.Time{}, err
	}
	entries := make([]models.SignoffEntry, 0, len(lines))
	for n, line := range lines {
		entry, err := parseFlatEntry(line)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("%s line %d: %w", r.file.Path(), n+1, err)
		}
		entry.CreatedAt = version
		entry.UpdatedAt = version
		entries = append(entries, *entry)
	}
	return entries, version, nil
}

func indexOf(entries []models.SignoffEntry, id models.RevisionID) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func matchesFilter(e *models.SignoffEntry, filter models.SignoffFilter) bool {
	if filter.Obsid > 0 && e.ID.Obsid != filter.Obsid {
		return false
	}
	cells := []models.ColumnStatus{e.General, e.ACIS, e.ACISSI, e.HRCSI, e.Verification}
	if filter.PendingOnly {
		pending := false
		for _, c := range cells {
			if c.State == models.StatePending {
				pending = true
				break
			}
		}
		if !pending {
			return false
		}
	}
	if filter.Signer != "" {
		for _, c := range cells {
			if c.State == models.StateSigned && c.Signer == filter.Signer {
				return true
			}
		}
		return false
	}
	return true
}

func formatFlatEntries(entries []models.SignoffEntry) []string {
	lines := make([]string, 0, len(entries))
	for i := range entries {
		lines = append(lines, formatFlatEntry(&entries[i]))
	}
	return lines
}

func formatFlatEntry(e *models.SignoffEntry) string {
	return strings.Join([]string{
		e.ID.String(),
		formatCell(e.General),
		formatCell(e.ACIS),
		formatCell(e.ACISSI),
		formatCell(e.HRCSI),
		formatCell(e.Verification),
		e.SeqNbr,
		e.Submitter,
		string(e.Mode),
	}, "\t")
}

func formatCell(c models.ColumnStatus) string {
	switch c.State {
	case models.StatePending:
		return cellPending
	case models.StateSigned:
		if c.Date == nil {
			return c.Signer
		}
		return c.Signer + " " + c.Date.UTC().Format(time.RFC3339Nano)
	default:
		return cellNA
	}
}

func parseFlatEntry(line string) (*models.SignoffEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != flatFieldCount && len(fields) != legacyFieldCount {
		return nil, fmt.Errorf("expected %d fields, got %d", flatFieldCount, len(fields))
	}
	id, err := models.ParseRevisionID(fields[0])
	if err != nil {
		return nil, err
	}
	entry := &models.SignoffEntry{ID: id, SeqNbr: fields[6], Submitter: fields[7]}
	if len(fields) == flatFieldCount {
		entry.Mode = models.SubmissionMode(fields[8])
	}
	cells := []*models.ColumnStatus{&entry.General, &entry.ACIS, &entry.ACISSI, &entry.HRCSI, &entry.Verification}
	for i, cell := range cells {
		parsed, err := parseCell(fields[i+1])
		if err != nil {
			return nil, err
		}
		*cell = parsed
	}
	return entry, nil
}

func parseCell(raw string) (models.ColumnStatus, error) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", cellNA:
		return models.NotApplicable(), nil
	case cellPending:
		return models.Pending(), nil
	}
	signer, rawDate, hasDate := strings.Cut(raw, " ")
	if !hasDate {
		return models.ColumnStatus{State: models.StateSigned, Signer: signer}, nil
	}
	date, err := parseLedgerDate(strings.TrimSpace(rawDate))
	if err != nil {
		return models.ColumnStatus{}, err
	}
	return models.Signed(signer, date), nil
}

func parseLedgerDate(raw string) (time.Time, error) {
	for _, layout := range legacyDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognised sign-off date " + raw)
}
