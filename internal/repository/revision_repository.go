package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

const (
	recordDirName     = "json"
	reservationSuffix = ".reserved"
)

// RevisionRepository stores write-once revision artifacts as "<obsid>.<rev>"
// text files, each with a JSON sidecar under json/ holding the structured record.
// "<obsid>.<rev>.reserved" marks a number claimed by a write that did not finish.
type RevisionRepository struct {
	dir string
}

// NewRevisionRepository constructs the artifact store rooted at dir.
func NewRevisionRepository(dir string) *RevisionRepository {
	return &RevisionRepository{dir: dir}
}

// Numbers returns the revision numbers consumed for obsid, ascending. A
// number whose write failed stays reserved and is counted here.
func (r *RevisionRepository) Numbers(ctx context.Context, obsid int) ([]int, error) {
	ids, reserved, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	revs := make([]int, 0)
	for _, id := range append(ids, reserved...) {
		if id.Obsid == obsid {
			revs = append(revs, id.Rev)
		}
	}
	sort.Ints(revs)
	return revs, nil
}

// IDs lists every artifact in the store ordered by obsid then revision.
func (r *RevisionRepository) IDs(ctx context.Context) ([]models.RevisionID, error) {
	ids, _, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	sortRevisionIDs(ids)
	return ids, nil
}

func (r *RevisionRepository) scan(ctx context.Context) ([]models.RevisionID, []models.RevisionID, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.RevisionID{}, []models.RevisionID{}, nil
		}
		return nil, nil, fmt.Errorf("read revisions dir: %w", err)
	}
	ids := make([]models.RevisionID, 0, len(entries))
	reserved := make([]models.RevisionID, 0)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if base, ok := strings.CutSuffix(name, reservationSuffix); ok && isArtifactName(base) {
			if id, err := models.ParseRevisionID(base); err == nil {
				reserved = append(reserved, id)
			}
			continue
		}
		if !isArtifactName(name) {
			continue
		}
		id, err := models.ParseRevisionID(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, reserved, nil
}

func sortRevisionIDs(ids []models.RevisionID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Obsid != ids[j].Obsid {
			return ids[i].Obsid < ids[j].Obsid
		}
		return ids[i].Rev < ids[j].Rev
	})
}

// Create writes the artifact body and its sidecar. Existing artifacts are never
// overwritten. The number is reserved before anything else is written; if a
// later step fails the partial files are removed but the reservation is kept,
// so the number is never handed out again.
func (r *RevisionRepository) Create(ctx context.Context, record *models.RevisionRecord, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create revisions dir: %w", err)
	}
	path := r.artifactPath(record.ID)
	if _, err := os.Stat(path); err == nil {
		return ErrArtifactExists
	}
	reservation := path + reservationSuffix
	if err := writeOnce(reservation, []byte(record.User+"\n")); err != nil {
		return err
	}
	if err := writeOnce(path, body); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("encode revision record: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(r.dir, recordDirName), 0o755); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("create record dir: %w", err)
	}
	if err := writeOnce(r.recordPath(record.ID), payload); err != nil {
		_ = os.Remove(path)
		return err
	}
	// The artifact now counts on its own.
	_ = os.Remove(reservation)
	return nil
}

// Get loads the structured record of an artifact.
func (r *RevisionRepository) Get(ctx context.Context, id models.RevisionID) (*models.RevisionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(r.recordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read revision record: %w", err)
	}
	var record models.RevisionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode revision record %s: %w", id, err)
	}
	return &record, nil
}

// Raw returns the artifact text.
func (r *RevisionRepository) Raw(ctx context.Context, id models.RevisionID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(r.artifactPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read revision artifact: %w", err)
	}
	return body, nil
}

func (r *RevisionRepository) artifactPath(id models.RevisionID) string {
	return filepath.Join(r.dir, id.String())
}

func (r *RevisionRepository) recordPath(id models.RevisionID) string {
	return filepath.Join(r.dir, recordDirName, id.String()+".json")
}

// writeOnce creates path exclusively and removes it again on a short write.
func writeOnce(path string, body []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrArtifactExists
		}
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// isArtifactName accepts "<digits>.<digits>".
func isArtifactName(name string) bool {
	obsid, rev, ok := strings.Cut(name, ".")
	if !ok || obsid == "" || rev == "" {
		return false
	}
	if _, err := strconv.Atoi(obsid); err != nil {
		return false
	}
	_, err := strconv.Atoi(rev)
	return err == nil
}
