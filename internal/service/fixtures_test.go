package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/repository"
)

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type stubObservationSource struct {
	raw *models.RawObservation
	err error
}

func (s *stubObservationSource) Fetch(_ context.Context, obsid int) (*models.RawObservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.raw == nil || s.raw.Obsid != obsid {
		return nil, sql.ErrNoRows
	}
	return s.raw, nil
}

func acisRaw() *models.RawObservation {
	return &models.RawObservation{
		Obsid:  12345,
		SeqNbr: "500123",
		Status: models.StatusScheduled,
		Fields: map[string]any{
			"targname":       "M31 Nucleus",
			"instrument":     models.InstrumentACISI,
			"grating":        "NONE",
			"ra":             10.0,
			"dec":            41.0,
			"y_amp":          0.00222222,
			"dither_flag":    "Y",
			"exp_mode":       "TE",
			"most_efficient": "Y",
			"window_flag":    "Y",
			"roll_flag":      "N",
			"spwindow_flag":  "N",
			"comments":       "original comment",
		},
		RankedFields: map[string]models.RankArray{
			"window_constraint": {"Y", "Y"},
			"tstart":            {"2026-05-01T00:00:00Z", "2026-06-01T00:00:00Z"},
			"tstop":             {"2026-05-03T00:00:00Z", "2026-06-03T00:00:00Z"},
		},
		RelatedObsids: []int{12346},
	}
}

func newTestCatalog(raw *models.RawObservation) *CatalogService {
	return NewCatalogService(&stubObservationSource{raw: raw}, nil, WithCatalogClock(func() time.Time { return fixedNow }))
}

func buildSnapshot(t *testing.T, raw *models.RawObservation) *models.ObservationSnapshot {
	t.Helper()
	snap, err := newTestCatalog(raw).Build(context.Background(), raw.Obsid)
	require.NoError(t, err)
	return snap
}

// memoryRevisionStore keeps artifacts in memory.
type memoryRevisionStore struct {
	mu        sync.Mutex
	records   map[models.RevisionID]*models.RevisionRecord
	bodies    map[models.RevisionID][]byte
	reserved  map[models.RevisionID]bool
	createErr []error
}

func newMemoryRevisionStore(existing ...models.RevisionID) *memoryRevisionStore {
	s := &memoryRevisionStore{
		records:  make(map[models.RevisionID]*models.RevisionRecord),
		bodies:   make(map[models.RevisionID][]byte),
		reserved: make(map[models.RevisionID]bool),
	}
	for _, id := range existing {
		s.records[id] = &models.RevisionRecord{ID: id}
		s.bodies[id] = []byte{}
	}
	return s
}

func (s *memoryRevisionStore) Numbers(_ context.Context, obsid int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revs := make([]int, 0)
	for id := range s.records {
		if id.Obsid == obsid {
			revs = append(revs, id.Rev)
		}
	}
	for id := range s.reserved {
		if id.Obsid == obsid {
			revs = append(revs, id.Rev)
		}
	}
	sort.Ints(revs)
	return revs, nil
}

func (s *memoryRevisionStore) Create(_ context.Context, record *models.RevisionRecord, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.createErr) > 0 {
		err := s.createErr[0]
		s.createErr = s.createErr[1:]
		if err == repository.ErrArtifactExists {
			s.records[record.ID] = &models.RevisionRecord{ID: record.ID}
		} else {
			s.reserved[record.ID] = true
		}
		return err
	}
	if _, ok := s.records[record.ID]; ok {
		return repository.ErrArtifactExists
	}
	copied := *record
	s.records[record.ID] = &copied
	s.bodies[record.ID] = append([]byte(nil), body...)
	return nil
}

func (s *memoryRevisionStore) Get(_ context.Context, id models.RevisionID) (*models.RevisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return record, nil
}

func (s *memoryRevisionStore) Raw(_ context.Context, id models.RevisionID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.bodies[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return body, nil
}

func (s *memoryRevisionStore) IDs(_ context.Context) ([]models.RevisionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]models.RevisionID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Obsid != ids[j].Obsid {
			return ids[i].Obsid < ids[j].Obsid
		}
		return ids[i].Rev < ids[j].Rev
	})
	return ids, nil
}

type recordingNotifier struct {
	sent []models.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, note models.Notification) error {
	n.sent = append(n.sent, note)
	return n.err
}
