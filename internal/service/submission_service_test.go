package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/dto"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

type recordingShiftLog struct {
	entries []models.ShiftLogEntry
}

func (l *recordingShiftLog) Append(_ context.Context, entry models.ShiftLogEntry) error {
	l.entries = append(l.entries, entry)
	return nil
}

type failingSeeder struct{}

func (failingSeeder) Seed(_ context.Context, _ *models.RevisionRecord) (*models.SignoffEntry, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "ledger unavailable")
}

type submissionFixture struct {
	svc      *SubmissionService
	revs     *memoryRevisionStore
	ledger   *memorySignoffStore
	shifts   *recordingShiftLog
	notifier *recordingNotifier
}

func newSubmissionFixture(raw *models.RawObservation, seeder ledgerSeeder) *submissionFixture {
	f := &submissionFixture{
		revs:     newMemoryRevisionStore(),
		ledger:   newMemorySignoffStore(),
		shifts:   &recordingShiftLog{},
		notifier: &recordingNotifier{},
	}
	if seeder == nil {
		seeder = NewSignoffService(f.ledger, &memoryRegistry{}, nil)
	}
	f.svc = NewSubmissionService(SubmissionDeps{
		Catalog:   newTestCatalog(raw),
		Validator: newTestValidator(),
		Writer:    newTestRevisionService(f.revs, raw),
		Ledger:    seeder,
		Shifts:    f.shifts,
		Notifier:  f.notifier,
	}, nil, nil)
	return f
}

func TestSubmitLargeShiftIsLogged(t *testing.T) {
	f := newSubmissionFixture(acisRaw(), nil)

	res, err := f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{
		Mode:   models.ModeNormal,
		Fields: map[string]any{"ra": 10.2},
	}, "jdoe")
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.False(t, res.Suppressed)
	assert.False(t, res.ReconcileRequired)
	assert.Equal(t, "12345.001", res.Record.ID.String())
	assert.True(t, res.Report.Has(models.WarnCoordinateShift))

	require.Len(t, f.shifts.entries, 1)
	shift := f.shifts.entries[0]
	assert.Equal(t, res.Record.ID, shift.Revision)
	assert.InDelta(t, 10.0, shift.FromRA, 1e-9)
	assert.InDelta(t, 10.2, shift.ToRA, 1e-9)
	assert.InDelta(t, 0.2, shift.Shift, 1e-9)

	require.NotNil(t, res.Entry)
	assert.Equal(t, models.StatePending, res.Entry.General.State)
	assert.Equal(t, models.StatePending, res.Entry.Verification.State)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, models.NotifyRevision, f.notifier.sent[0].Kind)
	assert.True(t, f.notifier.sent[0].Routes.CoordinateShift)
	assert.Equal(t, []int{12346}, f.notifier.sent[0].RelatedObsids)
}

func TestSubmitSmallShiftIsNotLogged(t *testing.T) {
	f := newSubmissionFixture(acisRaw(), nil)

	_, err := f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{
		Mode:   models.ModeNormal,
		Fields: map[string]any{"ra": 10.1},
	}, "jdoe")
	require.NoError(t, err)
	assert.Empty(t, f.shifts.entries)
}

func TestSubmitSuppressedWhenNotEditable(t *testing.T) {
	raw := acisRaw()
	raw.Status = models.StatusObserved
	f := newSubmissionFixture(raw, nil)

	res, err := f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{
		Mode:   models.ModeNormal,
		Fields: map[string]any{"targname": "M31 Core"},
	}, "jdoe")
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.Nil(t, res.Record)
	ids, _ := f.revs.IDs(context.Background())
	assert.Empty(t, ids)
	assert.Empty(t, f.notifier.sent)
}

func TestSubmitLedgerFailureRequiresReconcile(t *testing.T) {
	f := newSubmissionFixture(acisRaw(), failingSeeder{})

	res, err := f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{
		Mode:   models.ModeNormal,
		Fields: map[string]any{"targname": "M31 Core"},
	}, "jdoe")
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.True(t, res.ReconcileRequired)
	assert.Equal(t, "ledger unavailable", res.LedgerError)

	ids, _ := f.revs.IDs(context.Background())
	assert.Equal(t, []models.RevisionID{res.Record.ID}, ids)
	assert.Len(t, f.notifier.sent, 1)
}

func TestSubmitAsIsRejectsEdits(t *testing.T) {
	f := newSubmissionFixture(acisRaw(), nil)

	_, err := f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{
		Mode:   models.ModeAsIs,
		Fields: map[string]any{"targname": "M31 Core"},
	}, "jdoe")
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{Mode: "sideways"}, "jdoe")
	require.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSubmitAsIsSeedsVerifiedEntry(t *testing.T) {
	f := newSubmissionFixture(acisRaw(), nil)

	res, err := f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{Mode: models.ModeAsIs}, "jdoe")
	require.NoError(t, err)
	require.NotNil(t, res.Entry)
	assert.True(t, res.Entry.Approved())
	assert.True(t, res.Record.Changes.Empty())
}

func TestPreviewWritesNothing(t *testing.T) {
	f := newSubmissionFixture(acisRaw(), nil)

	res, err := f.svc.Preview(context.Background(), 12345, dto.SubmitRevisionRequest{
		Mode:   models.ModeNormal,
		Fields: map[string]any{"targname": "M31 Core"},
	})
	require.NoError(t, err)
	names := make([]string, 0, len(res.Changes.Changes))
	for _, ch := range res.Changes.Changes {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"targname"}, names)
	assert.Equal(t, "M31 Core", res.Snapshot.Current("targname"))

	ids, _ := f.revs.IDs(context.Background())
	assert.Empty(t, ids)
	assert.Empty(t, f.notifier.sent)
}

func TestSubmitUnknownFieldIsRejected(t *testing.T) {
	f := newSubmissionFixture(acisRaw(), nil)

	_, err := f.svc.Submit(context.Background(), 12345, dto.SubmitRevisionRequest{
		Mode:   models.ModeNormal,
		Fields: map[string]any{"no_such_field": 1},
	}, "jdoe")
	require.Error(t, err)
	ids, _ := f.revs.IDs(context.Background())
	assert.Empty(t, ids)
}
