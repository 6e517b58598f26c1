package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

func TestNotifyStampsAndDispatches(t *testing.T) {
	var got []models.Notification
	svc := NewNotificationService(DispatcherFunc(func(_ context.Context, n models.Notification) error {
		got = append(got, n)
		return nil
	}), nil)

	require.NoError(t, svc.Notify(context.Background(), models.Notification{Kind: models.NotifyRevision}))
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())

	require.NoError(t, svc.Notify(context.Background(), models.Notification{ID: "fixed", CreatedAt: fixedNow}))
	assert.Equal(t, "fixed", got[1].ID)
	assert.True(t, fixedNow.Equal(got[1].CreatedAt))
}

func TestNotifyWrapsDispatchError(t *testing.T) {
	boom := errors.New("smtp down")
	svc := NewNotificationService(DispatcherFunc(func(context.Context, models.Notification) error {
		return boom
	}), nil)

	err := svc.Notify(context.Background(), models.Notification{ID: "n1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "n1")
}

func TestLogDispatcherIsDefault(t *testing.T) {
	svc := NewNotificationService(nil, nil)
	assert.NoError(t, svc.Notify(context.Background(), models.Notification{Kind: models.NotifyRemoval}))
}

func TestRevisionNoticeRoutes(t *testing.T) {
	catalog := newTestCatalog(acisRaw())
	snap := buildSnapshot(t, acisRaw())
	require.NoError(t, catalog.EditField(snap, "instrument", models.InstrumentHRCI))
	report := newTestValidator().Validate(snap)
	record := &models.RevisionRecord{
		ID:         models.RevisionID{Obsid: 12345, Rev: 4},
		User:       "jdoe",
		Mode:       models.ModeNormal,
		TargetName: "M31 Nucleus",
		Changes:    NewDiffService().Changes(snap),
		Warnings:   report.Messages(),
	}

	n := RevisionNotice(record, snap, report)
	assert.Equal(t, models.NotifyRevision, n.Kind)
	assert.Equal(t, []int{12346}, n.RelatedObsids)
	assert.True(t, n.Routes.Mandatory)
	assert.False(t, n.Routes.Removal)
	assert.Contains(t, n.Summary, "12345.004 (M31 Nucleus) by jdoe")
	assert.Contains(t, n.Summary, "ALL ACIS PARAMETERS WERE NULLIFIED")
	assert.Contains(t, n.Summary, "WARNING: ")

	record.Mode = models.ModeRemove
	assert.True(t, RevisionNotice(record, nil, nil).Routes.Removal)
}
