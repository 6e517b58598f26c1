package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

func TestCatalogBuildPopulatesBothSlots(t *testing.T) {
	snap := buildSnapshot(t, acisRaw())

	assert.Equal(t, 12345, snap.Obsid)
	assert.True(t, snap.Editable())
	assert.Equal(t, fixedNow, snap.FetchedAt)
	assert.Equal(t, 10.0, snap.Original("ra"))
	assert.Equal(t, snap.Original("ra"), snap.Current("ra"))
	assert.Equal(t, "00:40:00.0000", snap.Current("ra_hms"))
	assert.Equal(t, "+41:00:00.0000", snap.Original("dec_dms"))
	assert.Equal(t, 8.0, snap.Current("y_amp_asec"))
	assert.Equal(t, 2, snap.Current("time_ordr"))
	assert.Equal(t, 0, snap.Current("roll_ordr"))

	p, ok := snap.Param("tstart")
	require.True(t, ok)
	assert.True(t, p.Ranked)
	assert.Equal(t, p.OriginalRanks, p.CurrentRanks)
	assert.Equal(t, []models.SignoffColumn{models.ColumnGeneral}, p.Columns)

	chip, ok := snap.Param("chip")
	require.True(t, ok)
	assert.Equal(t, []models.SignoffColumn{models.ColumnACIS, models.ColumnACISSI}, chip.Columns)
}

func TestCatalogBuildErrors(t *testing.T) {
	catalog := newTestCatalog(acisRaw())

	_, err := catalog.Build(context.Background(), 99999)
	require.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = catalog.Build(context.Background(), 0)
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	broken := NewCatalogService(&stubObservationSource{err: errors.New("connection reset")}, nil)
	_, err = broken.Build(context.Background(), 12345)
	require.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestCatalogEditViewsWriteThroughToSource(t *testing.T) {
	catalog := newTestCatalog(acisRaw())
	snap := buildSnapshot(t, acisRaw())

	require.NoError(t, catalog.EditField(snap, "ra_hms", "00:41:00"))
	assert.Equal(t, 10.25, snap.Current("ra"))
	assert.Equal(t, "00:41:00.0000", snap.Current("ra_hms"))
	assert.Equal(t, "00:40:00.0000", snap.Original("ra_hms"))

	require.NoError(t, catalog.EditField(snap, "dec", "-00:30:00"))
	assert.Equal(t, -0.5, snap.Current("dec"))
	assert.Equal(t, "-00:30:00.0000", snap.Current("dec_dms"))

	require.NoError(t, catalog.EditField(snap, "y_amp_asec", 16))
	assert.InDelta(t, 0.00444444, snap.Current("y_amp"), 1e-8)

	require.NoError(t, catalog.EditField(snap, "targname", "NA"))
	assert.Nil(t, snap.Current("targname"))
	assert.Equal(t, "M31 Nucleus", snap.Original("targname"))
}

func TestCatalogEditRejectsBookkeepingFields(t *testing.T) {
	catalog := newTestCatalog(acisRaw())
	snap := buildSnapshot(t, acisRaw())

	require.True(t, errors.Is(catalog.EditField(snap, "time_ordr", 5), appErrors.ErrValidation))
	require.True(t, errors.Is(catalog.EditField(snap, "tstart", "x"), appErrors.ErrValidation))
	require.True(t, errors.Is(catalog.EditField(snap, "no_such_field", "x"), appErrors.ErrValidation))
	require.True(t, errors.Is(catalog.EditField(snap, "y_amp", "wide"), appErrors.ErrValidation))
	require.True(t, errors.Is(catalog.EditRank(snap, "tstart", models.MaxRank, "x"), appErrors.ErrValidation))

	require.NoError(t, catalog.EditRank(snap, "tstart", 1, "2026-06-02T00:00:00Z"))
	p, _ := snap.Param("tstart")
	assert.Equal(t, "2026-06-02T00:00:00Z", p.CurrentRanks[1])
	assert.Equal(t, "2026-06-01T00:00:00Z", p.OriginalRanks[1])
}

func TestCatalogEditKeepsLiteralNoneChoice(t *testing.T) {
	raw := acisRaw()
	raw.Fields["grating"] = "HETG"
	catalog := newTestCatalog(raw)
	snap := buildSnapshot(t, raw)

	require.NoError(t, catalog.EditField(snap, "grating", "NONE"))
	assert.Equal(t, "NONE", snap.Current("grating"))

	var row models.ParameterListing
	for _, r := range Listing(snap) {
		if r.Name == "grating" {
			row = r
		}
	}
	assert.Equal(t, "HETG", row.Original)
	assert.Equal(t, "NONE", row.Requested)

	changes := NewDiffService().Changes(snap)
	found := false
	for _, c := range changes.Changes {
		if c.Name == "grating" {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, catalog.EditField(snap, "grating", "  "))
	assert.Nil(t, snap.Current("grating"))
	require.NoError(t, catalog.EditRank(snap, "tstart", 1, ""))
	p, ok := snap.Param("tstart")
	require.True(t, ok)
	assert.Nil(t, p.CurrentRanks[1])

	fresh := buildSnapshot(t, acisRaw())
	assert.Equal(t, "NONE", fresh.Original("grating"))
}
