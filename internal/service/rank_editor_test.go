package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

func TestRemoveRankDoesNotCompact(t *testing.T) {
	catalog := newTestCatalog(acisRaw())
	snap := buildSnapshot(t, acisRaw())
	editor := NewRankEditor()

	// Slots 0 and 1 hold values and slot 2 is empty. The user clears the
	// primary at slot 0 and removes that rank.
	require.NoError(t, catalog.EditRank(snap, "window_constraint", 0, nil))
	count, err := editor.RemoveRank(snap, models.RankTimeWindow, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, snap.Current("time_ordr"))

	for _, name := range []string{"window_constraint", "tstart", "tstop"} {
		p, _ := snap.Param(name)
		assert.Nil(t, p.CurrentRanks[0], name)
		assert.NotNil(t, p.CurrentRanks[1], "%s slot 1 is not shifted down", name)
	}
	assert.Equal(t, "Y", snap.Current("window_flag"))
}

func TestRemoveRankKeepsOccupiedSlot(t *testing.T) {
	snap := buildSnapshot(t, acisRaw())
	count, err := NewRankEditor().RemoveRank(snap, models.RankTimeWindow, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	p, _ := snap.Param("tstart")
	assert.NotNil(t, p.CurrentRanks[1])

	_, err = NewRankEditor().RemoveRank(snap, models.RankTimeWindow, 10)
	require.Error(t, err)
	_, err = NewRankEditor().RemoveRank(snap, "bogus", 0)
	require.Error(t, err)
}

func TestAppendRankOpensGroupAndCaps(t *testing.T) {
	snap := buildSnapshot(t, acisRaw())
	editor := NewRankEditor()

	n, err := editor.AppendRank(snap, models.RankACISWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Y", snap.Current("spwindow_flag"))
	assert.Equal(t, "Y", snap.Current("aciswin_open"))
	chip, _ := snap.Param("chip")
	assert.Equal(t, models.OpenSlot, chip.CurrentRanks[0])

	for i := 0; i < 15; i++ {
		n, err = editor.AppendRank(snap, models.RankACISWindow)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, models.MaxRank)
	}
	assert.Equal(t, models.MaxRank, n)
	assert.Equal(t, models.MaxRank, snap.Current("aciswin_ordr"))
}

func TestSweepClearsOpenSlotsAndClosesEmptyGroup(t *testing.T) {
	catalog := newTestCatalog(acisRaw())
	snap := buildSnapshot(t, acisRaw())
	editor := NewRankEditor()

	_, err := editor.AppendRank(snap, models.RankACISWindow)
	require.NoError(t, err)

	require.NoError(t, catalog.EditRank(snap, "window_constraint", 0, nil))
	require.NoError(t, catalog.EditRank(snap, "window_constraint", 1, "NA"))

	editor.Sweep(snap)

	chip, _ := snap.Param("chip")
	assert.Nil(t, chip.CurrentRanks[0])
	assert.Equal(t, 0, snap.Current("aciswin_ordr"))
	assert.Equal(t, "N", snap.Current("spwindow_flag"))
	assert.Equal(t, "N", snap.Current("aciswin_open"))

	tstart, _ := snap.Param("tstart")
	assert.Nil(t, tstart.CurrentRanks[0])
	assert.Nil(t, tstart.CurrentRanks[1])
	assert.Equal(t, 0, snap.Current("time_ordr"))
	assert.Equal(t, "N", snap.Current("window_flag"))
}

func TestSweepOpensGroupFilledBySlotEdits(t *testing.T) {
	catalog := newTestCatalog(acisRaw())
	snap := buildSnapshot(t, acisRaw())
	require.Equal(t, "N", snap.Current("roll_flag"))

	require.NoError(t, catalog.EditRank(snap, "roll_constraint", 0, "Y"))
	require.NoError(t, catalog.EditRank(snap, "roll", 0, "90"))
	NewRankEditor().Sweep(snap)

	assert.Equal(t, 1, snap.Current("roll_ordr"))
	assert.Equal(t, "Y", snap.Current("roll_flag"))
}
