package service

import (
	"fmt"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

const (
	flagOpen   = "Y"
	flagClosed = "N"
)

// RankEditor manages the fixed-capacity slots of ranked parameter groups.
// Slots are never shifted: the counter is a count of occupied primary slots.
type RankEditor struct{}

// NewRankEditor constructs a RankEditor.
func NewRankEditor() *RankEditor {
	return &RankEditor{}
}

type rankHandle struct {
	group   models.RankGroup
	counter *models.ParameterDescriptor
	primary *models.ParameterDescriptor
}

func resolveRankGroup(snap *models.ObservationSnapshot, name models.RankGroupName) (*rankHandle, error) {
	g, ok := rankGroups[name]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown rank group %q", name))
	}
	counter, ok := snap.Param(g.Counter)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("rank group %s has no counter", name))
	}
	primary, ok := snap.Param(g.Primary)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("rank group %s has no primary field", name))
	}
	return &rankHandle{group: g, counter: counter, primary: primary}, nil
}

// AppendRank raises the counter by one, capped at MaxRank, and marks the newly
// exposed primary slot as open. It returns the new counter.
func (e *RankEditor) AppendRank(snap *models.ObservationSnapshot, name models.RankGroupName) (int, error) {
	h, err := resolveRankGroup(snap, name)
	if err != nil {
		return 0, err
	}
	count := rankCount(h.counter.Current)
	if count >= models.MaxRank {
		return models.MaxRank, nil
	}
	slot := count
	if !models.IsNullLike(h.primary.CurrentRanks[slot]) {
		slot = firstNullSlot(h.primary.CurrentRanks)
		if slot < 0 {
			h.counter.Current = models.MaxRank
			return models.MaxRank, nil
		}
	}
	h.primary.CurrentRanks[slot] = models.OpenSlot
	h.counter.Current = count + 1
	if count == 0 {
		setFlags(snap, h.group, flagOpen)
	}
	return count + 1, nil
}

// RemoveRank clears every field of the group at slot when the primary field
// there is already null-like, then recounts the occupied primary slots. A slot
// whose primary still holds a value is left untouched.
func (e *RankEditor) RemoveRank(snap *models.ObservationSnapshot, name models.RankGroupName, slot int) (int, error) {
	h, err := resolveRankGroup(snap, name)
	if err != nil {
		return 0, err
	}
	if slot < 0 || slot >= models.MaxRank {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rank slot %d out of range", slot))
	}
	if !models.IsNullLike(h.primary.CurrentRanks[slot]) {
		return rankCount(h.counter.Current), nil
	}
	for _, field := range h.group.Fields {
		if p, ok := snap.Param(field); ok {
			p.CurrentRanks[slot] = nil
		}
	}
	return recount(snap, h), nil
}

// Sweep runs before a submission is diffed. Unfilled open slots become null,
// every slot whose primary field is null but which still carries data is
// removed, and the counters and open flags are recomputed.
func (e *RankEditor) Sweep(snap *models.ObservationSnapshot) {
	for name := range rankGroups {
		h, err := resolveRankGroup(snap, name)
		if err != nil {
			continue
		}
		for slot := 0; slot < models.MaxRank; slot++ {
			if h.primary.CurrentRanks[slot] == models.OpenSlot {
				h.primary.CurrentRanks[slot] = nil
			}
			if !models.IsNullLike(h.primary.CurrentRanks[slot]) {
				continue
			}
			if slotHasData(snap, h, slot) {
				for _, field := range h.group.Fields {
					if p, ok := snap.Param(field); ok {
						p.CurrentRanks[slot] = nil
					}
				}
			}
		}
		recount(snap, h)
	}
}

func slotHasData(snap *models.ObservationSnapshot, h *rankHandle, slot int) bool {
	if !models.IsNullLike(h.primary.OriginalRanks[slot]) {
		return true
	}
	for _, field := range h.group.Fields {
		if p, ok := snap.Param(field); ok && !models.IsNullLike(p.CurrentRanks[slot]) {
			return true
		}
	}
	return false
}

// recount resets the counter, closing the group when it just emptied and
// opening it when it just gained its first slot.
func recount(snap *models.ObservationSnapshot, h *rankHandle) int {
	prev := rankCount(h.counter.Current)
	n := models.CountNonNull(h.primary.CurrentRanks)
	h.counter.Current = n
	switch {
	case n == 0 && prev > 0:
		setFlags(snap, h.group, flagClosed)
	case n > 0 && prev == 0:
		setFlags(snap, h.group, flagOpen)
	}
	return n
}

func setFlags(snap *models.ObservationSnapshot, g models.RankGroup, value string) {
	if p, ok := snap.Param(g.OpenFlag); ok {
		p.Current = value
	}
	if g.Companion == "" {
		return
	}
	if p, ok := snap.Param(g.Companion); ok {
		p.Current = value
	}
}

func firstNullSlot(arr models.RankArray) int {
	for i, v := range arr {
		if models.IsNullLike(v) {
			return i
		}
	}
	return -1
}
