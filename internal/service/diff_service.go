package service

import (
	"strconv"
	"strings"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

// DiffService builds change sets from an edited snapshot.
type DiffService struct{}

// NewDiffService constructs a DiffService.
func NewDiffService() *DiffService {
	return &DiffService{}
}

// Changes lists every parameter whose requested value differs from the value
// held when editing began. Views, hidden bookkeeping fields and rank counters
// are excluded; ranked parameters are compared slot by slot.
func (s *DiffService) Changes(snap *models.ObservationSnapshot) models.ChangeSet {
	set := models.ChangeSet{Changes: make([]models.FieldChange, 0)}
	if snap == nil {
		return set
	}
	for _, name := range snap.Names() {
		p, ok := snap.Param(name)
		if !ok || p.IsView() || p.InputKind == models.InputHidden {
			continue
		}
		category := categoryFor(p.Group)
		if !p.Ranked {
			if Match(p.Original, p.Current) {
				continue
			}
			set.Changes = append(set.Changes, models.FieldChange{
				Name:     p.Name,
				Rank:     -1,
				Old:      models.FormatValue(p.Original),
				New:      models.FormatValue(p.Current),
				Category: category,
				Columns:  p.Columns,
			})
			continue
		}
		oldCount, newCount := rankCounts(snap, p.RankGroup)
		matches := MatchRanked(p.OriginalRanks, p.CurrentRanks, oldCount, newCount)
		for slot, same := range matches {
			if same {
				continue
			}
			set.Changes = append(set.Changes, models.FieldChange{
				Name:     p.Name,
				Rank:     slot,
				Old:      models.FormatValue(p.OriginalRanks[slot]),
				New:      models.FormatValue(p.CurrentRanks[slot]),
				Category: category,
				Columns:  p.Columns,
			})
		}
	}
	orig, cur := snap.Instrument()
	from, to := models.FamilyOf(orig), models.FamilyOf(cur)
	if from != to && from != models.FamilyAny && to != models.FamilyAny {
		set.ACISNullified = from == models.FamilyACIS
		set.HRCNullified = from == models.FamilyHRC
	}
	return set
}

// rankCounts returns the original and current counters of a ranked group.
func rankCounts(snap *models.ObservationSnapshot, group models.RankGroupName) (int, int) {
	g, ok := rankGroups[group]
	if !ok {
		return 0, 0
	}
	counter, ok := snap.Param(g.Counter)
	if !ok {
		primary, found := snap.Param(g.Primary)
		if !found {
			return 0, 0
		}
		return models.CountLeading(primary.OriginalRanks), models.CountNonNull(primary.CurrentRanks)
	}
	return rankCount(counter.Original), rankCount(counter.Current)
}

// rankCount reads a counter value, clamped to [0, MaxRank].
func rankCount(v any) int {
	switch t := v.(type) {
	case int:
		return clampRank(t)
	case int64:
		return clampRank(int(t))
	case float64:
		return clampRank(int(t))
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return clampRank(n)
	default:
		return 0
	}
}
