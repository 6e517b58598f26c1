package models

import (
	"sort"
	"strings"
	"time"
)

// ObservationStatus is the lifecycle state reported by the authoritative source.
type ObservationStatus string

const (
	StatusUnobserved  ObservationStatus = "unobserved"
	StatusScheduled   ObservationStatus = "scheduled"
	StatusUntriggered ObservationStatus = "untriggered"
	StatusObserved    ObservationStatus = "observed"
	StatusArchived    ObservationStatus = "archived"
	StatusCanceled    ObservationStatus = "canceled"
	StatusDiscarded   ObservationStatus = "discarded"
)

// Editable reports whether revisions may still be submitted in this state.
func (s ObservationStatus) Editable() bool {
	switch ObservationStatus(strings.ToLower(string(s))) {
	case StatusUnobserved, StatusScheduled, StatusUntriggered:
		return true
	default:
		return false
	}
}

// Instrument names as stored by the authoritative source.
const (
	InstrumentACISI = "ACIS-I"
	InstrumentACISS = "ACIS-S"
	InstrumentHRCI  = "HRC-I"
	InstrumentHRCS  = "HRC-S"
)

// FamilyOf maps an instrument name onto its detector family.
func FamilyOf(instrument string) InstrumentFamily {
	upper := strings.ToUpper(strings.TrimSpace(instrument))
	switch {
	case strings.HasPrefix(upper, "ACIS"):
		return FamilyACIS
	case strings.HasPrefix(upper, "HRC"):
		return FamilyHRC
	default:
		return FamilyAny
	}
}

// RawObservation is what the authoritative source returns for one obsid.
type RawObservation struct {
	Obsid            int                  `json:"obsid"`
	SeqNbr           string               `json:"seqNbr"`
	Status           ObservationStatus    `json:"status"`
	ScheduledAt      *time.Time           `json:"scheduledAt,omitempty"`
	OnActiveSchedule bool                 `json:"onActiveSchedule"`
	RelatedObsids    []int                `json:"relatedObsids,omitempty"`
	Fields           map[string]any       `json:"fields"`
	RankedFields     map[string]RankArray `json:"rankedFields"`
}

// ObservationSnapshot is the per-request in-memory view of one observation.
// Only the Current/CurrentRanks slots of its parameters are ever edited.
type ObservationSnapshot struct {
	Obsid            int                             `json:"obsid"`
	SeqNbr           string                          `json:"seqNbr"`
	Status           ObservationStatus               `json:"status"`
	ScheduledAt      *time.Time                      `json:"scheduledAt,omitempty"`
	OnActiveSchedule bool                            `json:"onActiveSchedule"`
	RelatedObsids    []int                           `json:"relatedObsids,omitempty"`
	Params           map[string]*ParameterDescriptor `json:"params"`
	Order            []string                        `json:"order"`
	FetchedAt        time.Time                       `json:"fetchedAt"`
}

// Param looks a parameter up by name.
func (s *ObservationSnapshot) Param(name string) (*ParameterDescriptor, bool) {
	p, ok := s.Params[name]
	return p, ok
}

// Original returns the scalar value held when editing began.
func (s *ObservationSnapshot) Original(name string) any {
	if p, ok := s.Params[name]; ok {
		return p.Original
	}
	return nil
}

// Current returns the scalar value as edited.
func (s *ObservationSnapshot) Current(name string) any {
	if p, ok := s.Params[name]; ok {
		return p.Current
	}
	return nil
}

// Instrument returns the original and current instrument names.
func (s *ObservationSnapshot) Instrument() (original, current string) {
	return asText(s.Original("instrument")), asText(s.Current("instrument"))
}

// TargetName returns the original target name.
func (s *ObservationSnapshot) TargetName() string {
	return asText(s.Original("targname"))
}

// Editable reports whether the lifecycle status accepts revisions.
func (s *ObservationSnapshot) Editable() bool {
	return s.Status.Editable()
}

// Names returns parameter names in display order, falling back to sorted keys.
func (s *ObservationSnapshot) Names() []string {
	if len(s.Order) > 0 {
		return s.Order
	}
	names := make([]string, 0, len(s.Params))
	for name := range s.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func asText(v any) string {
	if IsNullLike(v) {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(FormatValue(v))
}
