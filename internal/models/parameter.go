package models

import (
	"math"
	"strings"
)

// MaxRank is the fixed capacity of every ranked parameter.
const MaxRank = 10

// OpenSlot marks a slot exposed by an append that the editor has not filled yet.
const OpenSlot = "NEW"

// RankArray holds the per-slot values of a ranked parameter. Unused slots are nil.
type RankArray [MaxRank]any

// InputKind describes how an editor presents a parameter.
type InputKind string

const (
	InputHidden   InputKind = "hidden"
	InputFreeText InputKind = "free-text"
	InputChoice   InputKind = "choice"
)

// ParamGroup tags a parameter with the page section it belongs to.
type ParamGroup string

const (
	GroupGeneral    ParamGroup = "general"
	GroupDither     ParamGroup = "dither"
	GroupTime       ParamGroup = "time"
	GroupRoll       ParamGroup = "roll"
	GroupOther      ParamGroup = "other"
	GroupHRC        ParamGroup = "hrc"
	GroupACIS       ParamGroup = "acis"
	GroupACISWindow ParamGroup = "acis-window"
	GroupRemarks    ParamGroup = "remarks"
	GroupUnused     ParamGroup = "unused"
)

// InstrumentFamily identifies parameters that only make sense for one detector.
type InstrumentFamily string

const (
	FamilyAny  InstrumentFamily = ""
	FamilyACIS InstrumentFamily = "ACIS"
	FamilyHRC  InstrumentFamily = "HRC"
)

// RankGroupName names one of the ranked parameter groups.
type RankGroupName string

const (
	RankTimeWindow RankGroupName = "time"
	RankRoll       RankGroupName = "roll"
	RankACISWindow RankGroupName = "acis-window"
)

// RankGroup describes the parallel arrays sharing one counter.
type RankGroup struct {
	Name     RankGroupName `json:"name"`
	Counter  string        `json:"counter"`
	Primary  string        `json:"primary"`
	Fields   []string      `json:"fields"`
	OpenFlag string        `json:"openFlag"`
	// Companion is reset together with OpenFlag when the group empties.
	Companion string `json:"companion,omitempty"`
}

// ParameterDescriptor is one named observation parameter with its value history.
// Scalars use Original/Current, ranked parameters use OriginalRanks/CurrentRanks.
type ParameterDescriptor struct {
	Name          string           `json:"name"`
	Label         string           `json:"label"`
	InputKind     InputKind        `json:"inputKind"`
	Group         ParamGroup       `json:"group"`
	Family        InstrumentFamily `json:"family,omitempty"`
	Choices       []string         `json:"choices,omitempty"`
	Columns       []SignoffColumn  `json:"columns,omitempty"`
	Ranked        bool             `json:"ranked"`
	RankGroup     RankGroupName    `json:"rankGroup,omitempty"`
	DerivedFrom   string           `json:"derivedFrom,omitempty"`
	Original      any              `json:"original,omitempty"`
	Current       any              `json:"current,omitempty"`
	OriginalRanks RankArray        `json:"originalRanks,omitempty"`
	CurrentRanks  RankArray        `json:"currentRanks,omitempty"`
}

// IsView reports whether the parameter is a convenience view of another one.
func (p *ParameterDescriptor) IsView() bool {
	return p.DerivedFrom != ""
}

// nullTokens are the literal spellings treated as "no value".
var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"null": {},
	"none": {},
}

// IsNullLike reports whether v carries no value: nil, empty or whitespace,
// NA, NULL, None (any case) or a NaN.
func IsNullLike(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		_, ok := nullTokens[strings.ToLower(strings.TrimSpace(t))]
		return ok
	case *string:
		return t == nil || IsNullLike(*t)
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	default:
		return false
	}
}

// IsBlank reports whether v is genuinely empty input: nil, an empty or
// whitespace string, or a NaN. Literal choices such as "NONE" are not blank
// and are stored as given.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case *string:
		return t == nil || strings.TrimSpace(*t) == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	default:
		return false
	}
}

// CountNonNull counts the slots of arr holding a value.
func CountNonNull(arr RankArray) int {
	n := 0
	for _, v := range arr {
		if !IsNullLike(v) {
			n++
		}
	}
	return n
}

// CountLeading counts the non-null slots before the first null.
func CountLeading(arr RankArray) int {
	for i, v := range arr {
		if IsNullLike(v) {
			return i
		}
	}
	return MaxRank
}
