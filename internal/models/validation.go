package models

import "time"

// WarningCode classifies a validation warning.
type WarningCode string

const (
	WarnRange            WarningCode = "RANGE"
	WarnGrouped          WarningCode = "GROUPED"
	WarnExclusive        WarningCode = "EXCLUSIVE"
	WarnInstrumentChange WarningCode = "INSTRUMENT_CHANGE"
	WarnCoordinateShift  WarningCode = "COORDINATE_SHIFT"
	WarnTargetName       WarningCode = "TARGET_NAME"
	WarnGrating          WarningCode = "GRATING"
	WarnTimeOrder        WarningCode = "TIME_ORDER"
	WarnFrameTime        WarningCode = "FRAME_TIME"
	WarnHRCSIMode        WarningCode = "HRC_SI_MODE"
	WarnNearTerm         WarningCode = "NEAR_TERM"
	WarnActiveSchedule   WarningCode = "ACTIVE_SCHEDULE"
)

// Warning is one advisory annotation. Warnings never block persistence.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// ValidationReport is the ordered output of the validation engine.
type ValidationReport struct {
	Warnings          []Warning `json:"warnings"`
	MandatoryApproval bool      `json:"mandatoryApproval"`
	CoordinateShift   float64   `json:"coordinateShift"`
	// Nullified is the instrument family whose parameters were cleared by an
	// instrument change, or FamilyAny.
	Nullified InstrumentFamily `json:"nullified,omitempty"`
}

// Add appends a warning.
func (r *ValidationReport) Add(code WarningCode, message string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: message})
}

// Has reports whether a warning with code was raised.
func (r *ValidationReport) Has(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Messages returns the warning strings in order.
func (r *ValidationReport) Messages() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Message)
	}
	return out
}

// Routes derives the notification routing flags from the warnings.
func (r *ValidationReport) Routes() RoutingFlags {
	return RoutingFlags{
		Mandatory:       r.MandatoryApproval,
		CoordinateShift: r.Has(WarnCoordinateShift),
		TargetName:      r.Has(WarnTargetName),
		Grating:         r.Has(WarnGrating),
		NearTerm:        r.Has(WarnNearTerm),
		ActiveSchedule:  r.Has(WarnActiveSchedule),
	}
}

// RoutingFlags select which downstream notification routes fire.
type RoutingFlags struct {
	Mandatory       bool `json:"mandatory"`
	CoordinateShift bool `json:"coordinateShift"`
	TargetName      bool `json:"targetName"`
	Grating         bool `json:"grating"`
	NearTerm        bool `json:"nearTerm"`
	ActiveSchedule  bool `json:"activeSchedule"`
	Removal         bool `json:"removal"`
}

// Range is an inclusive numeric bound.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// RuleTable holds the externally configured static validation rules.
type RuleTable struct {
	Ranges       map[string]Range `yaml:"ranges" json:"ranges"`
	RankedRanges map[string]Range `yaml:"ranked_ranges" json:"rankedRanges"`
	Groups       [][]string       `yaml:"groups" json:"groups"`
	RankedGroups [][]string       `yaml:"ranked_groups" json:"rankedGroups"`
	Exclusive    [][]string       `yaml:"exclusive" json:"exclusive"`
}

// ShiftLogEntry records one coordinate move above the approval threshold.
type ShiftLogEntry struct {
	Revision RevisionID `json:"revision"`
	User     string     `json:"user"`
	FromRA   float64    `json:"fromRa"`
	FromDec  float64    `json:"fromDec"`
	ToRA     float64    `json:"toRa"`
	ToDec    float64    `json:"toDec"`
	Shift    float64    `json:"shift"`
	At       time.Time  `json:"at"`
}
