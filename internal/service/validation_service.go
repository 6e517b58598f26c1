package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

const (
	defaultShiftThreshold = 0.1333
	defaultNearTermWindow = 10 * 24 * time.Hour
)

// timeLayouts are the window-constraint formats accepted from the source and
// from editors.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006:002:15:04:05",
	"Jan 2 2006 3:04PM",
	"Jan _2 2006  3:04PM",
	"Jan 2 2006 15:04",
}

// ValidationService runs the static rule tables and the derived business
// rules over an edited snapshot.
type ValidationService struct {
	rules     models.RuleTable
	threshold float64
	nearTerm  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// ValidationServiceOption configures the validator.
type ValidationServiceOption func(*ValidationService)

// WithShiftThreshold sets the coordinate shift, in degrees, that requires approval.
func WithShiftThreshold(deg float64) ValidationServiceOption {
	return func(s *ValidationService) {
		if deg > 0 {
			s.threshold = deg
		}
	}
}

// WithNearTermWindow sets how close a scheduled date triggers the near-term warning.
func WithNearTermWindow(d time.Duration) ValidationServiceOption {
	return func(s *ValidationService) {
		if d > 0 {
			s.nearTerm = d
		}
	}
}

// WithValidationClock overrides the validator clock.
func WithValidationClock(now func() time.Time) ValidationServiceOption {
	return func(s *ValidationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewValidationService constructs the validator around a loaded rule table.
func NewValidationService(rules *models.RuleTable, logger *zap.Logger, opts ...ValidationServiceOption) *ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ValidationService{
		threshold: defaultShiftThreshold,
		nearTerm:  defaultNearTermWindow,
		now:       time.Now,
		logger:    logger,
	}
	if rules != nil {
		svc.rules = *rules
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Validate annotates the snapshot with advisory warnings. An instrument change
// across detector families also nulls every requested value exclusive to the
// vacated family.
func (s *ValidationService) Validate(snap *models.ObservationSnapshot) *models.ValidationReport {
	report := &models.ValidationReport{Warnings: make([]models.Warning, 0)}
	if snap == nil {
		return report
	}
	s.checkInstrument(snap, report)
	s.checkCoordinates(snap, report)
	s.checkTargetAndGrating(snap, report)
	s.checkRanges(snap, report)
	s.checkGroups(snap, report)
	s.checkExclusive(snap, report)
	s.checkTimeOrder(snap, report)
	s.checkInstrumentRequirements(snap, report)
	s.checkSchedule(snap, report)
	return report
}

func (s *ValidationService) checkInstrument(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	orig, cur := snap.Instrument()
	if cur == "" || Match(orig, cur) {
		return
	}
	from, to := models.FamilyOf(orig), models.FamilyOf(cur)
	if from == to || from == models.FamilyAny || to == models.FamilyAny {
		report.Add(models.WarnInstrumentChange, fmt.Sprintf("Instrument changed from %s to %s.", orig, cur))
		return
	}
	for _, p := range snap.Params {
		if p.Family != from {
			continue
		}
		if p.Ranked {
			p.CurrentRanks = models.RankArray{}
			continue
		}
		p.Current = nil
	}
	report.MandatoryApproval = true
	report.Nullified = from
	report.Add(models.WarnInstrumentChange, fmt.Sprintf(
		"Instrument changed from %s to %s: all %s parameters were nullified. This change requires CDO approval.",
		orig, cur, from))
}

func (s *ValidationService) checkCoordinates(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	ra, raOK := snap.Param("ra")
	dec, decOK := snap.Param("dec")
	if !raOK || !decOK {
		return
	}
	ra0, ok1 := toFloat(ra.Original)
	ra1, ok2 := toFloat(ra.Current)
	dec0, ok3 := toFloat(dec.Original)
	dec1, ok4 := toFloat(dec.Current)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return
	}
	shift := math.Hypot(ra1-ra0, dec1-dec0)
	report.CoordinateShift = shift
	if shift > s.threshold {
		report.MandatoryApproval = true
		report.Add(models.WarnCoordinateShift, fmt.Sprintf(
			"Coordinates moved by %.4f deg (limit %.4f deg). This change requires CDO approval.", shift, s.threshold))
	}
}

func (s *ValidationService) checkTargetAndGrating(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	if !Match(snap.Original("targname"), snap.Current("targname")) {
		report.Add(models.WarnTargetName, fmt.Sprintf("Target name changed from %q to %q.",
			models.FormatValue(snap.Original("targname")), models.FormatValue(snap.Current("targname"))))
	}
	if !Match(snap.Original("grating"), snap.Current("grating")) {
		report.MandatoryApproval = true
		report.Add(models.WarnGrating, fmt.Sprintf("Grating changed from %s to %s. This change requires CDO approval.",
			models.FormatValue(snap.Original("grating")), models.FormatValue(snap.Current("grating"))))
	}
}

func (s *ValidationService) checkRanges(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	for _, name := range sortedKeys(s.rules.Ranges) {
		p, ok := snap.Param(name)
		if !ok || p.Ranked {
			continue
		}
		if msg := rangeViolation(p.Name, p.Current, s.rules.Ranges[name]); msg != "" {
			report.Add(models.WarnRange, msg)
		}
	}
	for _, name := range sortedKeys(s.rules.RankedRanges) {
		p, ok := snap.Param(name)
		if !ok || !p.Ranked {
			continue
		}
		for slot, v := range p.CurrentRanks {
			if msg := rangeViolation(fmt.Sprintf("%s (rank %d)", p.Name, slot+1), v, s.rules.RankedRanges[name]); msg != "" {
				report.Add(models.WarnRange, msg)
			}
		}
	}
}

func rangeViolation(label string, v any, r models.Range) string {
	if models.IsNullLike(v) || v == models.OpenSlot {
		return ""
	}
	f, ok := toFloat(v)
	if !ok {
		return fmt.Sprintf("%s must be numeric, got %q.", label, models.FormatValue(v))
	}
	if !r.Contains(f) {
		return fmt.Sprintf("%s = %s is outside the range [%s, %s].", label,
			models.FormatValue(v), models.FormatValue(r.Min), models.FormatValue(r.Max))
	}
	return ""
}

func (s *ValidationService) checkGroups(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	for _, group := range s.rules.Groups {
		values := make([]any, len(group))
		for i, name := range group {
			values[i] = snap.Current(name)
		}
		if missing := missingMembers(group, values); len(missing) > 0 {
			report.Add(models.WarnGrouped, fmt.Sprintf("%s must also be set when any of %s is set.",
				strings.Join(missing, ", "), strings.Join(group, ", ")))
		}
	}
	for _, group := range s.rules.RankedGroups {
		for slot := 0; slot < models.MaxRank; slot++ {
			values := make([]any, len(group))
			for i, name := range group {
				if p, ok := snap.Param(name); ok && p.Ranked {
					values[i] = p.CurrentRanks[slot]
				}
			}
			if missing := missingMembers(group, values); len(missing) > 0 {
				report.Add(models.WarnGrouped, fmt.Sprintf("Rank %d: %s must also be set when any of %s is set.",
					slot+1, strings.Join(missing, ", "), strings.Join(group, ", ")))
			}
		}
	}
}

func missingMembers(names []string, values []any) []string {
	var missing []string
	anySet := false
	for i, v := range values {
		if models.IsNullLike(v) || v == models.OpenSlot {
			missing = append(missing, names[i])
			continue
		}
		anySet = true
	}
	if !anySet {
		return nil
	}
	return missing
}

func (s *ValidationService) checkExclusive(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	for _, pair := range s.rules.Exclusive {
		var set []string
		for _, name := range pair {
			if isEngaged(snap.Current(name)) {
				set = append(set, name)
			}
		}
		if len(set) > 1 {
			report.Add(models.WarnExclusive, fmt.Sprintf("Only one of %s may be set.", strings.Join(set, ", ")))
		}
	}
}

// isEngaged treats null and the "off" choices as not set.
func isEngaged(v any) bool {
	if models.IsNullLike(v) {
		return false
	}
	switch strings.ToUpper(strings.TrimSpace(models.FormatValue(v))) {
	case "N", "NO", "NONE":
		return false
	}
	return true
}

func (s *ValidationService) checkTimeOrder(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	start, ok1 := snap.Param("tstart")
	stop, ok2 := snap.Param("tstop")
	if !ok1 || !ok2 {
		return
	}
	for slot := 0; slot < models.MaxRank; slot++ {
		a, b := start.CurrentRanks[slot], stop.CurrentRanks[slot]
		if models.IsNullLike(a) || models.IsNullLike(b) {
			continue
		}
		ta, errA := parseTimeValue(a)
		tb, errB := parseTimeValue(b)
		switch {
		case errA != nil || errB != nil:
			report.Add(models.WarnTimeOrder, fmt.Sprintf("Rank %d: time window bounds could not be read (%s, %s).",
				slot+1, models.FormatValue(a), models.FormatValue(b)))
		case !ta.Before(tb):
			report.Add(models.WarnTimeOrder, fmt.Sprintf("Rank %d: window start %s must precede stop %s.",
				slot+1, models.FormatValue(a), models.FormatValue(b)))
		}
	}
}

func parseTimeValue(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	raw := strings.TrimSpace(models.FormatValue(v))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}

func (s *ValidationService) checkInstrumentRequirements(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	_, cur := snap.Instrument()
	switch models.FamilyOf(cur) {
	case models.FamilyACIS:
		efficient := strings.EqualFold(models.FormatValue(snap.Current("most_efficient")), "Y")
		frameSet := !models.IsNullLike(snap.Current("frame_time"))
		switch {
		case efficient && frameSet:
			report.Add(models.WarnFrameTime, "Frame time must be empty when most efficient is Y.")
		case !efficient && !frameSet:
			report.Add(models.WarnFrameTime, "Frame time is required when most efficient is not Y.")
		}
	case models.FamilyHRC:
		if models.IsNullLike(snap.Current("hrc_si_mode")) {
			report.Add(models.WarnHRCSIMode, "HRC SI mode is required for HRC observations.")
		}
	}
}

func (s *ValidationService) checkSchedule(snap *models.ObservationSnapshot, report *models.ValidationReport) {
	if snap.ScheduledAt != nil {
		until := snap.ScheduledAt.Sub(s.now())
		if until >= 0 && until <= s.nearTerm {
			report.Add(models.WarnNearTerm, fmt.Sprintf("Observation is scheduled within %d days (%s).",
				int(math.Ceil(s.nearTerm.Hours()/24)), snap.ScheduledAt.UTC().Format("2006-01-02 15:04")))
		}
	}
	if snap.OnActiveSchedule {
		report.Add(models.WarnActiveSchedule, "Observation is on the active OR list; the scheduler must be notified.")
	}
}

func sortedKeys(m map[string]models.Range) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
