package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

// ObservationSource is the read-only authoritative parameter source.
type ObservationSource interface {
	Fetch(ctx context.Context, obsid int) (*models.RawObservation, error)
}

// CatalogService wraps raw observation fields as parameter descriptors.
type CatalogService struct {
	source  ObservationSource
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// CatalogServiceOption configures the catalog.
type CatalogServiceOption func(*CatalogService)

// WithCatalogClock overrides the clock used to stamp snapshots.
func WithCatalogClock(now func() time.Time) CatalogServiceOption {
	return func(s *CatalogService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCatalogMetrics records source query timings.
func WithCatalogMetrics(metrics *MetricsService) CatalogServiceOption {
	return func(s *CatalogService) {
		s.metrics = metrics
	}
}

// NewCatalogService constructs the catalog.
func NewCatalogService(source ObservationSource, logger *zap.Logger, opts ...CatalogServiceOption) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CatalogService{source: source, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// viewsOf maps an authoritative parameter onto the views derived from it.
var viewsOf = func() map[string][]string {
	out := make(map[string][]string)
	for _, def := range parameterDefs {
		if def.derivedFrom != "" {
			out[def.derivedFrom] = append(out[def.derivedFrom], def.name)
		}
	}
	return out
}()

// Build queries the source once and returns a fresh snapshot with original
// and current slots populated identically.
func (s *CatalogService) Build(ctx context.Context, obsid int) (*models.ObservationSnapshot, error) {
	if obsid <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "obsid must be positive")
	}
	start := time.Now()
	raw, err := s.source.Fetch(ctx, obsid)
	s.metrics.ObserveDBQuery("observation_fetch", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("obsid %d not found", obsid))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query observation source")
	}
	if raw == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("obsid %d not found", obsid))
	}

	snap := &models.ObservationSnapshot{
		Obsid:            raw.Obsid,
		SeqNbr:           raw.SeqNbr,
		Status:           raw.Status,
		ScheduledAt:      raw.ScheduledAt,
		OnActiveSchedule: raw.OnActiveSchedule,
		RelatedObsids:    append([]int(nil), raw.RelatedObsids...),
		Params:           make(map[string]*models.ParameterDescriptor, len(parameterDefs)),
		Order:            make([]string, 0, len(parameterDefs)),
		FetchedAt:        s.now().UTC(),
	}
	if snap.Obsid == 0 {
		snap.Obsid = obsid
	}
	for _, def := range parameterDefs {
		p := &models.ParameterDescriptor{
			Name:        def.name,
			Label:       def.label,
			InputKind:   def.kind,
			Group:       def.group,
			Family:      def.family,
			Choices:     def.choices,
			Columns:     columnsFor(def.group),
			Ranked:      def.rankGroup != "",
			RankGroup:   def.rankGroup,
			DerivedFrom: def.derivedFrom,
		}
		switch {
		case p.Ranked:
			p.OriginalRanks = raw.RankedFields[def.name]
			p.CurrentRanks = p.OriginalRanks
		case p.IsView():
		default:
			p.Original = rawScalar(raw, def.name)
			p.Current = p.Original
		}
		snap.Params[def.name] = p
		snap.Order = append(snap.Order, def.name)
	}
	for source := range viewsOf {
		refreshViews(snap, source, true)
	}
	for _, g := range rankGroups {
		primary, ok := snap.Param(g.Primary)
		if !ok {
			continue
		}
		if counter, ok := snap.Param(g.Counter); ok {
			n := models.CountLeading(primary.OriginalRanks)
			counter.Original = n
			counter.Current = n
		}
	}
	s.logger.Debug("observation snapshot built", zap.Int("obsid", snap.Obsid), zap.String("status", string(snap.Status)))
	return snap, nil
}

func rawScalar(raw *models.RawObservation, name string) any {
	if v, ok := raw.Fields[name]; ok && !models.IsBlank(v) {
		return v
	}
	switch name {
	case "obsid":
		return raw.Obsid
	case "seq_nbr":
		if raw.SeqNbr != "" {
			return raw.SeqNbr
		}
	case "status":
		if raw.Status != "" {
			return string(raw.Status)
		}
	}
	return nil
}

// EditField sets the requested value of a scalar parameter. Editing a view
// converts the value onto its authoritative parameter; editing an
// authoritative parameter refreshes its views.
func (s *CatalogService) EditField(snap *models.ObservationSnapshot, name string, value any) error {
	p, ok := snap.Param(name)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown parameter %q", name))
	}
	if p.Ranked {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is ranked; edit it by slot", name))
	}
	if _, isCounter := rankCounters[name]; isCounter {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is maintained by the rank editor", name))
	}
	if models.IsBlank(value) {
		value = nil
	}

	if p.IsView() {
		source, ok := snap.Param(p.DerivedFrom)
		if !ok {
			return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("view %s has no source", name))
		}
		converted, err := fromView(p.Name, value)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid value for %s", name))
		}
		source.Current = converted
		refreshViews(snap, source.Name, false)
		return nil
	}

	if _, hasViews := viewsOf[name]; hasViews && value != nil {
		converted, err := coordinateInput(name, value)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid value for %s", name))
		}
		value = converted
	}
	p.Current = value
	refreshViews(snap, name, false)
	return nil
}

// EditRank sets the requested value of one slot of a ranked parameter. The
// rank counter is left to the rank editor.
func (s *CatalogService) EditRank(snap *models.ObservationSnapshot, name string, slot int, value any) error {
	p, ok := snap.Param(name)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown parameter %q", name))
	}
	if !p.Ranked {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not ranked", name))
	}
	if slot < 0 || slot >= models.MaxRank {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rank slot %d out of range", slot))
	}
	if models.IsBlank(value) {
		value = nil
	}
	p.CurrentRanks[slot] = value
	return nil
}

// refreshViews recomputes the views of source from its current value, and
// from its original value as well when original is set.
func refreshViews(snap *models.ObservationSnapshot, source string, original bool) {
	src, ok := snap.Param(source)
	if !ok {
		return
	}
	for _, name := range viewsOf[source] {
		v, ok := snap.Param(name)
		if !ok {
			continue
		}
		v.Current = toView(name, src.Current)
		if original {
			v.Original = toView(name, src.Original)
		}
	}
}

// toView renders an authoritative value through the view's conversion.
func toView(view string, v any) any {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	switch view {
	case "ra_hms":
		return RAToHMS(f)
	case "dec_dms":
		return DecToDMS(f)
	default:
		return DegToArcsec(f)
	}
}

// fromView converts a view value back onto its authoritative unit.
func fromView(view string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch view {
	case "ra_hms", "dec_dms":
		if f, ok := toFloat(v); ok {
			return roundTo(f, degreeDecimals), nil
		}
		if view == "ra_hms" {
			return HMSToRA(models.FormatValue(v))
		}
		return DMSToDec(models.FormatValue(v))
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%q is not numeric", models.FormatValue(v))
		}
		return ArcsecToDeg(f), nil
	}
}

// coordinateInput accepts decimal degrees or sexagesimal text for ra/dec.
// Dither parameters must be numeric.
func coordinateInput(name string, v any) (any, error) {
	if f, ok := toFloat(v); ok {
		return f, nil
	}
	switch name {
	case "ra":
		return HMSToRA(models.FormatValue(v))
	case "dec":
		return DMSToDec(models.FormatValue(v))
	default:
		return nil, fmt.Errorf("%q is not numeric", models.FormatValue(v))
	}
}
