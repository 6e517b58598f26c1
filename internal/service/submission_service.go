package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/dto"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

type revisionWriter interface {
	Write(ctx context.Context, snap *models.ObservationSnapshot, changes models.ChangeSet, report *models.ValidationReport, mode models.SubmissionMode, user string) (*models.RevisionRecord, error)
}

type ledgerSeeder interface {
	Seed(ctx context.Context, record *models.RevisionRecord) (*models.SignoffEntry, error)
}

type shiftLog interface {
	Append(ctx context.Context, entry models.ShiftLogEntry) error
}

// SubmitResult reports every effect of a submission. Suppressed is set when
// the observation was not editable and nothing was written.
type SubmitResult struct {
	Suppressed        bool                     `json:"suppressed"`
	Record            *models.RevisionRecord   `json:"record,omitempty"`
	Entry             *models.SignoffEntry     `json:"entry,omitempty"`
	Report            *models.ValidationReport `json:"report,omitempty"`
	ReconcileRequired bool                     `json:"reconcileRequired"`
	LedgerError       string                   `json:"ledgerError,omitempty"`
}

// PreviewResult is the diff and validation of an unsaved edit session.
type PreviewResult struct {
	Snapshot *models.ObservationSnapshot `json:"snapshot"`
	Changes  models.ChangeSet            `json:"changes"`
	Report   *models.ValidationReport    `json:"report"`
}

// SubmissionService runs one edit session end to end: fresh snapshot, edits,
// rank sweep, validation, diff, revision write, ledger seed and notification.
type SubmissionService struct {
	catalog   *CatalogService
	ranks     *RankEditor
	diff      *DiffService
	validator *ValidationService
	writer    revisionWriter
	ledger    ledgerSeeder
	shifts    shiftLog
	notifier  notifier
	metrics   *MetricsService
	validate  *validator.Validate
	logger    *zap.Logger
}

// SubmissionDeps groups the collaborators of a SubmissionService.
type SubmissionDeps struct {
	Catalog   *CatalogService
	Ranks     *RankEditor
	Diff      *DiffService
	Validator *ValidationService
	Writer    revisionWriter
	Ledger    ledgerSeeder
	Shifts    shiftLog
	Notifier  notifier
	Metrics   *MetricsService
}

// NewSubmissionService constructs the orchestrator.
func NewSubmissionService(deps SubmissionDeps, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if deps.Ranks == nil {
		deps.Ranks = NewRankEditor()
	}
	if deps.Diff == nil {
		deps.Diff = NewDiffService()
	}
	return &SubmissionService{
		catalog:   deps.Catalog,
		ranks:     deps.Ranks,
		diff:      deps.Diff,
		validator: deps.Validator,
		writer:    deps.Writer,
		ledger:    deps.Ledger,
		shifts:    deps.Shifts,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		validate:  validate,
		logger:    logger,
	}
}

// Preview applies the edits to a fresh snapshot and returns the diff and
// warnings without writing anything.
func (s *SubmissionService) Preview(ctx context.Context, obsid int, req dto.SubmitRevisionRequest) (*PreviewResult, error) {
	snap, changes, report, err := s.prepare(ctx, obsid, req)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Snapshot: snap, Changes: changes, Report: report}, nil
}

// Submit persists the edit session as a new revision. Warnings never block.
// A ledger failure after the artifact is written is reported in the result
// for manual reconciliation and not retried.
func (s *SubmissionService) Submit(ctx context.Context, obsid int, req dto.SubmitRevisionRequest, user string) (*SubmitResult, error) {
	snap, changes, report, err := s.prepare(ctx, obsid, req)
	if err != nil {
		return nil, err
	}
	if !snap.Editable() {
		return &SubmitResult{Suppressed: true}, nil
	}

	record, err := s.writer.Write(ctx, snap, changes, report, req.Mode, user)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &SubmitResult{Suppressed: true}, nil
	}
	result := &SubmitResult{Record: record, Report: report}

	if report.Has(models.WarnCoordinateShift) {
		s.logShift(ctx, snap, record, report)
	}

	entry, err := s.ledger.Seed(ctx, record)
	result.Entry = entry
	if err != nil {
		result.ReconcileRequired = entry == nil
		result.LedgerError = appErrors.FromError(err).Message
		if entry == nil {
			s.metrics.LedgerSeedFailed()
		}
		s.logger.Error("ledger update failed after revision write",
			zap.String("obsidrev", record.ID.String()), zap.Bool("reconcile", result.ReconcileRequired), zap.Error(err))
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, RevisionNotice(record, snap, report)); err != nil {
			s.logger.Error("revision notification failed", zap.String("obsidrev", record.ID.String()), zap.Error(err))
		}
	}
	return result, nil
}

func (s *SubmissionService) prepare(ctx context.Context, obsid int, req dto.SubmitRevisionRequest) (*models.ObservationSnapshot, models.ChangeSet, *models.ValidationReport, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, models.ChangeSet{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if (req.Mode == models.ModeAsIs || req.Mode == models.ModeRemove) && req.HasEdits() {
		return nil, models.ChangeSet{}, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s submissions cannot carry parameter edits", req.Mode))
	}
	snap, err := s.catalog.Build(ctx, obsid)
	if err != nil {
		return nil, models.ChangeSet{}, nil, err
	}
	if err := s.applyEdits(snap, req); err != nil {
		return nil, models.ChangeSet{}, nil, err
	}
	s.ranks.Sweep(snap)
	report := s.validator.Validate(snap)
	changes := s.diff.Changes(snap)
	return snap, changes, report, nil
}

// applyEdits writes views before authoritative fields so an explicit
// authoritative value wins, then ranked arrays, then rank operations.
func (s *SubmissionService) applyEdits(snap *models.ObservationSnapshot, req dto.SubmitRevisionRequest) error {
	names := make([]string, 0, len(req.Fields))
	for name := range req.Fields {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		vi, vj := isViewName(snap, names[i]), isViewName(snap, names[j])
		if vi != vj {
			return vi
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		if err := s.catalog.EditField(snap, name, req.Fields[name]); err != nil {
			return err
		}
	}

	rankNames := make([]string, 0, len(req.Ranks))
	for name := range req.Ranks {
		rankNames = append(rankNames, name)
	}
	sort.Strings(rankNames)
	for _, name := range rankNames {
		values := req.Ranks[name]
		for slot := 0; slot < models.MaxRank; slot++ {
			var v any
			if slot < len(values) {
				v = values[slot]
			}
			if err := s.catalog.EditRank(snap, name, slot, v); err != nil {
				return err
			}
		}
	}

	for _, group := range req.AppendRanks {
		if _, err := s.ranks.AppendRank(snap, group); err != nil {
			return err
		}
	}
	for _, rm := range req.RemoveRanks {
		if _, err := s.ranks.RemoveRank(snap, rm.Group, rm.Slot); err != nil {
			return err
		}
	}
	return nil
}

func (s *SubmissionService) logShift(ctx context.Context, snap *models.ObservationSnapshot, record *models.RevisionRecord, report *models.ValidationReport) {
	if s.shifts == nil {
		return
	}
	entry := models.ShiftLogEntry{
		Revision: record.ID,
		User:     record.User,
		Shift:    report.CoordinateShift,
		At:       record.CreatedAt,
	}
	entry.FromRA, _ = toFloat(snap.Original("ra"))
	entry.FromDec, _ = toFloat(snap.Original("dec"))
	entry.ToRA, _ = toFloat(snap.Current("ra"))
	entry.ToDec, _ = toFloat(snap.Current("dec"))
	if err := s.shifts.Append(ctx, entry); err != nil {
		s.logger.Error("coordinate shift log append failed", zap.String("obsidrev", record.ID.String()), zap.Error(err))
	}
}

func isViewName(snap *models.ObservationSnapshot, name string) bool {
	p, ok := snap.Param(name)
	return ok && p.IsView()
}
