package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/repository"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

// maxRevisionAttempts bounds retries when a concurrent writer claims the
// same revision number first.
const maxRevisionAttempts = 3

const nullifiedMarker = "ALL %s PARAMETERS WERE NULLIFIED"

type revisionStore interface {
	Numbers(ctx context.Context, obsid int) ([]int, error)
	Create(ctx context.Context, record *models.RevisionRecord, body []byte) error
	Get(ctx context.Context, id models.RevisionID) (*models.RevisionRecord, error)
	Raw(ctx context.Context, id models.RevisionID) ([]byte, error)
}

type snapshotBuilder interface {
	Build(ctx context.Context, obsid int) (*models.ObservationSnapshot, error)
}

// RevisionService numbers, renders and persists revision artifacts.
type RevisionService struct {
	store   revisionStore
	catalog snapshotBuilder
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// RevisionServiceOption configures the revision writer.
type RevisionServiceOption func(*RevisionService)

// WithRevisionClock overrides the clock stamped on records.
func WithRevisionClock(now func() time.Time) RevisionServiceOption {
	return func(s *RevisionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRevisionMetrics attaches the metrics sink.
func WithRevisionMetrics(metrics *MetricsService) RevisionServiceOption {
	return func(s *RevisionService) {
		s.metrics = metrics
	}
}

// NewRevisionService constructs the revision writer.
func NewRevisionService(store revisionStore, catalog snapshotBuilder, logger *zap.Logger, opts ...RevisionServiceOption) *RevisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RevisionService{store: store, catalog: catalog, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// NextRevision returns one past the highest existing revision of obsid.
func (s *RevisionService) NextRevision(ctx context.Context, obsid int) (models.RevisionID, error) {
	revs, err := s.store.Numbers(ctx, obsid)
	if err != nil {
		return models.RevisionID{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list revisions")
	}
	highest := 0
	for _, rev := range revs {
		highest = max(highest, rev)
	}
	return models.RevisionID{Obsid: obsid, Rev: highest + 1}, nil
}

// Write persists a new revision for the snapshot. It returns (nil, nil) when
// the observation is no longer editable. A failed write leaves no artifact
// behind and surfaces as ErrFatal.
func (s *RevisionService) Write(ctx context.Context, snap *models.ObservationSnapshot, changes models.ChangeSet, report *models.ValidationReport, mode models.SubmissionMode, user string) (*models.RevisionRecord, error) {
	if snap == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "snapshot is required")
	}
	if !mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown submission mode %q", mode))
	}
	if strings.TrimSpace(user) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is required")
	}
	if !snap.Editable() {
		s.logger.Info("revision suppressed for non-editable observation",
			zap.Int("obsid", snap.Obsid), zap.String("status", string(snap.Status)))
		return nil, nil
	}

	record := &models.RevisionRecord{
		SeqNbr:        snap.SeqNbr,
		TargetName:    snap.TargetName(),
		User:          user,
		Mode:          mode,
		CreatedAt:     s.now().UTC(),
		PriorComments: models.FormatValue(snap.Original("comments")),
		NewComments:   models.FormatValue(snap.Current("comments")),
		PriorRemarks:  models.FormatValue(snap.Original("remarks")),
		NewRemarks:    models.FormatValue(snap.Current("remarks")),
		Changes:       changes,
		Listing:       Listing(snap),
	}
	if report != nil {
		record.Warnings = report.Messages()
	}

	for attempt := 0; attempt < maxRevisionAttempts; attempt++ {
		id, err := s.NextRevision(ctx, snap.Obsid)
		if err != nil {
			return nil, err
		}
		record.ID = id
		err = s.store.Create(ctx, record, RenderArtifact(record))
		if err == nil {
			s.metrics.RevisionWritten(mode)
			s.logger.Info("revision written",
				zap.String("obsidrev", id.String()), zap.String("mode", string(mode)), zap.String("user", user),
				zap.Int("changes", len(changes.Changes)))
			return record, nil
		}
		if errors.Is(err, repository.ErrArtifactExists) {
			s.logger.Warn("revision number taken, retrying", zap.String("obsidrev", id.String()))
			continue
		}
		s.logger.Error("revision write failed", zap.String("obsidrev", id.String()), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrFatal.Code, appErrors.ErrFatal.Status, appErrors.ErrFatal.Message)
	}
	return nil, appErrors.Clone(appErrors.ErrBusy, "revision number contention; retry the submission")
}

// WriteVerification records a zero-diff as-is revision for an approval,
// using a fresh snapshot of the observation.
func (s *RevisionService) WriteVerification(ctx context.Context, obsid int, user string) (*models.RevisionRecord, error) {
	snap, err := s.catalog.Build(ctx, obsid)
	if err != nil {
		return nil, err
	}
	return s.Write(ctx, snap, models.ChangeSet{Changes: []models.FieldChange{}}, nil, models.ModeAsIs, user)
}

// Record loads the structured record of a revision.
func (s *RevisionService) Record(ctx context.Context, id models.RevisionID) (*models.RevisionRecord, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("revision %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load revision")
	}
	return record, nil
}

// Artifact returns the stored artifact text.
func (s *RevisionService) Artifact(ctx context.Context, id models.RevisionID) ([]byte, error) {
	body, err := s.store.Raw(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("revision %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read revision")
	}
	return body, nil
}

// Status compares every listed parameter of a revision with the live source.
func (s *RevisionService) Status(ctx context.Context, id models.RevisionID) (*models.RevisionStatus, error) {
	var (
		record *models.RevisionRecord
		live   *models.ObservationSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = s.Record(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		live, err = s.catalog.Build(gctx, id.Obsid)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	params := make([]models.ParameterStatus, 0, len(record.Listing))
	for _, row := range record.Listing {
		current := liveValue(live, row)
		params = append(params, models.ParameterStatus{
			Name:      row.Name,
			Rank:      row.Rank,
			Original:  row.Original,
			Requested: row.Requested,
			Current:   models.FormatValue(current),
			Indicator: StatusIndicator(row.Original, row.Requested, current),
		})
	}
	return &models.RevisionStatus{Record: record, Parameters: params, CheckedAt: s.now().UTC()}, nil
}

func liveValue(live *models.ObservationSnapshot, row models.ParameterListing) any {
	p, ok := live.Param(row.Name)
	if !ok {
		return nil
	}
	if row.Rank >= 0 {
		if !p.Ranked || row.Rank >= models.MaxRank {
			return nil
		}
		return p.OriginalRanks[row.Rank]
	}
	return p.Original
}

// Listing renders every parameter's original and requested value. Ranked
// parameters contribute one row per slot up to the larger of their counters.
func Listing(snap *models.ObservationSnapshot) []models.ParameterListing {
	rows := make([]models.ParameterListing, 0, len(snap.Params))
	for _, name := range snap.Names() {
		p, ok := snap.Param(name)
		if !ok {
			continue
		}
		if !p.Ranked {
			rows = append(rows, models.ParameterListing{
				Name:      p.Name,
				Rank:      -1,
				Original:  models.FormatValue(p.Original),
				Requested: models.FormatValue(p.Current),
			})
			continue
		}
		oldCount, newCount := rankCounts(snap, p.RankGroup)
		for slot := 0; slot < clampRank(max(oldCount, newCount)); slot++ {
			rows = append(rows, models.ParameterListing{
				Name:      p.Name,
				Rank:      slot,
				Original:  models.FormatValue(p.OriginalRanks[slot]),
				Requested: models.FormatValue(p.CurrentRanks[slot]),
			})
		}
	}
	return rows
}

// RenderArtifact lays a record out as the legacy plain-text revision file.
func RenderArtifact(record *models.RevisionRecord) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "OBSID: %d\n", record.ID.Obsid)
	fmt.Fprintf(&buf, "SEQNUM: %s\n", record.SeqNbr)
	fmt.Fprintf(&buf, "TARGET: %s\n", record.TargetName)
	fmt.Fprintf(&buf, "USER NAME: %s\n", record.User)
	fmt.Fprintf(&buf, "REVISION: %s\n", record.ID)
	fmt.Fprintf(&buf, "DATE: %s\n", record.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "%s\n\n", record.Mode.Marker())

	writeSection(&buf, "PAST COMMENTS", record.PriorComments)
	writeSection(&buf, "NEW COMMENTS", record.NewComments)
	writeSection(&buf, "PAST REMARKS", record.PriorRemarks)
	writeSection(&buf, "NEW REMARKS", record.NewRemarks)

	if record.Changes.ACISNullified {
		fmt.Fprintf(&buf, nullifiedMarker+"\n\n", models.FamilyACIS)
	}
	if record.Changes.HRCNullified {
		fmt.Fprintf(&buf, nullifiedMarker+"\n\n", models.FamilyHRC)
	}

	writeChanges(&buf, "GENERAL CHANGES", record.Changes.InCategory(models.CategoryGeneral))
	writeChanges(&buf, "ACIS CHANGES", record.Changes.InCategory(models.CategoryACIS))
	writeChanges(&buf, "ACIS WINDOW CHANGES", record.Changes.InCategory(models.CategoryACISWindow))

	if len(record.Warnings) > 0 {
		buf.WriteString("WARNINGS:\n")
		for _, w := range record.Warnings {
			fmt.Fprintf(&buf, "  %s\n", w)
		}
		buf.WriteString("\n")
	}

	buf.WriteString(strings.Repeat("-", 72) + "\n")
	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAMETER\tORIGINAL\tREQUESTED")
	for _, row := range record.Listing {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", strings.ToUpper(row.DisplayName()), dash(row.Original), dash(row.Requested))
	}
	_ = tw.Flush()
	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, title, body string) {
	fmt.Fprintf(buf, "%s:\n", title)
	if strings.TrimSpace(body) == "" {
		buf.WriteString("  NA\n\n")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		fmt.Fprintf(buf, "  %s\n", line)
	}
	buf.WriteString("\n")
}

func writeChanges(buf *bytes.Buffer, title string, changes []models.FieldChange) {
	fmt.Fprintf(buf, "%s:\n", title)
	if len(changes) == 0 {
		buf.WriteString("  NO CHANGES\n\n")
		return
	}
	tw := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	for _, ch := range changes {
		fmt.Fprintf(tw, "  %s\t%s\t=>\t%s\n", ch.DisplayName(), dash(ch.Old), dash(ch.New))
	}
	_ = tw.Flush()
	buf.WriteString("\n")
}

func dash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
