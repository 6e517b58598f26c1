package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/export"
)

type revisionSource interface {
	Record(ctx context.Context, id models.RevisionID) (*models.RevisionRecord, error)
}

type ledgerSource interface {
	List(ctx context.Context, filter models.SignoffFilter) ([]models.SignoffEntry, error)
	Approvals(ctx context.Context) ([]models.ApprovalEntry, time.Time, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// ExportService renders revisions and the ledger for download.
type ExportService struct {
	revisions revisionSource
	ledger    ledgerSource
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the package defaults.
func NewExportService(revisions revisionSource, ledger ledgerSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{revisions: revisions, ledger: ledger, csv: csv, pdf: pdf, logger: logger}
}

// RevisionPDF renders one revision record as a printable document.
func (s *ExportService) RevisionPDF(ctx context.Context, id models.RevisionID) ([]byte, error) {
	record, err := s.revisions.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := s.pdf.Render(revisionDocument(record))
	if err != nil {
		s.logger.Error("revision pdf failed", zap.String("obsidrev", id.String()), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render revision pdf")
	}
	return payload, nil
}

// RevisionCSV renders the original/requested listing of one revision.
func (s *ExportService) RevisionCSV(ctx context.Context, id models.RevisionID) ([]byte, error) {
	record, err := s.revisions.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, err := s.csv.Render(listingTable(record))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render revision csv")
	}
	return payload, nil
}

// LedgerCSV renders the ledger listing with one column per sign-off cell.
func (s *ExportService) LedgerCSV(ctx context.Context, filter models.SignoffFilter) ([]byte, error) {
	entries, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	table := export.Table{Headers: []string{"obsidrev", "seq_nbr", "submitter", "general", "acis", "acis_si_mode", "hrc_si_mode", "verification", "updated_at"}}
	for _, e := range entries {
		table.AddRow(
			e.ID.String(),
			e.SeqNbr,
			e.Submitter,
			cellText(e.General),
			cellText(e.ACIS),
			cellText(e.ACISSI),
			cellText(e.HRCSI),
			cellText(e.Verification),
			e.UpdatedAt.UTC().Format(time.RFC3339Nano),
		)
	}
	payload, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render ledger csv")
	}
	return payload, nil
}

// ApprovalsCSV renders the approval registry.
func (s *ExportService) ApprovalsCSV(ctx context.Context) ([]byte, error) {
	entries, _, err := s.ledger.Approvals(ctx)
	if err != nil {
		return nil, err
	}
	table := export.Table{Headers: []string{"obsid", "seq_nbr", "signer", "date"}}
	for _, e := range entries {
		table.AddRow(fmt.Sprint(e.Obsid), e.SeqNbr, e.Signer, e.Date.UTC().Format("2006-01-02"))
	}
	payload, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render approvals csv")
	}
	return payload, nil
}

// ExportFilename builds the attachment name for a download.
func ExportFilename(kind string, id *models.RevisionID, ext string, now time.Time) string {
	if id != nil {
		return fmt.Sprintf("%s_%s.%s", kind, id, ext)
	}
	return fmt.Sprintf("%s_%s.%s", kind, now.UTC().Format("20060102_150405"), ext)
}

func revisionDocument(record *models.RevisionRecord) export.Document {
	doc := export.Document{
		Title: "Parameter revision " + record.ID.String(),
		Fields: [][2]string{
			{"Obsid", fmt.Sprint(record.ID.Obsid)},
			{"Sequence", record.SeqNbr},
			{"Target", record.TargetName},
			{"Submitted by", record.User},
			{"Date", record.CreatedAt.UTC().Format(time.RFC3339)},
			{"Request", record.Mode.Marker()},
		},
		Table: ptrTable(listingTable(record)),
	}
	doc.Sections = append(doc.Sections,
		textSection("PAST COMMENTS", record.PriorComments),
		textSection("NEW COMMENTS", record.NewComments),
		textSection("PAST REMARKS", record.PriorRemarks),
		textSection("NEW REMARKS", record.NewRemarks),
	)
	if record.Changes.ACISNullified || record.Changes.HRCNullified {
		sec := export.Section{Heading: "NULLIFIED"}
		if record.Changes.ACISNullified {
			sec.Lines = append(sec.Lines, fmt.Sprintf(nullifiedMarker, models.FamilyACIS))
		}
		if record.Changes.HRCNullified {
			sec.Lines = append(sec.Lines, fmt.Sprintf(nullifiedMarker, models.FamilyHRC))
		}
		doc.Sections = append(doc.Sections, sec)
	}
	doc.Sections = append(doc.Sections,
		changeSection("GENERAL CHANGES", record.Changes.InCategory(models.CategoryGeneral)),
		changeSection("ACIS CHANGES", record.Changes.InCategory(models.CategoryACIS)),
		changeSection("ACIS WINDOW CHANGES", record.Changes.InCategory(models.CategoryACISWindow)),
	)
	if len(record.Warnings) > 0 {
		doc.Sections = append(doc.Sections, export.Section{Heading: "WARNINGS", Lines: record.Warnings})
	}
	return doc
}

func listingTable(record *models.RevisionRecord) export.Table {
	table := export.Table{Headers: []string{"PARAMETER", "ORIGINAL", "REQUESTED"}}
	for _, row := range record.Listing {
		table.AddRow(strings.ToUpper(row.DisplayName()), row.Original, row.Requested)
	}
	return table
}

func textSection(heading, body string) export.Section {
	sec := export.Section{Heading: heading}
	if strings.TrimSpace(body) != "" {
		sec.Lines = strings.Split(strings.TrimRight(body, "\n"), "\n")
	}
	return sec
}

func changeSection(heading string, changes []models.FieldChange) export.Section {
	sec := export.Section{Heading: heading}
	if len(changes) == 0 {
		sec.Lines = []string{"NO CHANGES"}
		return sec
	}
	for _, ch := range changes {
		sec.Lines = append(sec.Lines, fmt.Sprintf("%s: %s => %s", ch.DisplayName(), dash(ch.Old), dash(ch.New)))
	}
	return sec
}

func cellText(c models.ColumnStatus) string {
	switch c.State {
	case models.StateSigned:
		if c.Date == nil {
			return c.Signer
		}
		return c.Signer + " " + c.Date.UTC().Format("2006-01-02")
	case models.StatePending:
		return "pending"
	default:
		return "NA"
	}
}

func ptrTable(t export.Table) *export.Table {
	return &t
}
