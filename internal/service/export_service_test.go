package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/export"
)

type capturingPDF struct {
	doc export.Document
}

func (p *capturingPDF) Render(doc export.Document) ([]byte, error) {
	p.doc = doc
	return []byte("%PDF-stub"), nil
}

func newExportFixture(t *testing.T) (*ExportService, *SignoffService, models.RevisionID) {
	t.Helper()
	catalog := newTestCatalog(acisRaw())
	snap := buildSnapshot(t, acisRaw())
	require.NoError(t, catalog.EditField(snap, "ra", 10.2))
	report := newTestValidator().Validate(snap)

	revs := newTestRevisionService(newMemoryRevisionStore(), acisRaw())
	record, err := revs.Write(context.Background(), snap, NewDiffService().Changes(snap), report, models.ModeNormal, "jdoe")
	require.NoError(t, err)

	ledger := NewSignoffService(newMemorySignoffStore(), &memoryRegistry{entries: []models.ApprovalEntry{{Obsid: 999, SeqNbr: "400001", Signer: "carol", Date: fixedNow}}}, nil)
	_, err = ledger.Seed(context.Background(), record)
	require.NoError(t, err)
	return NewExportService(revs, ledger, nil, nil, nil), ledger, record.ID
}

func TestRevisionCSVListsParameters(t *testing.T) {
	svc, _, id := newExportFixture(t)
	out, err := svc.RevisionCSV(context.Background(), id)
	require.NoError(t, err)
	text := string(out)
	assert.True(t, strings.HasPrefix(text, "PARAMETER,ORIGINAL,REQUESTED\n"))
	assert.Contains(t, text, "\nRA,10,10.2\n")
}

func TestRevisionPDFDocumentLayout(t *testing.T) {
	_, ledger, id := newExportFixture(t)
	pdf := &capturingPDF{}
	revs := newTestRevisionService(newMemoryRevisionStore(), acisRaw())
	snap := buildSnapshot(t, acisRaw())
	record, err := revs.Write(context.Background(), snap, models.ChangeSet{}, nil, models.ModeAsIs, "jdoe")
	require.NoError(t, err)

	svc := NewExportService(revs, ledger, nil, nil, pdf)
	out, err := svc.RevisionPDF(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-stub", string(out))
	assert.Equal(t, "Parameter revision "+record.ID.String(), pdf.doc.Title)
	assert.Contains(t, pdf.doc.Fields, [2]string{"Request", "VERIFIED OK AS IS"})
	require.NotNil(t, pdf.doc.Table)
	assert.NotEmpty(t, pdf.doc.Table.Rows)

	_, err = svc.RevisionPDF(context.Background(), models.RevisionID{Obsid: id.Obsid, Rev: 99})
	require.Error(t, err)
}

func TestRevisionPDFRendersWithGofpdf(t *testing.T) {
	svc, _, id := newExportFixture(t)
	out, err := svc.RevisionPDF(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestLedgerAndApprovalsCSV(t *testing.T) {
	svc, _, id := newExportFixture(t)

	out, err := svc.LedgerCSV(context.Background(), models.SignoffFilter{})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], id.String()+",500123,jdoe,pending,NA,NA,NA,pending,"))

	out, err = svc.ApprovalsCSV(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "obsid,seq_nbr,signer,date\n999,400001,carol,2026-03-10\n", string(out))
}

func TestExportFilename(t *testing.T) {
	id := models.RevisionID{Obsid: 12345, Rev: 3}
	assert.Equal(t, "revision_12345.003.pdf", ExportFilename("revision", &id, "pdf", fixedNow))
	assert.Equal(t, "ledger_20260310_150000.csv", ExportFilename("ledger", nil, "csv", fixedNow))
}
