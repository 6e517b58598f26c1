package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidthPortrait  = 190.0
	pageWidthLandscape = 277.0
)

// Section is a titled block of text lines.
type Section struct {
	Heading string
	Lines   []string
}

// Document is a printable report: a title, key/value header fields, text
// sections and an optional trailing table.
type Document struct {
	Title     string
	Fields    [][2]string
	Sections  []Section
	Table     *Table
	Landscape bool
}

// PDFExporter renders documents with gofpdf.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays the document out and returns the PDF bytes.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if doc.Title == "" && doc.Table == nil && len(doc.Sections) == 0 {
		return nil, fmt.Errorf("pdf document is empty")
	}
	orientation, width := "P", pageWidthPortrait
	if doc.Landscape {
		orientation, width = "L", pageWidthLandscape
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	if len(doc.Fields) > 0 {
		for _, kv := range doc.Fields {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(40, 6, tr(kv[0]), "", 0, "", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(0, 6, tr(kv[1]), "", 1, "", false, 0, "")
		}
		pdf.Ln(3)
	}

	for _, sec := range doc.Sections {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, tr(sec.Heading), "B", 1, "", false, 0, "")
		pdf.SetFont("Courier", "", 9)
		if len(sec.Lines) == 0 {
			pdf.CellFormat(0, 5, "NA", "", 1, "", false, 0, "")
		}
		for _, line := range sec.Lines {
			pdf.MultiCell(0, 5, tr(line), "", "", false)
		}
		pdf.Ln(2)
	}

	if doc.Table != nil && len(doc.Table.Headers) > 0 {
		colWidth := width / float64(len(doc.Table.Headers))
		pdf.SetFont("Arial", "B", 9)
		for _, header := range doc.Table.Headers {
			pdf.CellFormat(colWidth, 7, tr(header), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		for _, row := range doc.Table.Rows {
			for i := range doc.Table.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(colWidth, 6, tr(value), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("layout pdf: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
