package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"procura/internal/domain/documents/purchase_request"
)

type pdfColumn struct {
	title string
	width float64
	align string
}

var pdfColumns = []pdfColumn{
	{"#", 8, "C"},
	{"Product", 52, "L"},
	{"Location", 30, "L"},
	{"Qty", 18, "R"},
	{"Unit", 16, "L"},
	{"Price", 22, "R"},
	{"Tax", 18, "R"},
	{"Total", 26, "R"},
}

// PDFPrinter renders a purchase request as an A4 document.
type PDFPrinter struct {
	format *Formatter
}

func NewPDFPrinter(f *Formatter) *PDFPrinter {
	return &PDFPrinter{format: f}
}

func (p *PDFPrinter) ContentType() string {
	return "application/pdf"
}

// Print renders pr. Approved quantities are printed once set, requested
// quantities before that.
func (p *PDFPrinter) Print(pr *purchase_request.PurchaseRequest) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle("Purchase Request "+pr.PRNo, true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr("Purchase Request"), "", 1, "L", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	for _, kv := range [][2]string{
		{"PR No", pr.PRNo},
		{"Date", Date(pr.PRDate)},
		{"Status", string(pr.Status)},
		{"Requestor", pr.RequestorName},
		{"Department", pr.DepartmentName},
		{"Stage", pr.WorkflowCurrentStage},
	} {
		doc.CellFormat(30, 6, tr(kv[0]), "", 0, "L", false, 0, "")
		doc.CellFormat(0, 6, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	if pr.Description != "" {
		doc.Ln(2)
		doc.MultiCell(0, 5, tr(pr.Description), "", "L", false)
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(230, 230, 230)
	for _, c := range pdfColumns {
		doc.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 9)
	for _, l := range pr.Lines {
		qty, unit := l.RequestedQty, l.RequestedUnitName
		if l.ApprovedQty.IsPositive() {
			qty, unit = l.ApprovedQty, l.ApprovedUnitName
		}
		cells := []string{
			fmt.Sprint(l.SequenceNo),
			l.ProductName,
			l.LocationName,
			p.format.Quantity(qty),
			unit,
			p.format.Amount(l.Price),
			p.format.Amount(l.TaxAmount),
			p.format.Amount(l.TotalPrice),
		}
		for i, c := range pdfColumns {
			doc.CellFormat(c.width, 6, tr(cells[i]), "1", 0, c.align, false, 0, "")
		}
		doc.Ln(-1)
	}

	var labelWidth float64
	for _, c := range pdfColumns[:len(pdfColumns)-1] {
		labelWidth += c.width
	}
	doc.SetFont("Helvetica", "B", 9)
	doc.CellFormat(labelWidth, 7, "Total", "1", 0, "R", false, 0, "")
	doc.CellFormat(pdfColumns[len(pdfColumns)-1].width, 7, p.format.Amount(pr.Total()), "1", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
