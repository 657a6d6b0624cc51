package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"procura/internal/domain/documents/purchase_request"
)

const sheetName = "Purchase Request"

var lineColumns = []string{
	"#", "Product", "Location", "Vendor",
	"Requested", "Unit", "Approved", "Unit", "FOC",
	"Currency", "Price", "Discount", "Tax", "Total", "Status",
}

// ExcelExporter writes a purchase request as an xlsx workbook.
type ExcelExporter struct {
	format *Formatter
}

func NewExcelExporter(f *Formatter) *ExcelExporter {
	return &ExcelExporter{format: f}
}

// ContentType is the MIME type of Export output.
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export renders pr: a header block followed by one row per line.
func (e *ExcelExporter) Export(pr *purchase_request.PurchaseRequest) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create style: %w", err)
	}

	header := [][]any{
		{"PR No", pr.PRNo},
		{"PR Date", Date(pr.PRDate)},
		{"Status", string(pr.Status)},
		{"Requestor", pr.RequestorName},
		{"Department", pr.DepartmentName},
		{"Workflow", pr.WorkflowName},
		{"Current Stage", pr.WorkflowCurrentStage},
		{"Description", pr.Description},
	}
	for i, row := range header {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", fmt.Sprintf("A%d", len(header)), bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	tableRow := len(header) + 2
	first, _ := excelize.CoordinatesToCellName(1, tableRow)
	last, _ := excelize.CoordinatesToCellName(len(lineColumns), tableRow)
	cols := make([]any, len(lineColumns))
	for i, c := range lineColumns {
		cols[i] = c
	}
	if err := f.SetSheetRow(sheetName, first, &cols); err != nil {
		return nil, fmt.Errorf("write columns: %w", err)
	}
	if err := f.SetCellStyle(sheetName, first, last, bold); err != nil {
		return nil, fmt.Errorf("style columns: %w", err)
	}

	for i, l := range pr.Lines {
		row := []any{
			l.SequenceNo,
			l.ProductName,
			l.LocationName,
			l.VendorName,
			l.RequestedQty.InexactFloat64(),
			l.RequestedUnitName,
			l.ApprovedQty.InexactFloat64(),
			l.ApprovedUnitName,
			l.FOCQty.InexactFloat64(),
			l.CurrencyName,
			e.format.Amount(l.Price),
			e.format.Amount(l.DiscountAmount),
			e.format.Amount(l.TaxAmount),
			e.format.Amount(l.TotalPrice),
			string(l.StagesStatus.LastStatus()),
		}
		cell, _ := excelize.CoordinatesToCellName(1, tableRow+1+i)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write line %d: %w", l.SequenceNo, err)
		}
	}

	totalRow := tableRow + len(pr.Lines) + 1
	labelCell, _ := excelize.CoordinatesToCellName(len(lineColumns)-2, totalRow)
	totalCell, _ := excelize.CoordinatesToCellName(len(lineColumns)-1, totalRow)
	if err := f.SetCellValue(sheetName, labelCell, "Total"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, totalCell, e.format.Amount(pr.Total())); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, labelCell, totalCell, bold); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "B", "D", 28); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
