// Package export renders the filtered inventory view as CSV, PDF or a
// spreadsheet range.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/repository/sheets"
)

// CSVFilename is the download name of the CSV report.
const CSVFilename = "inventory-report.csv"

// PDFFilename is the download name of the PDF report.
const PDFFilename = "inventory-report.pdf"

// Header is the column row shared by every export format.
var Header = []string{"Item Name", "SKU", "Total Units", "Units Dispatched", "Current Stock", "Status", "Category"}

// Rows flattens records into report rows, in input order.
func Rows(items []models.InventoryRecord) [][]string {
	out := make([][]string, 0, len(items))
	for _, item := range items {
		out = append(out, []string{
			item.ItemName,
			item.SKU,
			strconv.Itoa(item.TotalReceived),
			strconv.Itoa(item.TotalDispatched),
			strconv.Itoa(item.AvailableStock),
			string(item.Status),
			item.Category,
		})
	}
	return out
}

// WriteCSV writes the header and one line per record.
func WriteCSV(w io.Writer, items []models.InventoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(items)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// Column widths in mm, one per Header entry. The code column follows them.
var pdfColumns = []float64{48, 24, 20, 24, 22, 18, 26}

const (
	pdfRowHeight = 12.0
	pdfQRSize    = 10.0
)

// PDF renders an A4 landscape report with a scannable SKU code on every row.
func PDF(items []models.InventoryRecord, title string, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s, %d items", generatedAt.Format("2006-01-02 15:04"), len(items)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 236, 245)
		for i, h := range Header {
			pdf.CellFormat(pdfColumns[i], 7, h, "1", 0, "C", true, 0, "")
		}
		pdf.CellFormat(pdfQRSize+4, 7, "Code", "1", 1, "C", true, 0, "")
		pdf.SetFont("Arial", "", 9)
	}
	writeHeader()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()

	for i, row := range Rows(items) {
		if pdf.GetY()+pdfRowHeight > pageHeight-bottom {
			pdf.AddPage()
			writeHeader()
		}

		x, y := pdf.GetXY()
		for c, value := range row {
			align := "L"
			if c >= 2 && c <= 4 {
				align = "R"
			}
			pdf.CellFormat(pdfColumns[c], pdfRowHeight, value, "1", 0, align, false, 0, "")
		}

		codeX := pdf.GetX()
		pdf.CellFormat(pdfQRSize+4, pdfRowHeight, "", "1", 0, "C", false, 0, "")
		if items[i].SKU == "" {
			pdf.SetXY(x, y+pdfRowHeight)
			continue
		}

		png, err := qrcode.Encode(items[i].SKU, qrcode.Low, 128)
		if err != nil {
			return nil, fmt.Errorf("encode sku %q: %w", items[i].SKU, err)
		}
		name := fmt.Sprintf("sku_%d", i)
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
		pdf.ImageOptions(name, codeX+2, y+1, pdfQRSize, pdfQRSize, false, opts, 0, "")

		pdf.SetXY(x, y+pdfRowHeight)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// SheetExporter replaces a spreadsheet range with the current inventory view.
type SheetExporter struct {
	repo       sheets.Repository
	sheetRange string
	logger     *zap.Logger
}

// NewSheetExporter creates an exporter writing into sheetRange, e.g. "Inventory!A:G".
func NewSheetExporter(repo sheets.Repository, sheetRange string, logger *zap.Logger) *SheetExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetExporter{repo: repo, sheetRange: sheetRange, logger: logger}
}

// Export clears the range and writes the header plus one row per record.
// It returns the number of records written.
func (e *SheetExporter) Export(ctx context.Context, items []models.InventoryRecord) (int, error) {
	if err := e.repo.ClearRange(ctx, e.sheetRange); err != nil {
		return 0, fmt.Errorf("clear export range: %w", err)
	}

	values := make([][]interface{}, 0, len(items)+1)
	values = append(values, toCells(Header))
	for _, row := range Rows(items) {
		values = append(values, toCells(row))
	}

	if err := e.repo.WriteRows(ctx, e.sheetRange, values); err != nil {
		return 0, fmt.Errorf("write export rows: %w", err)
	}

	e.logger.Info("inventory exported to sheet", zap.String("range", e.sheetRange), zap.Int("items", len(items)))
	return len(items), nil
}

func toCells(row []string) []interface{} {
	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return cells
}
