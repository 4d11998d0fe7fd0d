// Package export writes ledger records to a spreadsheet or CSV file.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/guarzo/janprice/internal/model"
)

const sheetName = "sheet"

// Header is the bold first row of every export.
var Header = []string{"JAN", "URL", "在庫", "サイト価格", "Amazonの価格", "価格差"}

// Row renders a record in header order.
func Row(rec model.ReconciliationRecord) []string {
	return []string{
		rec.StableCode,
		rec.URL,
		rec.Stock.Label(),
		strconv.Itoa(rec.SitePrice),
		strconv.Itoa(rec.ReferencePrice),
		rec.Flag.Label(),
	}
}

// ToFile writes records to path, choosing the format from the extension.
func ToFile(path string, records []model.ReconciliationRecord) error {
	var write func(io.Writer, []model.ReconciliationRecord) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		write = WriteXLSX
	case ".csv":
		write = WriteCSV
	default:
		return fmt.Errorf("unsupported export format %q (use .xlsx or .csv)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteXLSX writes a workbook with a bold header row. Prices are numeric
// cells, JAN codes stay text so leading zeros survive.
func WriteXLSX(w io.Writer, records []model.ReconciliationRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	headerStyleID, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheetName, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyleID); err != nil {
		return err
	}

	for i, rec := range records {
		row := strconv.Itoa(i + 2)
		values := []struct {
			col string
			v   any
		}{
			{"A", rec.StableCode},
			{"B", rec.URL},
			{"C", rec.Stock.Label()},
			{"D", rec.SitePrice},
			{"E", rec.ReferencePrice},
			{"F", rec.Flag.Label()},
		}
		for _, c := range values {
			var err error
			if s, ok := c.v.(string); ok {
				err = f.SetCellStr(sheetName, c.col+row, s)
			} else {
				err = f.SetCellValue(sheetName, c.col+row, c.v)
			}
			if err != nil {
				return fmt.Errorf("writing row %d: %w", i+2, err)
			}
		}
	}

	widths := map[string]float64{"A": 16, "B": 48, "C": 10, "D": 12, "E": 14, "F": 8}
	for col, width := range widths {
		_ = f.SetColWidth(sheetName, col, col, width)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteCSV writes UTF-8 CSV with a BOM so spreadsheet apps detect the
// encoding. Cells are escaped against formula injection.
func WriteCSV(w io.Writer, records []model.ReconciliationRecord) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(EscapeRow(Header)); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(EscapeRow(Row(rec))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
