package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"tally/internal/domain"
)

// SheetName is the single worksheet carrying the scanned list.
const SheetName = "Conferencia"

var header = []any{"Tracking Code", "Scan Date", "Scan Time", "Carrier", "Status"}

// Workbook builds the spreadsheet handed to the carrier at end of shift: one
// row per manifest-hit scan, most recent first (the order records arrive in).
// Records outside the manifest never reach the ledger, so no filtering is
// needed here beyond the PresentInManifest guard.
func Workbook(records []domain.ScanRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, rec := range records {
		if !rec.PresentInManifest {
			continue
		}
		carrier := "-"
		if rec.Carrier != nil && *rec.Carrier != "" {
			carrier = *rec.Carrier
		}
		cells := []any{
			rec.Code,
			rec.Timestamp.Format("02/01/2006"),
			rec.Timestamp.Format("15:04:05"),
			carrier,
			string(rec.Status),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}
	return f, nil
}

// Filename names the download after the station's export day.
func Filename(t time.Time) string {
	return fmt.Sprintf("conferencia_%s.xlsx", t.Format("20060102"))
}
