// Package report renders spreadsheets for download.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/tontine/internal/models"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var historyHeader = []interface{}{"Tour", "Bénéficiaire", "Montant (FCFA)", "Date"}

// HistoryFileName is the download name of a group's history export.
func HistoryFileName(now time.Time) string {
	return fmt.Sprintf("historique_%s.xlsx", now.Format("20060102_150405"))
}

// History writes the turn ledger of a group to an xlsx workbook. Dates are
// rendered in loc. The last row holds the total distributed.
func History(group *models.Group, turns []*models.TurnRecord, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if group.Name != "" {
		if err := f.SetSheetName(sheet, sheetName(group.Name)); err != nil {
			return nil, fmt.Errorf("failed to name sheet: %w", err)
		}
		sheet = sheetName(group.Name)
	}

	if err := f.SetSheetRow(sheet, "A1", &historyHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	var total int64
	for _, t := range turns {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		values := []interface{}{t.TurnNumber, t.BeneficiaryName, t.Amount, t.Date.In(loc).Format("02/01/2006 15:04")}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write turn %d: %w", t.TurnNumber, err)
		}
		total += t.Amount
		row++
	}

	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return nil, err
	}
	footer := []interface{}{"Total", "", total, ""}
	if err := f.SetSheetRow(sheet, cell, &footer); err != nil {
		return nil, fmt.Errorf("failed to write total: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName trims a group name to a valid sheet title.
func sheetName(name string) string {
	out := make([]rune, 0, 31)
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Historique"
	}
	return string(out)
}
