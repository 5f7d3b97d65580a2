package results

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// Summary table header columns.
var summaryHeader = []any{"Date", "Incorrect Count", "Correct Count"}

// SummaryRow is one completed quiz in the summary spreadsheet.
type SummaryRow struct {
	Date           string
	IncorrectCount int
	CorrectCount   int
}

// AppendSummaryRow adds row to the first sheet of the workbook at path. A
// missing or empty file is created, and the header is written when the sheet
// has no rows yet.
func AppendSummaryRow(path string, row SummaryRow) error {
	f, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}

	next := len(rows) + 1
	if len(rows) == 0 {
		if err := f.SetSheetRow(sheet, "A1", &summaryHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		next = 2
	}

	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return err
	}
	values := []any{row.Date, row.IncorrectCount, row.CorrectCount}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row: %w", err)
	}

	return f.SaveAs(path)
}

// ReadSummary returns the data rows of the summary workbook, skipping the header.
func ReadSummary(path string) ([]SummaryRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}

	var out []SummaryRow
	for i, r := range rows {
		if i == 0 {
			continue
		}
		if len(r) < 3 {
			return nil, fmt.Errorf("row %d: expected 3 columns, got %d", i+1, len(r))
		}
		incorrect, err := strconv.Atoi(r[1])
		if err != nil {
			return nil, fmt.Errorf("row %d incorrect count: %w", i+1, err)
		}
		correct, err := strconv.Atoi(r[2])
		if err != nil {
			return nil, fmt.Errorf("row %d correct count: %w", i+1, err)
		}
		out = append(out, SummaryRow{Date: r[0], IncorrectCount: incorrect, CorrectCount: correct})
	}
	return out, nil
}

func openWorkbook(path string) (*excelize.File, error) {
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return excelize.NewFile(), nil
	case err != nil:
		return nil, err
	case fi.Size() == 0:
		// Left behind by an interrupted run.
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}
