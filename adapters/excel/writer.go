// Package excel exports comparison results as spreadsheets.
package excel

import (
	"io"
	"os"

	"github.com/RushiGong/ESPEI/domain/evidence"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Comparisons"

var headers = []interface{}{
	"Comparison", "Model 1", "Evidence 1", "Model 2", "Evidence 2",
	"Unit", "Space", "Bayes factor", "Favored", "Strength",
}

// WriteComparisons writes one row per comparison to w as an .xlsx workbook.
// Decimal values are written as text so no digits are lost.
func WriteComparisons(w io.Writer, records []*evidence.ComparisonRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return err
	}

	for i, rec := range records {
		row := []interface{}{
			rec.ID,
			modelOf(rec.Run1), valueOf(rec.Run1),
			modelOf(rec.Run2), valueOf(rec.Run2),
			unitOf(rec.Run1),
			string(rec.Comparison.Space),
			rec.Comparison.Ratio.String(),
			rec.Comparison.Favored.String(),
			rec.Comparison.Strength.Label(),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// SaveComparisons writes the workbook to path
func SaveComparisons(path string, records []*evidence.ComparisonRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteComparisons(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func modelOf(run *evidence.Run) string {
	if run == nil {
		return ""
	}
	return run.Evidence.Model
}

func valueOf(run *evidence.Run) string {
	if run == nil || run.Evidence.Value == nil {
		return ""
	}
	return run.Evidence.Value.String()
}

func unitOf(run *evidence.Run) string {
	if run == nil {
		return ""
	}
	return run.Evidence.Unit.String()
}
