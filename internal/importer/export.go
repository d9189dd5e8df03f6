package importer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"tessera/internal"
)

// ExportPreviewToXLSX writes the per-row preview report for operators who
// review imports in a spreadsheet before committing.
func ExportPreviewToXLSX(rows []internal.PreviewRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{"line_no", "full_name", "phone", "status", "action", "matched_by", "errors"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.LineNo)
		set(2, row.FullName)
		set(3, row.Phone)
		set(4, string(row.Status))
		set(5, row.Action)
		set(6, string(row.MatchedBy))
		set(7, joinCodes(row.Errors))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func joinCodes(codes []internal.ValidationCode) string {
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}
