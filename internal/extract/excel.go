package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hyperjump/benkyo/internal/models"
	"github.com/xuri/excelize/v2"
)

// extractExcel yields one record per sheet (1-indexed, in workbook order)
// with rows joined by tabs. Sheets that are empty after trimming are skipped.
func extractExcel(content []byte) ([]models.Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var pages []models.Page
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		text := strings.TrimSpace(buf.String())
		if text != "" {
			pages = append(pages, models.Page{Text: text, Number: i + 1})
		}
	}
	return pages, nil
}
