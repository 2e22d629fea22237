package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// LoadExcel loads a dataset from an xlsx workbook. An empty sheet name
// selects the workbook's first sheet.
func LoadExcel(path, sheet string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheet, path, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %q of %s is empty", sheet, path)
	}
	return fromRecords(rows)
}
