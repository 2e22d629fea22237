package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// LoadCSV loads a dataset from a CSV file. The first record is the
// header; a column becomes numeric when every non-empty cell parses as a
// float, otherwise it is kept as a string column. Empty numeric cells
// become 0.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv file %s: %w", path, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("csv file %s is empty", path)
	}
	return fromRecords(records)
}

func fromRecords(records [][]string) (*Dataset, error) {
	header := records[0]
	body := records[1:]
	ds := New(len(body))

	for col, name := range header {
		cells := make([]string, len(body))
		for row, record := range body {
			if col < len(record) {
				cells[row] = record[col]
			}
		}
		values, numeric := parseNumericColumn(cells)
		if numeric {
			if err := ds.SetColumn(name, values); err != nil {
				return nil, err
			}
		} else {
			if err := ds.SetStringColumn(name, cells); err != nil {
				return nil, err
			}
		}
	}
	return ds, nil
}

func parseNumericColumn(cells []string) ([]float64, bool) {
	values := make([]float64, len(cells))
	for i, cell := range cells {
		if cell == "" {
			values[i] = 0
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
