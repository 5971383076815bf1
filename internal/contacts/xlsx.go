package contacts

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX pulls the first sheet into rows of strings. excelize already
// returns cells in display form, which matches what the CSV path produces.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("contacts: opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("contacts: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("contacts: reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
