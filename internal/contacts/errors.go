package contacts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound wraps a missing input file.
	ErrNotFound = errors.New("contacts: file not found")
	// ErrUnsupportedFormat is returned for extensions other than csv/xlsx/xls.
	ErrUnsupportedFormat = errors.New("contacts: unsupported file format")
)

// SchemaError aborts a load when a required column is missing. It is the only
// error class that throws away otherwise-valid rows.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("contacts: missing required columns: %s", strings.Join(e.Missing, ", "))
}
