package contacts

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"wasender/pkg/logx"
)

// Options controls column mapping and row validation. Zero values are filled
// from the conventional Spanish column contract.
type Options struct {
	NameColumn    string
	PhoneColumn   string
	MessageColumn string
	MinDigits     int
	MaxDigits     int

	// DefaultTemplate is assigned to rows without a custom message.
	DefaultTemplate string

	Log logx.Logger
}

func (o *Options) fill() {
	if o.NameColumn == "" {
		o.NameColumn = "nombre"
	}
	if o.PhoneColumn == "" {
		o.PhoneColumn = "telefono"
	}
	if o.MessageColumn == "" {
		o.MessageColumn = "mensaje"
	}
	if o.MinDigits <= 0 {
		o.MinDigits = 8
	}
	if o.MaxDigits <= 0 {
		o.MaxDigits = 15
	}
	if o.Log.IsZero() {
		o.Log = logx.Nop()
	}
}

// Load reads a CSV or XLSX contact file into ordered records.
//
// Errors follow a strict split: missing file, unknown extension and missing
// required columns abort the load; anything wrong with an individual row only
// drops that row (with a warning), so the caller always gets every salvageable
// contact in source order.
func Load(path string, opts Options) ([]Contact, error) {
	opts.fill()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path, opts.Log)
	case ".xlsx", ".xls":
		rows, err = readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &SchemaError{Missing: []string{opts.NameColumn, opts.PhoneColumn}}
	}

	cols := headerIndex(rows[0])
	var missing []string
	for _, required := range []string{opts.NameColumn, opts.PhoneColumn} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	out := make([]Contact, 0, len(rows)-1)
	for i, row := range rows[1:] {
		c, ok := processRow(row, rows[0], cols, i+1, opts)
		if ok {
			out = append(out, c)
		}
	}
	opts.Log.Info("contacts loaded", logx.String("file", path), logx.Int("count", len(out)))
	return out, nil
}

// headerIndex maps lowercased, trimmed column names to their position.
func headerIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, dup := m[name]; !dup {
			m[name] = i
		}
	}
	return m
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func processRow(row, header []string, cols map[string]int, rowNum int, opts Options) (Contact, bool) {
	name := cell(row, cols[opts.NameColumn])
	if name == "" || isPlaceholderName(name) {
		opts.Log.Warn("row dropped: empty or invalid name", logx.Int("row", rowNum))
		return Contact{}, false
	}

	rawPhone := cell(row, cols[opts.PhoneColumn])
	phone := NormalizePhone(rawPhone)
	if len(phone) < opts.MinDigits || len(phone) > opts.MaxDigits {
		opts.Log.Warn("row dropped: invalid phone",
			logx.Int("row", rowNum), logx.String("phone", rawPhone))
		return Contact{}, false
	}

	msg := opts.DefaultTemplate
	if idx, ok := cols[opts.MessageColumn]; ok {
		if custom := cell(row, idx); custom != "" {
			msg = custom
		}
	}

	c := Contact{
		Name:     name,
		Phone:    phone,
		RawPhone: rawPhone,
		Message:  msg,
		Row:      rowNum,
	}

	// Carry leftover columns through untouched; templates may reference them.
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" || key == opts.NameColumn || key == opts.PhoneColumn || key == opts.MessageColumn {
			continue
		}
		if v := cell(row, i); v != "" {
			if c.Extra == nil {
				c.Extra = map[string]string{}
			}
			c.Extra[key] = v
		}
	}
	return c, true
}

// isPlaceholderName catches spreadsheet export artifacts that read as names.
func isPlaceholderName(name string) bool {
	switch strings.ToLower(name) {
	case "nan", "none", "null":
		return true
	}
	return false
}

// csvEncodings is the fixed decode order for CSV input. Latin-1 is total over
// bytes, so in practice the chain ends there; the tail entries keep the
// contract explicit.
var csvEncodings = []struct {
	name string
	enc  *charmap.Charmap
}{
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

func readCSV(path string, log logx.Logger) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	text := ""
	if utf8.Valid(raw) {
		text = string(raw)
	} else {
		for _, e := range csvEncodings {
			decoded, derr := decodeStrict(raw, e.enc)
			if derr == nil {
				log.Debug("csv decoded with fallback encoding", logx.String("encoding", e.name))
				text = decoded
				break
			}
		}
		if text == "" {
			// Platform-default attempt: take the bytes as-is and let the CSV
			// parser surface whatever it surfaces.
			text = string(raw)
		}
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("contacts: parsing csv: %w", err)
	}
	return records, nil
}

func decodeStrict(raw []byte, cm *charmap.Charmap) (string, error) {
	out, err := cm.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	// Charmap decoders substitute U+FFFD for undefined bytes instead of
	// failing; treat that as a decode error so the next encoding gets a try.
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("contacts: byte not representable in charmap")
	}
	return string(out), nil
}
