package contacts

import (
	"encoding/csv"
	"os"
	"sort"
)

// Export writes normalized contacts back out as UTF-8 CSV. Extra columns are
// emitted after the fixed ones, in a stable alphabetical order.
func Export(list []Contact, path string) error {
	extraCols := map[string]bool{}
	for _, c := range list {
		for k := range c.Extra {
			extraCols[k] = true
		}
	}
	extras := make([]string, 0, len(extraCols))
	for k := range extraCols {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"nombre", "telefono", "mensaje"}, extras...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, c := range list {
		rec := []string{c.Name, c.Phone, c.Message}
		for _, k := range extras {
			rec = append(rec, c.Extra[k])
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
