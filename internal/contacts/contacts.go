// Package contacts loads recipient lists from spreadsheet-like files and
// normalizes them into flat records the sender can iterate.
package contacts

import (
	"regexp"
	"strings"
)

// Contact is one validated input row. Immutable after load.
type Contact struct {
	// Name is the trimmed display name (never empty).
	Name string
	// Phone is the digits-only destination id.
	Phone string
	// RawPhone is the value as it appeared in the file, kept for diagnostics.
	RawPhone string
	// Message is the per-row custom message, or the run's default template.
	// Placeholders are resolved at send time, not here.
	Message string
	// Row is the 1-based position in the source file.
	Row int
	// Extra carries leftover columns verbatim. The core never interprets them
	// but they are available to message templates.
	Extra map[string]string
}

// Fields returns the placeholder namespace for this contact.
func (c Contact) Fields() map[string]string {
	m := make(map[string]string, len(c.Extra)+3)
	for k, v := range c.Extra {
		m[k] = v
	}
	m["nombre"] = c.Name
	m["telefono"] = c.Phone
	m["telefono_original"] = c.RawPhone
	return m
}

var nonDigits = regexp.MustCompile(`[^\d]`)

// NormalizePhone strips everything but digits. Idempotent by construction.
func NormalizePhone(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// ValidPhone reports whether raw normalizes to a digit string whose length
// falls within [minDigits, maxDigits].
func ValidPhone(raw string, minDigits, maxDigits int) bool {
	d := NormalizePhone(raw)
	return len(d) >= minDigits && len(d) <= maxDigits
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// FormatMessage substitutes {field} placeholders from the contact's fields.
// If the template references any field the contact doesn't have, the template
// is returned unchanged; a half-substituted message is worse than a generic
// one.
func FormatMessage(template string, c Contact) string {
	fields := c.Fields()
	ok := true
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v, found := fields[key]
		if !found {
			ok = false
			return m
		}
		return v
	})
	if !ok {
		return template
	}
	return out
}

// Summary is the result of validating an already-loaded list.
type Summary struct {
	Total        int
	Valid        int
	EmptyName    int
	InvalidPhone int
}

// Validate re-checks loaded contacts. Load already drops invalid rows, so on
// its output Valid == Total; front-ends use this to sanity-check lists that
// were filtered or assembled elsewhere.
func Validate(list []Contact, minDigits, maxDigits int) Summary {
	s := Summary{Total: len(list)}
	for _, c := range list {
		switch {
		case strings.TrimSpace(c.Name) == "":
			s.EmptyName++
		case !ValidPhone(c.Phone, minDigits, maxDigits):
			s.InvalidPhone++
		default:
			s.Valid++
		}
	}
	return s
}
